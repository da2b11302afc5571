package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/plantpulse/plantpulse/internal/config"
	"github.com/plantpulse/plantpulse/internal/ingest"
	"github.com/plantpulse/plantpulse/internal/runner"
	"github.com/plantpulse/plantpulse/internal/store"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	Date string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one analysis pass and exit",
		Long: `Fetch, reconcile and compute indicators for a single registry date,
persist the results and print a run summary. Useful for backfills:

  plantpulse analyze --date 2026-08-12`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "registry date as YYYY-MM-DD (default today)")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	date := opts.Date
	if date == "" {
		date = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("store close failed", "error", err)
		}
	}()

	var collector *ingest.Collector
	if len(cfg.Ingest.Sources) > 0 {
		collector, err = ingest.New(cfg.Ingest, slog.Default())
		if err != nil {
			return fmt.Errorf("build collector: %w", err)
		}
	}

	run := runner.New(cfg, st, collector, nil, nil, slog.Default())

	res, err := run.Run(cmd.Context(), date)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "date %s: %d intervals, %d production rows, %d indicator rows in %s\n",
		res.Date, res.Intervals, res.Production, res.Indicators,
		res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	return nil
}
