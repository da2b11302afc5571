package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/plantpulse/plantpulse/internal/alerts"
	"github.com/plantpulse/plantpulse/internal/api"
	"github.com/plantpulse/plantpulse/internal/config"
	"github.com/plantpulse/plantpulse/internal/ingest"
	"github.com/plantpulse/plantpulse/internal/runner"
	"github.com/plantpulse/plantpulse/internal/store"
	"github.com/plantpulse/plantpulse/internal/ws"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis service",
		Long: `Start the plantpulse service: the periodic analysis scheduler, the REST
API, the WebSocket stream and the alert engine, all driven by one config file.

Example:
  plantpulse serve --config /etc/plantpulse/config.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts)
		},
	}
}

func runServe(opts *RootOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	slog.Info("plantpulse starting",
		"config", opts.ConfigPath,
		"http_port", cfg.Server.HTTPPort,
		"interval", cfg.Runner.Interval.String(),
		"storage", cfg.Storage.Path,
		"sources", len(cfg.Ingest.Sources),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	} else {
		slog.Info("no ingest sources configured, analyzing stored rows only")
	}

	alertEngine := alerts.New(cfg.Alerts)

	hub := ws.New()
	go hub.Run(ctx)

	run := runner.New(cfg, st, collector, hub, alertEngine, slog.Default())
	go run.Schedule(ctx)

	// Alert rules and webhooks follow config file edits without a restart.
	go func() {
		err := config.Watch(ctx, opts.ConfigPath, func(next *config.Config) {
			alertEngine.Reconfigure(next.Alerts)
		})
		if err != nil {
			slog.Warn("config watch unavailable", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws/stream", hub)
	mux.Handle("/", api.New(st, run, alertEngine, hub))

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: api.APIKeyMiddleware(cfg.Server.Auth, mux),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}

	slog.Info("plantpulse stopped")
	return nil
}
