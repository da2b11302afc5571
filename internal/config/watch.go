package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces the burst of filesystem events one editor save
// produces into a single reload.
const debounceDelay = 250 * time.Millisecond

// Watch monitors the config file and calls onChange with the newly loaded
// Config after each write settles. It runs until ctx is cancelled.
//
// If a reload fails (invalid YAML, failed validation) the error is logged and
// the previous config remains active - Watch does not call onChange.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors save via plain writes or atomic rename (create).
			// Either way the burst settles within the debounce window.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			pending = time.After(debounceDelay)

		case <-pending:
			pending = nil

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}

			slog.Info("config: reloaded",
				"path", path,
				"alert_rules", len(cfg.Alerts.Rules),
				"webhooks", len(cfg.Alerts.Webhooks),
				"sources", len(cfg.Ingest.Sources),
			)
			onChange(cfg)

			// An atomic save replaces the inode; re-add the path.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
