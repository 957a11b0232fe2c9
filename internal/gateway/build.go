package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iambrandonn/editorgate/internal/channel"
	"github.com/iambrandonn/editorgate/internal/config"
	"github.com/iambrandonn/editorgate/internal/journal"
	"github.com/iambrandonn/editorgate/internal/supervisor"
	"github.com/iambrandonn/editorgate/internal/tracker"
)

// Build wires an executor from configuration: supervisor, channel, tracker
// and, when a journal path is set, the operation journal.
func Build(cfg *config.Config, logger *slog.Logger) (*Executor, error) {
	sup, err := supervisor.New(supervisor.OptionsFromConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create supervisor: %w", err)
	}

	ch := channel.New(sup, channel.Options{
		Grace:          cfg.GracePeriod(),
		DrainDelay:     cfg.DrainDelay(),
		MaxOutputBytes: cfg.Execution.MaxOutputBytes,
	}, logger)

	opts := Options{
		Layout:              cfg.Layout(),
		Grace:               cfg.GracePeriod(),
		MaxTimeout:          cfg.MaxOperationTime(),
		SerializePerProject: cfg.Execution.SerializePerProject,
	}

	var trackerOpts []tracker.Option
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path, logger)
		if err != nil {
			_ = sup.Shutdown(context.Background())
			return nil, err
		}
		trackerOpts = append(trackerOpts, tracker.WithObserver(j.Observer()))
		opts.Journal = j
		logger.Info("journaling operations", "path", j.Path())
	}

	return New(sup, ch, tracker.New(trackerOpts...), opts, logger), nil
}
