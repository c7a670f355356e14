package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/stocksync/internal/autosync"
	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/repositories"
	"github.com/desertthunder/stocksync/internal/shared"
	"github.com/desertthunder/stocksync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Auto runs unattended syncs from the [autosync] section until interrupted.
func (r *Runner) Auto(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	if err := r.applySyncFlags(cmd); err != nil {
		return err
	}

	cfg := r.autoSyncConfig(cmd)
	if cfg.Source == "" {
		return fmt.Errorf("%w: set autosync.source or pass --source", shared.ErrMissingArgument)
	}
	if !cfg.Enabled {
		r.logger.Info("autosync.enabled is false, running in the foreground only")
	}

	if r.config.Log.File != "" {
		if err := r.useFileLogger(""); err != nil {
			return err
		}
	}

	shop, err := r.connectShop(ctx)
	if err != nil {
		return err
	}

	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := autosync.NewFromConfig(cfg, r.autoRun(shop, repo, cfg.Source, cmd), r.logger)
	if err := scheduler.Validate(); err != nil {
		return err
	}

	r.writePlain("Auto sync of %s into %s", cfg.Source, shop.Shop())
	if d := cfg.Interval(); d > 0 {
		r.writePlain(" every %s", d)
	}
	if cfg.Watch {
		r.writePlain(" and on file change")
	}
	r.writePlain(". Press Ctrl+C to stop.\n")

	if err := scheduler.Run(ctx); err != nil {
		return err
	}

	st := scheduler.Status()
	r.writePlain("Stopped after %d runs (%d skipped while busy)\n", st.Runs, st.Dropped)
	return nil
}

// autoSyncConfig applies command flags over the [autosync] section.
func (r *Runner) autoSyncConfig(cmd *cli.Command) shared.AutoSyncConfig {
	cfg := r.config.AutoSync
	if cmd.IsSet("source") {
		cfg.Source = cmd.String("source")
	}
	if cmd.IsSet("interval") {
		cfg.IntervalMinutes = cmd.Int("interval")
	}
	if cmd.IsSet("watch") {
		cfg.Watch = cmd.Bool("watch")
	}
	return cfg
}

// autoRun returns the [autosync.RunFunc] that performs one recorded sync of source.
func (r *Runner) autoRun(shop ShopBackend, repo *repositories.SyncRunRepository, source string, cmd *cli.Command) autosync.RunFunc {
	engine := r.newEngine(shop, repo)
	sheet := cmd.String("sheet")
	reportDir := cmd.String("report-dir")
	formats := cmd.StringSlice("format")

	return func(ctx context.Context, trigger string) (*models.SyncResult, error) {
		req := r.syncRequest(source, sheet, trigger)
		req.Cancel = tasks.NewContextSignal(ctx)

		_, result, err := engine.Run(ctx, req, nil)
		if reportDir != "" && result != nil {
			if rerr := r.writeReports(ctx, repo, reportDir, formats); rerr != nil {
				r.logger.Error("failed to write reports", "error", rerr)
			}
		}
		return result, err
	}
}
