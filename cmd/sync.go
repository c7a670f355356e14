package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
	"github.com/desertthunder/stocksync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncPreview matches a file against the catalog and prints the planned updates.
func (r *Runner) SyncPreview(ctx context.Context, cmd *cli.Command) error {
	path, err := r.prepareSync(cmd)
	if err != nil {
		return err
	}

	shop, err := r.connectShop(ctx)
	if err != nil {
		return err
	}

	engine := r.newEngine(shop, nil)
	req := r.syncRequest(path, cmd.String("sheet"), models.TriggerManual)

	progress, wait := r.printProgress(cmd.Bool("json"))
	plan, err := engine.Preview(ctx, req, progress)
	close(progress)
	wait()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(plan.Preview, cmd.Bool("pretty"))
	}
	r.printPlan(plan, cmd.Int("limit"))
	return nil
}

// SyncRun previews and applies a file in one step, recording the run in history.
//
// The first interrupt stops the run after the operation in flight; a second one aborts it.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	path, err := r.prepareSync(cmd)
	if err != nil {
		return err
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

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	cancel := &tasks.Flag{}
	r.cancelOnInterrupt(ctx, cancel, stop)

	engine := r.newEngine(shop, repo)
	req := r.syncRequest(path, cmd.String("sheet"), models.TriggerManual)
	req.Cancel = tasks.AnySignal(cancel, tasks.NewContextSignal(ctx))

	if req.DryRun {
		r.writePlain("Dry run: nothing will be written to %s\n\n", shop.Shop())
	}

	progress, wait := r.printProgress(false)
	plan, result, runErr := engine.Run(ctx, req, progress)
	close(progress)
	wait()

	if plan != nil {
		r.printPlanSummary(plan)
	}
	if result != nil {
		r.printResult(result, runErr)
	}

	if dir := cmd.String("report-dir"); dir != "" && plan != nil {
		if err := r.writeReports(ctx, repo, dir, cmd.StringSlice("format")); err != nil {
			r.logger.Error("failed to write reports", "error", err)
		}
	}
	return runErr
}

// prepareSync loads the config, applies flag overrides and checks the file argument.
func (r *Runner) prepareSync(cmd *cli.Command) (string, error) {
	if err := r.loadConfig(cmd); err != nil {
		return "", err
	}
	if err := r.applySyncFlags(cmd); err != nil {
		return "", err
	}

	path := cmd.StringArg("file")
	if path == "" {
		return "", fmt.Errorf("%w: file", shared.ErrMissingArgument)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return path, nil
}

// cancelOnInterrupt sets flag on the first SIGINT/SIGTERM and calls abort on the second.
func (r *Runner) cancelOnInterrupt(ctx context.Context, flag *tasks.Flag, abort context.CancelFunc) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			r.logger.Warn("interrupt received, stopping after the current operation (press again to abort)")
			flag.Cancel()
		case <-ctx.Done():
			return
		}
		select {
		case <-sigs:
			r.logger.Warn("aborting")
			abort()
		case <-ctx.Done():
		}
	}()
}

// printProgress drains progress updates onto the output until the channel is closed.
// wait blocks until every update was printed.
func (r *Runner) printProgress(quiet bool) (chan tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			if quiet {
				continue
			}
			switch update.Phase {
			case tasks.LoadRows, tasks.LoadCatalog:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.MatchRows:
				r.writePlain("🔍 %s\n", update.Message)
			case tasks.PlanOperations:
				r.writePlain("📝 %s\n", update.Message)
			case tasks.ApplyOperations, tasks.ExportReports:
				r.writePlain("   %s\n", update.Message)
			case tasks.Complete:
				r.writePlain("\n%s\n", update.Message)
			}
		}
	}()

	return progress, func() { <-done }
}

func (r *Runner) printPlanSummary(plan *tasks.Plan) {
	prices, inventory := plan.Preview.CountByType()
	r.writePlain("\nCatalog: %d products, %d variants\n", plan.Products, plan.Variants)
	r.writePlain("Rows: %d matched of %d, %d unmatched\n",
		plan.Preview.MatchedRows, plan.Preview.TotalRows, len(plan.Preview.UnmatchedRows))
	r.writePlain("Planned: %d price updates, %d inventory updates\n", prices, inventory)
	if !plan.Duplicates.Empty() {
		r.writePlain("Warning: %d duplicated SKUs and %d duplicated keys in the catalog\n",
			len(plan.Duplicates.SKUs), len(plan.Duplicates.Keys))
	}
	for _, w := range plan.Preview.Warnings {
		r.writePlain("Warning: row %d: %s\n", w.RowNumber, w.Message)
	}
}

func (r *Runner) printPlan(plan *tasks.Plan, limit int) {
	r.printPlanSummary(plan)

	planned := plan.Preview.Planned
	if len(planned) == 0 {
		r.writePlainln("Nothing to update: the shop already matches the file.")
	} else {
		r.writePlainln("Planned updates:")
		for i, op := range planned {
			if limit > 0 && i >= limit {
				r.writePlain("  ... %d more\n", len(planned)-limit)
				break
			}
			r.writePlain("  row %-5d %-9s %-20s %s → %s  [%s/%s]\n",
				op.RowNumber, op.Type, opLabel(op), valueOr(op.OldValue, "?"), op.NewValue,
				op.Match.Method, op.Match.Confidence)
		}
	}

	if unmatched := plan.Preview.UnmatchedRows; len(unmatched) > 0 {
		r.writePlainln("Unmatched rows:")
		for i, row := range unmatched {
			if limit > 0 && i >= limit {
				r.writePlain("  ... %d more\n", len(unmatched)-limit)
				break
			}
			r.writePlain("  row %-5d %-20s %s (%s)\n", row.RowNumber, row.SKU, row.Name, row.Reason)
		}
	}
}

func (r *Runner) printResult(result *models.SyncResult, runErr error) {
	r.writePlain("\n")
	r.writePlainHeader(fmt.Sprintf("Sync %s", result.Status()))
	r.writePlain("Planned:   %d\n", result.TotalPlanned)
	r.writePlain("Succeeded: %d\n", result.TotalSuccess)
	r.writePlain("Failed:    %d\n", result.TotalFailed)
	r.writePlain("Skipped:   %d\n", result.TotalSkipped)
	r.writePlain("Duration:  %s\n", shared.FormatDuration(result.Duration))

	var aborted *tasks.RunAbortedError
	if errors.As(runErr, &aborted) {
		r.writePlain("Stopped (%s): %d operations not attempted\n", aborted.Reason, aborted.Remaining)
	}

	if result.TotalFailed > 0 {
		r.writePlainln("Failed operations:")
		for _, exec := range result.Operations {
			if exec.Status != models.StatusFailed {
				continue
			}
			r.writePlain("  row %-5d %-9s %-20s %s", exec.RowNumber, exec.Type, opLabel(exec.PlannedOperation), exec.Message)
			if exec.ErrorCode != "" {
				r.writePlain(" (%s)", exec.ErrorCode)
			}
			r.writePlain("\n")
		}
	}
}

func opLabel(op models.PlannedOperation) string {
	if op.SKU != "" {
		return op.SKU
	}
	return op.ProductTitle
}

func valueOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
