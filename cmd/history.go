package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/stocksync/internal/formatter"
	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/repositories"
	"github.com/desertthunder/stocksync/internal/shared"
	"github.com/desertthunder/stocksync/internal/tasks"
	"github.com/urfave/cli/v3"
)

type runSummary struct {
	Run        int        `json:"run"`
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	Trigger    string     `json:"trigger"`
	Status     string     `json:"status"`
	Planned    int        `json:"planned"`
	Success    int        `json:"success"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	Unmatched  int        `json:"unmatched"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
}

func summarize(run *models.SyncRun) runSummary {
	return runSummary{
		Run:        run.Sequence(),
		ID:         run.ID(),
		Source:     run.Source(),
		Trigger:    run.Trigger(),
		Status:     run.Status(),
		Planned:    run.TotalPlanned(),
		Success:    run.TotalSuccess(),
		Failed:     run.TotalFailed(),
		Skipped:    run.TotalSkipped(),
		Unmatched:  run.TotalUnmatched(),
		StartedAt:  run.StartedAt(),
		FinishedAt: run.FinishedAt(),
		DurationMS: run.Duration().Milliseconds(),
		Error:      run.ErrorMessage(),
	}
}

// withHistory loads the config and opens the history store for the duration of fn.
func (r *Runner) withHistory(cmd *cli.Command, fn func(repo *repositories.SyncRunRepository) error) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(repo)
}

// findRun resolves a run argument: a run number, "latest" or a run id.
func findRun(ctx context.Context, repo *repositories.SyncRunRepository, arg string) (*models.SyncRun, error) {
	switch arg = strings.TrimPrefix(strings.TrimSpace(arg), "#"); {
	case arg == "":
		return nil, fmt.Errorf("%w: run number", shared.ErrMissingArgument)
	case arg == "latest":
		latest, err := repo.Latest(ctx)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			return nil, fmt.Errorf("%w: no runs recorded", shared.ErrInvalidArgument)
		}
		return latest, nil
	}

	if seq, err := strconv.Atoi(arg); err == nil {
		return repo.GetBySequence(ctx, seq)
	}
	return repo.GetContext(ctx, arg)
}

// parseFormats maps --format values onto report formats; none selects every format.
func parseFormats(names []string) ([]formatter.Format, error) {
	var formats []formatter.Format
	for _, name := range names {
		for part := range strings.SplitSeq(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			f, err := formatter.ParseFormat(part)
			if err != nil {
				return nil, err
			}
			formats = append(formats, f)
		}
	}
	return formats, nil
}

// HistoryList prints recent runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	return r.withHistory(cmd, func(repo *repositories.SyncRunRepository) error {
		runs, err := repo.ListContext(ctx, map[string]any{
			"limit":   cmd.Int("limit"),
			"status":  cmd.String("status"),
			"trigger": cmd.String("trigger"),
		})
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			out := make([]runSummary, 0, len(runs))
			for _, run := range runs {
				out = append(out, summarize(run))
			}
			return r.writeJSON(out, true)
		}

		if len(runs) == 0 {
			r.writePlain("No sync runs recorded.\n")
			return nil
		}

		r.writePlain("%-6s %-17s %-10s %-9s %7s %7s %7s %9s  %s\n",
			"RUN", "STARTED", "STATUS", "TRIGGER", "OK", "FAILED", "SKIPPED", "UNMATCHED", "SOURCE")
		for _, run := range runs {
			r.writePlain("#%-5d %-17s %-10s %-9s %7d %7d %7d %9d  %s\n",
				run.Sequence(),
				run.StartedAt().Local().Format("2006-01-02 15:04"),
				run.Status(),
				run.Trigger(),
				run.TotalSuccess(),
				run.TotalFailed(),
				run.TotalSkipped(),
				run.TotalUnmatched(),
				run.Source(),
			)
		}
		return nil
	})
}

// HistoryShow renders one run in the requested format.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	return r.withHistory(cmd, func(repo *repositories.SyncRunRepository) error {
		run, err := findRun(ctx, repo, cmd.StringArg("run"))
		if err != nil {
			return err
		}
		return formatter.Render(r.output, run, f)
	})
}

// HistoryStats prints counts per outcome and the time of the last applied sync.
func (r *Runner) HistoryStats(ctx context.Context, cmd *cli.Command) error {
	return r.withHistory(cmd, func(repo *repositories.SyncRunRepository) error {
		stats, err := repo.Stats(ctx)
		if err != nil {
			return err
		}

		r.writePlainHeader("Sync history")
		r.writePlain("Total runs: %d\n", stats.Total)
		r.writePlain("Success:    %d\n", stats.Success)
		r.writePlain("Partial:    %d\n", stats.Partial)
		r.writePlain("Failed:     %d\n", stats.Failed)
		r.writePlain("Cancelled:  %d\n", stats.Cancelled)
		r.writePlain("Dry runs:   %d\n", stats.DryRun)
		if stats.LastSync != nil {
			r.writePlain("Last sync:  %s (%s ago)\n",
				stats.LastSync.Local().Format("2006-01-02 15:04"),
				shared.FormatDuration(time.Since(*stats.LastSync).Truncate(time.Second)))
		} else {
			r.writePlain("Last sync:  never\n")
		}
		return nil
	})
}

// HistoryExport writes report files for one run, or for every run selected by --all or
// --last using a pool of export workers.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	formats, err := parseFormats(cmd.StringSlice("format"))
	if err != nil {
		return err
	}

	bulk := cmd.Bool("all") || cmd.IsSet("last")
	if bulk && cmd.StringArg("run") != "" {
		return fmt.Errorf("%w: pass a run or --all/--last, not both", shared.ErrInvalidFlag)
	}
	if cmd.IsSet("last") && cmd.Int("last") <= 0 {
		return fmt.Errorf("%w: --last must be positive", shared.ErrInvalidFlag)
	}

	return r.withHistory(cmd, func(repo *repositories.SyncRunRepository) error {
		if !bulk {
			run, err := findRun(ctx, repo, cmd.StringArg("run"))
			if err != nil {
				return err
			}
			dir := cmd.String("output")
			if dir == "" {
				dir = "."
			}
			return r.writeRunReport(run, dir, formats)
		}
		return r.exportRuns(ctx, cmd, repo, formats)
	})
}

func (r *Runner) exportRuns(ctx context.Context, cmd *cli.Command, repo *repositories.SyncRunRepository, formats []formatter.Format) error {
	criteria := map[string]any{}
	if !cmd.Bool("all") {
		criteria["limit"] = cmd.Int("last")
	}
	runs, err := repo.ListContext(ctx, criteria)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		r.writePlain("No sync runs recorded.\n")
		return nil
	}

	ids := make([]string, 0, len(runs))
	for _, run := range runs {
		ids = append(ids, run.ID())
	}

	progress, wait := r.printProgress(cmd.Bool("quiet"))
	result, err := tasks.BulkExport(ctx, progress, repo, ids, tasks.BulkExportOpts{
		Formats:    formats,
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
	})
	close(progress)
	wait()
	if err != nil && result == nil {
		return err
	}

	r.writePlain("\nExported %d of %d runs to %s\n", result.SuccessfulExports, result.TotalRuns, result.OutputDirectory)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	for _, res := range result.Results {
		if res.Error != nil {
			r.writePlain("  ✗ %s: %s\n", res.RunID, res.Message)
		}
	}
	if err != nil {
		return err
	}
	if result.FailedExports > 0 {
		return fmt.Errorf("%d of %d runs failed to export", result.FailedExports, result.TotalRuns)
	}
	return nil
}

// HistoryClear deletes every stored run. Requires --yes.
func (r *Runner) HistoryClear(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("%w: pass --yes to delete all sync history", shared.ErrMissingArgument)
	}
	return r.withHistory(cmd, func(repo *repositories.SyncRunRepository) error {
		n, err := repo.Clear(ctx)
		if err != nil {
			return err
		}
		r.logger.Info("cleared sync history", "runs", n)
		r.writePlain("✓ Deleted %d sync runs\n", n)
		return nil
	})
}
