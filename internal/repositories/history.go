package repositories

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/tasks"
)

// History records finished runs in a [models.RunStore] and trims old ones.
type History struct {
	repo       models.RunStore
	shop       string
	locationID string
	keep       int
	logger     *log.Logger
}

// NewHistory returns a recorder that stamps every run with shop and locationID and
// keeps at most keep runs (unbounded when keep <= 0).
func NewHistory(repo models.RunStore, shop, locationID string, keep int, logger *log.Logger) *History {
	if logger == nil {
		logger = log.Default()
	}
	return &History{repo: repo, shop: shop, locationID: locationID, keep: keep, logger: logger}
}

// RecordRun converts rec into a [models.SyncRun] and stores it.
func (h *History) RecordRun(ctx context.Context, rec tasks.RunRecord) error {
	run := NewRunFromRecord(rec, h.shop, h.locationID)

	if err := h.repo.CreateContext(ctx, run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	if n, err := h.repo.Prune(ctx, h.keep); err != nil {
		h.logger.Warn("failed to prune history", "error", err)
	} else if n > 0 {
		h.logger.Debug("pruned history", "removed", n, "keep", h.keep)
	}
	return nil
}

// NewRunFromRecord builds the persisted form of one engine run.
func NewRunFromRecord(rec tasks.RunRecord, shop, locationID string) *models.SyncRun {
	source := rec.Source
	if source == "" {
		source = "unknown"
	}
	run := models.NewSyncRun(0, source, shop, rec.Trigger)
	run.SetLocationID(locationID)

	planned := 0
	if rec.Preview != nil {
		run.SetUnmatched(rec.Preview.UnmatchedRows)
		planned = len(rec.Preview.Planned)
	}

	if rec.Result == nil {
		run.SetCounts(planned, 0, 0, 0, 0, run.TotalUnmatched())
		if rec.Err != nil {
			run.Fail(rec.Err)
		} else {
			run.Fail(fmt.Errorf("run produced no result"))
		}
		return run
	}

	run.Complete(rec.Result)
	if rec.Err != nil {
		run.SetErrorMessage(rec.Err.Error())
	}
	return run
}
