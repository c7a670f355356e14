package tasks

import (
	"context"
	"sync/atomic"

	"github.com/desertthunder/stocksync/internal/models"
)

// CatalogSource returns a complete catalog snapshot that stays consistent for one run.
type CatalogSource interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
}

// RowSource returns parsed rows in file order with their 1-based row numbers.
type RowSource interface {
	Rows(ctx context.Context) ([]models.CsvRow, error)
}

// ApplyCapability performs one price or inventory write per call.
//
// Implementations report per-operation failures as *shared.ApplyError and a
// permanently lost capability by wrapping shared.ErrApplyUnavailable.
type ApplyCapability interface {
	ApplyPriceUpdate(ctx context.Context, productID, variantID, price string) error
	ApplyInventoryUpdate(ctx context.Context, inventoryItemID string, quantity int) error
}

// CancellationSignal is polled between operations.
type CancellationSignal interface {
	Cancelled() bool
}

// HistoryRecorder persists finished runs. Recording errors never fail a run.
type HistoryRecorder interface {
	RecordRun(ctx context.Context, run RunRecord) error
}

// RunRecord is everything a [HistoryRecorder] receives about one run.
type RunRecord struct {
	Source  string
	Trigger string
	Preview *models.SyncPreviewResult
	Result  *models.SyncResult
	Err     error
}

// ContextSignal adapts a [context.Context] to a [CancellationSignal].
type ContextSignal struct {
	ctx context.Context
}

// NewContextSignal returns a signal that reports cancelled once ctx is done.
func NewContextSignal(ctx context.Context) ContextSignal {
	return ContextSignal{ctx: ctx}
}

func (s ContextSignal) Cancelled() bool {
	if s.ctx == nil {
		return false
	}
	return s.ctx.Err() != nil
}

// Flag is a [CancellationSignal] set by a UI or signal handler.
type Flag struct {
	set atomic.Bool
}

// Cancel requests a stop after the current operation.
func (f *Flag) Cancel() { f.set.Store(true) }

func (f *Flag) Cancelled() bool { return f.set.Load() }

type anySignal []CancellationSignal

func (s anySignal) Cancelled() bool {
	for _, sig := range s {
		if sig != nil && sig.Cancelled() {
			return true
		}
	}
	return false
}

// AnySignal reports cancelled when any of signals does. Nil entries are ignored.
func AnySignal(signals ...CancellationSignal) CancellationSignal {
	return anySignal(signals)
}
