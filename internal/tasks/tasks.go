package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stocksync/internal/matching"
	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
)

// Request describes one sync run.
type Request struct {
	Source           RowSource
	SourceName       string
	Trigger          string
	Options          PlanOptions
	DryRun           bool
	SkipAfterFailure bool
	Cancel           CancellationSignal
}

// Plan is the reviewed state between preview and execution.
type Plan struct {
	Rows       []models.CsvRow
	Matches    []models.MatchResult
	Preview    *models.SyncPreviewResult
	Duplicates matching.DuplicateReport
	Products   int
	Variants   int
}

// Engine wires a catalog, an apply capability and an optional history recorder around the planner and executor.
type Engine struct {
	catalog CatalogSource
	apply   ApplyCapability
	history HistoryRecorder
	matcher *matching.Matcher
	policy  matching.DuplicatePolicy
	logger  *log.Logger
}

// EngineOption configures an [Engine].
type EngineOption func(*Engine)

// WithHistory records every finished run.
func WithHistory(h HistoryRecorder) EngineOption {
	return func(e *Engine) { e.history = h }
}

// WithMatcher replaces the default strategy chain.
func WithMatcher(m *matching.Matcher) EngineOption {
	return func(e *Engine) { e.matcher = m }
}

// WithDuplicatePolicy sets the index duplicate policy.
func WithDuplicatePolicy(p matching.DuplicatePolicy) EngineOption {
	return func(e *Engine) { e.policy = p }
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an [Engine]. apply may be nil for preview-only use.
func NewEngine(catalog CatalogSource, apply ApplyCapability, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog: catalog,
		apply:   apply,
		matcher: matching.NewMatcher(),
		policy:  matching.LastWriteWins,
		logger:  shared.NewLogger(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Preview loads rows and the catalog, matches every row and plans operations without applying anything.
func (e *Engine) Preview(ctx context.Context, req Request, progress chan<- ProgressUpdate) (*Plan, error) {
	if req.Source == nil {
		return nil, fmt.Errorf("%w: row source", shared.ErrMissingArgument)
	}
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: no catalog source configured", shared.ErrCatalogUnavailable)
	}

	sendProgress(progress, loadRowsUpdate(req.SourceName))
	rows, err := req.Source.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	sendProgress(progress, rowsLoadedUpdate(len(rows)))

	sendProgress(progress, loadCatalogUpdate())
	products, err := e.catalog.GetProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCatalogUnavailable, err)
	}
	variantCount := models.CountVariants(products)
	sendProgress(progress, catalogLoadedUpdate(len(products), variantCount))

	idx := matching.Build(products, matching.WithDuplicatePolicy(e.policy))
	if dups := idx.Duplicates(); !dups.Empty() {
		e.logger.Warn("duplicate catalog keys", "skus", len(dups.SKUs), "keys", len(dups.Keys), "displaced", dups.Displaced, "policy", e.policy)
	}

	matches := e.matcher.MatchAll(rows, idx)
	matched := 0
	for _, m := range matches {
		if m.Matched() {
			matched++
		}
	}
	sendProgress(progress, matchUpdate(matched, len(rows)))

	preview, err := PlanSync(rows, matches, idx, req.Options)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, planUpdate(preview))

	e.logger.Info("planned sync",
		"source", req.SourceName,
		"rows", len(rows),
		"matched", preview.MatchedRows,
		"planned", len(preview.Planned),
		"unmatched", len(preview.UnmatchedRows),
	)

	return &Plan{
		Rows:       rows,
		Matches:    matches,
		Preview:    preview,
		Duplicates: idx.Duplicates(),
		Products:   len(products),
		Variants:   variantCount,
	}, nil
}

// Execute applies a reviewed plan. Dry runs record every planned operation as skipped.
//
// A *RunAbortedError is returned together with the partial result.
func (e *Engine) Execute(ctx context.Context, plan *Plan, req Request, progress chan<- ProgressUpdate) (*models.SyncResult, error) {
	if plan == nil || plan.Preview == nil {
		return nil, fmt.Errorf("%w: plan", shared.ErrMissingArgument)
	}

	apply := e.apply
	if req.DryRun && apply == nil {
		apply = noopApplier{}
	}
	result, err := ExecuteSync(ctx, plan.Preview.Planned, apply, req.Cancel, ExecuteOptions{
		SkipAfterFailure: req.SkipAfterFailure,
		DryRun:           req.DryRun,
		Progress:         progress,
	})

	if result != nil {
		e.logger.Info("sync finished",
			"status", result.Status(),
			"success", result.TotalSuccess,
			"failed", result.TotalFailed,
			"skipped", result.TotalSkipped,
			"duration", shared.FormatDuration(result.Duration),
		)
	}
	e.record(ctx, req, plan.Preview, result, err)
	return result, err
}

// Run previews and executes in one step.
func (e *Engine) Run(ctx context.Context, req Request, progress chan<- ProgressUpdate) (*Plan, *models.SyncResult, error) {
	plan, err := e.Preview(ctx, req, progress)
	if err != nil {
		e.record(ctx, req, nil, nil, err)
		return nil, nil, err
	}
	result, err := e.Execute(ctx, plan, req, progress)
	return plan, result, err
}

func (e *Engine) record(ctx context.Context, req Request, preview *models.SyncPreviewResult, result *models.SyncResult, runErr error) {
	if e.history == nil {
		return
	}
	rec := RunRecord{Source: req.SourceName, Trigger: req.Trigger, Preview: preview, Result: result, Err: runErr}
	if err := e.history.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Warn("failed to record sync history", "error", err)
	}
}

// noopApplier stands in for a missing apply capability during dry runs.
type noopApplier struct{}

func (noopApplier) ApplyPriceUpdate(context.Context, string, string, string) error { return nil }

func (noopApplier) ApplyInventoryUpdate(context.Context, string, int) error { return nil }
