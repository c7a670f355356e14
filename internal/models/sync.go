package models

import (
	"time"
)

// MatchMethod names the strategy that resolved a row.
type MatchMethod string

const (
	MatchNone    MatchMethod = "none"
	MatchSKU     MatchMethod = "sku"
	MatchBarcode MatchMethod = "barcode"
	MatchName    MatchMethod = "name"
	MatchPrefix  MatchMethod = "prefix"
)

// Confidence is the trust tier of a match.
type Confidence string

const (
	ConfidenceNone    Confidence = "none"
	ConfidenceExact   Confidence = "exact"
	ConfidencePartial Confidence = "partial"
	ConfidenceLow     Confidence = "low"
)

// MatchResult is the outcome of resolving one row against the variant index.
//
// VariantID is empty exactly when Method is [MatchNone].
type MatchResult struct {
	VariantID  string      `json:"variant_id,omitempty"`
	Method     MatchMethod `json:"method"`
	Confidence Confidence  `json:"confidence"`
}

// NoMatch is the result for a row no strategy could resolve.
func NoMatch() MatchResult {
	return MatchResult{Method: MatchNone, Confidence: ConfidenceNone}
}

// Matched reports whether a variant was resolved.
func (m MatchResult) Matched() bool {
	return m.VariantID != "" && m.Method != MatchNone
}

// Ambiguous reports a name match that picked the first of several candidates.
func (m MatchResult) Ambiguous() bool {
	return m.Method == MatchName && m.Confidence == ConfidenceLow
}

// OperationType is the kind of field an operation changes.
type OperationType string

const (
	OperationPrice     OperationType = "price"
	OperationInventory OperationType = "inventory"
)

// PlannedOperation is one intended change to one variant, derived from exactly one row.
//
// OldValue is nil when the current value is unknown. For inventory operations
// NewValue holds the decimal rendering of Quantity.
type PlannedOperation struct {
	ID              string        `json:"id"`
	Type            OperationType `json:"type"`
	RowNumber       int           `json:"row_number"`
	VariantID       string        `json:"variant_id"`
	ProductID       string        `json:"product_id"`
	InventoryItemID string        `json:"inventory_item_id,omitempty"`
	SKU             string        `json:"sku,omitempty"`
	ProductTitle    string        `json:"product_title,omitempty"`
	VariantTitle    string        `json:"variant_title,omitempty"`
	OldValue        *string       `json:"old_value,omitempty"`
	NewValue        string        `json:"new_value"`
	Quantity        int           `json:"quantity,omitempty"`
	Match           MatchResult   `json:"match"`
}

// Target identifies the value an operation writes: a variant price or an inventory item level.
func (op PlannedOperation) Target() string {
	if op.Type == OperationInventory {
		return "inventory:" + op.InventoryItemID
	}
	return "price:" + op.VariantID
}

// OldValueString renders OldValue for display, empty when unknown.
func (op PlannedOperation) OldValueString() string {
	if op.OldValue == nil {
		return ""
	}
	return *op.OldValue
}

// OperationStatus is the terminal state of an executed operation.
type OperationStatus string

const (
	StatusPlanned OperationStatus = "planned"
	StatusSuccess OperationStatus = "success"
	StatusFailed  OperationStatus = "failed"
	StatusSkipped OperationStatus = "skipped"
)

// IsTerminal reports whether s is one of success, failed or skipped.
func (s OperationStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// OperationExecution is the recorded outcome of one planned operation.
type OperationExecution struct {
	PlannedOperation
	Status    OperationStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
}

// SyncResult aggregates the executions of one run.
//
// TotalExecuted always equals TotalSuccess + TotalFailed + TotalSkipped and never
// exceeds TotalPlanned. EndTime is nil until the run is finalized.
type SyncResult struct {
	TotalPlanned  int                  `json:"total_planned"`
	TotalExecuted int                  `json:"total_executed"`
	TotalSuccess  int                  `json:"total_success"`
	TotalFailed   int                  `json:"total_failed"`
	TotalSkipped  int                  `json:"total_skipped"`
	Operations    []OperationExecution `json:"operations"`
	StartTime     time.Time            `json:"start_time"`
	EndTime       *time.Time           `json:"end_time,omitempty"`
	Duration      time.Duration        `json:"duration"`
	Aborted       bool                 `json:"aborted,omitempty"`
	AbortReason   string               `json:"abort_reason,omitempty"`
	DryRun        bool                 `json:"dry_run,omitempty"`
}

// Run outcomes derived from a [SyncResult].
const (
	RunStatusRunning   = "running"
	RunStatusSuccess   = "success"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
	RunStatusDryRun    = "dry_run"
)

// Status summarizes the run outcome for history and exit codes.
func (r *SyncResult) Status() string {
	switch {
	case r.Aborted && r.AbortReason == AbortCancelled:
		return RunStatusCancelled
	case r.Aborted:
		return RunStatusFailed
	case r.DryRun:
		return RunStatusDryRun
	case r.TotalFailed > 0 && r.TotalSuccess == 0:
		return RunStatusFailed
	case r.TotalFailed > 0 || r.TotalSkipped > 0:
		return RunStatusPartial
	default:
		return RunStatusSuccess
	}
}

// Abort reasons recorded on aborted runs.
const (
	AbortCancelled = "cancelled"
	AbortApplyLost = "apply_unavailable"
)

// UnmatchedReason explains why a row produced no operations.
type UnmatchedReason string

const (
	ReasonNoMatch        UnmatchedReason = "no_match"
	ReasonMissingPrice   UnmatchedReason = "missing_price"
	ReasonInvalidPrice   UnmatchedReason = "invalid_price"
	ReasonMissingStock   UnmatchedReason = "missing_stock"
	ReasonUnknownVariant UnmatchedReason = "unknown_variant"
)

// UnmatchedRow is a source row reported back instead of planned.
type UnmatchedRow struct {
	RowNumber int             `json:"row_number"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     string          `json:"price,omitempty"`
	Stock     *int            `json:"stock,omitempty"`
	Reason    UnmatchedReason `json:"reason"`
}

// NewUnmatchedRow copies the identifying fields of row.
func NewUnmatchedRow(row CsvRow, reason UnmatchedReason) UnmatchedRow {
	return UnmatchedRow{
		RowNumber: row.RowNumber,
		SKU:       row.SKU,
		Name:      row.Name,
		Price:     row.Price,
		Stock:     row.Stock,
		Reason:    reason,
	}
}

// PlanWarning is a non-fatal note attached to a row during planning.
type PlanWarning struct {
	RowNumber int    `json:"row_number"`
	Message   string `json:"message"`
}

// SyncPreviewResult is the planner output shown before anything is applied.
type SyncPreviewResult struct {
	Planned       []PlannedOperation `json:"planned"`
	UnmatchedRows []UnmatchedRow     `json:"unmatched_rows"`
	Warnings      []PlanWarning      `json:"warnings,omitempty"`
	TotalRows     int                `json:"total_rows"`
	MatchedRows   int                `json:"matched_rows"`
}

// CountByType returns the number of planned price and inventory operations.
func (p *SyncPreviewResult) CountByType() (prices, inventory int) {
	for _, op := range p.Planned {
		switch op.Type {
		case OperationPrice:
			prices++
		case OperationInventory:
			inventory++
		}
	}
	return prices, inventory
}
