package tasks

import (
	"fmt"

	"github.com/desertthunder/stocksync/internal/models"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	LoadRows Phase = iota
	LoadCatalog
	MatchRows
	PlanOperations
	ApplyOperations
	Complete
	ExportReports
)

func (p Phase) String() string {
	switch p {
	case LoadRows:
		return "load_rows"
	case LoadCatalog:
		return "load_catalog"
	case MatchRows:
		return "match"
	case PlanOperations:
		return "plan"
	case ApplyOperations:
		return "apply"
	case Complete:
		return "complete"
	case ExportReports:
		return "export"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func loadRowsUpdate(source string) ProgressUpdate {
	return ProgressUpdate{Phase: LoadRows, Step: 0, Total: 1, Message: fmt.Sprintf("Reading rows from %s...", source)}
}

func rowsLoadedUpdate(n int) ProgressUpdate {
	return ProgressUpdate{Phase: LoadRows, Step: 1, Total: 1, Message: fmt.Sprintf("Read %d rows", n)}
}

func loadCatalogUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: LoadCatalog, Step: 0, Total: 1, Message: "Loading catalog from shop..."}
}

func catalogLoadedUpdate(products, variants int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadCatalog,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loaded %d products (%d variants)", products, variants),
	}
}

func matchUpdate(matched, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchRows,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Matched %d of %d rows", matched, total),
	}
}

func planUpdate(preview *models.SyncPreviewResult) ProgressUpdate {
	prices, inventory := preview.CountByType()
	return ProgressUpdate{
		Phase:   PlanOperations,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Planned %d price and %d inventory updates, %d rows unmatched", prices, inventory, len(preview.UnmatchedRows)),
		Data:    preview,
	}
}

func applyUpdate(step, total int, exec models.OperationExecution) ProgressUpdate {
	mark := "✓"
	switch exec.Status {
	case models.StatusFailed:
		mark = "✗"
	case models.StatusSkipped:
		mark = "-"
	}
	label := exec.SKU
	if label == "" {
		label = exec.ProductTitle
	}
	return ProgressUpdate{
		Phase:   ApplyOperations,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s %s → %s", step, total, mark, exec.Type, label, exec.NewValue),
		Data:    exec,
	}
}

func completeUpdate(result *models.SyncResult) ProgressUpdate {
	label := "Finished"
	if result.Aborted {
		label = fmt.Sprintf("Aborted (%s) after %d of %d", result.AbortReason, result.TotalExecuted, result.TotalPlanned)
	}
	return ProgressUpdate{
		Phase: Complete,
		Step:  result.TotalExecuted,
		Total: result.TotalPlanned,
		Message: fmt.Sprintf("%s: %d succeeded, %d failed, %d skipped",
			label, result.TotalSuccess, result.TotalFailed, result.TotalSkipped),
		Data: result,
	}
}

func exportUpdate(step, total int, res RunExportResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ run #%d: %d files", step, total, res.Sequence, len(res.Files))
	if res.Error != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ run %s: %v", step, total, res.RunID, res.Error)
	}
	return ProgressUpdate{Phase: ExportReports, Step: step, Total: total, Message: msg, Data: res}
}
