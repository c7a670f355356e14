package models

import (
	"errors"
	"testing"
	"time"
)

func TestSyncResultStatus(t *testing.T) {
	tests := []struct {
		name   string
		result SyncResult
		want   string
	}{
		{"all succeeded", SyncResult{TotalSuccess: 3, TotalExecuted: 3}, RunStatusSuccess},
		{"nothing planned", SyncResult{}, RunStatusSuccess},
		{"some failed", SyncResult{TotalSuccess: 2, TotalFailed: 1}, RunStatusPartial},
		{"some skipped", SyncResult{TotalSuccess: 2, TotalSkipped: 1}, RunStatusPartial},
		{"all failed", SyncResult{TotalFailed: 2}, RunStatusFailed},
		{"cancelled", SyncResult{Aborted: true, AbortReason: AbortCancelled}, RunStatusCancelled},
		{"apply lost", SyncResult{Aborted: true, AbortReason: AbortApplyLost}, RunStatusFailed},
		{"dry run", SyncResult{DryRun: true, TotalPlanned: 4}, RunStatusDryRun},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Status(); got != tt.want {
				t.Errorf("Status() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMatchResult(t *testing.T) {
	if NoMatch().Matched() {
		t.Error("NoMatch should not report Matched")
	}
	m := MatchResult{VariantID: "v1", Method: MatchName, Confidence: ConfidenceLow}
	if !m.Matched() || !m.Ambiguous() {
		t.Error("low-confidence name match should be matched and ambiguous")
	}
	if (MatchResult{VariantID: "v1", Method: MatchPrefix, Confidence: ConfidencePartial}).Ambiguous() {
		t.Error("prefix match is not ambiguous")
	}
}

func TestPlannedOperationTarget(t *testing.T) {
	price := PlannedOperation{Type: OperationPrice, VariantID: "v1", InventoryItemID: "i1"}
	inv := PlannedOperation{Type: OperationInventory, VariantID: "v1", InventoryItemID: "i1"}
	if price.Target() == inv.Target() {
		t.Error("price and inventory operations on one variant must target different values")
	}
	if price.OldValueString() != "" {
		t.Error("unknown old value should render empty")
	}
}

func TestSyncRun(t *testing.T) {
	t.Run("Complete", func(t *testing.T) {
		run := NewSyncRun(1, "export.csv", "demo.myshopify.com", "")
		if run.Trigger() != TriggerManual {
			t.Errorf("expected default trigger manual, got %s", run.Trigger())
		}

		end := time.Now()
		run.Complete(&SyncResult{
			TotalPlanned:  3,
			TotalExecuted: 3,
			TotalSuccess:  2,
			TotalFailed:   1,
			StartTime:     end.Add(-time.Second),
			EndTime:       &end,
			Duration:      time.Second,
			Operations:    []OperationExecution{{Status: StatusSuccess}},
		})

		if run.Status() != RunStatusPartial {
			t.Errorf("expected partial, got %s", run.Status())
		}
		if err := run.Validate(); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
		if len(run.Operations()) != 1 {
			t.Errorf("expected operations to be copied")
		}
	})

	t.Run("Complete Aborted", func(t *testing.T) {
		run := NewSyncRun(1, "export.csv", "demo.myshopify.com", TriggerSchedule)
		run.Complete(&SyncResult{TotalPlanned: 5, Aborted: true, AbortReason: AbortCancelled})
		if run.Status() != RunStatusCancelled {
			t.Errorf("expected cancelled, got %s", run.Status())
		}
		if run.ErrorMessage() == "" {
			t.Error("aborted run should carry an error message")
		}
	})

	t.Run("Fail", func(t *testing.T) {
		run := NewSyncRun(1, "export.csv", "demo.myshopify.com", TriggerWatch)
		run.Fail(errors.New("catalog unavailable"))
		if run.Status() != RunStatusFailed || run.FinishedAt() == nil {
			t.Error("failed run should be finished with status failed")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*SyncRun)
		}{
			{"missing source", func(r *SyncRun) { r.source = "" }},
			{"bad status", func(r *SyncRun) { r.SetStatus("weird") }},
			{"inconsistent counts", func(r *SyncRun) { r.SetCounts(3, 3, 1, 1, 0, 0) }},
			{"executed exceeds planned", func(r *SyncRun) { r.SetCounts(1, 2, 2, 0, 0, 0) }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				run := NewSyncRun(1, "export.csv", "demo.myshopify.com", "")
				tt.mutate(run)
				if err := run.Validate(); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})
}
