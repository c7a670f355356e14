package models

import (
	"fmt"
	"time"
)

// Trigger sources for a [SyncRun].
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerWatch    = "watch"
)

// SyncRun is the persisted record of one sync run, including its operations and unmatched rows.
type SyncRun struct {
	id             string
	sequence       int
	source         string
	shop           string
	locationID     string
	trigger        string
	dryRun         bool
	status         string
	totalPlanned   int
	totalExecuted  int
	totalSuccess   int
	totalFailed    int
	totalSkipped   int
	totalUnmatched int
	errorMessage   string
	startedAt      time.Time
	finishedAt     *time.Time
	duration       time.Duration
	createdAt      time.Time
	updatedAt      time.Time
	deletedAt      *time.Time

	operations []OperationExecution
	unmatched  []UnmatchedRow
}

// NewSyncRun creates a running [SyncRun] for the given source file and shop.
func NewSyncRun(sequence int, source, shop, trigger string) *SyncRun {
	now := time.Now()
	if trigger == "" {
		trigger = TriggerManual
	}
	return &SyncRun{
		sequence:  sequence,
		source:    source,
		shop:      shop,
		trigger:   trigger,
		status:    RunStatusRunning,
		startedAt: now,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *SyncRun) ID() string                       { return r.id }
func (r *SyncRun) Sequence() int                    { return r.sequence }
func (r *SyncRun) Source() string                   { return r.source }
func (r *SyncRun) Shop() string                     { return r.shop }
func (r *SyncRun) LocationID() string               { return r.locationID }
func (r *SyncRun) Trigger() string                  { return r.trigger }
func (r *SyncRun) DryRun() bool                     { return r.dryRun }
func (r *SyncRun) Status() string                   { return r.status }
func (r *SyncRun) TotalPlanned() int                { return r.totalPlanned }
func (r *SyncRun) TotalExecuted() int               { return r.totalExecuted }
func (r *SyncRun) TotalSuccess() int                { return r.totalSuccess }
func (r *SyncRun) TotalFailed() int                 { return r.totalFailed }
func (r *SyncRun) TotalSkipped() int                { return r.totalSkipped }
func (r *SyncRun) TotalUnmatched() int              { return r.totalUnmatched }
func (r *SyncRun) ErrorMessage() string             { return r.errorMessage }
func (r *SyncRun) StartedAt() time.Time             { return r.startedAt }
func (r *SyncRun) FinishedAt() *time.Time           { return r.finishedAt }
func (r *SyncRun) Duration() time.Duration          { return r.duration }
func (r *SyncRun) CreatedAt() time.Time             { return r.createdAt }
func (r *SyncRun) UpdatedAt() time.Time             { return r.updatedAt }
func (r *SyncRun) DeletedAt() *time.Time            { return r.deletedAt }
func (r *SyncRun) Operations() []OperationExecution { return r.operations }
func (r *SyncRun) Unmatched() []UnmatchedRow        { return r.unmatched }

func (r *SyncRun) SetID(id string)                        { r.id = id }
func (r *SyncRun) SetSequence(seq int)                    { r.sequence = seq }
func (r *SyncRun) SetLocationID(id string)                { r.locationID = id }
func (r *SyncRun) SetDryRun(v bool)                       { r.dryRun = v }
func (r *SyncRun) SetStatus(status string)                { r.status = status }
func (r *SyncRun) SetErrorMessage(msg string)             { r.errorMessage = msg }
func (r *SyncRun) SetStartedAt(t time.Time)               { r.startedAt = t }
func (r *SyncRun) SetFinishedAt(t *time.Time)             { r.finishedAt = t }
func (r *SyncRun) SetDuration(d time.Duration)            { r.duration = d }
func (r *SyncRun) SetCreatedAt(t time.Time)               { r.createdAt = t }
func (r *SyncRun) SetUpdatedAt(t time.Time)               { r.updatedAt = t }
func (r *SyncRun) SetDeletedAt(t *time.Time)              { r.deletedAt = t }
func (r *SyncRun) SetOperations(ops []OperationExecution) { r.operations = ops }

// SetUnmatched replaces the unmatched rows and their count.
func (r *SyncRun) SetUnmatched(rows []UnmatchedRow) {
	r.unmatched = rows
	r.totalUnmatched = len(rows)
}

// SetCounts sets the aggregate counters directly, used when loading from storage.
func (r *SyncRun) SetCounts(planned, executed, success, failed, skipped, unmatched int) {
	r.totalPlanned = planned
	r.totalExecuted = executed
	r.totalSuccess = success
	r.totalFailed = failed
	r.totalSkipped = skipped
	r.totalUnmatched = unmatched
}

// Complete copies counters, timing, status and operations from a finished [SyncResult].
func (r *SyncRun) Complete(res *SyncResult) {
	if res == nil {
		return
	}
	r.totalPlanned = res.TotalPlanned
	r.totalExecuted = res.TotalExecuted
	r.totalSuccess = res.TotalSuccess
	r.totalFailed = res.TotalFailed
	r.totalSkipped = res.TotalSkipped
	r.dryRun = res.DryRun
	r.startedAt = res.StartTime
	r.finishedAt = res.EndTime
	r.duration = res.Duration
	r.status = res.Status()
	r.operations = res.Operations
	if res.Aborted && r.errorMessage == "" {
		r.errorMessage = "run aborted: " + res.AbortReason
	}
}

// Fail marks the run failed before or outside execution.
func (r *SyncRun) Fail(err error) {
	now := time.Now()
	r.status = RunStatusFailed
	r.finishedAt = &now
	r.duration = now.Sub(r.startedAt)
	if err != nil {
		r.errorMessage = err.Error()
	}
}

// Validate checks required fields and counter consistency.
func (r *SyncRun) Validate() error {
	if r.source == "" {
		return fmt.Errorf("source is required")
	}
	switch r.status {
	case RunStatusRunning, RunStatusSuccess, RunStatusPartial, RunStatusFailed, RunStatusCancelled, RunStatusDryRun:
	default:
		return fmt.Errorf("invalid status %q", r.status)
	}
	if r.totalExecuted != r.totalSuccess+r.totalFailed+r.totalSkipped {
		return fmt.Errorf("executed count %d does not equal success+failed+skipped", r.totalExecuted)
	}
	if r.totalExecuted > r.totalPlanned {
		return fmt.Errorf("executed count %d exceeds planned count %d", r.totalExecuted, r.totalPlanned)
	}
	return nil
}
