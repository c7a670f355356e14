package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
)

// ExecuteOptions tunes [ExecuteSync].
type ExecuteOptions struct {
	// SkipAfterFailure marks later operations on a variant whose earlier operation failed as skipped.
	SkipAfterFailure bool
	// DryRun records every operation as skipped without calling the apply capability.
	DryRun bool
	// Progress receives one update per finished operation and a final Complete update,
	// aborted runs included. Sends never block.
	Progress chan<- ProgressUpdate
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// RunAbortedError ends a run early. The partial [models.SyncResult] returned alongside
// it covers every operation finished before the abort.
type RunAbortedError struct {
	Reason    string
	Completed int
	Remaining int
	Cause     error
}

func (e *RunAbortedError) Error() string {
	msg := fmt.Sprintf("%s: %s after %d operations (%d not attempted)", shared.ErrRunAborted, e.Reason, e.Completed, e.Remaining)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RunAbortedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{shared.ErrRunAborted}
	}
	return []error{shared.ErrRunAborted, e.Cause}
}

// runState is the accumulator owned by one ExecuteSync call.
//
// confirmed holds the value each target actually has in the shop: seeded from the
// first operation that touches it and moved only by successful writes. A nil entry
// means the starting value was unknown.
type runState struct {
	result    *models.SyncResult
	confirmed map[string]*string
	failed    map[string]bool
	progress  chan<- ProgressUpdate
	now       func() time.Time
}

func newRunState(total int, now func() time.Time, progress chan<- ProgressUpdate) *runState {
	return &runState{
		result: &models.SyncResult{
			TotalPlanned: total,
			Operations:   make([]models.OperationExecution, 0, total),
			StartTime:    now(),
		},
		confirmed: make(map[string]*string),
		failed:    make(map[string]bool),
		progress:  progress,
		now:       now,
	}
}

// record moves an operation from planned to its terminal status and updates the counters.
func (s *runState) record(op models.PlannedOperation, status models.OperationStatus, code, message string) (models.OperationExecution, error) {
	if !status.IsTerminal() {
		return models.OperationExecution{}, fmt.Errorf("invalid transition for %s: %s -> %s", op.ID, models.StatusPlanned, status)
	}

	target := op.Target()
	if current, seen := s.confirmed[target]; seen {
		op.OldValue = nil
		if current != nil {
			old := *current
			op.OldValue = &old
		}
	} else if op.OldValue != nil {
		old := *op.OldValue
		s.confirmed[target] = &old
	} else {
		s.confirmed[target] = nil
	}

	exec := models.OperationExecution{PlannedOperation: op, Status: status, ErrorCode: code, Message: message}
	switch status {
	case models.StatusSuccess:
		s.result.TotalSuccess++
		applied := op.NewValue
		s.confirmed[target] = &applied
	case models.StatusFailed:
		s.result.TotalFailed++
		s.failed[op.VariantID] = true
	case models.StatusSkipped:
		s.result.TotalSkipped++
	}
	s.result.TotalExecuted++
	s.result.Operations = append(s.result.Operations, exec)
	return exec, nil
}

func (s *runState) finish() *models.SyncResult {
	end := s.now()
	s.result.EndTime = &end
	s.result.Duration = end.Sub(s.result.StartTime)
	return s.result
}

func (s *runState) abort(reason string, remaining int, cause error) (*models.SyncResult, error) {
	s.result.Aborted = true
	s.result.AbortReason = reason
	res := s.finish()
	sendProgress(s.progress, completeUpdate(res))
	return res, &RunAbortedError{Reason: reason, Completed: res.TotalExecuted, Remaining: remaining, Cause: cause}
}

// ExecuteSync applies ops strictly in order, one call at a time.
//
// Per-operation failures are captured on the returned result and never stop the run.
// Cancellation is polled before each operation; a cancelled run, or one whose apply
// capability reports [shared.ErrApplyUnavailable], returns the partial result together
// with a *RunAbortedError. A nil apply capability is a run-level error with no result.
func ExecuteSync(ctx context.Context, ops []models.PlannedOperation, apply ApplyCapability, cancel CancellationSignal, opts ExecuteOptions) (*models.SyncResult, error) {
	if apply == nil {
		return nil, fmt.Errorf("%w: no apply capability configured", shared.ErrApplyUnavailable)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	signal := AnySignal(cancel, NewContextSignal(ctx))

	state := newRunState(len(ops), now, opts.Progress)
	state.result.DryRun = opts.DryRun
	total := len(ops)

	for i, op := range ops {
		if signal.Cancelled() {
			return state.abort(models.AbortCancelled, total-i, ctx.Err())
		}

		if opts.DryRun {
			exec, err := state.record(op, models.StatusSkipped, shared.CodeDryRun, "dry run, not applied")
			if err != nil {
				return nil, err
			}
			sendProgress(opts.Progress, applyUpdate(i+1, total, exec))
			continue
		}

		if opts.SkipAfterFailure && state.failed[op.VariantID] {
			exec, err := state.record(op, models.StatusSkipped, shared.CodeDependentSkip,
				"skipped: an earlier operation on this variant failed in this run")
			if err != nil {
				return nil, err
			}
			sendProgress(opts.Progress, applyUpdate(i+1, total, exec))
			continue
		}

		applyErr := applyOperation(ctx, apply, op)
		if applyErr == nil {
			exec, err := state.record(op, models.StatusSuccess, "", "")
			if err != nil {
				return nil, err
			}
			sendProgress(opts.Progress, applyUpdate(i+1, total, exec))
			continue
		}

		code, message := classifyApplyError(applyErr)
		exec, err := state.record(op, models.StatusFailed, code, message)
		if err != nil {
			return nil, err
		}
		sendProgress(opts.Progress, applyUpdate(i+1, total, exec))

		if errors.Is(applyErr, shared.ErrApplyUnavailable) {
			return state.abort(models.AbortApplyLost, total-i-1, applyErr)
		}
	}

	result := state.finish()
	sendProgress(state.progress, completeUpdate(result))
	return result, nil
}

func applyOperation(ctx context.Context, apply ApplyCapability, op models.PlannedOperation) error {
	switch op.Type {
	case models.OperationPrice:
		return apply.ApplyPriceUpdate(ctx, op.ProductID, op.VariantID, op.NewValue)
	case models.OperationInventory:
		if op.InventoryItemID == "" {
			return shared.NewApplyError(shared.CodeInvalidArgument, "operation has no inventory item id")
		}
		return apply.ApplyInventoryUpdate(ctx, op.InventoryItemID, op.Quantity)
	default:
		return shared.NewApplyError(shared.CodeInvalidArgument, fmt.Sprintf("unknown operation type %q", op.Type))
	}
}

func classifyApplyError(err error) (string, string) {
	var applyErr *shared.ApplyError
	if errors.As(err, &applyErr) {
		return applyErr.Code, applyErr.Message
	}
	if errors.Is(err, shared.ErrApplyUnavailable) {
		return shared.CodeApplyLost, err.Error()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return shared.CodeSyncCancelled, err.Error()
	}
	return shared.CodeApplyFailed, err.Error()
}
