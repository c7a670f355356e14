package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
)

const runColumns = `id, sequence, source, shop, location_id, trigger_source, dry_run, status,
	total_planned, total_executed, total_success, total_failed, total_skipped, total_unmatched,
	error_message, started_at, finished_at, duration_ms, created_at, updated_at, deleted_at`

var _ models.RunStore = (*SyncRunRepository)(nil)

// SyncRunRepository is the SQLite [models.RunStore].
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new [SyncRunRepository]
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Stats summarizes the stored history.
type Stats struct {
	Total     int
	Success   int
	Failed    int
	Partial   int
	Cancelled int
	DryRun    int
	LastSync  *time.Time
}

// Create inserts a run together with its operations and unmatched rows.
//
// Generates ID and sequence if not set.
func (r *SyncRunRepository) Create(run *models.SyncRun) error {
	return r.CreateContext(context.Background(), run)
}

// CreateContext is [SyncRunRepository.Create] bound to ctx.
func (r *SyncRunRepository) CreateContext(ctx context.Context, run *models.SyncRun) error {
	if run.ID() == "" {
		run.SetID(shared.GenerateID())
	}

	if run.Sequence() == 0 {
		seq, err := NextSequence(ctx, r.db, "sync_runs")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		run.SetSequence(seq)
	}

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sync_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		run.ID(), run.Sequence(), run.Source(), run.Shop(), run.LocationID(), run.Trigger(),
		run.DryRun(), run.Status(),
		run.TotalPlanned(), run.TotalExecuted(), run.TotalSuccess(), run.TotalFailed(),
		run.TotalSkipped(), run.TotalUnmatched(),
		run.ErrorMessage(), run.StartedAt(), run.FinishedAt(), run.Duration().Milliseconds(),
		run.CreatedAt(), run.UpdatedAt(), run.DeletedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	if err := insertDetails(ctx, tx, run); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync run: %w", err)
	}
	return nil
}

// Get retrieves a run with its operations and unmatched rows.
func (r *SyncRunRepository) Get(id string) (*models.SyncRun, error) {
	return r.GetContext(context.Background(), id)
}

// GetContext is [SyncRunRepository.Get] bound to ctx.
func (r *SyncRunRepository) GetContext(ctx context.Context, id string) (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE id = ? AND deleted_at IS NULL`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sync run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}

	if err := r.loadDetails(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// GetBySequence retrieves a run by its human-readable number.
func (r *SyncRunRepository) GetBySequence(ctx context.Context, seq int) (*models.SyncRun, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM sync_runs WHERE sequence = ? AND deleted_at IS NULL", seq,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sync run not found: #%d", seq)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	return r.GetContext(ctx, id)
}

// Update modifies a run and replaces its stored operations and unmatched rows.
func (r *SyncRunRepository) Update(run *models.SyncRun) error {
	return r.UpdateContext(context.Background(), run)
}

// UpdateContext is [SyncRunRepository.Update] bound to ctx.
func (r *SyncRunRepository) UpdateContext(ctx context.Context, run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	run.SetUpdatedAt(time.Now())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE sync_runs
		SET source = ?, shop = ?, location_id = ?, trigger_source = ?, dry_run = ?, status = ?,
			total_planned = ?, total_executed = ?, total_success = ?, total_failed = ?,
			total_skipped = ?, total_unmatched = ?, error_message = ?,
			started_at = ?, finished_at = ?, duration_ms = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := tx.ExecContext(ctx, query,
		run.Source(), run.Shop(), run.LocationID(), run.Trigger(), run.DryRun(), run.Status(),
		run.TotalPlanned(), run.TotalExecuted(), run.TotalSuccess(), run.TotalFailed(),
		run.TotalSkipped(), run.TotalUnmatched(), run.ErrorMessage(),
		run.StartedAt(), run.FinishedAt(), run.Duration().Milliseconds(), run.UpdatedAt(),
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sync run not found or already deleted: %s", run.ID())
	}

	for _, table := range []string{"sync_operations", "sync_unmatched_rows"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", run.ID()); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := insertDetails(ctx, tx, run); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync run: %w", err)
	}
	return nil
}

// Delete soft-deletes a run by setting deleted_at.
func (r *SyncRunRepository) Delete(id string) error {
	query := `UPDATE sync_runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sync run not found or already deleted: %s", id)
	}
	return nil
}

// List retrieves run summaries matching criteria, newest first.
//
// Supported criteria: "status", "trigger" and "source" (string equality) and
// "limit" (int). Operations and unmatched rows are not loaded.
func (r *SyncRunRepository) List(criteria map[string]any) ([]*models.SyncRun, error) {
	return r.ListContext(context.Background(), criteria)
}

// ListContext is [SyncRunRepository.List] bound to ctx.
func (r *SyncRunRepository) ListContext(ctx context.Context, criteria map[string]any) ([]*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE deleted_at IS NULL`
	args := []any{}

	for key, column := range map[string]string{"status": "status", "trigger": "trigger_source", "source": "source"} {
		if v, ok := criteria[key].(string); ok && v != "" {
			query += " AND " + column + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", err)
	}
	return runs, nil
}

// Latest returns the most recent run, or nil when history is empty.
func (r *SyncRunRepository) Latest(ctx context.Context) (*models.SyncRun, error) {
	runs, err := r.ListContext(ctx, map[string]any{"limit": 1})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return r.GetContext(ctx, runs[0].ID())
}

// Prune permanently removes all but the newest keep runs, including soft-deleted ones.
// Details go with them via ON DELETE CASCADE. A keep of zero or less is a no-op.
func (r *SyncRunRepository) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	query := `
		DELETE FROM sync_runs
		WHERE id NOT IN (SELECT id FROM sync_runs ORDER BY sequence DESC LIMIT ?)
	`
	result, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sync runs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// Clear permanently removes every run.
func (r *SyncRunRepository) Clear(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sync_runs")
	if err != nil {
		return 0, fmt.Errorf("failed to clear sync runs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// Stats counts runs by status and finds the last finished sync.
func (r *SyncRunRepository) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	rows, err := r.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM sync_runs WHERE deleted_at IS NULL GROUP BY status")
	if err != nil {
		return stats, fmt.Errorf("failed to count sync runs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return stats, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.Total += n
		switch status {
		case models.RunStatusSuccess:
			stats.Success = n
		case models.RunStatusFailed:
			stats.Failed = n
		case models.RunStatusPartial:
			stats.Partial = n
		case models.RunStatusCancelled:
			stats.Cancelled = n
		case models.RunStatusDryRun:
			stats.DryRun = n
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("error iterating status counts: %w", err)
	}

	var last sql.NullTime
	err = r.db.QueryRowContext(ctx, `
		SELECT started_at FROM sync_runs
		WHERE deleted_at IS NULL AND status IN (?, ?)
		ORDER BY sequence DESC LIMIT 1
	`, models.RunStatusSuccess, models.RunStatusPartial).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return stats, fmt.Errorf("failed to get last sync: %w", err)
	}
	if last.Valid {
		stats.LastSync = &last.Time
	}
	return stats, nil
}

func insertDetails(ctx context.Context, tx *sql.Tx, run *models.SyncRun) error {
	opStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sync_operations (
			run_id, position, operation_id, type, row_number, variant_id, product_id,
			inventory_item_id, sku, product_title, variant_title, old_value, new_value,
			match_method, match_confidence, status, message, error_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare operation insert: %w", err)
	}
	defer opStmt.Close()

	for i, op := range run.Operations() {
		_, err := opStmt.ExecContext(ctx,
			run.ID(), i, op.ID, string(op.Type), op.RowNumber, op.VariantID, op.ProductID,
			op.InventoryItemID, op.SKU, op.ProductTitle, op.VariantTitle, op.OldValue, op.NewValue,
			string(op.Match.Method), string(op.Match.Confidence), string(op.Status), op.Message, op.ErrorCode,
		)
		if err != nil {
			return fmt.Errorf("failed to insert operation %s: %w", op.ID, err)
		}
	}

	rowStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sync_unmatched_rows (run_id, row_number, sku, name, price, stock, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare unmatched row insert: %w", err)
	}
	defer rowStmt.Close()

	for _, row := range run.Unmatched() {
		stock := ""
		if row.Stock != nil {
			stock = strconv.Itoa(*row.Stock)
		}
		_, err := rowStmt.ExecContext(ctx,
			run.ID(), row.RowNumber, row.SKU, row.Name, row.Price, stock, string(row.Reason),
		)
		if err != nil {
			return fmt.Errorf("failed to insert unmatched row %d: %w", row.RowNumber, err)
		}
	}
	return nil
}

func (r *SyncRunRepository) loadDetails(ctx context.Context, run *models.SyncRun) error {
	ops, err := r.operations(ctx, run.ID())
	if err != nil {
		return err
	}
	run.SetOperations(ops)

	unmatched, err := r.unmatched(ctx, run.ID())
	if err != nil {
		return err
	}

	// keep the stored counter
	total := run.TotalUnmatched()
	run.SetUnmatched(unmatched)
	run.SetCounts(run.TotalPlanned(), run.TotalExecuted(), run.TotalSuccess(),
		run.TotalFailed(), run.TotalSkipped(), total)
	return nil
}

func (r *SyncRunRepository) operations(ctx context.Context, runID string) ([]models.OperationExecution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT operation_id, type, row_number, variant_id, product_id, inventory_item_id, sku,
			product_title, variant_title, old_value, new_value, match_method, match_confidence,
			status, message, error_code
		FROM sync_operations WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load operations: %w", err)
	}
	defer rows.Close()

	var ops []models.OperationExecution
	for rows.Next() {
		var op models.OperationExecution
		var opType, method, confidence, status string
		var oldValue sql.NullString

		err := rows.Scan(
			&op.ID, &opType, &op.RowNumber, &op.VariantID, &op.ProductID, &op.InventoryItemID, &op.SKU,
			&op.ProductTitle, &op.VariantTitle, &oldValue, &op.NewValue, &method, &confidence,
			&status, &op.Message, &op.ErrorCode,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}

		op.Type = models.OperationType(opType)
		op.Match = models.MatchResult{
			VariantID:  op.VariantID,
			Method:     models.MatchMethod(method),
			Confidence: models.Confidence(confidence),
		}
		op.Status = models.OperationStatus(status)
		if oldValue.Valid {
			v := oldValue.String
			op.OldValue = &v
		}
		if op.Type == models.OperationInventory {
			op.Quantity, _ = strconv.Atoi(op.NewValue)
		}
		ops = append(ops, op)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}
	return ops, nil
}

func (r *SyncRunRepository) unmatched(ctx context.Context, runID string) ([]models.UnmatchedRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT row_number, sku, name, price, stock, reason
		FROM sync_unmatched_rows WHERE run_id = ? ORDER BY row_number, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unmatched rows: %w", err)
	}
	defer rows.Close()

	var out []models.UnmatchedRow
	for rows.Next() {
		var row models.UnmatchedRow
		var stock, reason string
		if err := rows.Scan(&row.RowNumber, &row.SKU, &row.Name, &row.Price, &stock, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan unmatched row: %w", err)
		}
		row.Reason = models.UnmatchedReason(reason)
		if s := strings.TrimSpace(stock); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				row.Stock = &n
			}
		}
		out = append(out, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unmatched rows: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.SyncRun, error) {
	var (
		id, source, shop, locationID, trigger, status, errorMessage        string
		sequence, planned, executed, success, failed, skipped, unmatched int
		dryRun                                                           bool
		startedAt, createdAt, updatedAt                                  time.Time
		finishedAt, deletedAt                                            sql.NullTime
		durationMS                                                       int64
	)

	err := s.Scan(
		&id, &sequence, &source, &shop, &locationID, &trigger, &dryRun, &status,
		&planned, &executed, &success, &failed, &skipped, &unmatched,
		&errorMessage, &startedAt, &finishedAt, &durationMS, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	run := models.NewSyncRun(sequence, source, shop, trigger)
	run.SetID(id)
	run.SetLocationID(locationID)
	run.SetDryRun(dryRun)
	run.SetStatus(status)
	run.SetCounts(planned, executed, success, failed, skipped, unmatched)
	run.SetErrorMessage(errorMessage)
	run.SetStartedAt(startedAt)
	run.SetDuration(time.Duration(durationMS) * time.Millisecond)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)

	if finishedAt.Valid {
		run.SetFinishedAt(&finishedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}
	return run, nil
}
