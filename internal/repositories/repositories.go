package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// NextSequence bumps the counter row in {table}_sequence and returns the new value.
//
// The single UPDATE ... RETURNING statement keeps concurrent writers from reading the
// same value.
func NextSequence(ctx context.Context, db *sql.DB, table string) (int, error) {
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)

	var seq int
	switch err := db.QueryRowContext(ctx, query).Scan(&seq); {
	case errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("sequence for %s is not initialized", table)
	case err != nil:
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return seq, nil
}
