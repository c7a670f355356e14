// package models defines the catalog, row and sync data model shared by stocksync's packages
package models

import (
	"context"
	"time"
)

// Record is an entity with a stable identity that outlives a single run.
type Record interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error
}

// Store is the persistence contract for one [Record] type.
type Store[T Record] interface {
	CreateContext(ctx context.Context, rec T) error
	GetContext(ctx context.Context, id string) (T, error)
	UpdateContext(ctx context.Context, rec T) error
	ListContext(ctx context.Context, criteria map[string]any) ([]T, error)
	// Prune keeps the newest keep records and reports how many were removed.
	Prune(ctx context.Context, keep int) (int, error)
}

// RunStore keeps [SyncRun] history.
type RunStore = Store[*SyncRun]
