// Package repositories implements SQLite persistence for sync history.
//
// [SyncRunRepository] implements [models.RunStore]. A run is stored
// with its executed operations and unmatched rows; list queries return the run
// summaries only. Runs are soft-deleted via deleted_at, and [SyncRunRepository.Prune]
// removes old runs for good to keep history bounded.
//
// [History] adapts the repository to the sync engine's history recorder.
//
// Sequence numbers provide stable, human-readable ordering (run #42) independent of UUIDs and timestamps.
// [NextSequence] hands them out from a one-row counter table per entity.
package repositories
