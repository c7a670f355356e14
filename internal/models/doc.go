// Package models defines the domain types used to reconcile point-of-sale rows with a shop catalog.
//
// The package contains three categories of types:
//
// 1. Catalog snapshot: read from the shop once per run
//   - [Product] : a catalog product and its variants
//   - [Variant] : a purchasable unit with SKU, barcode, price and stock
//
// 2. Sync values: produced and consumed by matching, planning and execution
//   - [CsvRow] : one normalized source row, traced by its row number
//   - [MatchResult] : the resolved variant plus method and confidence tier
//   - [PlannedOperation] : a single price or inventory delta
//   - [OperationExecution] : the outcome of applying one planned operation
//   - [SyncPreviewResult] and [SyncResult] : aggregates over a run
//
// 3. Persistent entities: database-backed history
//   - [SyncRun] : one recorded run with its counts and status
//
// Persistent entities implement the [Model] interface providing ID generation, timestamps, validation, and soft delete support.
// The [Repository] interface defines standard CRUD operations for database access.
package models
