// Package tasks plans and applies stock and price updates from point-of-sale rows onto a shop catalog.
//
// # Pipeline
//
// One sync run goes through the phases reported by [Phase]:
//
//  1. Load rows from a [RowSource] (CSV or XLSX export)
//  2. Load a full catalog snapshot from a [CatalogSource]
//  3. Match each row with the [matching] fallback chain
//  4. [PlanSync] projects matched rows onto price and inventory operations
//  5. [ExecuteSync] applies operations strictly in order through an [ApplyCapability]
//
// [Engine] wires these together. [Engine.Preview] stops after planning so a human can
// review the plan; [Engine.Execute] applies a reviewed plan and [Engine.Run] does both.
//
// # Failures
//
// A failed operation is recorded on the [models.SyncResult] and the run continues.
// Only cancellation and a lost apply capability end a run early; both return the
// partial result together with a *[RunAbortedError].
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// Updates use select with default so a slow UI never stalls a run.
//
// # History
//
// An optional [HistoryRecorder] receives every finished run. Recording errors are
// logged and never change the run outcome.
package tasks
