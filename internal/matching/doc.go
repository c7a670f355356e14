// Package matching resolves source rows to catalog variants.
//
// A [VariantIndex] is built once per run from the full catalog snapshot and is
// read-only afterwards. [MatchRow] walks an ordered list of [Strategy] values
// and returns the first hit:
//
//  1. sku: exact SKU lookup
//  2. barcode: barcode or "product variant" key lookup
//  3. name: normalized product title; several candidates yield a low-confidence match
//  4. prefix: a unique prefix relation between row name and product title
//
// Matching is pure and never performs I/O.
package matching
