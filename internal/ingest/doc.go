// Package ingest reads point-of-sale exports into [models.CsvRow] values.
//
// CSV files are decoded as UTF-8 (a leading BOM is dropped) and fall back to
// Windows-1252 when the bytes are not valid UTF-8. XLSX workbooks are read from
// their first sheet. In both formats the first row is the header and counts as
// row 1, so the first data row is row 2.
//
// Columns are mapped by header name or by spreadsheet letter ("A", "AB").
package ingest
