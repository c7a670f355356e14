package models

import "strconv"

// RawCsvRow is a source row before column mapping, keyed by header name.
type RawCsvRow struct {
	RowNumber int
	Data      map[string]string
}

// CsvRow is a source row after column mapping.
//
// RowNumber is 1-based and counts the header as row 1, so the first data row is 2.
// Stock is nil when the stock cell was empty.
type CsvRow struct {
	RowNumber int               `json:"row_number"`
	SKU       string            `json:"sku"`
	Name      string            `json:"name"`
	Price     string            `json:"price"`
	Stock     *int              `json:"stock,omitempty"`
	Raw       map[string]string `json:"-"`
}

// StockString renders Stock for reports, empty when missing.
func (r CsvRow) StockString() string {
	if r.Stock == nil {
		return ""
	}
	return strconv.Itoa(*r.Stock)
}
