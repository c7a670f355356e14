package ingest

import (
	"fmt"
	"strings"

	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
)

// Table is a parsed source file: headers plus data records keyed by header.
type Table struct {
	Headers   []string
	Records   []models.RawCsvRow
	Encoding  string
	Delimiter rune
}

// Mapping names the source column of each row field, by header or column letter.
// An empty entry leaves the field empty.
type Mapping struct {
	SKU   string
	Name  string
	Price string
	Stock string
}

// MappingFromConfig copies the column settings of cfg.
func MappingFromConfig(cfg shared.MappingConfig) Mapping {
	return Mapping{SKU: cfg.SKU, Name: cfg.Name, Price: cfg.Price, Stock: cfg.Stock}
}

// Issue is a cell that could not be converted. The row is still returned.
type Issue struct {
	RowNumber int
	Column    string
	Value     string
	Message   string
}

// normalizeHeaders trims header names and names empty ones Column_N (1-based).
// Later duplicates get a numeric suffix so every record key is unique.
func normalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = fmt.Sprintf("%s_%d", h, n+1)
		} else {
			seen[h] = 1
		}
		out[i] = h
	}
	return out
}

func newTable(headers []string, records [][]string) *Table {
	t := &Table{Headers: normalizeHeaders(headers), Records: make([]models.RawCsvRow, 0, len(records))}
	for i, rec := range records {
		if blank(rec) {
			continue
		}
		data := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if j < len(rec) {
				data[h] = strings.TrimSpace(rec[j])
			} else {
				data[h] = ""
			}
		}
		t.Records = append(t.Records, models.RawCsvRow{RowNumber: i + 2, Data: data})
	}
	return t
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Column resolves ref to a header: an exact header match wins, then a
// case-insensitive one, then a column letter.
func (t *Table) Column(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	for _, h := range t.Headers {
		if h == ref {
			return h, nil
		}
	}
	for _, h := range t.Headers {
		if strings.EqualFold(h, ref) {
			return h, nil
		}
	}
	if upper := strings.ToUpper(ref); shared.IsColumnLetter(upper) {
		idx := shared.ColumnLetterToIndex(upper)
		if idx >= 0 && idx < len(t.Headers) {
			return t.Headers[idx], nil
		}
		return "", fmt.Errorf("%w: column %s but the file has %d columns", shared.ErrMissingColumn, upper, len(t.Headers))
	}
	return "", fmt.Errorf("%w: %q (headers: %s)", shared.ErrMissingColumn, ref, strings.Join(t.Headers, ", "))
}

type resolvedMapping struct {
	sku, name, price, stock string
}

func (t *Table) resolve(m Mapping) (resolvedMapping, error) {
	var r resolvedMapping
	var err error
	if r.sku, err = t.Column(m.SKU); err != nil {
		return r, fmt.Errorf("sku: %w", err)
	}
	if r.name, err = t.Column(m.Name); err != nil {
		return r, fmt.Errorf("name: %w", err)
	}
	if r.price, err = t.Column(m.Price); err != nil {
		return r, fmt.Errorf("price: %w", err)
	}
	if r.stock, err = t.Column(m.Stock); err != nil {
		return r, fmt.Errorf("stock: %w", err)
	}
	return r, nil
}

// Rows maps every record onto a [models.CsvRow].
//
// An unparseable stock cell leaves Stock nil and is reported as an [Issue].
func (t *Table) Rows(m Mapping) ([]models.CsvRow, []Issue, error) {
	cols, err := t.resolve(m)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]models.CsvRow, 0, len(t.Records))
	var issues []Issue
	for _, rec := range t.Records {
		row := models.CsvRow{
			RowNumber: rec.RowNumber,
			SKU:       cell(rec, cols.sku),
			Name:      cell(rec, cols.name),
			Price:     cell(rec, cols.price),
			Raw:       rec.Data,
		}
		if raw := cell(rec, cols.stock); raw != "" {
			qty, err := ParseStock(raw)
			if err != nil {
				issues = append(issues, Issue{RowNumber: rec.RowNumber, Column: cols.stock, Value: raw, Message: err.Error()})
			} else {
				row.Stock = models.IntPtr(qty)
			}
		}
		rows = append(rows, row)
	}
	return rows, issues, nil
}

func cell(rec models.RawCsvRow, col string) string {
	if col == "" {
		return ""
	}
	return rec.Data[col]
}
