package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/stocksync/internal/shared"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

var letters = Mapping{SKU: "A", Name: "B", Price: "C", Stock: "D"}

func TestReadCSV(t *testing.T) {
	t.Run("semicolon with BOM", func(t *testing.T) {
		data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Artikel;Bezeichnung;Preis;Bestand\nA1;Blue Mug;12,00;5\n")...)
		table, err := ReadCSV(strings.NewReader(string(data)), CSVOptions{Delimiter: ';'})
		if err != nil {
			t.Fatalf("ReadCSV failed: %v", err)
		}
		if table.Headers[0] != "Artikel" {
			t.Errorf("BOM should be stripped, got header %q", table.Headers[0])
		}
		if table.Encoding != EncodingUTF8 {
			t.Errorf("expected utf-8, got %s", table.Encoding)
		}
		if len(table.Records) != 1 || table.Records[0].RowNumber != 2 {
			t.Fatalf("unexpected records %+v", table.Records)
		}
		if table.Records[0].Data["Preis"] != "12,00" {
			t.Errorf("unexpected price cell %q", table.Records[0].Data["Preis"])
		}
	})

	t.Run("windows-1252 fallback", func(t *testing.T) {
		data := []byte("sku;name\nC1;Caf\xe9 au lait\n")
		table, err := ReadCSV(strings.NewReader(string(data)), CSVOptions{Delimiter: ';'})
		if err != nil {
			t.Fatalf("ReadCSV failed: %v", err)
		}
		if table.Encoding != EncodingWindows1252 {
			t.Errorf("expected windows-1252, got %s", table.Encoding)
		}
		if got := table.Records[0].Data["name"]; got != "Café au lait" {
			t.Errorf("expected decoded name, got %q", got)
		}
	})

	t.Run("forced encodings", func(t *testing.T) {
		data := "sku;name\nC1;Caf\xe9\n"
		table, err := ReadCSV(strings.NewReader(data), CSVOptions{Delimiter: ';', Encoding: EncodingLatin1})
		if err != nil || table.Records[0].Data["name"] != "Café" {
			t.Errorf("latin1 decode = %+v, %v", table, err)
		}
		if _, err := ReadCSV(strings.NewReader(data), CSVOptions{Encoding: "ebcdic"}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("empty headers are named", func(t *testing.T) {
		table, err := ReadCSV(strings.NewReader("sku;;price;\nA1;x;1;2\n"), CSVOptions{Delimiter: ';'})
		if err != nil {
			t.Fatalf("ReadCSV failed: %v", err)
		}
		want := []string{"sku", "Column_2", "price", "Column_4"}
		for i, h := range want {
			if table.Headers[i] != h {
				t.Errorf("header %d = %q, want %q", i, table.Headers[i], h)
			}
		}
	})

	t.Run("duplicate headers stay distinct", func(t *testing.T) {
		table, err := ReadCSV(strings.NewReader("price;price\n1;2\n"), CSVOptions{Delimiter: ';'})
		if err != nil {
			t.Fatalf("ReadCSV failed: %v", err)
		}
		if table.Headers[1] != "price_2" || table.Records[0].Data["price_2"] != "2" {
			t.Errorf("unexpected headers %v / data %v", table.Headers, table.Records[0].Data)
		}
	})

	t.Run("blank lines keep numbering", func(t *testing.T) {
		table, err := ReadCSV(strings.NewReader("sku;name\nA1;x\n;\nA2;y\n"), CSVOptions{Delimiter: ';'})
		if err != nil {
			t.Fatalf("ReadCSV failed: %v", err)
		}
		if len(table.Records) != 2 || table.Records[1].RowNumber != 4 {
			t.Errorf("unexpected records %+v", table.Records)
		}
	})

	t.Run("short rows are padded", func(t *testing.T) {
		table, err := ReadCSV(strings.NewReader("a;b;c\n1\n"), CSVOptions{Delimiter: ';'})
		if err != nil {
			t.Fatalf("ReadCSV failed: %v", err)
		}
		if v, ok := table.Records[0].Data["c"]; !ok || v != "" {
			t.Errorf("expected empty c, got %q (%v)", v, ok)
		}
	})

	t.Run("detects delimiter", func(t *testing.T) {
		table, err := ReadCSV(strings.NewReader("sku,name,price\nA1,Mug,\"1,50\"\n"), CSVOptions{})
		if err != nil {
			t.Fatalf("ReadCSV failed: %v", err)
		}
		if table.Delimiter != ',' || table.Records[0].Data["price"] != "1,50" {
			t.Errorf("unexpected table %+v", table)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := ReadCSV(strings.NewReader("  \n"), CSVOptions{}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		line string
		want rune
	}{
		{"a;b;c", ';'},
		{"a,b,c", ','},
		{"a\tb\tc", '\t'},
		{"a,b;c;d", ';'},
		{"single", ';'},
	}
	for _, tt := range tests {
		if got := DetectDelimiter(tt.line); got != tt.want {
			t.Errorf("DetectDelimiter(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestTableRows(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("SKU;Name;Price;Stock\nA1;Blue Mug;12,00;5\nB2;Tea;3;zwei\nC3;Cup;4;\n"), CSVOptions{Delimiter: ';'})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	t.Run("by letter", func(t *testing.T) {
		rows, issues, err := table.Rows(letters)
		if err != nil {
			t.Fatalf("Rows failed: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected 3 rows, got %d", len(rows))
		}
		first := rows[0]
		if first.RowNumber != 2 || first.SKU != "A1" || first.Name != "Blue Mug" || first.Price != "12,00" || first.Stock == nil || *first.Stock != 5 {
			t.Errorf("unexpected first row %+v", first)
		}
		if rows[1].Stock != nil || rows[2].Stock != nil {
			t.Error("unreadable and empty stock should be nil")
		}
		if len(issues) != 1 || issues[0].RowNumber != 3 || issues[0].Value != "zwei" {
			t.Errorf("expected one issue for row 3, got %+v", issues)
		}
	})

	t.Run("by header name", func(t *testing.T) {
		rows, _, err := table.Rows(Mapping{SKU: "sku", Price: "Price"})
		if err != nil {
			t.Fatalf("Rows failed: %v", err)
		}
		if rows[0].SKU != "A1" || rows[0].Price != "12,00" || rows[0].Name != "" {
			t.Errorf("unexpected row %+v", rows[0])
		}
	})

	t.Run("missing column", func(t *testing.T) {
		if _, _, err := table.Rows(Mapping{SKU: "EAN"}); !errors.Is(err, shared.ErrMissingColumn) {
			t.Errorf("expected ErrMissingColumn, got %v", err)
		}
		if _, _, err := table.Rows(Mapping{SKU: "Z"}); !errors.Is(err, shared.ErrMissingColumn) {
			t.Errorf("expected ErrMissingColumn for out-of-range letter, got %v", err)
		}
	})
}

func TestParseStock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"5", 5, false},
		{" 12 ", 12, false},
		{"-3", -3, false},
		{"12,0", 12, false},
		{"7.00", 7, false},
		{"2,5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseStock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"export.csv", FormatCSV, false},
		{"EXPORT.TXT", FormatCSV, false},
		{"stock.xlsx", FormatXLSX, false},
		{"legacy.dbf", "", true},
		{"old.xls", "", true},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.path)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, %v", tt.path, got, err)
		}
		if tt.wantErr && !errors.Is(err, shared.ErrUnsupportedFile) {
			t.Errorf("expected ErrUnsupportedFile for %s", tt.path)
		}
	}
}

func TestFileSource(t *testing.T) {
	ctx := context.Background()

	t.Run("csv from config", func(t *testing.T) {
		path := writeFile(t, "pos.csv", []byte("sku;name;price;stock\nA1;Blue Mug;12;5\n"))
		cfg := shared.MappingConfig{SKU: "A", Name: "B", Price: "C", Stock: "D", Delimiter: ";", Encoding: "auto"}
		src := NewFileSourceFromConfig(path, cfg, WithLogger(shared.NewLogger(nil)))

		rows, err := src.Rows(ctx)
		if err != nil {
			t.Fatalf("Rows failed: %v", err)
		}
		if len(rows) != 1 || rows[0].SKU != "A1" {
			t.Errorf("unexpected rows %+v", rows)
		}
		if src.Name() != "pos.csv" || src.Path() != path || len(src.Issues()) != 0 {
			t.Errorf("unexpected source metadata")
		}
	})

	t.Run("xlsx first sheet", func(t *testing.T) {
		f := excelize.NewFile()
		sheet := f.GetSheetName(0)
		f.SetSheetRow(sheet, "A1", &[]any{"SKU", "Name", "Price", "Stock"})
		f.SetSheetRow(sheet, "A2", &[]any{"A1", "Blue Mug", "12.50", 4})
		f.SetSheetRow(sheet, "A3", &[]any{"B2", "Tea", "3", ""})
		path := filepath.Join(t.TempDir(), "pos.xlsx")
		if err := f.SaveAs(path); err != nil {
			t.Fatalf("failed to save workbook: %v", err)
		}

		rows, err := NewFileSource(path, letters).Rows(ctx)
		if err != nil {
			t.Fatalf("Rows failed: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rows))
		}
		if rows[0].RowNumber != 2 || rows[0].Price != "12.50" || rows[0].Stock == nil || *rows[0].Stock != 4 {
			t.Errorf("unexpected row %+v", rows[0])
		}
		if rows[1].Stock != nil {
			t.Errorf("expected empty stock, got %v", *rows[1].Stock)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.csv"), letters).Rows(ctx)
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", err)
		}
	})

	t.Run("unsupported file", func(t *testing.T) {
		path := writeFile(t, "legacy.dbf", []byte{0x03})
		if _, err := NewFileSource(path, letters).Rows(ctx); !errors.Is(err, shared.ErrUnsupportedFile) {
			t.Errorf("expected ErrUnsupportedFile, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := NewFileSource("x.csv", letters).Rows(cctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
