package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
	th "github.com/desertthunder/stocksync/internal/testing"
)

func strPtr(s string) *string { return &s }

func testRun() *models.SyncRun {
	start := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Second)

	run := models.NewSyncRun(7, "kasse.csv", "demo.myshopify.com", models.TriggerManual)
	run.Complete(&models.SyncResult{
		TotalPlanned:  3,
		TotalExecuted: 3,
		TotalSuccess:  1,
		TotalFailed:   1,
		TotalSkipped:  1,
		StartTime:     start,
		EndTime:       &end,
		Duration:      end.Sub(start),
		Operations: []models.OperationExecution{
			{
				PlannedOperation: models.PlannedOperation{
					ID: "price-v1-r2", Type: models.OperationPrice, RowNumber: 2, SKU: "A1",
					ProductTitle: "Blue Mug", VariantTitle: "Default Title",
					OldValue: strPtr("10.00"), NewValue: "12.00",
				},
				Status: models.StatusSuccess,
			},
			{
				PlannedOperation: models.PlannedOperation{
					ID: "price-v2-r3", Type: models.OperationPrice, RowNumber: 3, SKU: "T1",
					ProductTitle: "Green Tea", VariantTitle: "100g", NewValue: "13.00",
				},
				Status:    models.StatusFailed,
				Message:   `price "13.00" rejected`,
				ErrorCode: shared.CodeUserError,
			},
			{
				PlannedOperation: models.PlannedOperation{
					ID: "inventory-i2-r3", Type: models.OperationInventory, RowNumber: 3, SKU: "T1",
					ProductTitle: "Green Tea", VariantTitle: "100g", NewValue: "4", Quantity: 4,
				},
				Status:    models.StatusSkipped,
				Message:   "skipped after earlier failure",
				ErrorCode: shared.CodeDependentSkip,
			},
		},
	})
	stock := 2
	run.SetUnmatched([]models.UnmatchedRow{
		{RowNumber: 4, SKU: "ZZ", Name: "Ghost; Item", Price: "1,00", Stock: &stock, Reason: models.ReasonNoMatch},
	})
	return run
}

func TestExporters(t *testing.T) {
	t.Run("ResultsToCSV", func(t *testing.T) {
		var buf bytes.Buffer
		if err := ResultsToCSV(&buf, testRun()); err != nil {
			t.Fatalf("ResultsToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
		if len(lines) != 4 {
			t.Fatalf("expected header + 3 lines, got %d: %q", len(lines), buf.String())
		}

		if lines[0] != `"Time";"SKU";"Name";"Type";"Old Value";"New Value";"Status";"Message";"Error Code"` {
			t.Errorf("unexpected header: %s", lines[0])
		}
		want := `"2026-05-04T08:00:02Z";"A1";"Blue Mug";"price";"10.00";"12.00";"success";"";""`
		if lines[1] != want {
			t.Errorf("unexpected first record:\n got %s\nwant %s", lines[1], want)
		}
		if !strings.Contains(lines[2], `"Green Tea - 100g"`) {
			t.Errorf("expected variant title in name, got %s", lines[2])
		}
		if !strings.Contains(lines[2], `"price ""13.00"" rejected"`) {
			t.Errorf("expected escaped quotes, got %s", lines[2])
		}
		if !strings.HasSuffix(lines[3], `"skipped";"skipped after earlier failure";"DEPENDENT_SKIPPED"`) {
			t.Errorf("unexpected skipped record: %s", lines[3])
		}
	})

	t.Run("ResultsToCSV write error", func(t *testing.T) {
		if err := ResultsToCSV(&th.FWriter{}, testRun()); err == nil {
			t.Error("expected error from failing writer")
		}

		w := th.NewLimitedWriter(2, 0, &bytes.Buffer{})
		if err := ResultsToCSV(w, testRun()); err == nil {
			t.Error("expected error once the writer stops accepting records")
		}
	})

	t.Run("UnmatchedToCSV", func(t *testing.T) {
		var buf bytes.Buffer
		if err := UnmatchedToCSV(&buf, testRun().Unmatched()); err != nil {
			t.Fatalf("UnmatchedToCSV failed: %v", err)
		}

		want := `"Row";"SKU";"Name";"Price";"Stock";"Reason"` + "\n" +
			`"4";"ZZ";"Ghost; Item";"1,00";"2";"no_match"` + "\n"
		if buf.String() != want {
			t.Errorf("unexpected output:\n%s", buf.String())
		}
	})

	t.Run("UnmatchedToCSV without stock", func(t *testing.T) {
		var buf bytes.Buffer
		rows := []models.UnmatchedRow{{RowNumber: 9, SKU: "Q", Reason: models.ReasonMissingStock}}
		if err := UnmatchedToCSV(&buf, rows); err != nil {
			t.Fatalf("UnmatchedToCSV failed: %v", err)
		}
		if !strings.Contains(buf.String(), `"9";"Q";"";"";"";"missing_stock"`) {
			t.Errorf("unexpected output:\n%s", buf.String())
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(testRun())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Sync run #7",
			"**Source**: kasse.csv",
			"**Shop**: demo.myshopify.com",
			"**Status**: partial",
			"**Duration**: 2.0s",
			"| 3 | 3 | 1 | 1 | 1 | 1 |",
			"## Failed operations",
			"1. Row 3 `T1` price - → 13.00",
			"(SHOPIFY_USER_ERROR)",
			"## Unmatched rows",
			"- Row 4: `ZZ` Ghost; Item (no_match)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToMarkdown clean run", func(t *testing.T) {
		run := models.NewSyncRun(1, "a.csv", "", "")
		run.SetStatus(models.RunStatusSuccess)

		data, _ := ExportToMarkdown(run)
		output := string(data)
		if strings.Contains(output, "## Failed operations") || strings.Contains(output, "## Unmatched rows") {
			t.Errorf("clean run should have no detail sections:\n%s", output)
		}
		if strings.Contains(output, "**Shop**") {
			t.Error("empty shop should be omitted")
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		run := testRun()
		run.SetErrorMessage("run aborted: cancelled")

		data, err := ExportToText(run)
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"Sync run #7 (partial)",
			"Source: kasse.csv",
			"Operations: 3 planned, 1 success, 1 failed, 1 skipped",
			"Unmatched rows: 1",
			"Error: run aborted: cancelled",
			"FAILED row 3 price T1",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Text missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(testRun())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if doc["sequence"].(float64) != 7 || doc["status"] != "partial" {
			t.Errorf("unexpected document: %v", doc)
		}
		if ops := doc["operations"].([]any); len(ops) != 3 {
			t.Errorf("expected 3 operations, got %d", len(ops))
		}
		if doc["duration_ms"].(float64) != 2000 {
			t.Errorf("expected 2000ms, got %v", doc["duration_ms"])
		}
	})

	t.Run("ExportToJSON empty run", func(t *testing.T) {
		data, _ := ExportToJSON(models.NewSyncRun(1, "a.csv", "", ""))
		if !strings.Contains(string(data), `"operations": []`) || !strings.Contains(string(data), `"unmatched_rows": []`) {
			t.Errorf("expected empty arrays, got %s", data)
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"csv", FormatCSV, false},
		{" CSV ", FormatCSV, false},
		{"markdown", FormatMarkdown, false},
		{"md", FormatMarkdown, false},
		{"text", FormatText, false},
		{"json", FormatJSON, false},
		{"unmatched", FormatUnmatched, false},
		{"pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.err {
				if !errors.Is(err, shared.ErrInvalidFlag) {
					t.Errorf("expected ErrInvalidFlag, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	t.Run("unknown format", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Render(&buf, testRun(), Format("pdf")); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("write error", func(t *testing.T) {
		if err := Render(&th.FWriter{}, testRun(), FormatMarkdown); err == nil {
			t.Error("expected error from failing writer")
		}
	})
}

func TestWriteReport(t *testing.T) {
	t.Run("all formats", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "reports")

		result, err := WriteReport(testRun(), dir)
		if err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}

		if result.Directory != dir {
			t.Errorf("expected directory %s, got %s", dir, result.Directory)
		}
		if len(result.Files) != len(AllFormats) {
			t.Fatalf("expected %d files, got %d", len(AllFormats), len(result.Files))
		}

		th.AssertDirExists(t, dir)
		for _, name := range []string{
			"sync-run-7-results.csv",
			"sync-run-7-unmatched.csv",
			"sync-run-7.md",
			"sync-run-7.txt",
			"sync-run-7.json",
		} {
			th.AssertFileExists(t, filepath.Join(dir, name))
		}

		csvContent := th.MustReadFile(t, filepath.Join(dir, "sync-run-7-results.csv"))
		if !strings.HasPrefix(csvContent, "\ufeff\"Time\"") {
			t.Errorf("CSV should start with a byte order mark, got %q", csvContent[:10])
		}

		md := th.MustReadFile(t, filepath.Join(dir, "sync-run-7.md"))
		if strings.HasPrefix(md, "\ufeff") {
			t.Error("Markdown should not carry a byte order mark")
		}
	})

	t.Run("skips empty unmatched", func(t *testing.T) {
		run := testRun()
		run.SetUnmatched(nil)

		result, err := WriteReport(run, t.TempDir(), FormatCSV, FormatUnmatched)
		if err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		if len(result.Files) != 1 {
			t.Errorf("expected only the results file, got %v", result.Files)
		}
	})

	t.Run("directory is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := WriteReport(testRun(), path); err == nil {
			t.Error("expected error when output directory is a file")
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := WriteReport(testRun(), t.TempDir(), Format("pdf")); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestReportFilename(t *testing.T) {
	run := models.NewSyncRun(12, "a.csv", "", "")

	tests := map[Format]string{
		FormatCSV:       "sync-run-12-results.csv",
		FormatUnmatched: "sync-run-12-unmatched.csv",
		FormatMarkdown:  "sync-run-12.md",
		FormatText:      "sync-run-12.txt",
		FormatJSON:      "sync-run-12.json",
	}
	for f, want := range tests {
		if got := ReportFilename(run, f); got != want {
			t.Errorf("ReportFilename(%s) = %s, want %s", f, got, want)
		}
	}
}
