// package formatter renders sync runs as reports (semicolon CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
)

// Format names a report kind accepted by [WriteReport].
type Format string

const (
	FormatCSV       Format = "csv"
	FormatUnmatched Format = "unmatched"
	FormatMarkdown  Format = "md"
	FormatText      Format = "txt"
	FormatJSON      Format = "json"
)

// AllFormats lists every report kind in the order [WriteReport] writes them.
var AllFormats = []Format{FormatCSV, FormatUnmatched, FormatMarkdown, FormatText, FormatJSON}

// ParseFormat resolves a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatUnmatched, FormatMarkdown, FormatText, FormatJSON:
		return f, nil
	case "markdown":
		return FormatMarkdown, nil
	case "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidFlag, s)
	}
}

// utf8BOM lets spreadsheet applications detect the encoding of exported CSV files.
const utf8BOM = "\ufeff"

var resultHeaders = []string{"Time", "SKU", "Name", "Type", "Old Value", "New Value", "Status", "Message", "Error Code"}

var unmatchedHeaders = []string{"Row", "SKU", "Name", "Price", "Stock", "Reason"}

// writeRecord writes fields separated by ';' with every field quoted.
func writeRecord(w io.Writer, fields []string) error {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	_, err := io.WriteString(w, strings.Join(quoted, ";")+"\n")
	return err
}

// ResultsToCSV writes one line per executed operation of run.
func ResultsToCSV(w io.Writer, run *models.SyncRun) error {
	if err := writeRecord(w, resultHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	ts := run.StartedAt()
	if f := run.FinishedAt(); f != nil {
		ts = *f
	}
	stamp := ts.Format(time.RFC3339)

	for _, op := range run.Operations() {
		record := []string{
			stamp,
			op.SKU,
			displayName(op.PlannedOperation),
			string(op.Type),
			op.OldValueString(),
			op.NewValue,
			string(op.Status),
			op.Message,
			op.ErrorCode,
		}
		if err := writeRecord(w, record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	return nil
}

// UnmatchedToCSV writes the rows that produced no operations.
func UnmatchedToCSV(w io.Writer, rows []models.UnmatchedRow) error {
	if err := writeRecord(w, unmatchedHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range rows {
		stock := ""
		if row.Stock != nil {
			stock = strconv.Itoa(*row.Stock)
		}
		record := []string{strconv.Itoa(row.RowNumber), row.SKU, row.Name, row.Price, stock, string(row.Reason)}
		if err := writeRecord(w, record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	return nil
}

// ExportToMarkdown renders a summary of run with failed operations and unmatched rows.
func ExportToMarkdown(run *models.SyncRun) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Sync run #%d\n\n", run.Sequence())
	fmt.Fprintf(&buf, "**Source**: %s\n", run.Source())
	if run.Shop() != "" {
		fmt.Fprintf(&buf, "**Shop**: %s\n", run.Shop())
	}
	fmt.Fprintf(&buf, "**Status**: %s\n", run.Status())
	fmt.Fprintf(&buf, "**Trigger**: %s\n", run.Trigger())
	fmt.Fprintf(&buf, "**Started**: %s\n", run.StartedAt().Format(time.RFC3339))
	fmt.Fprintf(&buf, "**Duration**: %s\n\n", shared.FormatDuration(run.Duration()))

	if run.ErrorMessage() != "" {
		fmt.Fprintf(&buf, "> %s\n\n", run.ErrorMessage())
	}

	buf.WriteString("| Planned | Executed | Success | Failed | Skipped | Unmatched |\n")
	buf.WriteString("|---|---|---|---|---|---|\n")
	fmt.Fprintf(&buf, "| %d | %d | %d | %d | %d | %d |\n\n",
		run.TotalPlanned(), run.TotalExecuted(), run.TotalSuccess(),
		run.TotalFailed(), run.TotalSkipped(), run.TotalUnmatched())

	if failed := failedOperations(run); len(failed) > 0 {
		buf.WriteString("## Failed operations\n\n")
		for i, op := range failed {
			fmt.Fprintf(&buf, "%d. Row %d `%s` %s %s → %s: %s", i+1, op.RowNumber, op.SKU,
				op.Type, valueOrDash(op.OldValueString()), op.NewValue, op.Message)
			if op.ErrorCode != "" {
				fmt.Fprintf(&buf, " (%s)", op.ErrorCode)
			}
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}

	if rows := run.Unmatched(); len(rows) > 0 {
		buf.WriteString("## Unmatched rows\n\n")
		for _, row := range rows {
			fmt.Fprintf(&buf, "- Row %d: `%s` %s (%s)\n", row.RowNumber, row.SKU, row.Name, row.Reason)
		}
	}

	return buf.Bytes(), nil
}

// ExportToText renders a plain summary of run.
func ExportToText(run *models.SyncRun) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Sync run #%d (%s)\n", run.Sequence(), run.Status())
	fmt.Fprintf(&buf, "Source: %s\n", run.Source())
	fmt.Fprintf(&buf, "Started: %s\n", run.StartedAt().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&buf, "Duration: %s\n", shared.FormatDuration(run.Duration()))
	fmt.Fprintf(&buf, "Operations: %d planned, %d success, %d failed, %d skipped\n",
		run.TotalPlanned(), run.TotalSuccess(), run.TotalFailed(), run.TotalSkipped())
	fmt.Fprintf(&buf, "Unmatched rows: %d\n", run.TotalUnmatched())
	if run.ErrorMessage() != "" {
		fmt.Fprintf(&buf, "Error: %s\n", run.ErrorMessage())
	}

	for _, op := range failedOperations(run) {
		fmt.Fprintf(&buf, "  FAILED row %d %s %s: %s\n", op.RowNumber, op.Type, op.SKU, op.Message)
	}

	return buf.Bytes(), nil
}

// runDocument is the JSON shape of an exported run.
type runDocument struct {
	ID         string                      `json:"id"`
	Sequence   int                         `json:"sequence"`
	Source     string                      `json:"source"`
	Shop       string                      `json:"shop,omitempty"`
	LocationID string                      `json:"location_id,omitempty"`
	Trigger    string                      `json:"trigger"`
	Status     string                      `json:"status"`
	DryRun     bool                        `json:"dry_run,omitempty"`
	Error      string                      `json:"error,omitempty"`
	StartedAt  time.Time                   `json:"started_at"`
	FinishedAt *time.Time                  `json:"finished_at,omitempty"`
	DurationMS int64                       `json:"duration_ms"`
	Planned    int                         `json:"total_planned"`
	Executed   int                         `json:"total_executed"`
	Success    int                         `json:"total_success"`
	Failed     int                         `json:"total_failed"`
	Skipped    int                         `json:"total_skipped"`
	Operations []models.OperationExecution `json:"operations"`
	Unmatched  []models.UnmatchedRow       `json:"unmatched_rows"`
}

// ExportToJSON renders run with its operations and unmatched rows.
func ExportToJSON(run *models.SyncRun) ([]byte, error) {
	doc := runDocument{
		ID:         run.ID(),
		Sequence:   run.Sequence(),
		Source:     run.Source(),
		Shop:       run.Shop(),
		LocationID: run.LocationID(),
		Trigger:    run.Trigger(),
		Status:     run.Status(),
		DryRun:     run.DryRun(),
		Error:      run.ErrorMessage(),
		StartedAt:  run.StartedAt(),
		FinishedAt: run.FinishedAt(),
		DurationMS: run.Duration().Milliseconds(),
		Planned:    run.TotalPlanned(),
		Executed:   run.TotalExecuted(),
		Success:    run.TotalSuccess(),
		Failed:     run.TotalFailed(),
		Skipped:    run.TotalSkipped(),
		Operations: run.Operations(),
		Unmatched:  run.Unmatched(),
	}
	if doc.Operations == nil {
		doc.Operations = []models.OperationExecution{}
	}
	if doc.Unmatched == nil {
		doc.Unmatched = []models.UnmatchedRow{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run: %w", err)
	}
	return append(data, '\n'), nil
}

// Render writes one report of the given format to w.
func Render(w io.Writer, run *models.SyncRun, f Format) error {
	switch f {
	case FormatCSV:
		return ResultsToCSV(w, run)
	case FormatUnmatched:
		return UnmatchedToCSV(w, run.Unmatched())
	}

	var (
		data []byte
		err  error
	)
	switch f {
	case FormatMarkdown:
		data, err = ExportToMarkdown(run)
	case FormatText:
		data, err = ExportToText(run)
	case FormatJSON:
		data, err = ExportToJSON(run)
	default:
		return fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidFlag, f)
	}
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReportFiles lists the files created by [WriteReport].
type ReportFiles struct {
	Directory string
	Files     []string
}

// ReportFilename returns the file name used for run in format f, e.g. "sync-run-7-results.csv".
func ReportFilename(run *models.SyncRun, f Format) string {
	base := fmt.Sprintf("sync-run-%d", run.Sequence())
	switch f {
	case FormatCSV:
		return base + "-results.csv"
	case FormatUnmatched:
		return base + "-unmatched.csv"
	default:
		return base + "." + string(f)
	}
}

// WriteReport writes run in each format to outputDir, creating the directory when needed.
//
// CSV files start with a UTF-8 byte order mark. The unmatched-rows file is skipped when
// the run has none. With no formats, every format in [AllFormats] is written.
func WriteReport(run *models.SyncRun, outputDir string, formats ...Format) (*ReportFiles, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if len(formats) == 0 {
		formats = AllFormats
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &ReportFiles{Directory: outputDir, Files: []string{}}

	for _, f := range formats {
		if f == FormatUnmatched && len(run.Unmatched()) == 0 {
			continue
		}

		var buf bytes.Buffer
		if f == FormatCSV || f == FormatUnmatched {
			buf.WriteString(utf8BOM)
		}
		if err := Render(&buf, run, f); err != nil {
			return nil, fmt.Errorf("failed to render %s report: %w", f, err)
		}

		path := filepath.Join(outputDir, ReportFilename(run, f))
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		result.Files = append(result.Files, path)
	}

	return result, nil
}

func failedOperations(run *models.SyncRun) []models.OperationExecution {
	var out []models.OperationExecution
	for _, op := range run.Operations() {
		if op.Status == models.StatusFailed {
			out = append(out, op)
		}
	}
	return out
}

func displayName(op models.PlannedOperation) string {
	switch {
	case op.VariantTitle != "" && op.VariantTitle != "Default Title":
		return op.ProductTitle + " - " + op.VariantTitle
	default:
		return op.ProductTitle
	}
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
