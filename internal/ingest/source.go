package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
)

// Format is a supported source file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks the format from the file extension. Unknown extensions are read as CSV.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls", ".dbf":
		return "", fmt.Errorf("%w: %s", shared.ErrUnsupportedFile, filepath.Ext(path))
	default:
		return FormatCSV, nil
	}
}

// FileSource reads rows from a CSV or XLSX file on every call.
type FileSource struct {
	path    string
	mapping Mapping
	csv     CSVOptions
	sheet   string
	logger  *log.Logger

	issues []Issue
}

// SourceOption configures a [FileSource].
type SourceOption func(*FileSource)

// WithCSVOptions sets CSV decoding options.
func WithCSVOptions(o CSVOptions) SourceOption {
	return func(s *FileSource) { s.csv = o }
}

// WithSheet selects a workbook sheet by name.
func WithSheet(name string) SourceOption {
	return func(s *FileSource) { s.sheet = name }
}

// WithLogger sets the source logger.
func WithLogger(l *log.Logger) SourceOption {
	return func(s *FileSource) { s.logger = l }
}

// NewFileSource creates a row source for path.
func NewFileSource(path string, mapping Mapping, opts ...SourceOption) *FileSource {
	s := &FileSource{
		path:    path,
		mapping: mapping,
		csv:     CSVOptions{Delimiter: ';', Encoding: EncodingAuto},
		logger:  shared.NewLogger(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFileSourceFromConfig creates a row source using the [mapping] config section.
func NewFileSourceFromConfig(path string, cfg shared.MappingConfig, opts ...SourceOption) *FileSource {
	base := []SourceOption{WithCSVOptions(CSVOptionsFromConfig(cfg))}
	return NewFileSource(path, MappingFromConfig(cfg), append(base, opts...)...)
}

// Path returns the file path.
func (s *FileSource) Path() string {
	return s.path
}

// Name returns the base name of the file, for reports.
func (s *FileSource) Name() string {
	return filepath.Base(s.path)
}

// Issues returns the cell problems found by the last [FileSource.Rows] call.
func (s *FileSource) Issues() []Issue {
	return s.issues
}

// Table reads and decodes the file without mapping columns.
func (s *FileSource) Table(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format, err := DetectFormat(s.path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", shared.ErrInvalidInput, s.path)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()

	switch format {
	case FormatXLSX:
		return ReadXLSX(f, s.sheet)
	default:
		return ReadCSV(f, s.csv)
	}
}

// Rows implements tasks.RowSource.
func (s *FileSource) Rows(ctx context.Context) ([]models.CsvRow, error) {
	table, err := s.Table(ctx)
	if err != nil {
		return nil, err
	}

	rows, issues, err := table.Rows(s.mapping)
	if err != nil {
		return nil, err
	}
	s.issues = issues

	s.logger.Debug("read source file", "path", s.path, "rows", len(rows), "encoding", table.Encoding, "delimiter", string(table.Delimiter))
	for _, is := range issues {
		s.logger.Warn("unreadable cell", "row", is.RowNumber, "column", is.Column, "value", is.Value, "error", is.Message)
	}
	return rows, nil
}
