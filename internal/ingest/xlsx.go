package ingest

import (
	"fmt"
	"io"

	"github.com/desertthunder/stocksync/internal/shared"
	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads one sheet of a workbook into a [Table]. An empty sheet name selects the first sheet.
func ReadXLSX(r io.Reader, sheet string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook: %v", shared.ErrInvalidInput, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", shared.ErrInvalidInput)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %q: %v", shared.ErrInvalidInput, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q has no header row", shared.ErrInvalidInput, sheet)
	}

	t := newTable(rows[0], rows[1:])
	t.Encoding = "xlsx"
	return t, nil
}
