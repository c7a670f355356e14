package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/stocksync/internal/shared"
	"github.com/shopspring/decimal"
)

// ParseStock reads a stock cell as a whole quantity.
//
// Spreadsheet renderings with a zero fraction ("12,0", "12.00") are accepted;
// fractional quantities are not. Negative stock is kept.
func ParseStock(raw string) (int, error) {
	s := strings.Join(strings.Fields(raw), "")
	if s == "" {
		return 0, fmt.Errorf("%w: empty stock", shared.ErrInvalidInput)
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}

	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return 0, fmt.Errorf("%w: stock %q is not a number", shared.ErrInvalidInput, raw)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: stock %q is not a whole number", shared.ErrInvalidInput, raw)
	}
	if !d.Abs().LessThan(decimal.NewFromInt(1_000_000_000)) {
		return 0, fmt.Errorf("%w: stock %q is out of range", shared.ErrInvalidInput, raw)
	}
	return int(d.IntPart()), nil
}
