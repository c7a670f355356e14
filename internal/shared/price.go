package shared

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyTokens = []string{"€", "$", "£", "EUR", "CHF", "USD"}

// NormalizePrice converts a point-of-sale price cell into a two-decimal money string.
//
// Accepted shapes include "6,5", "6.5", "1.234,56", "1,234.56", "1'234.50" and
// values decorated with currency symbols or codes ("12 €", "EUR 12.50").
// When both separators are present the rightmost one is the decimal mark.
func NormalizePrice(raw string) (string, error) {
	amount, err := ParsePrice(raw)
	if err != nil {
		return "", err
	}
	return amount.StringFixed(2), nil
}

// ParsePrice parses a price cell into a [decimal.Decimal] using the same rules as [NormalizePrice].
func ParsePrice(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty price", ErrInvalidInput)
	}

	upper := strings.ToUpper(s)
	for _, tok := range currencyTokens {
		upper = strings.ReplaceAll(upper, tok, "")
	}
	s = strings.Join(strings.Fields(upper), "")
	s = strings.ReplaceAll(s, "'", "")

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0 && strings.Count(s, ",") > 1:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: price %q is not a number", ErrInvalidInput, raw)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: price %q is negative", ErrInvalidInput, raw)
	}
	return amount.Round(2), nil
}

// PricesEqual compares two money strings numerically, so "12.50" equals "12.5".
//
// Unparseable values are never equal to anything.
func PricesEqual(a, b string) bool {
	da, err := ParsePrice(a)
	if err != nil {
		return false
	}
	db, err := ParsePrice(b)
	if err != nil {
		return false
	}
	return da.Equal(db)
}
