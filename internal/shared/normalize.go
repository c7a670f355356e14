package shared

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeString canonicalizes free text into a comparison key: NFKC, trimmed,
// lower-cased, with whitespace runs collapsed to a single space.
//
// Keys are only used for lookups and never displayed.
func NormalizeString(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ColumnLetterToIndex converts a spreadsheet column label (A, B, ..., Z, AA, AB) into a
// zero-based index. It returns -1 when label contains anything other than ASCII letters.
func ColumnLetterToIndex(label string) int {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "" {
		return -1
	}
	idx := 0
	for _, r := range label {
		if r < 'A' || r > 'Z' {
			return -1
		}
		idx = idx*26 + int(r-'A'+1)
	}
	return idx - 1
}

// IsColumnLetter reports whether s looks like a spreadsheet column label rather than a header name.
func IsColumnLetter(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 3 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return s == strings.ToUpper(s)
}
