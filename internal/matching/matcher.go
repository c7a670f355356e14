package matching

import (
	"strings"

	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
)

// Strategy is one step of the fallback chain. Match reports ok=false to defer to the next step.
type Strategy struct {
	Name  string
	Match func(row models.CsvRow, idx *VariantIndex) (models.MatchResult, bool)
}

// DefaultStrategies is the fallback chain in priority order.
var DefaultStrategies = []Strategy{
	{Name: "sku", Match: matchSKU},
	{Name: "barcode", Match: matchBarcode},
	{Name: "name", Match: matchName},
	{Name: "prefix", Match: matchPrefix},
}

// Matcher applies an ordered strategy list to rows.
type Matcher struct {
	strategies []Strategy
}

// NewMatcher returns a [Matcher] over strategies, or [DefaultStrategies] when none are given.
func NewMatcher(strategies ...Strategy) *Matcher {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	return &Matcher{strategies: strategies}
}

// Match returns the result of the first strategy that resolves row, or [models.NoMatch].
func (m *Matcher) Match(row models.CsvRow, idx *VariantIndex) models.MatchResult {
	if idx == nil {
		return models.NoMatch()
	}
	for _, s := range m.strategies {
		if res, ok := s.Match(row, idx); ok {
			return res
		}
	}
	return models.NoMatch()
}

// MatchAll matches rows in order; the result slice is parallel to rows.
func (m *Matcher) MatchAll(rows []models.CsvRow, idx *VariantIndex) []models.MatchResult {
	out := make([]models.MatchResult, len(rows))
	for i, row := range rows {
		out[i] = m.Match(row, idx)
	}
	return out
}

var defaultMatcher = NewMatcher()

// MatchRow resolves one row with [DefaultStrategies].
func MatchRow(row models.CsvRow, idx *VariantIndex) models.MatchResult {
	return defaultMatcher.Match(row, idx)
}

// MatchAll resolves rows with [DefaultStrategies].
func MatchAll(rows []models.CsvRow, idx *VariantIndex) []models.MatchResult {
	return defaultMatcher.MatchAll(rows, idx)
}

func resolved(id string, method models.MatchMethod, conf models.Confidence) (models.MatchResult, bool) {
	return models.MatchResult{VariantID: id, Method: method, Confidence: conf}, true
}

func matchSKU(row models.CsvRow, idx *VariantIndex) (models.MatchResult, bool) {
	sku := strings.TrimSpace(row.SKU)
	if sku == "" {
		return models.MatchResult{}, false
	}
	if id, ok := idx.LookupSKU(sku); ok {
		return resolved(id, models.MatchSKU, models.ConfidenceExact)
	}
	return models.MatchResult{}, false
}

// matchBarcode checks the combined map with the row SKU (POS exports often carry EANs
// there), then the raw name, then the normalized name.
func matchBarcode(row models.CsvRow, idx *VariantIndex) (models.MatchResult, bool) {
	candidates := []string{
		strings.TrimSpace(row.SKU),
		strings.TrimSpace(row.Name),
		shared.NormalizeString(row.Name),
	}
	for _, key := range candidates {
		if key == "" {
			continue
		}
		if id, ok := idx.LookupExtra(key); ok {
			return resolved(id, models.MatchBarcode, models.ConfidenceExact)
		}
	}
	return models.MatchResult{}, false
}

func matchName(row models.CsvRow, idx *VariantIndex) (models.MatchResult, bool) {
	key := shared.NormalizeString(row.Name)
	if key == "" {
		return models.MatchResult{}, false
	}
	ids := idx.LookupName(key)
	switch len(ids) {
	case 0:
		return models.MatchResult{}, false
	case 1:
		return resolved(ids[0], models.MatchName, models.ConfidenceExact)
	default:
		return resolved(ids[0], models.MatchName, models.ConfidenceLow)
	}
}

// matchPrefix accepts a single product title that is a prefix of the row name or vice versa.
// More than one candidate title ends the chain with no match.
func matchPrefix(row models.CsvRow, idx *VariantIndex) (models.MatchResult, bool) {
	name := shared.NormalizeString(row.Name)
	if name == "" {
		return models.MatchResult{}, false
	}

	var hit string
	hits := 0
	for _, key := range idx.NameKeys() {
		if key == "" || len(idx.LookupName(key)) == 0 {
			continue
		}
		if strings.HasPrefix(name, key) || strings.HasPrefix(key, name) {
			hits++
			hit = key
			if hits > 1 {
				return models.NoMatch(), true
			}
		}
	}
	if hits == 1 {
		return resolved(idx.LookupName(hit)[0], models.MatchPrefix, models.ConfidencePartial)
	}
	return models.MatchResult{}, false
}
