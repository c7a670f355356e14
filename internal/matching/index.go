package matching

import (
	"strings"

	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
)

// DuplicatePolicy decides which variant keeps a key registered by more than one variant.
type DuplicatePolicy int

const (
	LastWriteWins DuplicatePolicy = iota
	FirstWriteWins
)

// ParseDuplicatePolicy maps a config value onto a [DuplicatePolicy], defaulting to [LastWriteWins].
func ParseDuplicatePolicy(s string) DuplicatePolicy {
	if s == shared.DuplicatePolicyFirstWriteWins {
		return FirstWriteWins
	}
	return LastWriteWins
}

func (p DuplicatePolicy) String() string {
	if p == FirstWriteWins {
		return shared.DuplicatePolicyFirstWriteWins
	}
	return shared.DuplicatePolicyLastWriteWins
}

// DuplicateReport lists keys claimed by more than one variant while building an index.
type DuplicateReport struct {
	// SKUs maps each duplicated SKU to every variant id that carried it, in catalog order.
	SKUs map[string][]string
	// Keys maps duplicated barcode or combined-name keys to their variant ids.
	Keys map[string][]string
	// Displaced counts registrations that lost a key to another variant: earlier
	// holders replaced under [LastWriteWins], later claimants dropped under [FirstWriteWins].
	Displaced int
}

// Empty reports whether no duplicates were seen.
func (d DuplicateReport) Empty() bool {
	return len(d.SKUs) == 0 && len(d.Keys) == 0
}

// VariantIndex holds the lookup maps used by the matcher.
type VariantIndex struct {
	skuToVariant     map[string]string
	nameToVariants   map[string][]string
	nameKeys         []string
	extraNameMap     map[string]string
	variantToProduct map[string]string

	variants      map[string]models.Variant
	productTitles map[string]string
	duplicates    DuplicateReport
	policy        DuplicatePolicy
}

// IndexOption configures [Build].
type IndexOption func(*VariantIndex)

// WithDuplicatePolicy sets how duplicate SKUs and combined keys are resolved.
func WithDuplicatePolicy(p DuplicatePolicy) IndexOption {
	return func(idx *VariantIndex) { idx.policy = p }
}

// Build constructs a [VariantIndex] from a full catalog snapshot.
//
// Every variant is indexed by product title. Non-empty SKUs and barcodes are
// indexed as given (trimmed); product+variant title keys are normalized and only
// registered when the variant has a title of its own.
func Build(products []models.Product, opts ...IndexOption) *VariantIndex {
	idx := &VariantIndex{
		skuToVariant:     make(map[string]string),
		nameToVariants:   make(map[string][]string),
		extraNameMap:     make(map[string]string),
		variantToProduct: make(map[string]string),
		variants:         make(map[string]models.Variant),
		productTitles:    make(map[string]string),
		duplicates:       DuplicateReport{SKUs: map[string][]string{}, Keys: map[string][]string{}},
	}
	for _, opt := range opts {
		opt(idx)
	}

	for _, product := range products {
		titleKey := shared.NormalizeString(product.Title)
		idx.productTitles[product.ID] = product.Title
		if _, seen := idx.nameToVariants[titleKey]; !seen {
			idx.nameKeys = append(idx.nameKeys, titleKey)
			idx.nameToVariants[titleKey] = nil
		}

		for _, variant := range product.Variants {
			if variant.ProductID == "" {
				variant.ProductID = product.ID
			}
			idx.variants[variant.ID] = variant
			idx.variantToProduct[variant.ID] = product.ID
			idx.nameToVariants[titleKey] = append(idx.nameToVariants[titleKey], variant.ID)

			if sku := strings.TrimSpace(variant.SKU); sku != "" {
				idx.register(idx.skuToVariant, idx.duplicates.SKUs, sku, variant.ID)
			}
			if strings.TrimSpace(variant.Title) != "" {
				combo := shared.NormalizeString(product.Title + " " + variant.Title)
				idx.register(idx.extraNameMap, idx.duplicates.Keys, combo, variant.ID)
			}
			if barcode := strings.TrimSpace(variant.Barcode); barcode != "" {
				idx.register(idx.extraNameMap, idx.duplicates.Keys, barcode, variant.ID)
			}
		}
	}

	return idx
}

func (idx *VariantIndex) register(m map[string]string, dups map[string][]string, key, variantID string) {
	existing, ok := m[key]
	if !ok {
		m[key] = variantID
		return
	}
	if existing == variantID {
		return
	}

	if len(dups[key]) == 0 {
		dups[key] = []string{existing}
	}
	dups[key] = append(dups[key], variantID)
	idx.duplicates.Displaced++

	if idx.policy == LastWriteWins {
		m[key] = variantID
	}
}

// LookupSKU returns the variant registered for an exact SKU.
func (idx *VariantIndex) LookupSKU(sku string) (string, bool) {
	id, ok := idx.skuToVariant[sku]
	return id, ok
}

// LookupExtra returns the variant registered for a barcode or combined product+variant key.
func (idx *VariantIndex) LookupExtra(key string) (string, bool) {
	id, ok := idx.extraNameMap[key]
	return id, ok
}

// LookupName returns every variant of products whose normalized title equals key, in catalog order.
func (idx *VariantIndex) LookupName(key string) []string {
	return idx.nameToVariants[key]
}

// NameKeys returns the normalized product titles in first-seen catalog order.
func (idx *VariantIndex) NameKeys() []string {
	return idx.nameKeys
}

// ProductOf returns the owning product id of a variant.
func (idx *VariantIndex) ProductOf(variantID string) (string, bool) {
	id, ok := idx.variantToProduct[variantID]
	return id, ok
}

// Variant returns the catalog snapshot of a variant.
func (idx *VariantIndex) Variant(variantID string) (models.Variant, bool) {
	v, ok := idx.variants[variantID]
	return v, ok
}

// ProductTitle returns the display title of the product owning variantID.
func (idx *VariantIndex) ProductTitle(variantID string) string {
	return idx.productTitles[idx.variantToProduct[variantID]]
}

// Duplicates returns the duplicate keys seen while building the index.
func (idx *VariantIndex) Duplicates() DuplicateReport {
	return idx.duplicates
}

// Policy returns the duplicate policy the index was built with.
func (idx *VariantIndex) Policy() DuplicatePolicy {
	return idx.policy
}

// Len returns the number of indexed variants.
func (idx *VariantIndex) Len() int {
	return len(idx.variants)
}
