package matching

import (
	"testing"

	"github.com/desertthunder/stocksync/internal/models"
)

func catalog() []models.Product {
	return []models.Product{
		{ID: "p1", Title: "Blue Mug", Variants: []models.Variant{
			{ID: "v1", SKU: "A1", Barcode: "4006381333931", Title: "Default Title", Price: "10.00"},
		}},
		{ID: "p2", Title: "  Green   TEA ", Variants: []models.Variant{
			{ID: "v2", SKU: " G-1 ", Title: "100g", Price: "4.50"},
			{ID: "v3", SKU: "G-2", Title: "250g", Price: "9.00"},
		}},
		{ID: "p3", Title: "Candle", Variants: []models.Variant{
			{ID: "v4", Title: "", Price: "3.00"},
		}},
	}
}

func TestBuild(t *testing.T) {
	idx := Build(catalog())

	t.Run("sku map", func(t *testing.T) {
		if id, ok := idx.LookupSKU("A1"); !ok || id != "v1" {
			t.Errorf("LookupSKU(A1) = %q, %v", id, ok)
		}
		if id, ok := idx.LookupSKU("G-1"); !ok || id != "v2" {
			t.Errorf("SKU should be trimmed, got %q, %v", id, ok)
		}
		if _, ok := idx.LookupSKU(""); ok {
			t.Error("empty SKU must not be indexed")
		}
	})

	t.Run("name map keeps catalog order", func(t *testing.T) {
		ids := idx.LookupName("green tea")
		if len(ids) != 2 || ids[0] != "v2" || ids[1] != "v3" {
			t.Errorf("LookupName(green tea) = %v", ids)
		}
		keys := idx.NameKeys()
		if len(keys) != 3 || keys[0] != "blue mug" || keys[2] != "candle" {
			t.Errorf("NameKeys() = %v", keys)
		}
	})

	t.Run("combined and barcode keys", func(t *testing.T) {
		if id, ok := idx.LookupExtra("green tea 250g"); !ok || id != "v3" {
			t.Errorf("combined key lookup = %q, %v", id, ok)
		}
		if id, ok := idx.LookupExtra("4006381333931"); !ok || id != "v1" {
			t.Errorf("barcode lookup = %q, %v", id, ok)
		}
		if _, ok := idx.LookupExtra("candle"); ok {
			t.Error("variant without title must not register a combined key")
		}
	})

	t.Run("back references and snapshot", func(t *testing.T) {
		if pid, ok := idx.ProductOf("v3"); !ok || pid != "p2" {
			t.Errorf("ProductOf(v3) = %q, %v", pid, ok)
		}
		v, ok := idx.Variant("v4")
		if !ok || v.ProductID != "p3" {
			t.Errorf("Variant(v4) should carry its product id, got %+v", v)
		}
		if idx.ProductTitle("v2") != "  Green   TEA " {
			t.Errorf("ProductTitle should keep the display title, got %q", idx.ProductTitle("v2"))
		}
		if idx.Len() != 4 {
			t.Errorf("Len() = %d, want 4", idx.Len())
		}
	})

	t.Run("empty catalog", func(t *testing.T) {
		empty := Build(nil)
		if empty.Len() != 0 || len(empty.NameKeys()) != 0 || !empty.Duplicates().Empty() {
			t.Error("empty catalog should build an empty index")
		}
	})
}

func TestBuildDuplicates(t *testing.T) {
	products := []models.Product{
		{ID: "p1", Title: "Shirt", Variants: []models.Variant{{ID: "v1", SKU: "DUP", Barcode: "111"}}},
		{ID: "p2", Title: "Shirt XL", Variants: []models.Variant{{ID: "v2", SKU: "DUP", Barcode: "111"}}},
		{ID: "p3", Title: "Hat", Variants: []models.Variant{{ID: "v3", SKU: "DUP"}}},
	}

	tests := []struct {
		name            string
		policy          DuplicatePolicy
		wantSKU         string
		wantBarcode     string
		wantDisplaced   int
	}{
		{"last write wins", LastWriteWins, "v3", "v2", 3},
		{"first write wins", FirstWriteWins, "v1", "v1", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := Build(products, WithDuplicatePolicy(tt.policy))

			if id, _ := idx.LookupSKU("DUP"); id != tt.wantSKU {
				t.Errorf("LookupSKU(DUP) = %s, want %s", id, tt.wantSKU)
			}
			if id, _ := idx.LookupExtra("111"); id != tt.wantBarcode {
				t.Errorf("LookupExtra(111) = %s, want %s", id, tt.wantBarcode)
			}

			dups := idx.Duplicates()
			if got := dups.SKUs["DUP"]; len(got) != 3 || got[0] != "v1" || got[2] != "v3" {
				t.Errorf("duplicate SKU report = %v", got)
			}
			if got := dups.Keys["111"]; len(got) != 2 {
				t.Errorf("duplicate barcode report = %v", got)
			}
			if dups.Displaced != tt.wantDisplaced {
				t.Errorf("Displaced = %d, want %d", dups.Displaced, tt.wantDisplaced)
			}
		})
	}

	t.Run("displaced count follows the registrations, not the policy", func(t *testing.T) {
		products := []models.Product{
			{ID: "p1", Title: "Mug", Variants: []models.Variant{{ID: "v1", SKU: "M"}}},
			{ID: "p2", Title: "Mug", Variants: []models.Variant{{ID: "v2", SKU: "M"}}},
		}
		for _, policy := range []DuplicatePolicy{LastWriteWins, FirstWriteWins} {
			if got := Build(products, WithDuplicatePolicy(policy)).Duplicates().Displaced; got != 1 {
				t.Errorf("%s: Displaced = %d, want 1", policy, got)
			}
		}
	})

	t.Run("same variant twice is not a duplicate", func(t *testing.T) {
		idx := Build([]models.Product{{ID: "p1", Title: "Mug", Variants: []models.Variant{{ID: "v1", SKU: "M", Barcode: "M"}}}})
		if !idx.Duplicates().Empty() {
			t.Errorf("unexpected duplicates: %+v", idx.Duplicates())
		}
	})
}

func TestParseDuplicatePolicy(t *testing.T) {
	if ParseDuplicatePolicy("first_write_wins") != FirstWriteWins {
		t.Error("expected FirstWriteWins")
	}
	if ParseDuplicatePolicy("") != LastWriteWins || ParseDuplicatePolicy("junk") != LastWriteWins {
		t.Error("expected LastWriteWins default")
	}
	if FirstWriteWins.String() != "first_write_wins" {
		t.Errorf("unexpected String(): %s", FirstWriteWins)
	}
}
