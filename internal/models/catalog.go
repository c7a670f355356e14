package models

// Product is a catalog product with its variants in catalog order.
type Product struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Variants []Variant `json:"variants"`
}

// Variant is a purchasable unit of a [Product].
//
// Empty SKU, Barcode and InventoryItemID mean the shop has no value.
// CurrentQuantity is nil when stock was not loaded for the configured location.
type Variant struct {
	ID              string `json:"id"`
	ProductID       string `json:"product_id"`
	SKU             string `json:"sku,omitempty"`
	Barcode         string `json:"barcode,omitempty"`
	Title           string `json:"title"`
	Price           string `json:"price"`
	InventoryItemID string `json:"inventory_item_id,omitempty"`
	CurrentQuantity *int   `json:"current_quantity,omitempty"`
}

// CountVariants returns the number of variants across products.
func CountVariants(products []Product) int {
	n := 0
	for _, p := range products {
		n += len(p.Variants)
	}
	return n
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
