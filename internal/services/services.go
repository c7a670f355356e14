package services

import (
	"context"

	"github.com/desertthunder/stocksync/internal/models"
)

// Service is a shop backend: the catalog a sync reads and the store it writes to.
//
// Implementations satisfy tasks.CatalogSource and tasks.ApplyCapability.
type Service interface {
	// GetProducts returns the full catalog with variants in catalog order.
	GetProducts(ctx context.Context) ([]models.Product, error)

	// ApplyPriceUpdate sets the price of one variant.
	ApplyPriceUpdate(ctx context.Context, productID, variantID, price string) error

	// ApplyInventoryUpdate sets the available quantity of one inventory item at the configured location.
	ApplyInventoryUpdate(ctx context.Context, inventoryItemID string, quantity int) error

	// Name returns the name of the backend (e.g., "Shopify")
	Name() string
}

// ShopAdmin exposes setup queries used by the CLI.
type ShopAdmin interface {
	Locations(ctx context.Context) ([]Location, error)
	AccessScopes(ctx context.Context) ([]string, error)
}

// Location is a stock location of the shop.
type Location struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// RequiredScopes are the Admin API access scopes a sync needs.
var RequiredScopes = []string{
	"read_products",
	"write_products",
	"read_inventory",
	"write_inventory",
	"read_locations",
}
