// Shopify Admin GraphQL [Service] implementation
package services

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
)

const pageSize = 250

const variantFields = `
            id
            sku
            barcode
            title
            price
            inventoryItem { id }`

const variantFieldsWithLevel = `
            id
            sku
            barcode
            title
            price
            inventoryItem {
              id
              inventoryLevel(locationId: $locationId) {
                quantities(names: ["available"]) { name quantity }
              }
            }`

const productsQueryTemplate = `
query ListProducts($first: Int!, $after: String%s) {
  products(first: $first, after: $after, sortKey: ID) {
    pageInfo { hasNextPage endCursor }
    nodes {
      id
      title
      variants(first: 250) {
        pageInfo { hasNextPage }
        nodes {%s
        }
      }
    }
  }
}`

var (
	productsQuery           = fmt.Sprintf(productsQueryTemplate, "", variantFields)
	productsAtLocationQuery = fmt.Sprintf(productsQueryTemplate, ", $locationId: ID!", variantFieldsWithLevel)
)

const locationsQuery = `
query ListLocations($first: Int!, $after: String) {
  locations(first: $first, after: $after) {
    pageInfo { hasNextPage endCursor }
    nodes { id name isActive }
  }
}`

const accessScopesQuery = `
query AccessScopes {
  currentAppInstallation {
    accessScopes { handle }
  }
}`

const variantsBulkUpdateMutation = `
mutation UpdateVariantPrices($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants, allowPartialUpdates: true) {
    productVariants { id price }
    userErrors { field message }
  }
}`

const inventorySetMutation = `
mutation SetInventory($input: InventorySetQuantitiesInput!) {
  inventorySetQuantities(input: $input) {
    inventoryAdjustmentGroup { reason changes { name delta quantityAfterChange } }
    userErrors { code field message }
  }
}`

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type shopifyVariant struct {
	ID            string `json:"id"`
	SKU           string `json:"sku"`
	Barcode       string `json:"barcode"`
	Title         string `json:"title"`
	Price         string `json:"price"`
	InventoryItem *struct {
		ID             string `json:"id"`
		InventoryLevel *struct {
			Quantities []struct {
				Name     string `json:"name"`
				Quantity int    `json:"quantity"`
			} `json:"quantities"`
		} `json:"inventoryLevel"`
	} `json:"inventoryItem"`
}

type shopifyProduct struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Variants struct {
		PageInfo pageInfo         `json:"pageInfo"`
		Nodes    []shopifyVariant `json:"nodes"`
	} `json:"variants"`
}

// ShopifyService implements [Service] and [ShopAdmin] over the Admin GraphQL API.
//
// Inventory reads and writes use the configured location; without one, current
// quantities are unknown and inventory updates fail per operation.
type ShopifyService struct {
	client     *APIClient
	shop       string
	locationID string
	logger     *log.Logger
}

// NewShopifyService creates a client for the shop in cfg.
func NewShopifyService(cfg shared.ShopConfig, opts ...ClientOption) (*ShopifyService, error) {
	if cfg.URL == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("%w: shop url and access token are required", shared.ErrMissingCredentials)
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2025-10"
	}

	base := []ClientOption{
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout()}),
		WithRateLimit(cfg.RateLimit),
		WithMaxRetries(cfg.MaxRetries),
	}
	client := NewAPIClient(cfg.Endpoint(), cfg.AccessToken, append(base, opts...)...)

	return &ShopifyService{
		client:     client,
		shop:       shared.NormalizeShopURL(cfg.URL),
		locationID: cfg.LocationID,
		logger:     client.logger,
	}, nil
}

func (s *ShopifyService) Name() string {
	return "Shopify"
}

// Shop returns the normalized shop URL.
func (s *ShopifyService) Shop() string {
	return s.shop
}

// LocationID returns the location used for inventory.
func (s *ShopifyService) LocationID() string {
	return s.locationID
}

// SetLocation changes the location used for inventory.
func (s *ShopifyService) SetLocation(id string) {
	s.locationID = id
}

// GetProducts pages through every product of the shop.
func (s *ShopifyService) GetProducts(ctx context.Context) ([]models.Product, error) {
	query := productsQuery
	vars := map[string]any{"first": pageSize}
	if s.locationID != "" {
		query = productsAtLocationQuery
		vars["locationId"] = s.locationID
	}

	var products []models.Product
	for page := 1; ; page++ {
		var data struct {
			Products struct {
				PageInfo pageInfo         `json:"pageInfo"`
				Nodes    []shopifyProduct `json:"nodes"`
			} `json:"products"`
		}
		if err := s.client.Do(ctx, query, vars, &data); err != nil {
			return nil, fmt.Errorf("failed to load products page %d: %w", page, err)
		}

		for _, node := range data.Products.Nodes {
			if node.Variants.PageInfo.HasNextPage {
				s.logger.Warn("product has more than 250 variants, extra variants are not indexed", "product", node.ID, "title", node.Title)
			}
			products = append(products, convertProduct(node))
		}
		s.logger.Debug("loaded products page", "page", page, "count", len(data.Products.Nodes), "next", data.Products.PageInfo.HasNextPage)

		if !data.Products.PageInfo.HasNextPage {
			break
		}
		vars["after"] = data.Products.PageInfo.EndCursor
	}

	s.logger.Info("loaded catalog", "products", len(products), "variants", models.CountVariants(products))
	return products, nil
}

func convertProduct(node shopifyProduct) models.Product {
	p := models.Product{ID: node.ID, Title: node.Title, Variants: make([]models.Variant, 0, len(node.Variants.Nodes))}
	for _, v := range node.Variants.Nodes {
		variant := models.Variant{
			ID:        v.ID,
			ProductID: node.ID,
			SKU:       v.SKU,
			Barcode:   v.Barcode,
			Title:     v.Title,
			Price:     v.Price,
		}
		if v.InventoryItem != nil {
			variant.InventoryItemID = v.InventoryItem.ID
			if lvl := v.InventoryItem.InventoryLevel; lvl != nil {
				for _, q := range lvl.Quantities {
					if q.Name == "available" {
						variant.CurrentQuantity = models.IntPtr(q.Quantity)
					}
				}
			}
		}
		p.Variants = append(p.Variants, variant)
	}
	return p
}

// ApplyPriceUpdate sets one variant price through productVariantsBulkUpdate.
func (s *ShopifyService) ApplyPriceUpdate(ctx context.Context, productID, variantID, price string) error {
	if productID == "" || variantID == "" {
		return shared.NewApplyError(shared.CodeInvalidArgument, "product and variant ids are required")
	}

	var data struct {
		ProductVariantsBulkUpdate struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"productVariantsBulkUpdate"`
	}
	vars := map[string]any{
		"productId": productID,
		"variants":  []map[string]any{{"id": variantID, "price": price}},
	}
	if err := s.client.Do(ctx, variantsBulkUpdateMutation, vars, &data); err != nil {
		return err
	}
	return userErrorsToError(data.ProductVariantsBulkUpdate.UserErrors)
}

// ApplyInventoryUpdate sets the available quantity of one inventory item through inventorySetQuantities.
func (s *ShopifyService) ApplyInventoryUpdate(ctx context.Context, inventoryItemID string, quantity int) error {
	if s.locationID == "" {
		return &shared.ApplyError{
			Code:    shared.CodeInvalidArgument,
			Message: "no location configured for inventory updates",
			Cause:   shared.ErrLocationNotFound,
		}
	}

	var data struct {
		InventorySetQuantities struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"inventorySetQuantities"`
	}
	vars := map[string]any{
		"input": map[string]any{
			"name":                  "available",
			"reason":                "correction",
			"ignoreCompareQuantity": true,
			"quantities": []map[string]any{{
				"inventoryItemId": inventoryItemID,
				"locationId":      s.locationID,
				"quantity":        quantity,
			}},
		},
	}
	if err := s.client.Do(ctx, inventorySetMutation, vars, &data); err != nil {
		return err
	}
	return userErrorsToError(data.InventorySetQuantities.UserErrors)
}

// Locations lists every location of the shop.
func (s *ShopifyService) Locations(ctx context.Context) ([]Location, error) {
	vars := map[string]any{"first": pageSize}
	var out []Location
	for {
		var data struct {
			Locations struct {
				PageInfo pageInfo   `json:"pageInfo"`
				Nodes    []Location `json:"nodes"`
			} `json:"locations"`
		}
		if err := s.client.Do(ctx, locationsQuery, vars, &data); err != nil {
			return nil, fmt.Errorf("failed to list locations: %w", err)
		}
		out = append(out, data.Locations.Nodes...)
		if !data.Locations.PageInfo.HasNextPage {
			return out, nil
		}
		vars["after"] = data.Locations.PageInfo.EndCursor
	}
}

// ResolveLocation finds a location by exact name or id.
func (s *ShopifyService) ResolveLocation(ctx context.Context, nameOrID string) (Location, error) {
	locations, err := s.Locations(ctx)
	if err != nil {
		return Location{}, err
	}
	for _, l := range locations {
		if l.Name == nameOrID || l.ID == nameOrID {
			return l, nil
		}
	}
	return Location{}, fmt.Errorf("%w: %q", shared.ErrLocationNotFound, nameOrID)
}

// AccessScopes returns the scope handles granted to the access token.
func (s *ShopifyService) AccessScopes(ctx context.Context) ([]string, error) {
	var data struct {
		CurrentAppInstallation struct {
			AccessScopes []struct {
				Handle string `json:"handle"`
			} `json:"accessScopes"`
		} `json:"currentAppInstallation"`
	}
	if err := s.client.Do(ctx, accessScopesQuery, nil, &data); err != nil {
		return nil, fmt.Errorf("failed to read access scopes: %w", err)
	}
	scopes := make([]string, 0, len(data.CurrentAppInstallation.AccessScopes))
	for _, sc := range data.CurrentAppInstallation.AccessScopes {
		scopes = append(scopes, sc.Handle)
	}
	return scopes, nil
}

// CheckScopes returns the required scopes missing from the token, with
// [shared.ErrMissingAccessScopes] when any are.
//
// A write_X scope implies read_X.
func CheckScopes(ctx context.Context, admin ShopAdmin, required []string) ([]string, error) {
	granted, err := admin.AccessScopes(ctx)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, scope := range required {
		if slices.Contains(granted, scope) {
			continue
		}
		if len(scope) > 5 && scope[:5] == "read_" && slices.Contains(granted, "write_"+scope[5:]) {
			continue
		}
		missing = append(missing, scope)
	}
	if len(missing) > 0 {
		return missing, fmt.Errorf("%w: %v", shared.ErrMissingAccessScopes, missing)
	}
	return nil, nil
}
