package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/stocksync/internal/shared"
)

type capturedRequest struct {
	Query     string
	Variables map[string]any
}

func newTestShop(t *testing.T, locationID string, h func(req capturedRequest) any) (*ShopifyService, *[]capturedRequest) {
	t.Helper()
	var seen []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			return
		}
		captured := capturedRequest{Query: req.Query, Variables: req.Variables}
		seen = append(seen, captured)
		writeJSON(w, map[string]any{"data": h(captured)})
	}))
	t.Cleanup(server.Close)

	cfg := shared.ShopConfig{
		URL:         "demo.myshopify.com",
		AccessToken: "shpat_test",
		APIVersion:  "2025-10",
		LocationID:  locationID,
		MaxRetries:  1,
	}
	svc, err := NewShopifyService(cfg, WithEndpoint(server.URL), WithRateLimit(0))
	if err != nil {
		t.Fatalf("NewShopifyService failed: %v", err)
	}
	return svc, &seen
}

func productPage(next bool, cursor string, products ...map[string]any) map[string]any {
	return map[string]any{"products": map[string]any{
		"pageInfo": map[string]any{"hasNextPage": next, "endCursor": cursor},
		"nodes":    products,
	}}
}

func TestNewShopifyService(t *testing.T) {
	t.Run("requires credentials", func(t *testing.T) {
		_, err := NewShopifyService(shared.ShopConfig{URL: "demo.myshopify.com"})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("derives endpoint", func(t *testing.T) {
		svc, err := NewShopifyService(shared.ShopConfig{URL: "demo.myshopify.com/", AccessToken: "shpat_x", LocationID: "gid://shopify/Location/1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if svc.client.endpoint != "https://demo.myshopify.com/admin/api/2025-10/graphql.json" {
			t.Errorf("unexpected endpoint %s", svc.client.endpoint)
		}
		if svc.Name() != "Shopify" || svc.Shop() != "https://demo.myshopify.com" || svc.LocationID() != "gid://shopify/Location/1" {
			t.Errorf("unexpected service fields")
		}
		svc.SetLocation("gid://shopify/Location/2")
		if svc.LocationID() != "gid://shopify/Location/2" {
			t.Errorf("SetLocation did not apply")
		}
	})
}

func TestShopifyGetProducts(t *testing.T) {
	ctx := context.Background()

	t.Run("pages by cursor and reads levels", func(t *testing.T) {
		svc, seen := newTestShop(t, "gid://shopify/Location/1", func(req capturedRequest) any {
			if req.Variables["after"] == nil {
				return productPage(true, "c1", map[string]any{
					"id": "gid://shopify/Product/1", "title": "Blue Mug",
					"variants": map[string]any{"pageInfo": map[string]any{"hasNextPage": false}, "nodes": []map[string]any{{
						"id": "gid://shopify/ProductVariant/11", "sku": "A1", "barcode": "400", "title": "Default Title", "price": "10.00",
						"inventoryItem": map[string]any{
							"id":             "gid://shopify/InventoryItem/111",
							"inventoryLevel": map[string]any{"quantities": []map[string]any{{"name": "available", "quantity": 5}}},
						},
					}}},
				})
			}
			return productPage(false, "", map[string]any{
				"id": "gid://shopify/Product/2", "title": "Green Tea",
				"variants": map[string]any{"nodes": []map[string]any{{
					"id": "gid://shopify/ProductVariant/21", "sku": "", "title": "100g", "price": "12.5",
					"inventoryItem": map[string]any{"id": "gid://shopify/InventoryItem/211", "inventoryLevel": nil},
				}}},
			})
		})

		products, err := svc.GetProducts(ctx)
		if err != nil {
			t.Fatalf("GetProducts failed: %v", err)
		}
		if len(*seen) != 2 {
			t.Fatalf("expected 2 requests, got %d", len(*seen))
		}
		if (*seen)[1].Variables["after"] != "c1" {
			t.Errorf("expected cursor c1 on second page, got %v", (*seen)[1].Variables["after"])
		}
		if (*seen)[0].Variables["locationId"] != "gid://shopify/Location/1" || !strings.Contains((*seen)[0].Query, "inventoryLevel") {
			t.Errorf("expected location-scoped query")
		}

		if len(products) != 2 {
			t.Fatalf("expected 2 products, got %d", len(products))
		}
		mug := products[0].Variants[0]
		if mug.ProductID != "gid://shopify/Product/1" || mug.SKU != "A1" || mug.Barcode != "400" || mug.InventoryItemID != "gid://shopify/InventoryItem/111" {
			t.Errorf("unexpected variant %+v", mug)
		}
		if mug.CurrentQuantity == nil || *mug.CurrentQuantity != 5 {
			t.Errorf("expected quantity 5, got %v", mug.CurrentQuantity)
		}
		if tea := products[1].Variants[0]; tea.CurrentQuantity != nil || tea.InventoryItemID == "" {
			t.Errorf("expected unknown quantity with item id, got %+v", tea)
		}
	})

	t.Run("without location", func(t *testing.T) {
		svc, seen := newTestShop(t, "", func(req capturedRequest) any {
			return productPage(false, "")
		})
		products, err := svc.GetProducts(ctx)
		if err != nil {
			t.Fatalf("GetProducts failed: %v", err)
		}
		if len(products) != 0 {
			t.Errorf("expected empty catalog, got %d", len(products))
		}
		if strings.Contains((*seen)[0].Query, "inventoryLevel") {
			t.Error("query without location should not ask for levels")
		}
		if _, ok := (*seen)[0].Variables["locationId"]; ok {
			t.Error("locationId variable should not be sent")
		}
	})
}

func TestShopifyApply(t *testing.T) {
	ctx := context.Background()

	t.Run("price update", func(t *testing.T) {
		svc, seen := newTestShop(t, "", func(req capturedRequest) any {
			return map[string]any{"productVariantsBulkUpdate": map[string]any{"userErrors": []any{}}}
		})
		if err := svc.ApplyPriceUpdate(ctx, "gid://shopify/Product/1", "gid://shopify/ProductVariant/11", "12.00"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		req := (*seen)[0]
		if !strings.Contains(req.Query, "productVariantsBulkUpdate") || req.Variables["productId"] != "gid://shopify/Product/1" {
			t.Errorf("unexpected request %+v", req)
		}
		variants := req.Variables["variants"].([]any)
		v := variants[0].(map[string]any)
		if v["id"] != "gid://shopify/ProductVariant/11" || v["price"] != "12.00" {
			t.Errorf("unexpected variant input %v", v)
		}
	})

	t.Run("price user errors", func(t *testing.T) {
		svc, _ := newTestShop(t, "", func(req capturedRequest) any {
			return map[string]any{"productVariantsBulkUpdate": map[string]any{"userErrors": []map[string]any{
				{"field": []string{"variants", "0", "price"}, "message": "Price must be greater than or equal to 0"},
			}}}
		})
		err := svc.ApplyPriceUpdate(ctx, "p", "v", "-1")
		var applyErr *shared.ApplyError
		if !errors.As(err, &applyErr) {
			t.Fatalf("expected ApplyError, got %v", err)
		}
		if applyErr.Code != shared.CodeUserError || applyErr.Field != "variants.0.price" {
			t.Errorf("unexpected error %+v", applyErr)
		}
		if IsUnavailable(err) {
			t.Error("user errors must not end the run")
		}
	})

	t.Run("price requires ids", func(t *testing.T) {
		svc, seen := newTestShop(t, "", func(req capturedRequest) any { return map[string]any{} })
		if err := svc.ApplyPriceUpdate(ctx, "", "v", "1"); err == nil {
			t.Error("expected error for missing product id")
		}
		if len(*seen) != 0 {
			t.Error("no request should be sent")
		}
	})

	t.Run("inventory update", func(t *testing.T) {
		svc, seen := newTestShop(t, "gid://shopify/Location/1", func(req capturedRequest) any {
			return map[string]any{"inventorySetQuantities": map[string]any{"userErrors": []any{}}}
		})
		if err := svc.ApplyInventoryUpdate(ctx, "gid://shopify/InventoryItem/111", 9); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		input := (*seen)[0].Variables["input"].(map[string]any)
		if input["name"] != "available" || input["reason"] != "correction" || input["ignoreCompareQuantity"] != true {
			t.Errorf("unexpected input %v", input)
		}
		q := input["quantities"].([]any)[0].(map[string]any)
		if q["inventoryItemId"] != "gid://shopify/InventoryItem/111" || q["locationId"] != "gid://shopify/Location/1" || q["quantity"] != float64(9) {
			t.Errorf("unexpected quantity input %v", q)
		}
	})

	t.Run("inventory without location", func(t *testing.T) {
		svc, seen := newTestShop(t, "", func(req capturedRequest) any { return map[string]any{} })
		err := svc.ApplyInventoryUpdate(ctx, "item", 1)
		if !errors.Is(err, shared.ErrLocationNotFound) {
			t.Errorf("expected ErrLocationNotFound, got %v", err)
		}
		if len(*seen) != 0 {
			t.Error("no request should be sent")
		}
	})
}

func TestShopifyAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("locations", func(t *testing.T) {
		svc, seen := newTestShop(t, "", func(req capturedRequest) any {
			if req.Variables["after"] == nil {
				return map[string]any{"locations": map[string]any{
					"pageInfo": map[string]any{"hasNextPage": true, "endCursor": "l1"},
					"nodes":    []map[string]any{{"id": "gid://shopify/Location/1", "name": "Shop", "isActive": true}},
				}}
			}
			return map[string]any{"locations": map[string]any{
				"pageInfo": map[string]any{"hasNextPage": false},
				"nodes":    []map[string]any{{"id": "gid://shopify/Location/2", "name": "Warehouse", "isActive": false}},
			}}
		})

		locations, err := svc.Locations(ctx)
		if err != nil {
			t.Fatalf("Locations failed: %v", err)
		}
		if len(locations) != 2 || len(*seen) != 2 {
			t.Fatalf("expected 2 locations over 2 pages, got %d over %d", len(locations), len(*seen))
		}
		if !locations[0].IsActive || locations[1].Name != "Warehouse" {
			t.Errorf("unexpected locations %+v", locations)
		}

		loc, err := svc.ResolveLocation(ctx, "Warehouse")
		if err != nil || loc.ID != "gid://shopify/Location/2" {
			t.Errorf("ResolveLocation = %+v, %v", loc, err)
		}
		if _, err := svc.ResolveLocation(ctx, "Basement"); !errors.Is(err, shared.ErrLocationNotFound) {
			t.Errorf("expected ErrLocationNotFound, got %v", err)
		}
	})

	t.Run("access scopes", func(t *testing.T) {
		svc, _ := newTestShop(t, "", func(req capturedRequest) any {
			return map[string]any{"currentAppInstallation": map[string]any{"accessScopes": []map[string]string{
				{"handle": "write_products"}, {"handle": "write_inventory"},
			}}}
		})

		scopes, err := svc.AccessScopes(ctx)
		if err != nil || len(scopes) != 2 {
			t.Fatalf("AccessScopes = %v, %v", scopes, err)
		}

		missing, err := CheckScopes(ctx, svc, RequiredScopes)
		if !errors.Is(err, shared.ErrMissingAccessScopes) {
			t.Errorf("expected ErrMissingAccessScopes, got %v", err)
		}
		if len(missing) != 1 || missing[0] != "read_locations" {
			t.Errorf("expected only read_locations missing, got %v", missing)
		}
	})
}
