// Package services defines the [Service] interface for shop backends and implements it for the Shopify Admin GraphQL API.
//
// # Transport
//
// [APIClient] posts GraphQL documents with the X-Shopify-Access-Token header.
// Requests go through a [rate.Limiter]; 429 and 5xx responses and THROTTLED
// GraphQL errors are retried with Retry-After or exponential backoff.
//
// # Error Handling
//
// Failures are reported as *[shared.ApplyError] so the executor can record a code per operation:
//   - 401/403 and ACCESS_DENIED wrap [shared.ErrApplyUnavailable] and end a run
//   - 429 after retries wraps [shared.ErrRateLimited]
//   - 5xx after retries wraps [shared.ErrServiceUnavailable]
//   - mutation userErrors use [shared.CodeUserError] and never end a run
//
// # Catalog
//
// [ShopifyService.GetProducts] pages through products by cursor and, when a location is
// configured, reads the available quantity of every inventory item at that location.
package services
