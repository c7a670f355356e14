// Admin GraphQL transport shared by the shop clients
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stocksync/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultMaxRetries = 3
	defaultMaxWait    = 30 * time.Second
	backoffBase       = time.Second
	backoffFactor     = 1.5
)

// APIClient posts GraphQL documents to a single Admin API endpoint.
//
// Requests are throttled by a token bucket. Responses with status 429 or 5xx, and
// GraphQL THROTTLED errors, are retried up to maxRetries times, honoring Retry-After.
type APIClient struct {
	endpoint   string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	maxWait    time.Duration
	logger     *log.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// ClientOption configures an [APIClient].
type ClientOption func(*APIClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(a *APIClient) { a.httpClient = c }
}

// WithRateLimit caps requests per second. Zero or less disables throttling.
func WithRateLimit(rps float64) ClientOption {
	return func(a *APIClient) {
		if rps <= 0 {
			a.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		a.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithMaxRetries sets how often a throttled or failing request is retried.
func WithMaxRetries(n int) ClientOption {
	return func(a *APIClient) {
		if n >= 0 {
			a.maxRetries = n
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) ClientOption {
	return func(a *APIClient) { a.logger = l }
}

// WithEndpoint overrides the GraphQL endpoint derived from the shop config.
func WithEndpoint(endpoint string) ClientOption {
	return func(a *APIClient) { a.endpoint = endpoint }
}

// NewAPIClient creates a client for endpoint authenticated with an Admin API access token.
func NewAPIClient(endpoint, token string, opts ...ClientOption) *APIClient {
	a := &APIClient{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 1),
		maxRetries: defaultMaxRetries,
		maxWait:    defaultMaxWait,
		logger:     shared.NewLogger(nil),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// APIResponse is a raw HTTP response from the endpoint.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// GraphQLError is a top-level error entry of a GraphQL response.
type GraphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// UserError is a mutation-level validation error.
type UserError struct {
	Code    string   `json:"code,omitempty"`
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// Post sends one request without retries and returns the raw response.
func (a *APIClient) Post(ctx context.Context, body []byte) (*APIResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", a.token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	a.logger.Debug("graphql response",
		"status", resp.StatusCode,
		"call_limit", resp.Header.Get("X-Shopify-Shop-Api-Call-Limit"),
		"cost", resp.Header.Get("X-Request-Cost"),
	)

	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// Do executes query with variables and decodes the data member into out.
func (a *APIClient) Do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		resp, err := a.Post(ctx, body)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return &shared.ApplyError{Code: shared.CodeNetwork, Message: err.Error(), Cause: fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)}
		}

		if retryable(resp.StatusCode) {
			if attempt >= a.maxRetries {
				return statusError(resp)
			}
			if err := a.wait(ctx, resp, attempt); err != nil {
				return err
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return statusError(resp)
		}

		var envelope graphQLResponse
		if err := json.Unmarshal(resp.Body, &envelope); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}

		if len(envelope.Errors) > 0 {
			if throttled(envelope.Errors) && attempt < a.maxRetries {
				if err := a.wait(ctx, resp, attempt); err != nil {
					return err
				}
				continue
			}
			return graphQLErrors(envelope.Errors)
		}

		if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
			return fmt.Errorf("%w: response has no data", shared.ErrAPIRequest)
		}
		if out != nil {
			if err := json.Unmarshal(envelope.Data, out); err != nil {
				return fmt.Errorf("%w: failed to decode data: %v", shared.ErrAPIRequest, err)
			}
		}
		return nil
	}
}

func (a *APIClient) wait(ctx context.Context, resp *APIResponse, attempt int) error {
	d := retryDelay(resp.Headers.Get("Retry-After"), attempt)
	if d > a.maxWait {
		d = a.maxWait
	}
	a.logger.Warn("shop API throttled, retrying", "status", resp.StatusCode, "wait", d, "attempt", attempt+1, "max", a.maxRetries)
	return a.sleep(ctx, d)
}

// retryDelay prefers Retry-After (seconds, at least one) and falls back to exponential backoff.
func retryDelay(header string, attempt int) time.Duration {
	if header != "" {
		if secs, err := strconv.ParseFloat(strings.TrimSpace(header), 64); err == nil {
			return max(time.Duration(secs*float64(time.Second)), time.Second)
		}
	}
	return time.Duration(float64(backoffBase) * math.Pow(backoffFactor, float64(attempt)))
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

func throttled(errs []GraphQLError) bool {
	for _, e := range errs {
		if e.Extensions.Code == "THROTTLED" {
			return true
		}
	}
	return false
}

func statusError(resp *APIResponse) error {
	preview := string(resp.Body)
	if len(preview) > 200 {
		preview = preview[:200]
	}
	msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(preview))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &shared.ApplyError{Code: shared.CodeUnauthorized, Message: msg, Cause: fmt.Errorf("%w: access token rejected", shared.ErrApplyUnavailable)}
	case resp.StatusCode == http.StatusForbidden:
		return &shared.ApplyError{Code: shared.CodeForbidden, Message: msg, Cause: fmt.Errorf("%w: access denied", shared.ErrApplyUnavailable)}
	case resp.StatusCode == http.StatusNotFound:
		return &shared.ApplyError{Code: shared.CodeNotFound, Message: msg, Cause: shared.ErrAPIRequest}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &shared.ApplyError{Code: shared.CodeRateLimit, Message: msg, Cause: shared.ErrRateLimited}
	case resp.StatusCode >= 500:
		return &shared.ApplyError{Code: shared.CodeServerError, Message: msg, Cause: shared.ErrServiceUnavailable}
	default:
		return &shared.ApplyError{Code: shared.CodeApplyFailed, Message: msg, Cause: shared.ErrAPIRequest}
	}
}

func graphQLErrors(errs []GraphQLError) error {
	msgs := make([]string, 0, len(errs))
	denied := false
	for _, e := range errs {
		msgs = append(msgs, e.Message)
		if e.Extensions.Code == "ACCESS_DENIED" {
			denied = true
		}
	}
	msg := strings.Join(msgs, "; ")

	if denied {
		return &shared.ApplyError{Code: shared.CodeForbidden, Message: msg, Cause: fmt.Errorf("%w: %s", shared.ErrApplyUnavailable, msg)}
	}
	if throttled(errs) {
		return &shared.ApplyError{Code: shared.CodeRateLimit, Message: msg, Cause: shared.ErrRateLimited}
	}
	return &shared.ApplyError{Code: shared.CodeApplyFailed, Message: msg, Cause: shared.ErrAPIRequest}
}

// userErrorsToError folds mutation user errors into one [shared.ApplyError], or nil.
func userErrorsToError(errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return &shared.ApplyError{
		Code:    shared.CodeUserError,
		Message: strings.Join(msgs, "; "),
		Field:   strings.Join(errs[0].Field, "."),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsUnavailable reports whether err means the shop rejected the credentials for good.
func IsUnavailable(err error) bool {
	return errors.Is(err, shared.ErrApplyUnavailable)
}
