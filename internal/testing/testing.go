// package testing holds test doubles for the sync engine and small I/O failure helpers
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/stocksync/internal/models"
)

// MockCatalog is a test double for a catalog source.
type MockCatalog struct {
	Products []models.Product
	Err      error
	Calls    int
}

func (m *MockCatalog) GetProducts(ctx context.Context) ([]models.Product, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Products, nil
}

// MockRows is a test double for a row source.
type MockRows struct {
	Data []models.CsvRow
	Err  error
}

func (m *MockRows) Rows(ctx context.Context) ([]models.CsvRow, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Data, nil
}

// AppliedCall records one call made to a [MockApplier].
type AppliedCall struct {
	Kind     string
	ID       string
	Price    string
	Quantity int
}

// MockApplier records apply calls and fails the calls whose 1-based index appears in FailOn.
type MockApplier struct {
	mu     sync.Mutex
	Calls  []AppliedCall
	FailOn map[int]error
	// OnCall runs after a call is recorded, before its result is returned.
	OnCall func(n int)
}

func (m *MockApplier) ApplyPriceUpdate(ctx context.Context, productID, variantID, price string) error {
	return m.record(AppliedCall{Kind: "price", ID: variantID, Price: price})
}

func (m *MockApplier) ApplyInventoryUpdate(ctx context.Context, inventoryItemID string, quantity int) error {
	return m.record(AppliedCall{Kind: "inventory", ID: inventoryItemID, Quantity: quantity})
}

func (m *MockApplier) record(call AppliedCall) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	n := len(m.Calls)
	hook := m.OnCall
	err := m.FailOn[n]
	m.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return err
}

// CallCount returns the number of apply calls so far.
func (m *MockApplier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// FWriter is an [io.Writer] whose every Write fails.
type FWriter struct{}

func (f *FWriter) Write(p []byte) (int, error) {
	return 0, errors.New("write failed")
}

// LimitedWriter passes writes to target until maxWrites have succeeded, then fails.
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (int, error) {
	if l.written >= l.maxWrites {
		return 0, fmt.Errorf("write %d exceeds limit of %d", l.written+1, l.maxWrites)
	}
	l.written++
	return l.target.Write(p)
}

// NewLimitedWriter returns a [LimitedWriter] that has already counted written writes.
func NewLimitedWriter(maxWrites, written int, target io.Writer) *LimitedWriter {
	return &LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper answers every request with a fixed response or error, without a server.
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if m.response != nil && m.response.Request == nil {
		m.response.Request = req
	}
	return m.response, m.err
}

// FCloser is a response body that fails on Read.
type FCloser struct{}

func (f *FCloser) Read(p []byte) (int, error) { return 0, errors.New("read failed") }
func (f *FCloser) Close() error               { return nil }

// AssertFileExists fails t unless path exists and is a regular file.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	assertStat(t, path, false)
}

// AssertDirExists fails t unless path exists and is a directory.
func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	assertStat(t, path, true)
}

func assertStat(t *testing.T, path string, dir bool) {
	t.Helper()
	info, err := os.Stat(path)
	switch {
	case err != nil:
		t.Errorf("stat %s: %v", path, err)
	case info.IsDir() != dir:
		t.Errorf("%s: expected directory=%v, got %v", path, dir, info.IsDir())
	}
}

// MustReadFile returns the contents of path or stops the test.
func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(content)
}
