package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/persistence"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type CatalogMock struct {
	products map[int64]domain.Product
	err      error
}

func (m CatalogMock) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (m CatalogMock) ListProducts(context.Context) ([]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*domain.Product, 0, len(m.products))
	for id := int64(1); id <= int64(len(m.products)); id++ {
		if p, ok := m.products[id]; ok {
			out = append(out, &p)
		}
	}
	return out, nil
}

type OrderClientMock struct {
	mu     sync.Mutex
	result *checkout.OrderResult
	err    error
	got    []checkout.OrderRequest
}

func (m *OrderClientMock) CreateOrder(_ context.Context, req checkout.OrderRequest) (*checkout.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func fieldJacket() domain.Product {
	return domain.Product{
		ID:       1,
		Title:    "Field Jacket",
		Category: "outerwear",
		Price:    decimal.NewFromInt(450000),
		Colors:   []string{"Red", "Blue"},
		Sizes:    []string{"M", "L"},
		Variants: []domain.ProductVariant{
			{ID: 11, Stock: 3, Attributes: []domain.VariantAttribute{{Name: "Color", Value: "Red"}, {Name: "Size", Value: "M"}}},
			{ID: 12, Stock: 0, Attributes: []domain.VariantAttribute{{Name: "Color", Value: "Red"}, {Name: "Size", Value: "L"}}},
			{ID: 14, Stock: 4, Attributes: []domain.VariantAttribute{{Name: "Màu sắc", Value: "Blue"}, {Name: "Kích thước", Value: "L"}}},
		},
	}
}

func unitBadge() domain.Product {
	return domain.Product{
		ID:         2,
		Title:      "Unit Badge",
		Category:   "accessories",
		Price:      decimal.NewFromInt(25000),
		Attributes: map[string][]string{"Branch": {"Navy", "Army"}},
		Variants: []domain.ProductVariant{
			{ID: 31, Stock: 10, Attributes: []domain.VariantAttribute{{Name: "Branch", Value: "Navy"}}},
			{ID: 32, Stock: 0, Attributes: []domain.VariantAttribute{{Name: "Branch", Value: "Army"}}},
		},
	}
}

type testEnv struct {
	handler  http.Handler
	backend  *persistence.MemoryBackend
	sessions *session.Manager
	orders   *OrderClientMock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	source := CatalogMock{products: map[int64]domain.Product{1: fieldJacket(), 2: unitBadge()}}
	backend := persistence.NewMemoryBackend()
	sessions := session.NewManager(backend, logger, time.Second)
	t.Cleanup(sessions.Close)

	orders := &OrderClientMock{result: &checkout.OrderResult{OrderID: 42, OrderNumber: "ORD-42", Total: decimal.NewFromInt(930000)}}

	router := NewRouter(Handlers{
		Products: NewProductHandler(source, 5*time.Second, logger),
		Cart:     NewCartHandler(sessions, source, 5*time.Second, logger),
		Checkout: NewCheckoutHandler(sessions, checkout.NewService(orders, logger), 5*time.Second, logger),
	}, 10*time.Second)

	return &testEnv{handler: router, backend: backend, sessions: sessions, orders: orders}
}

// do sends a request as the given session; an empty sessionID sends none.
func (e *testEnv) do(t *testing.T, method, path string, body any, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}
