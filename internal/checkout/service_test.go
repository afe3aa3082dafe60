package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockOrderClient struct {
	result   *OrderResult
	err      error
	got      *OrderRequest
	inFlight func()
}

func (m *mockOrderClient) CreateOrder(_ context.Context, req OrderRequest) (*OrderResult, error) {
	m.got = &req
	if m.inFlight != nil {
		m.inFlight()
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func validForm() Form {
	return Form{Name: "Nguyen An", Phone: "0901234567", Address: "12 Le Loi", City: "Hue"}
}

func fieldJacket() domain.Product {
	return domain.Product{
		ID: 1, Title: "Field Jacket", Price: decimal.NewFromInt(100),
		Variants: []domain.ProductVariant{
			{ID: 11, Stock: 3, Attributes: []domain.VariantAttribute{{Name: "Color", Value: "Red"}}},
			{ID: 12, Stock: 2, Attributes: []domain.VariantAttribute{{Name: "Color", Value: "Blue"}}},
		},
	}
}

func newCart(t *testing.T) (*cart.Store, *persistence.MemoryBackend) {
	backend := persistence.NewMemoryBackend()
	s := cart.New(backend, notify.NewEmitter())
	t.Cleanup(s.Close)

	res := s.AddToCart(context.Background(), fieldJacket(), domain.Selection{Color: "Red"}, nil)
	require.True(t, res.Added)
	return s, backend
}

func TestPlaceOrder_ClearsCartOnSuccess(t *testing.T) {
	store, backend := newCart(t)
	client := &mockOrderClient{result: &OrderResult{OrderID: 7, OrderNumber: "ORD-7"}}
	svc := NewService(client, nil)

	result, err := svc.PlaceOrder(context.Background(), store, validForm())
	require.NoError(t, err)
	assert.Equal(t, "ORD-7", result.OrderNumber)

	require.NotNil(t, client.got)
	require.Len(t, client.got.Items, 1)
	assert.Equal(t, int64(1), client.got.Items[0].ProductID)
	assert.Equal(t, int64(11), *client.got.Items[0].VariantID)
	assert.Equal(t, "Red", client.got.Items[0].Color)
	assert.Equal(t, "0901234567@guest.local", client.got.CustomerEmail)

	assert.Equal(t, 0, store.Count())
	_, err = backend.Load(context.Background(), cart.DefaultKey)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestPlaceOrder_KeepsLinesAddedWhileSubmitting(t *testing.T) {
	store, backend := newCart(t)
	ctx := context.Background()
	client := &mockOrderClient{
		result: &OrderResult{OrderID: 8, OrderNumber: "ORD-8"},
		inFlight: func() {
			store.AddToCart(ctx, fieldJacket(), domain.Selection{Color: "Blue"}, nil)
			store.AddToCart(ctx, fieldJacket(), domain.Selection{Color: "Red"}, nil)
		},
	}

	_, err := NewService(client, nil).PlaceOrder(ctx, store, validForm())
	require.NoError(t, err)
	require.Len(t, client.got.Items, 1)

	items := store.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Red", items[0].SelectedColor)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, "Blue", items[1].SelectedColor)
	assert.Equal(t, 1, items[1].Quantity)

	_, err = backend.Load(ctx, cart.DefaultKey)
	assert.NoError(t, err)
}

func TestPlaceOrder_FailureKeepsCart(t *testing.T) {
	store, _ := newCart(t)
	client := &mockOrderClient{err: &RejectedError{Status: 422, Message: "out of stock"}}
	svc := NewService(client, nil)

	_, err := svc.PlaceOrder(context.Background(), store, validForm())
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "out of stock", rejected.Message)
	assert.Equal(t, 1, store.Count())
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	store := cart.New(persistence.NewMemoryBackend(), nil)
	defer store.Close()
	client := &mockOrderClient{}

	_, err := NewService(client, nil).PlaceOrder(context.Background(), store, validForm())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, client.got)
}

func TestPlaceOrder_InvalidFormNeverCallsUpstream(t *testing.T) {
	store, _ := newCart(t)
	client := &mockOrderClient{}

	form := validForm()
	form.Phone = "12345"
	_, err := NewService(client, nil).PlaceOrder(context.Background(), store, form)
	assert.ErrorIs(t, err, ErrInvalidForm)
	assert.Nil(t, client.got)
	assert.Equal(t, 1, store.Count())
}
