package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/breaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPOrderClient_CreateOrder(t *testing.T) {
	var got OrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"order_id":42,"order_number":"ORD-42","total":430000}}`))
	}))
	defer srv.Close()

	client := NewHTTPOrderClient(srv.URL, time.Second, breaker.DefaultConfig(), nil)
	res, err := client.CreateOrder(context.Background(), BuildOrder(validForm(), nil))
	require.NoError(t, err)

	assert.Equal(t, int64(42), res.OrderID)
	assert.Equal(t, "ORD-42", res.OrderNumber)
	assert.Equal(t, "Nguyen An", got.CustomerName)
}

func TestHTTPOrderClient_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Variant 11 only has 1 left"}`))
	}))
	defer srv.Close()

	cfg := breaker.Config{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, ConsecutiveFailures: 1}
	client := NewHTTPOrderClient(srv.URL, time.Second, cfg, nil)

	for i := 0; i < 2; i++ {
		_, err := client.CreateOrder(context.Background(), BuildOrder(validForm(), nil))
		var rejected *RejectedError
		require.True(t, errors.As(err, &rejected), "rejections must not open the breaker")
		assert.Equal(t, "Variant 11 only has 1 left", rejected.Message)
	}
}

func TestHTTPOrderClient_BreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := breaker.Config{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, ConsecutiveFailures: 1}
	client := NewHTTPOrderClient(srv.URL, time.Second, cfg, nil)

	_, err := client.CreateOrder(context.Background(), BuildOrder(validForm(), nil))
	require.Error(t, err)

	_, err = client.CreateOrder(context.Background(), BuildOrder(validForm(), nil))
	assert.ErrorIs(t, err, ErrOrderServiceUnavailable)
}
