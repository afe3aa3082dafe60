package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/breaker"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var ErrOrderServiceUnavailable = errors.New("order service unavailable")

// RejectedError is a 4xx answer from the order API, for example a stock
// shortfall found during revalidation.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("order rejected (%d): %s", e.Status, e.Message)
}

// HTTPOrderClient posts orders to the upstream storefront API.
type HTTPOrderClient struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[*OrderResult]
}

func NewHTTPOrderClient(baseURL string, timeout time.Duration, cfg breaker.Config, logger *zap.Logger) *HTTPOrderClient {
	return &HTTPOrderClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb: breaker.New[*OrderResult]("orders", cfg, logger, func(err error) bool {
			var rejected *RejectedError
			return err == nil || errors.As(err, &rejected)
		}),
	}
}

func (c *HTTPOrderClient) CreateOrder(ctx context.Context, order OrderRequest) (*OrderResult, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}

	result, err := c.cb.Execute(func() (*OrderResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/orders", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("order request failed: %w", err)
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("failed to read order response: %w", err)
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, &RejectedError{Status: resp.StatusCode, Message: errorMessage(payload)}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("order service returned status %d", resp.StatusCode)
		}

		var envelope struct {
			Data *OrderResult `json:"data"`
		}
		if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Data != nil {
			return envelope.Data, nil
		}
		var out OrderResult
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, fmt.Errorf("failed to decode order response: %w", err)
		}
		return &out, nil
	})
	if breaker.IsOpen(err) {
		return nil, fmt.Errorf("%w: %w", ErrOrderServiceUnavailable, err)
	}
	return result, err
}

func errorMessage(payload []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return "request failed"
}
