package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/breaker"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/variant"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxResponseSize = 4 << 20

// HTTPSource reads products from the upstream storefront REST API.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

func WithBreakerConfig(cfg breaker.Config) HTTPOption {
	return func(s *HTTPSource) {
		s.cb = newCatalogBreaker(cfg, s.logger)
	}
}

func NewHTTPSource(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...HTTPOption) *HTTPSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
	s.cb = newCatalogBreaker(breaker.DefaultConfig(), logger)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newCatalogBreaker(cfg breaker.Config, logger *zap.Logger) *gobreaker.CircuitBreaker[[]byte] {
	return breaker.New[[]byte]("catalog", cfg, logger, func(err error) bool {
		return err == nil || errors.Is(err, ErrProductNotFound)
	})
}

func (s *HTTPSource) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	body, err := s.fetch(ctx, fmt.Sprintf("/api/products/%d", id))
	if err != nil {
		return nil, err
	}

	var p domain.Product
	if err := decodeEnvelope(body, &p); err != nil {
		return nil, fmt.Errorf("%w: product %d: %w", ErrInvalidProduct, id, err)
	}
	if err := variant.ValidateVariants(p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}
	return &p, nil
}

func (s *HTTPSource) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	body, err := s.fetch(ctx, "/api/products")
	if err != nil {
		return nil, err
	}

	var products []*domain.Product
	if err := decodeEnvelope(body, &products); err != nil {
		return nil, fmt.Errorf("%w: product list: %w", ErrInvalidProduct, err)
	}

	valid := products[:0]
	for _, p := range products {
		if p == nil {
			continue
		}
		if err := variant.ValidateVariants(*p); err != nil {
			s.logger.Warn("skipping invalid product", zap.Int64("product_id", p.ID), zap.Error(err))
			continue
		}
		valid = append(valid, p)
	}
	return valid, nil
}

func (s *HTTPSource) fetch(ctx context.Context, path string) ([]byte, error) {
	body, err := s.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request %s failed: %w", path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrProductNotFound
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("request %s: upstream returned status %d", path, resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	})
	if breaker.IsOpen(err) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return body, err
}

// decodeEnvelope accepts both {"data": ...} and a bare payload.
func decodeEnvelope(body []byte, dst any) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		return json.Unmarshal(envelope.Data, dst)
	}
	return json.Unmarshal(body, dst)
}
