// Package catalog provides read-only access to product records.
package catalog

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product data")
	ErrUnavailable     = errors.New("catalog unavailable")
)

// Source fetches products. Implementations must return ErrProductNotFound
// for unknown ids.
type Source interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
}
