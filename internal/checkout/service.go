// Package checkout turns a cart into an order on the upstream API.
package checkout

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
)

// OrderClient submits orders. Stock is revalidated on the other side.
type OrderClient interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
}

// Cart is the part of the cart store checkout needs.
type Cart interface {
	Items() []domain.CartItem
	RemoveOrdered(ctx context.Context, ordered []domain.CartItem)
}

type Service struct {
	client OrderClient
	logger *zap.Logger
}

func NewService(client OrderClient, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, logger: logger}
}

// PlaceOrder submits the cart and, once the order is accepted, removes the
// submitted lines from it. A rejected order leaves the cart as it was.
func (s *Service) PlaceOrder(ctx context.Context, cart Cart, form Form) (*OrderResult, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	items := cart.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	req := BuildOrder(form, items)
	result, err := s.client.CreateOrder(ctx, req)
	if err != nil {
		s.logger.Warn("order submission failed", zap.Int("lines", len(items)), zap.Error(err))
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	cart.RemoveOrdered(ctx, items)
	s.logger.Info("order placed",
		zap.Int64("order_id", result.OrderID),
		zap.String("order_number", result.OrderNumber),
	)
	return result, nil
}
