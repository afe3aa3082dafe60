// Package poller clears shopper carts when the order pipeline reports a
// completed order.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultTopic   = "order-events"
	DefaultGroupID = "storefront-cart"

	EventOrderCompleted = "order_completed"
)

var (
	ErrMalformedMessage = errors.New("malformed order event")
	ErrIgnoredEvent     = errors.New("event ignored")
)

// CartClearer empties the cart of a session.
type CartClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

type orderEvent struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id"`
	OrderID   int64  `json:"order_id,omitempty"`
}

type Poller struct {
	carts  CartClearer
	reader *kafka.Reader
	logger *zap.Logger
}

func NewPoller(carts CartClearer, logger *zap.Logger, topic, groupID string, brokers ...string) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{carts: carts, reader: reader, logger: logger}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.readAndClear(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Error("error closing reader", zap.Error(err))
	}
}

func (p *Poller) readAndClear(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("error reading message", zap.Error(err))
		}
		return
	}

	err = p.handle(ctx, m.Value)
	switch {
	case err == nil:
	case errors.Is(err, ErrIgnoredEvent):
		p.logger.Debug("skipping event", zap.Int64("offset", m.Offset), zap.Error(err))
	default:
		p.logger.Warn("failed to handle order event",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
	}
}

// handle clears the cart named by one order event.
func (p *Poller) handle(ctx context.Context, value []byte) error {
	var event orderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if event.Event != EventOrderCompleted {
		return fmt.Errorf("%w: %q", ErrIgnoredEvent, event.Event)
	}
	if event.SessionID == "" {
		return fmt.Errorf("%w: missing session_id", ErrMalformedMessage)
	}

	if err := p.carts.Clear(ctx, event.SessionID); err != nil {
		return fmt.Errorf("failed to clear cart for session %s: %w", event.SessionID, err)
	}
	p.logger.Info("cleared cart after completed order",
		zap.String("session_id", event.SessionID),
		zap.Int64("order_id", event.OrderID),
	)
	return nil
}
