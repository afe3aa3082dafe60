package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/persistence"
	"github.com/fjod/go_cart/storefront/internal/session"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap/zaptest"
	"gotest.tools/v3/assert"
)

type recordingClearer struct {
	m       sync.Mutex
	cleared []string
	err     error
}

func (r *recordingClearer) Clear(_ context.Context, id string) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	r.cleared = append(r.cleared, id)
	return nil
}

func newTestPoller(t *testing.T, carts CartClearer) *Poller {
	return &Poller{carts: carts, logger: zaptest.NewLogger(t)}
}

func TestHandle_OrderCompletedClearsSession(t *testing.T) {
	carts := &recordingClearer{}
	p := newTestPoller(t, carts)

	err := p.handle(context.Background(), []byte(`{"event":"order_completed","session_id":"abc","order_id":7}`))
	assert.NilError(t, err)
	assert.DeepEqual(t, carts.cleared, []string{"abc"})
}

func TestHandle_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"not json", `{`, ErrMalformedMessage},
		{"other event", `{"event":"order_cancelled","session_id":"abc"}`, ErrIgnoredEvent},
		{"missing event", `{"session_id":"abc"}`, ErrIgnoredEvent},
		{"missing session", `{"event":"order_completed"}`, ErrMalformedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			carts := &recordingClearer{}
			p := newTestPoller(t, carts)

			err := p.handle(context.Background(), []byte(tt.payload))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, len(carts.cleared), 0)
		})
	}
}

func TestHandle_ClearFailure(t *testing.T) {
	boom := errors.New("backend down")
	p := newTestPoller(t, &recordingClearer{err: boom})

	err := p.handle(context.Background(), []byte(`{"event":"order_completed","session_id":"abc"}`))
	assert.ErrorIs(t, err, boom)
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestPoller_Run(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	brokers, cleanupKafka := setupKafka(t)
	defer cleanupKafka()
	createTopic(t, brokers, DefaultTopic)

	backend := persistence.NewMemoryBackend()
	sessions := session.NewManager(backend, nil, time.Second)
	defer sessions.Close()

	id := session.NewID()
	store, err := sessions.Get(ctx, id)
	require.NoError(t, err)
	store.AddToCart(ctx, domain.Product{ID: 1, Title: "Cap", Price: decimal.NewFromInt(10)}, domain.Selection{}, nil)
	require.Equal(t, 1, store.Count())

	p := NewPoller(sessions, zaptest.NewLogger(t), DefaultTopic, DefaultGroupID, brokers)
	defer p.Close()

	payload, err := json.Marshal(map[string]interface{}{
		"event":      EventOrderCompleted,
		"session_id": id,
		"order_id":   42,
	})
	require.NoError(t, err)

	w := &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers),
		Topic:                  DefaultTopic,
		Balancer:               &kafkaGo.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	err = w.WriteMessages(ctx, kafkaGo.Message{Key: []byte(id), Value: payload})
	require.NoError(t, err)
	w.Close()

	go p.Run(ctx)
	require.Eventually(t, func() bool {
		return store.Count() == 0
	}, 15*time.Second, 500*time.Millisecond)

	_, err = backend.Load(ctx, session.StorageKey(id))
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}
