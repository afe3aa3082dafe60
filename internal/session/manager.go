// Package session keeps one cart store per shopper session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/persistence"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidSession = errors.New("invalid session id")

// Manager lazily creates and loads a cart.Store per session id. Stores
// persist under "cart_items:<session id>".
type Manager struct {
	backend         persistence.Backend
	logger          *zap.Logger
	notificationTTL time.Duration

	// Prevents two first requests of a session from loading it twice
	sfg singleflight.Group
	now func() time.Time

	mu     sync.Mutex
	stores map[string]*entry
}

type entry struct {
	store    *cart.Store
	lastSeen time.Time
}

func NewManager(backend persistence.Backend, logger *zap.Logger, notificationTTL time.Duration) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		backend:         backend,
		logger:          logger,
		notificationTTL: notificationTTL,
		now:             time.Now,
		stores:          make(map[string]*entry),
	}
}

// NewID issues a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like an id NewID issued.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func StorageKey(id string) string {
	return cart.DefaultKey + ":" + id
}

// Get returns the session's store, loading it from the backend on first
// use. A backend read failure is logged and the session starts empty. The
// load runs outside the manager lock.
func (m *Manager) Get(ctx context.Context, id string) (*cart.Store, error) {
	if !ValidID(id) {
		return nil, ErrInvalidSession
	}
	if s, ok := m.touch(id); ok {
		return s, nil
	}

	v, _, _ := m.sfg.Do(id, func() (interface{}, error) {
		if s, ok := m.touch(id); ok {
			return s, nil
		}

		s := cart.New(m.backend,
			notify.NewEmitter(notify.WithTTL(m.notificationTTL)),
			cart.WithKey(StorageKey(id)),
			cart.WithLogger(m.logger.With(zap.String("session_id", id))),
		)
		if err := s.Load(ctx); err != nil {
			m.logger.Error("failed to load saved cart", zap.String("session_id", id), zap.Error(err))
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if e, ok := m.stores[id]; ok {
			s.Close()
			e.lastSeen = m.now()
			return e.store, nil
		}
		m.stores[id] = &entry{store: s, lastSeen: m.now()}
		return s, nil
	})
	return v.(*cart.Store), nil
}

func (m *Manager) touch(id string) (*cart.Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.stores[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = m.now()
	return e.store, true
}

// Drop forgets the in-memory store; the persisted cart stays.
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	e, ok := m.stores[id]
	delete(m.stores, id)
	m.mu.Unlock()

	if ok {
		e.store.Close()
	}
}

// EvictIdle drops every store not used for maxIdle or longer and returns
// how many went. Persisted carts stay and reload on the next request.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*cart.Store
	for id, e := range m.stores {
		if e.lastSeen.After(cutoff) {
			continue
		}
		idle = append(idle, e.store)
		delete(m.stores, id)
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// RunEviction sweeps idle sessions every interval until ctx is done.
func (m *Manager) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(maxIdle); n > 0 {
				m.logger.Info("evicted idle sessions",
					zap.Int("evicted", n),
					zap.Int("active", m.Len()),
				)
			}
		}
	}
}

// Clear empties the session's cart whether or not it is loaded.
func (m *Manager) Clear(ctx context.Context, id string) error {
	if !ValidID(id) {
		return ErrInvalidSession
	}

	m.mu.Lock()
	e, ok := m.stores[id]
	m.mu.Unlock()

	if ok {
		e.store.ClearCart(ctx)
		return nil
	}
	if err := m.backend.Delete(ctx, StorageKey(id)); err != nil {
		return fmt.Errorf("failed to clear cart for session %s: %w", id, err)
	}
	return nil
}

// Len returns the number of loaded sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}

// Close stops every store's notification timer.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.stores {
		e.store.Close()
		delete(m.stores, id)
	}
}
