package catalog

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"golang.org/x/sync/singleflight"
)

type cachedProduct struct {
	product   *domain.Product
	expiresAt time.Time
}

// CachedSource keeps products from another Source for a short TTL.
// Concurrent misses for the same id share one upstream fetch.
type CachedSource struct {
	next Source
	ttl  time.Duration
	now  func() time.Time

	mu       sync.RWMutex
	products map[int64]cachedProduct
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCachedSource(next Source, ttl time.Duration) *CachedSource {
	return &CachedSource{
		next:     next,
		ttl:      ttl,
		now:      time.Now,
		products: make(map[int64]cachedProduct),
	}
}

func (c *CachedSource) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if p, ok := c.lookup(id); ok {
		return p, nil
	}

	v, err, _ := c.sfg.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		if p, ok := c.lookup(id); ok {
			return p, nil
		}
		p, err := c.next.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		c.store(p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}

// ListProducts always goes to the underlying source and refreshes the
// per-product entries with the result.
func (c *CachedSource) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	v, err, _ := c.sfg.Do("list", func() (interface{}, error) {
		products, err := c.next.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			c.store(p)
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Product), nil
}

// Invalidate drops a cached product.
func (c *CachedSource) Invalidate(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

func (c *CachedSource) lookup(id int64) (*domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.products[id]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.product, true
}

func (c *CachedSource) store(p *domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = cachedProduct{product: p, expiresAt: c.now().Add(c.ttl)}
}
