package persistence

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const cacheWriteTimeout = time.Second

// CachedBackend keeps a fast cache (Redis) in front of a durable primary
// (MongoDB). Reads go to the cache first; writes go to the primary and then
// invalidate the cached copy.
type CachedBackend struct {
	primary Backend
	cache   Backend
	logger  *zap.Logger
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCachedBackend(primary, cache Backend, logger *zap.Logger) *CachedBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedBackend{
		primary: primary,
		cache:   cache,
		logger:  logger,
	}
}

func (c *CachedBackend) Load(ctx context.Context, key string) ([]byte, error) {
	v, err, _ := c.sfg.Do(key, func() (interface{}, error) {
		blob, err := c.cache.Load(ctx, key)
		if err == nil {
			return blob, nil
		}
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("cache get error", zap.String("key", key), zap.Error(err))
		}

		blob, err = c.primary.Load(ctx, key)
		if err != nil {
			return nil, err
		}

		// filled inline so a later Save's invalidation cannot be overtaken
		if err := c.cache.Save(ctx, key, blob); err != nil {
			c.logger.Warn("cache set error", zap.String("key", key), zap.Error(err))
		}
		return blob, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *CachedBackend) Save(ctx context.Context, key string, blob []byte) error {
	if err := c.primary.Save(ctx, key, blob); err != nil {
		return err
	}
	c.invalidate(key)
	return nil
}

func (c *CachedBackend) Delete(ctx context.Context, key string) error {
	if err := c.primary.Delete(ctx, key); err != nil {
		return err
	}
	c.invalidate(key)
	return nil
}

func (c *CachedBackend) invalidate(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
	defer cancel()
	if err := c.cache.Delete(ctx, key); err != nil {
		c.logger.Warn("cache invalidate error", zap.String("key", key), zap.Error(err))
	}
}
