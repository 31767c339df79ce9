package catalog

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"goflare.io/storefront/models"
)

var _ Lookup = (*Cached)(nil)

// Cached is a read-through cache in front of another Lookup.
type Cached struct {
	next   Lookup
	cache  *ristretto.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCached(next Lookup, ttl time.Duration, logger *zap.Logger) (*Cached, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create catalog cache")
	}
	return &Cached{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}, nil
}

func (c *Cached) GetProduct(ctx context.Context, id models.ProductID) (*models.CatalogProduct, error) {
	key := int64(id)

	// 嘗試從快取中獲取
	if v, found := c.cache.Get(key); found {
		p := v.(models.CatalogProduct)
		return &p, nil
	}

	product, err := c.next.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	// 更新快取
	if !c.cache.SetWithTTL(key, *product, 1, c.ttl) {
		c.logger.Debug("Catalog cache rejected product", zap.Int64("product_id", key))
	}

	return product, nil
}

// Invalidate drops a cached product so the next lookup reaches the catalog.
func (c *Cached) Invalidate(id models.ProductID) {
	c.cache.Del(int64(id))
}

// Wait blocks until pending cache writes are visible.
func (c *Cached) Wait() {
	c.cache.Wait()
}

func (c *Cached) Close() {
	c.cache.Close()
}
