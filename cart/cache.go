package cart

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"goflare.io/storefront/models"
)

// invalidateTimeout bounds the re-fetch that follows a mutation.
const invalidateTimeout = 5 * time.Second

// Listener receives the freshly loaded ledger after every invalidation.
// Listeners run on the mutating goroutine and must not mutate the cart
// synchronously.
type Listener func(ledger models.CartLedger)

// Cache serves the last known ledger to many readers and re-reads the
// repository only after an invalidation. It is owned by the application root.
type Cache struct {
	repo   Repository
	logger *zap.Logger
	group  singleflight.Group

	mu        sync.RWMutex
	ledger    models.CartLedger
	loaded    bool
	stale     bool
	gen       uint64
	version   uint64
	listeners map[uuid.UUID]Listener
}

func NewCache(repo Repository, logger *zap.Logger) *Cache {
	return &Cache{
		repo:      repo,
		logger:    logger,
		listeners: make(map[uuid.UUID]Listener),
	}
}

// Read returns a copy of the cached ledger, loading it first when the cache
// was never populated or has been invalidated.
func (c *Cache) Read(ctx context.Context) (models.CartLedger, error) {
	ledger, _, err := c.ReadVersion(ctx)
	return ledger, err
}

// ReadVersion is Read plus the Version the returned ledger was cached under.
func (c *Cache) ReadVersion(ctx context.Context) (models.CartLedger, uint64, error) {
	c.mu.RLock()
	if c.loaded && !c.stale {
		ledger, version := c.ledger.Clone(), c.version
		c.mu.RUnlock()
		return ledger, version, nil
	}
	c.mu.RUnlock()

	snap, err := c.refresh(ctx)
	if err != nil {
		return nil, 0, err
	}
	return snap.ledger, snap.version, nil
}

// Invalidate marks the cached ledger stale, re-fetches it and notifies the
// listeners. The re-fetch outlives cancellation of ctx since the write it
// follows is already durable. When it still fails the cache stays stale and
// the next Read retries.
func (c *Cache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	c.stale = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()

	snap, err := c.refresh(ctx)
	if err != nil {
		c.logger.Warn("Failed to refresh cart cache", zap.Error(err))
		return
	}

	c.notify(snap.ledger)
}

// Subscribe registers fn and returns a function that removes it.
func (c *Cache) Subscribe(fn Listener) (unsubscribe func()) {
	id := uuid.New()

	c.mu.Lock()
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Version counts successful refreshes of the cached ledger.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// refresh loads the ledger once per generation: readers arriving while a load
// of the same generation is in flight share its result, while a load started
// before an invalidation is never reused after it.
func (c *Cache) refresh(ctx context.Context) (snapshot, error) {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	v, err, _ := c.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		ledger, err := c.repo.Load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gen == gen {
			c.ledger = ledger
			c.loaded = true
			c.stale = false
			c.version++
		}
		version := c.version
		c.mu.Unlock()

		return snapshot{ledger: ledger, version: version}, nil
	})
	if err != nil {
		return snapshot{}, err
	}

	snap := v.(snapshot)
	snap.ledger = snap.ledger.Clone()
	return snap, nil
}

type snapshot struct {
	ledger  models.CartLedger
	version uint64
}

func (c *Cache) notify(ledger models.CartLedger) {
	c.mu.RLock()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.RUnlock()

	for _, fn := range listeners {
		fn(ledger.Clone())
	}
}
