// Package wishlist answers whether a product is marked as a favourite.
package wishlist

import (
	"context"
	"strconv"
	"sync"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goflare.io/storefront/models"
)

const DefaultKey = "wishlist"

// Checker is the read-only membership contract used by presentation code.
type Checker interface {
	IsInWishlist(ctx context.Context, id models.ProductID) (bool, error)
}

// Toggler adds and removes favourites.
type Toggler interface {
	Checker
	Add(ctx context.Context, id models.ProductID) error
	Remove(ctx context.Context, id models.ProductID) error
}

var (
	_ Toggler = (*Static)(nil)
	_ Toggler = (*Redis)(nil)
)

type Static struct {
	mu  sync.RWMutex
	ids map[models.ProductID]struct{}
}

func NewStatic(ids ...models.ProductID) *Static {
	s := &Static{ids: make(map[models.ProductID]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *Static) IsInWishlist(_ context.Context, id models.ProductID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok, nil
}

func (s *Static) Add(_ context.Context, id models.ProductID) error {
	s.mu.Lock()
	s.ids[id] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Static) Remove(_ context.Context, id models.ProductID) error {
	s.mu.Lock()
	delete(s.ids, id)
	s.mu.Unlock()
	return nil
}

type setCmdable interface {
	SIsMember(ctx context.Context, key string, member any) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
}

// Redis keeps the favourites as a redis set of product ids.
type Redis struct {
	client setCmdable
	key    string
	logger *zap.Logger
}

func NewRedis(client setCmdable, key string, logger *zap.Logger) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{
		client: client,
		key:    key,
		logger: logger,
	}
}

func (r *Redis) IsInWishlist(ctx context.Context, id models.ProductID) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, member(id)).Result()
	if err != nil {
		r.logger.Warn("Failed to check wishlist", zap.Int64("product_id", int64(id)), zap.Error(err))
		return false, errors.Wrap(err, "check wishlist")
	}
	return ok, nil
}

func (r *Redis) Add(ctx context.Context, id models.ProductID) error {
	if err := r.client.SAdd(ctx, r.key, member(id)).Err(); err != nil {
		return errors.Wrap(err, "add to wishlist")
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, id models.ProductID) error {
	if err := r.client.SRem(ctx, r.key, member(id)).Err(); err != nil {
		return errors.Wrap(err, "remove from wishlist")
	}
	return nil
}

func member(id models.ProductID) string {
	return strconv.FormatInt(int64(id), 10)
}
