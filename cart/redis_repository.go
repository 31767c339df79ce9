package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goflare.io/storefront/models"
)

var _ Repository = (*redisRepository)(nil)

// redisCmdable is the part of redis.Cmdable the ledger needs.
type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type redisRepository struct {
	client redisCmdable
	key    string
	logger *zap.Logger
}

// NewRedisRepository stores the encoded ledger under key with no expiry.
func NewRedisRepository(client redisCmdable, key string, logger *zap.Logger) Repository {
	if key == "" {
		key = DefaultStorageKey
	}
	return &redisRepository{
		client: client,
		key:    key,
		logger: logger,
	}
}

func (r *redisRepository) Load(ctx context.Context) (models.CartLedger, error) {
	payload, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.NewCartLedger(), nil
	}
	if err != nil {
		r.logger.Error("Failed to get cart ledger", zap.String("key", r.key), zap.Error(err))
		return nil, storageError("load", err)
	}

	return decodePayload(payload, r.logger), nil
}

func (r *redisRepository) Save(ctx context.Context, ledger models.CartLedger) error {
	payload, err := Encode(ledger)
	if err != nil {
		return storageError("save", err)
	}

	// SET 為單一指令，讀者不會看到寫到一半的資料
	if err = r.client.Set(ctx, r.key, payload, 0).Err(); err != nil {
		r.logger.Error("Failed to set cart ledger", zap.String("key", r.key), zap.Error(err))
		return storageError("save", err)
	}

	return nil
}
