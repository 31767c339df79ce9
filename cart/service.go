package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goflare.io/storefront/models"
	"goflare.io/storefront/models/enum"
)

var _ Service = (*service)(nil)

// Service is the only writer of the ledger. Every mutation loads the latest
// persisted ledger, saves the full result and only then invalidates the cache.
type Service interface {
	Read(ctx context.Context) (models.CartLedger, error)
	Subscribe(fn Listener) (unsubscribe func())

	// SetQuantity removes the entry when count is 0 and upserts it otherwise,
	// replacing the stored unit price. Callers clamp count to >= 0.
	SetQuantity(ctx context.Context, id models.ProductID, count int64, unitPrice decimal.Decimal) (models.CartLedger, error)
	Increment(ctx context.Context, id models.ProductID, unitPrice decimal.Decimal) (models.CartLedger, error)
	Decrement(ctx context.Context, id models.ProductID, unitPrice decimal.Decimal) (models.CartLedger, error)
	Remove(ctx context.Context, id models.ProductID) (models.CartLedger, error)

	// Replace overwrites the whole ledger, e.g. after checkout.
	Replace(ctx context.Context, ledger models.CartLedger) (models.CartLedger, error)
	Clear(ctx context.Context) error
}

type service struct {
	// mu serializes mutations so each one starts from the last saved ledger.
	mu sync.Mutex

	repo    Repository
	cache   *Cache
	metrics *Metrics
	logger  *zap.Logger
}

func NewService(repo Repository, cache *Cache, metrics *Metrics, logger *zap.Logger) Service {
	return &service{
		repo:    repo,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *service) Read(ctx context.Context) (models.CartLedger, error) {
	return s.cache.Read(ctx)
}

func (s *service) Subscribe(fn Listener) func() {
	return s.cache.Subscribe(fn)
}

func (s *service) SetQuantity(ctx context.Context, id models.ProductID, count int64, unitPrice decimal.Decimal) (models.CartLedger, error) {
	return s.mutate(ctx, enum.ChangeReasonSet, func(ledger models.CartLedger) {
		setQuantity(ledger, id, count, unitPrice)
	})
}

func (s *service) Increment(ctx context.Context, id models.ProductID, unitPrice decimal.Decimal) (models.CartLedger, error) {
	return s.mutate(ctx, enum.ChangeReasonIncrement, func(ledger models.CartLedger) {
		setQuantity(ledger, id, ledger.Count(id)+1, unitPrice)
	})
}

func (s *service) Decrement(ctx context.Context, id models.ProductID, unitPrice decimal.Decimal) (models.CartLedger, error) {
	return s.mutate(ctx, enum.ChangeReasonDecrement, func(ledger models.CartLedger) {
		setQuantity(ledger, id, max(ledger.Count(id)-1, 0), unitPrice)
	})
}

func (s *service) Remove(ctx context.Context, id models.ProductID) (models.CartLedger, error) {
	return s.mutate(ctx, enum.ChangeReasonSet, func(ledger models.CartLedger) {
		delete(ledger, id)
	})
}

func (s *service) Replace(ctx context.Context, replacement models.CartLedger) (models.CartLedger, error) {
	clean, dropped := Sanitize(replacement)
	if dropped > 0 {
		s.logger.Debug("Dropped invalid entries from replacement ledger", zap.Int("dropped", dropped))
	}

	return s.mutate(ctx, enum.ChangeReasonReplace, func(ledger models.CartLedger) {
		clear(ledger)
		for id, entry := range clean {
			ledger[id] = entry
		}
	})
}

func (s *service) Clear(ctx context.Context) error {
	_, err := s.mutate(ctx, enum.ChangeReasonClear, func(ledger models.CartLedger) {
		clear(ledger)
	})
	return err
}

func (s *service) mutate(ctx context.Context, reason enum.ChangeReason, apply func(models.CartLedger)) (models.CartLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. 讀取最新持久化的購物車
	ledger, err := s.repo.Load(ctx)
	if err != nil {
		s.metrics.IncFailure("load")
		return nil, err
	}

	// 2. 套用變更
	apply(ledger)

	// 3. 寫回整個購物車，失敗時不更新快取
	if err = s.repo.Save(ctx, ledger); err != nil {
		s.metrics.IncFailure("save")
		s.logger.Error("Failed to persist cart mutation", zap.String("reason", string(reason)), zap.Error(err))
		return nil, err
	}
	s.metrics.IncMutation(reason)

	// 4. 通知快取重新讀取
	s.cache.Invalidate(ctx)

	return ledger.Clone(), nil
}

func setQuantity(ledger models.CartLedger, id models.ProductID, count int64, unitPrice decimal.Decimal) {
	if count <= 0 {
		delete(ledger, id)
		return
	}
	ledger[id] = models.CartEntry{Count: count, UnitPrice: unitPrice}
}
