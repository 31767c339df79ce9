package cart

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"goflare.io/storefront/models"
)

// DefaultStorageKey is the single process-global key holding the ledger.
const DefaultStorageKey = "cart"

var _ Repository = (*memoryRepository)(nil)

// Repository persists the whole ledger as one unit.
type Repository interface {
	// Load returns the persisted ledger, or an empty one when nothing is
	// stored or the payload cannot be decoded. Only I/O failures are returned.
	Load(ctx context.Context) (models.CartLedger, error)
	// Save replaces the persisted ledger.
	Save(ctx context.Context, ledger models.CartLedger) error
}

type memoryRepository struct {
	mu      sync.RWMutex
	payload []byte
	logger  *zap.Logger
}

func NewMemoryRepository(logger *zap.Logger) Repository {
	return NewMemoryRepositoryFromPayload(nil, logger)
}

// NewMemoryRepositoryFromPayload seeds the repository with an already encoded payload.
func NewMemoryRepositoryFromPayload(payload []byte, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &memoryRepository{
		payload: payload,
		logger:  logger,
	}
}

func (r *memoryRepository) Load(ctx context.Context) (models.CartLedger, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageError("load", err)
	}

	r.mu.RLock()
	payload := r.payload
	r.mu.RUnlock()

	return decodePayload(payload, r.logger), nil
}

func (r *memoryRepository) Save(ctx context.Context, ledger models.CartLedger) error {
	if err := ctx.Err(); err != nil {
		return storageError("save", err)
	}

	payload, err := Encode(ledger)
	if err != nil {
		return storageError("save", err)
	}

	r.mu.Lock()
	r.payload = payload
	r.mu.Unlock()

	return nil
}
