package cart

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"goflare.io/storefront/models"
)

var _ Repository = (*fileRepository)(nil)

type fileRepository struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewFileRepository keeps the ledger in a single JSON file on local storage.
func NewFileRepository(path string, logger *zap.Logger) Repository {
	return &fileRepository{
		path:   path,
		logger: logger,
	}
}

func (r *fileRepository) Load(ctx context.Context) (models.CartLedger, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageError("load", err)
	}

	r.mu.Lock()
	payload, err := os.ReadFile(r.path)
	r.mu.Unlock()

	if errors.Is(err, os.ErrNotExist) {
		return models.NewCartLedger(), nil
	}
	if err != nil {
		r.logger.Error("Failed to read cart file", zap.String("path", r.path), zap.Error(err))
		return nil, storageError("load", err)
	}

	return decodePayload(payload, r.logger), nil
}

// Save writes to a temp file in the same directory and renames it over the
// ledger so readers never observe a partial payload.
func (r *fileRepository) Save(ctx context.Context, ledger models.CartLedger) error {
	if err := ctx.Err(); err != nil {
		return storageError("save", err)
	}

	payload, err := Encode(ledger)
	if err != nil {
		return storageError("save", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err = r.writeAtomic(payload); err != nil {
		r.logger.Error("Failed to write cart file", zap.String("path", r.path), zap.Error(err))
		return storageError("save", err)
	}

	return nil
}

func (r *fileRepository) writeAtomic(payload []byte) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create cart directory")
	}

	tmp, err := os.CreateTemp(dir, ".cart-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err = tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync temp file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}

	if err = os.Rename(tmpName, r.path); err != nil {
		return errors.Wrap(err, "rename temp file")
	}
	return nil
}
