package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/storefront/driver"
	"goflare.io/storefront/models"
)

const (
	selectLedgerSQL = `SELECT payload FROM cart_ledger WHERE storage_key = $1`
	upsertLedgerSQL = `INSERT INTO cart_ledger (storage_key, payload, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (storage_key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
)

var _ Repository = (*postgresRepository)(nil)

type postgresRepository struct {
	conn   driver.PostgresPool
	tm     *driver.TransactionManager
	key    string
	logger *zap.Logger
	now    func() time.Time
}

// NewPostgresRepository keeps the ledger as one JSONB row of cart_ledger.
func NewPostgresRepository(conn driver.PostgresPool, tm *driver.TransactionManager, key string, logger *zap.Logger) Repository {
	if key == "" {
		key = DefaultStorageKey
	}
	return &postgresRepository{
		conn:   conn,
		tm:     tm,
		key:    key,
		logger: logger,
		now:    time.Now,
	}
}

func (r *postgresRepository) Load(ctx context.Context) (models.CartLedger, error) {
	var payload []byte
	err := r.conn.QueryRow(ctx, selectLedgerSQL, r.key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NewCartLedger(), nil
	}
	if err != nil {
		r.logger.Error("Failed to get cart ledger", zap.String("key", r.key), zap.Error(err))
		return nil, storageError("load", err)
	}

	return decodePayload(payload, r.logger), nil
}

func (r *postgresRepository) Save(ctx context.Context, ledger models.CartLedger) error {
	payload, err := Encode(ledger)
	if err != nil {
		return storageError("save", err)
	}

	err = r.tm.ExecuteSerializableTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, upsertLedgerSQL, r.key, string(payload), r.now())
		return err
	})
	if err != nil {
		r.logger.Error("Failed to save cart ledger", zap.String("key", r.key), zap.Error(err))
		return storageError("save", err)
	}

	return nil
}
