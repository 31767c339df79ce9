// Package driver
package driver

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPool is the subset of *pgxpool.Pool the cart storage needs.
type PostgresPool interface {
	// BeginTx starts a new transaction and returns a Tx.
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)

	// QueryRow executes an SQL query and returns a single row.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row

	// Ping checks that a connection can be acquired.
	Ping(ctx context.Context) error

	// Close closes the pool and all its connections.
	Close()
}

// DB holds the driver connection pool
type DB struct {
	Pool PostgresPool

	raw *pgxpool.Pool
}

// Raw returns the concrete pool, needed by database/sql adapters.
func (db *DB) Raw() *pgxpool.Pool {
	return db.raw
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// maxOpenDbConn defines the maximum number of open driver connections.
// A single device ledger never needs more than a handful.
const maxOpenDbConn = 4

// maxDbLifetime is the maximum lifetime of a driver connection in the pool.
const maxDbLifetime = 5 * time.Minute

// ConnectSQL parses dsn, builds a bounded pool and verifies that a connection
// can be acquired before returning it.
func ConnectSQL(ctx context.Context, dsn string) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres dsn")
	}

	config.MaxConns = int32(maxOpenDbConn)
	config.MaxConnLifetime = maxDbLifetime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, "create postgres pool")
	}

	if err = testDB(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &DB{Pool: pool, raw: pool}, nil
}

// testDB pings the database through the pool
func testDB(ctx context.Context, p PostgresPool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return errors.Wrap(err, "ping postgres")
	}
	return nil
}
