package service

import (
	"context"
	"database/sql"

	"github.com/phrazzld/keepsake-api/internal/store"
)

// TxRunner executes a function atomically against the backing store. The
// store handed to fn is valid only for the duration of the call.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx store.DBTX) error) error
}

// sqlTxRunner runs the function inside a database transaction.
type sqlTxRunner struct {
	db *sql.DB
}

// NewSQLTxRunner creates a TxRunner backed by database transactions.
func NewSQLTxRunner(db *sql.DB) TxRunner {
	return &sqlTxRunner{db: db}
}

func (r *sqlTxRunner) Run(ctx context.Context, fn func(ctx context.Context, tx store.DBTX) error) error {
	return store.RunInTransaction(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, tx)
	})
}

// noTxRunner runs the function directly. Used with in-memory stores, which
// take their atomicity from their own locking.
type noTxRunner struct{}

// NewNoTxRunner creates a TxRunner that provides no transactional guarantees.
func NewNoTxRunner() TxRunner {
	return noTxRunner{}
}

func (noTxRunner) Run(ctx context.Context, fn func(ctx context.Context, tx store.DBTX) error) error {
	return fn(ctx, nil)
}
