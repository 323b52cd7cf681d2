package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Transactor runs a unit of work against a ScoringStore bound to one transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, store ScoringStore) error) error
}

// TransactorOption customises a GORM transactor.
type TransactorOption func(*gormTransactor)

// WithMaxAttempts bounds how often a unit of work is retried after a serialization failure.
func WithMaxAttempts(attempts int) TransactorOption {
	return func(t *gormTransactor) {
		if attempts > 0 {
			t.maxAttempts = attempts
		}
	}
}

// WithRetryHook registers a callback invoked before each retry.
func WithRetryHook(hook func(attempt int, err error)) TransactorOption {
	return func(t *gormTransactor) {
		t.onRetry = hook
	}
}

type gormTransactor struct {
	db          *gorm.DB
	maxAttempts int
	onRetry     func(attempt int, err error)
}

// NewTransactor builds a Transactor. On PostgreSQL every unit of work runs at
// SERIALIZABLE isolation so concurrent recalculations cannot interleave.
func NewTransactor(db *gorm.DB, opts ...TransactorOption) Transactor {
	t := &gormTransactor{db: db, maxAttempts: 3}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *gormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context, store ScoringStore) error) error {
	var txOpts []*sql.TxOptions
	if t.db.Dialector.Name() == "postgres" {
		txOpts = append(txOpts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}

	var err error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(ctx, NewScoringStore(tx))
		}, txOpts...)
		if err == nil || !IsSerializationFailure(err) || attempt == t.maxAttempts {
			return err
		}
		if t.onRetry != nil {
			t.onRetry(attempt, err)
		}
	}

	return err
}

// IsSerializationFailure reports whether err is a PostgreSQL serialization or
// deadlock failure that is safe to retry.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
