package hldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.ntppool.org/common/logger"
)

type QuerierTx interface {
	Querier

	Begin(ctx context.Context) (QuerierTx, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// InTx reports whether the querier runs inside an open transaction
	InTx() bool
}

type Beginner interface {
	BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
}

type Tx interface {
	Commit() error
	Rollback() error
}

func (q *Queries) Begin(ctx context.Context) (QuerierTx, error) {
	b, ok := q.db.(Beginner)
	if !ok {
		return nil, fmt.Errorf("nested transactions are not supported")
	}
	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return q.WithTx(tx), nil
}

func (q *Queries) Commit(ctx context.Context) error {
	tx, ok := q.db.(Tx)
	if !ok {
		// Commit called on Queries with the pool, so treat as already committed
		return sql.ErrTxDone
	}
	return tx.Commit()
}

func (q *Queries) Rollback(ctx context.Context) error {
	tx, ok := q.db.(Tx)
	if !ok {
		return sql.ErrTxDone
	}
	return tx.Rollback()
}

func (q *Queries) InTx() bool {
	_, ok := q.db.(Tx)
	return ok
}

// LogRollback rolls back tx and logs if it was still active. It is meant
// to be deferred right after Begin.
func LogRollback(ctx context.Context, tx QuerierTx) {
	if tx == nil || !tx.InTx() {
		return
	}
	err := tx.Rollback(context.WithoutCancel(ctx))
	if err == nil {
		logger.FromContext(ctx).WarnContext(ctx, "transaction rollback called on an active transaction")
		return
	}
	if !errors.Is(err, sql.ErrTxDone) {
		logger.FromContext(ctx).ErrorContext(ctx, "rollback failed", "err", err)
	}
}

// WithTransaction runs fn in a transaction on q, committing if fn returns
// nil and rolling back otherwise.
func WithTransaction(ctx context.Context, q QuerierTx, fn func(ctx context.Context, tx QuerierTx) error) error {
	tx, err := q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer LogRollback(ctx, tx)

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
