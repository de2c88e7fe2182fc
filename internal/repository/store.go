package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxStore is the relational store consumed by ConcertRepository.
type TxStore interface {
	// Queries returns the non-transactional query set.
	Queries() Querier
	// RunInTx executes fn in one transaction, re-running it on transient failures.
	RunInTx(ctx context.Context, fn func(q Querier) error) error
	// Close releases the underlying connections.
	Close() error
}

// Store provides access to queries and transaction scoping over a pgx connection pool.
type Store struct {
	db        *pgxpool.Pool
	queries   *Queries
	retry     RetryPolicy
	txOptions pgx.TxOptions
	closeOnce sync.Once
}

// NewStore creates a store wrapper around a pgx connection pool. Transactions run at
// serializable isolation so concurrent writers surface as retryable serialization failures.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		db:        db,
		queries:   New(db),
		retry:     DefaultRetryPolicy(),
		txOptions: pgx.TxOptions{IsoLevel: pgx.Serializable},
	}
}

// WithRetryPolicy replaces the execution strategy used by RunInTx.
func (s *Store) WithRetryPolicy(p RetryPolicy) *Store {
	s.retry = p
	return s
}

// WithIsolation overrides the transaction isolation level.
func (s *Store) WithIsolation(level pgx.TxIsoLevel) *Store {
	s.txOptions.IsoLevel = level
	return s
}

func (s *Store) Queries() Querier {
	return s.queries
}

func (s *Store) RunInTx(ctx context.Context, fn func(q Querier) error) error {
	return s.retry.Do(ctx, func(ctx context.Context) error {
		return s.runOnce(ctx, fn)
	})
}

func (s *Store) runOnce(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTx(ctx, s.txOptions)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping checks that the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the pool. Later calls are no-ops.
func (s *Store) Close() error {
	s.closeOnce.Do(s.db.Close)
	return nil
}
