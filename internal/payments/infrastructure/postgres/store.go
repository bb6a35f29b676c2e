package postgres

import (
	"context"
	"database/sql"
	"errors"

	payments "stewardship-cloud/internal/payments/domain"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Store wires the Postgres repositories and the unit of work.
type Store struct {
	db *sql.DB
}

// NewStore constructs a store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Batches returns the batch repository.
func (s *Store) Batches() *BatchRepository { return NewBatchRepository(s.db) }

// Facts returns a non-transactional fact repository.
func (s *Store) Facts() payments.FactRepository { return NewFactRepository(s.db) }

// Forecasts returns a non-transactional forecast repository.
func (s *Store) Forecasts() payments.ForecastRepository { return NewForecastRepository(s.db) }

// Do runs fn in one transaction.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, store payments.Store) error) error {
	if s == nil || s.db == nil {
		return errors.New("payments store: nil db")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, TxStore{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// TxStore binds the repositories to one transaction.
type TxStore struct {
	tx DBTX
}

// NewTxStore binds repositories to an existing transaction.
func NewTxStore(tx DBTX) TxStore { return TxStore{tx: tx} }

// Facts returns the transactional fact repository.
func (t TxStore) Facts() payments.FactRepository { return NewFactRepository(t.tx) }

// Forecasts returns the transactional forecast repository.
func (t TxStore) Forecasts() payments.ForecastRepository { return NewForecastRepository(t.tx) }
