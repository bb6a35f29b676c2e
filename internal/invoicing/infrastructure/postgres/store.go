package postgres

import (
	"context"
	"database/sql"
	"errors"

	invoicing "stewardship-cloud/internal/invoicing/domain"
	payments "stewardship-cloud/internal/payments/domain"
	paymentspg "stewardship-cloud/internal/payments/infrastructure/postgres"
)

// Store wires the invoicing repositories and the per-participant unit of work.
type Store struct {
	db *sql.DB
}

// NewStore constructs a store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Documents returns a non-transactional document repository.
func (s *Store) Documents() invoicing.DocumentRepository { return NewDocumentRepository(s.db) }

// Do runs fn in one transaction covering documents and facts.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx invoicing.Tx) error) error {
	if s == nil || s.db == nil {
		return errors.New("invoicing store: nil db")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, txStore{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (t txStore) Documents() invoicing.DocumentRepository { return NewDocumentRepository(t.tx) }
func (t txStore) Facts() payments.FactRepository          { return paymentspg.NewTxStore(t.tx).Facts() }
