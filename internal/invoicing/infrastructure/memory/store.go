package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	invoicing "stewardship-cloud/internal/invoicing/domain"
	payments "stewardship-cloud/internal/payments/domain"
	paymentsmemory "stewardship-cloud/internal/payments/infrastructure/memory"
)

// Store keeps documents in memory next to the in-memory fact store. A unit
// of work runs inside the fact store's own and rolls back both sides.
type Store struct {
	facts *paymentsmemory.Store

	mu   sync.RWMutex
	seq  int64
	docs map[string]*storedDocument
}

type storedDocument struct {
	seq int64
	doc *invoicing.Document
}

// NewStore constructs a document store bound to facts.
func NewStore(facts *paymentsmemory.Store) (*Store, error) {
	if facts == nil {
		return nil, errors.New("invoicing memory store: nil fact store")
	}
	return &Store{facts: facts, docs: make(map[string]*storedDocument)}, nil
}

// Documents returns the store as a document repository.
func (s *Store) Documents() invoicing.DocumentRepository { return s }

// Do runs fn with documents and facts, restoring both if fn fails.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx invoicing.Tx) error) error {
	return s.facts.Do(ctx, func(ctx context.Context, store payments.Store) error {
		snap := s.snapshot()
		if err := fn(ctx, txView{docs: s, facts: store.Facts()}); err != nil {
			s.restore(snap)
			return err
		}
		return nil
	})
}

type txView struct {
	docs  *Store
	facts payments.FactRepository
}

func (t txView) Documents() invoicing.DocumentRepository { return t.docs }
func (t txView) Facts() payments.FactRepository          { return t.facts }

type snapshot struct {
	seq  int64
	docs map[string]*storedDocument
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{seq: s.seq, docs: make(map[string]*storedDocument, len(s.docs))}
	for number, sd := range s.docs {
		snap.docs[number] = &storedDocument{seq: sd.seq, doc: sd.doc.Clone()}
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = snap.seq
	s.docs = snap.docs
}

// Save stores a new document. Persisted documents are immutable.
func (s *Store) Save(ctx context.Context, doc *invoicing.Document) error {
	_ = ctx
	if doc == nil || doc.Number == "" {
		return errors.New("invoicing memory store: document number required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.Number]; ok {
		return errors.New("invoicing memory store: duplicate document " + doc.Number)
	}
	s.seq++
	s.docs[doc.Number] = &storedDocument{seq: s.seq, doc: doc.Clone()}
	return nil
}

// ListByBatch returns the documents of an invoice batch in save order.
func (s *Store) ListByBatch(ctx context.Context, invoiceBatchID string) ([]*invoicing.Document, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*storedDocument
	for _, sd := range s.docs {
		if sd.doc.InvoiceBatchID == invoiceBatchID {
			matched = append(matched, sd)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	result := make([]*invoicing.Document, 0, len(matched))
	for _, sd := range matched {
		result = append(result, sd.doc.Clone())
	}
	return result, nil
}

// MarkSynced stamps the unsynced documents of a batch.
func (s *Store) MarkSynced(ctx context.Context, invoiceBatchID string, at time.Time) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sd := range s.docs {
		if sd.doc.InvoiceBatchID != invoiceBatchID || sd.doc.Synced() {
			continue
		}
		if err := sd.doc.MarkSynced(at); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
