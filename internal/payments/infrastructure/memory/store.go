package memory

import (
	"context"
	"sort"
	"sync"

	payments "stewardship-cloud/internal/payments/domain"
)

// Store is an in-memory batch, fact and forecast store. Units of work are
// serialized and roll back by restoring a snapshot.
type Store struct {
	txMu sync.Mutex

	mu      sync.RWMutex
	seq     int64
	batches map[string]*payments.Batch
	facts   map[string]*storedFact
	headers []*payments.ForecastHeader
}

type storedFact struct {
	seq  int64
	fact *payments.TransactionFact
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		batches: make(map[string]*payments.Batch),
		facts:   make(map[string]*storedFact),
	}
}

// Facts returns the store as a fact repository.
func (s *Store) Facts() payments.FactRepository { return s }

// Forecasts returns the store as a forecast repository.
func (s *Store) Forecasts() payments.ForecastRepository { return s }

// Do runs fn against the store, restoring the prior state if fn fails.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, store payments.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.Snapshot()
	if err := fn(ctx, s); err != nil {
		s.Restore(snap)
		return err
	}
	return nil
}

// Snapshot captures fact and forecast state. Batches are outside units of
// work and are not captured.
type Snapshot struct {
	seq     int64
	facts   map[string]*storedFact
	headers []*payments.ForecastHeader
}

// Snapshot copies the current fact and forecast state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		seq:     s.seq,
		facts:   make(map[string]*storedFact, len(s.facts)),
		headers: append([]*payments.ForecastHeader(nil), s.headers...),
	}
	for id, sf := range s.facts {
		snap.facts[id] = &storedFact{seq: sf.seq, fact: sf.fact.Clone()}
	}
	return snap
}

// Restore replaces fact and forecast state with a snapshot.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = snap.seq
	s.facts = snap.facts
	s.headers = snap.headers
}

// Create stores a new batch.
func (s *Store) Create(ctx context.Context, batch *payments.Batch) error {
	_ = ctx
	if batch == nil {
		return payments.ErrBatchNotFound
	}
	s.mu.Lock()
	s.batches[batch.ID()] = batch.Clone()
	s.mu.Unlock()
	return nil
}

// Update overwrites a batch.
func (s *Store) Update(ctx context.Context, batch *payments.Batch) error {
	_ = ctx
	if batch == nil {
		return payments.ErrBatchNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.ID()]; !ok {
		return payments.ErrBatchNotFound
	}
	s.batches[batch.ID()] = batch.Clone()
	return nil
}

// Get loads a batch.
func (s *Store) Get(ctx context.Context, id string) (*payments.Batch, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, payments.ErrBatchNotFound
	}
	return b.Clone(), nil
}

// Save inserts or overwrites a fact.
func (s *Store) Save(ctx context.Context, fact *payments.TransactionFact) error {
	_ = ctx
	if fact == nil {
		return payments.ErrNilFact
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.facts[fact.ID]; ok {
		existing.fact = fact.Clone()
		return nil
	}
	s.seq++
	s.facts[fact.ID] = &storedFact{seq: s.seq, fact: fact.Clone()}
	return nil
}

// MarkStale flips matching live facts of other batches to STALE.
func (s *Store) MarkStale(ctx context.Context, key payments.DimensionalKey, excludeBatchID string, live payments.FactStatus) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sf := range s.facts {
		f := sf.fact
		if f.BatchID == excludeBatchID || f.Status != live || !key.Matches(f) {
			continue
		}
		f.Status = payments.FactStale
		n++
	}
	return n, nil
}

// List returns facts matching the filter in insertion order.
func (s *Store) List(ctx context.Context, filter payments.FactFilter) ([]*payments.TransactionFact, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*storedFact
	for _, sf := range s.facts {
		if matches(filter, sf.fact) {
			matched = append(matched, sf)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	result := make([]*payments.TransactionFact, 0, len(matched))
	for _, sf := range matched {
		result = append(result, sf.fact.Clone())
	}
	return result, nil
}

// UpdateStatus moves facts currently in one of from to status.
func (s *Store) UpdateStatus(ctx context.Context, ids []string, from []payments.FactStatus, status payments.FactStatus) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range ids {
		sf, ok := s.facts[id]
		if !ok || !statusIn(sf.fact.Status, from) {
			continue
		}
		sf.fact.Status = status
		n++
	}
	return n, nil
}

// Invoiced reports whether an INVOICED fact carries the key.
func (s *Store) Invoiced(ctx context.Context, key payments.DimensionalKey) (bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sf := range s.facts {
		if sf.fact.Status == payments.FactInvoiced && key.Matches(sf.fact) {
			return true, nil
		}
	}
	return false, nil
}

// SaveHeader stores a forecast header.
func (s *Store) SaveHeader(ctx context.Context, header *payments.ForecastHeader) error {
	_ = ctx
	if header == nil {
		return nil
	}
	cp := *header
	cp.Lines = append([]payments.ForecastLine(nil), header.Lines...)
	s.mu.Lock()
	s.headers = append(s.headers, &cp)
	s.mu.Unlock()
	return nil
}

// ListHeaders returns forecast headers of a participant and period.
func (s *Store) ListHeaders(ctx context.Context, schemeID, participantID, period string) ([]*payments.ForecastHeader, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*payments.ForecastHeader
	for _, h := range s.headers {
		if h.SchemeID != schemeID || h.Period != period {
			continue
		}
		if participantID != "" && h.ParticipantID != participantID {
			continue
		}
		cp := *h
		result = append(result, &cp)
	}
	return result, nil
}

func matches(filter payments.FactFilter, f *payments.TransactionFact) bool {
	if filter.SchemeID != "" && f.SchemeID != filter.SchemeID {
		return false
	}
	if filter.Category != "" && f.Category != filter.Category {
		return false
	}
	if filter.AuctionLotID != "" && f.AuctionLotID != filter.AuctionLotID {
		return false
	}
	if !filter.Participants.Allows(f.ParticipantID) {
		return false
	}
	return len(filter.Statuses) == 0 || statusIn(f.Status, filter.Statuses)
}

func statusIn(status payments.FactStatus, set []payments.FactStatus) bool {
	for _, st := range set {
		if status == st {
			return true
		}
	}
	return false
}
