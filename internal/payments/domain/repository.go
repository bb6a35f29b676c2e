package payments

import "context"

// BatchRepository persists computation batches.
type BatchRepository interface {
	Create(ctx context.Context, batch *Batch) error
	Update(ctx context.Context, batch *Batch) error
	Get(ctx context.Context, id string) (*Batch, error)
}

// FactFilter selects facts for invoicing and status transitions.
type FactFilter struct {
	SchemeID     string
	Category     ParticipantCategory
	Statuses     []FactStatus
	Participants ParticipantFilter
	AuctionLotID string
}

// FactRepository persists transaction facts.
type FactRepository interface {
	Save(ctx context.Context, fact *TransactionFact) error
	// MarkStale flips facts with the key, outside excludeBatchID and in the
	// given live status, to STALE. It returns the number of facts changed.
	MarkStale(ctx context.Context, key DimensionalKey, excludeBatchID string, live FactStatus) (int, error)
	List(ctx context.Context, filter FactFilter) ([]*TransactionFact, error)
	// UpdateStatus moves the given facts to status, touching only those whose
	// current status is one of from. It returns the number of facts changed.
	UpdateStatus(ctx context.Context, ids []string, from []FactStatus, status FactStatus) (int, error)
	// Invoiced reports whether a fact with the key has already been invoiced.
	Invoiced(ctx context.Context, key DimensionalKey) (bool, error)
}

// ForecastRepository persists forecast headers.
type ForecastRepository interface {
	SaveHeader(ctx context.Context, header *ForecastHeader) error
	ListHeaders(ctx context.Context, schemeID, participantID, period string) ([]*ForecastHeader, error)
}

// Store is the transactional view handed to a strategy.
type Store interface {
	Facts() FactRepository
	Forecasts() ForecastRepository
}

// UnitOfWork runs fn inside one transaction; fn's error rolls back everything.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}
