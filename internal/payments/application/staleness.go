package application

import (
	"context"
	"errors"

	payments "stewardship-cloud/internal/payments/domain"
)

// StalenessInvalidator retires facts superseded by a recomputation.
type StalenessInvalidator struct {
	facts payments.FactRepository
}

// NewStalenessInvalidator constructs an invalidator over a fact repository.
func NewStalenessInvalidator(facts payments.FactRepository) *StalenessInvalidator {
	return &StalenessInvalidator{facts: facts}
}

// Invalidate marks every fact with the key, outside batchID and in one of the
// live statuses, as STALE. It must run before the superseding fact is saved.
func (i *StalenessInvalidator) Invalidate(ctx context.Context, key payments.DimensionalKey, batchID string, live []payments.FactStatus) (int, error) {
	if i == nil || i.facts == nil {
		return 0, errors.New("staleness invalidator: nil fact repository")
	}
	total := 0
	for _, status := range live {
		n, err := i.facts.MarkStale(ctx, key, batchID, status)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
