package application

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	payments "stewardship-cloud/internal/payments/domain"
)

// ReconciliationLine compares a forecast volume with the declared actual.
type ReconciliationLine struct {
	ParticipantID  string
	MaterialID     string
	Period         string
	ForecastVolume decimal.Decimal
	ActualVolume   decimal.Decimal
	Difference     decimal.Decimal
	Declared       bool
}

// ReconciliationService reconciles forecast headers against declarations.
type ReconciliationService struct {
	forecasts payments.ForecastRepository
	sources   SourceLoader
}

// NewReconciliationService constructs the service.
func NewReconciliationService(forecasts payments.ForecastRepository, sources SourceLoader) (*ReconciliationService, error) {
	if forecasts == nil {
		return nil, errors.New("reconciliation service: nil forecast repository")
	}
	if sources == nil {
		return nil, errors.New("reconciliation service: nil source loader")
	}
	return &ReconciliationService{forecasts: forecasts, sources: sources}, nil
}

// Reconcile returns one line per forecast material of the participant's
// latest forecast header in the period.
func (s *ReconciliationService) Reconcile(ctx context.Context, schemeID, participantID string, period payments.Period) ([]ReconciliationLine, error) {
	headers, err := s.forecasts.ListHeaders(ctx, schemeID, participantID, period.Value)
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return nil, nil
	}
	sort.SliceStable(headers, func(i, j int) bool {
		return headers[i].CreatedAt.After(headers[j].CreatedAt)
	})
	latest := headers[0]

	set, err := s.sources.Load(ctx, payments.SourceQuery{
		SchemeID:     schemeID,
		Category:     payments.CategoryManufacturer,
		Participants: payments.ParticipantFilter{IDs: []string{participantID}},
		Period:       period,
	})
	if err != nil {
		return nil, err
	}
	actual := make(map[string]decimal.Decimal)
	for _, rec := range set.Records {
		if rec.Period != period.Value || rec.ParticipantID != participantID {
			continue
		}
		actual[rec.MaterialID] = actual[rec.MaterialID].Add(rec.Volume)
	}

	lines := make([]ReconciliationLine, 0, len(latest.Lines))
	for _, l := range latest.Lines {
		got, declared := actual[l.MaterialID]
		lines = append(lines, ReconciliationLine{
			ParticipantID:  participantID,
			MaterialID:     l.MaterialID,
			Period:         period.Value,
			ForecastVolume: l.Volume,
			ActualVolume:   got,
			Difference:     got.Sub(l.Volume),
			Declared:       declared,
		})
	}
	return lines, nil
}
