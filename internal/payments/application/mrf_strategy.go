package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	payments "stewardship-cloud/internal/payments/domain"
)

// MRFStrategy settles material-recovery facility volumes reported in
// kilograms, converted to units per participant and material.
type MRFStrategy struct {
	ref    ReferenceData
	clock  payments.Clock
	logger *zap.Logger
}

// NewMRFStrategy constructs the MRF strategy.
func NewMRFStrategy(ref ReferenceData, clock payments.Clock, logger *zap.Logger) *MRFStrategy {
	return &MRFStrategy{ref: ref, clock: clock, logger: nopIfNil(logger)}
}

// Category returns MRF.
func (s *MRFStrategy) Category() payments.ParticipantCategory { return payments.CategoryMRF }

// Calculate converts and prices each MRF report. A missing conversion fails
// the whole batch.
func (s *MRFStrategy) Calculate(ctx context.Context, params Parameters) ([]*payments.TransactionFact, error) {
	rates, err := loadRateTable(ctx, s.ref, params.SchemeID, payments.RateKindMRFRate)
	if err != nil {
		return nil, err
	}
	items, err := s.ref.LoadConversions(ctx, params.SchemeID)
	if err != nil {
		return nil, fmt.Errorf("load unit conversions: %w", err)
	}
	conversions := payments.NewConversionTable(items)

	w, err := newFactWriter(params, reviewLive, s.clock, s.logger)
	if err != nil {
		return nil, err
	}
	for _, rec := range params.Sources.Records {
		if !params.Participants.Allows(rec.ParticipantID) {
			continue
		}
		conv, ok := conversions.Lookup(rec.ParticipantID, rec.MaterialID)
		if !ok {
			return nil, fmt.Errorf("%w: participant %s material %s", payments.ErrConversionMissing, rec.ParticipantID, rec.MaterialID)
		}
		if rec.PaymentType == "" {
			rec.PaymentType = payments.PaymentTypeRecoveryFee
		}
		units := rec.Volume.Mul(conv.UnitsPerKg)
		unit := conv.Unit
		if unit == "" {
			unit = "unit"
		}
		rate := resolveRate(rates, rec, s.logger)
		fact := w.newFact(rec, units, rate, unit, payments.FactAwaitingReview)
		if _, err := w.write(ctx, fact); err != nil {
			return nil, err
		}
	}
	return w.done(), nil
}
