package application

import (
	"context"

	"go.uber.org/zap"

	payments "stewardship-cloud/internal/payments/domain"
)

// ClaimStrategy settles processor, collection-point and exporter claims. The
// categories differ only in claim table, rate kind and payment type.
type ClaimStrategy struct {
	category    payments.ParticipantCategory
	rateKind    string
	paymentType string
	ref         ReferenceData
	clock       payments.Clock
	logger      *zap.Logger
}

// NewClaimStrategy constructs a claim strategy for a category.
func NewClaimStrategy(category payments.ParticipantCategory, rateKind, paymentType string, ref ReferenceData, clock payments.Clock, logger *zap.Logger) *ClaimStrategy {
	return &ClaimStrategy{
		category:    category,
		rateKind:    rateKind,
		paymentType: paymentType,
		ref:         ref,
		clock:       clock,
		logger:      nopIfNil(logger),
	}
}

// Category returns the strategy category.
func (s *ClaimStrategy) Category() payments.ParticipantCategory { return s.category }

// Calculate prices each claim at the resolved rate.
func (s *ClaimStrategy) Calculate(ctx context.Context, params Parameters) ([]*payments.TransactionFact, error) {
	rates, err := loadRateTable(ctx, s.ref, params.SchemeID, s.rateKind)
	if err != nil {
		return nil, err
	}
	w, err := newFactWriter(params, reviewLive, s.clock, s.logger)
	if err != nil {
		return nil, err
	}
	for _, rec := range params.Sources.Records {
		if !params.Participants.Allows(rec.ParticipantID) {
			continue
		}
		if rec.PaymentType == "" {
			rec.PaymentType = s.paymentType
		}
		rate := resolveRate(rates, rec, s.logger)
		fact := w.newFact(rec, rec.Volume, rate, rec.Unit, payments.FactAwaitingReview)
		if _, err := w.write(ctx, fact); err != nil {
			return nil, err
		}
	}
	return w.done(), nil
}
