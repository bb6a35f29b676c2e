package application

import (
	"context"

	"go.uber.org/zap"

	payments "stewardship-cloud/internal/payments/domain"
)

// ManufacturerStrategy settles manufacturer declarations and forecasts fees
// for manufacturers that have not declared in the current period.
type ManufacturerStrategy struct {
	ref      ReferenceData
	forecast *ForecastEngine
	clock    payments.Clock
	logger   *zap.Logger
}

// NewManufacturerStrategy constructs the manufacturer strategy.
func NewManufacturerStrategy(ref ReferenceData, forecast *ForecastEngine, clock payments.Clock, logger *zap.Logger) *ManufacturerStrategy {
	return &ManufacturerStrategy{ref: ref, forecast: forecast, clock: clock, logger: nopIfNil(logger)}
}

// Category returns MANUFACTURER.
func (s *ManufacturerStrategy) Category() payments.ParticipantCategory {
	return payments.CategoryManufacturer
}

// Calculate prices declarations, then forecasts non-reporting participants.
func (s *ManufacturerStrategy) Calculate(ctx context.Context, params Parameters) ([]*payments.TransactionFact, error) {
	rates, err := loadRateTable(ctx, s.ref, params.SchemeID, payments.RateKindManufacturerFee)
	if err != nil {
		return nil, err
	}
	w, err := newFactWriter(params, reviewLive, s.clock, s.logger)
	if err != nil {
		return nil, err
	}
	reporting := make(map[string]struct{})
	for _, rec := range params.Sources.Records {
		if !params.Participants.Allows(rec.ParticipantID) {
			continue
		}
		if rec.Period == params.CurrentPeriod.Value {
			reporting[rec.ParticipantID] = struct{}{}
		}
		rec.EntryType = payments.ReclassifyManufacturerEntry(rec.EntryType)
		if rec.PaymentType == "" {
			rec.PaymentType = payments.PaymentTypeStewardshipFee
		}
		rate := resolveRate(rates, rec, s.logger)
		fact := w.newFact(rec, rec.Volume, rate, rec.Unit, payments.FactAwaitingReview)
		if _, err := w.write(ctx, fact); err != nil {
			return nil, err
		}
	}
	facts := w.done()

	if s.forecast == nil {
		return facts, nil
	}
	var absent []payments.Participant
	for _, p := range params.Sources.Targets {
		if !params.Participants.Allows(p.ID) {
			continue
		}
		if _, ok := reporting[p.ID]; ok {
			continue
		}
		absent = append(absent, p)
	}
	forecasts, err := s.forecast.Forecast(ctx, ForecastInput{
		Params:       params,
		Participants: absent,
		History:      params.Sources.History,
		Rates:        rates,
		PaymentType:  payments.PaymentTypeStewardshipFee,
	})
	if err != nil {
		return nil, err
	}
	if len(forecasts) > 0 {
		s.logger.Info("forecast facts created",
			zap.String("batch_id", params.BatchID),
			zap.Int("participants", len(absent)),
			zap.Int("facts", len(forecasts)),
		)
	}
	return append(facts, forecasts...), nil
}
