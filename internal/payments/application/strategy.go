package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stewardship-cloud/internal/observability/metrics"
	payments "stewardship-cloud/internal/payments/domain"
	"stewardship-cloud/internal/scheme"
)

// Parameters bundle everything a strategy needs for one batch.
type Parameters struct {
	SchemeID      string
	Category      payments.ParticipantCategory
	Rules         scheme.Rules
	Participants  payments.ParticipantFilter
	AuctionLotID  string
	Sources       payments.SourceSet
	Today         time.Time
	BatchID       string
	CurrentPeriod payments.Period
	Store         payments.Store
}

// Strategy computes facts for one participant category.
type Strategy interface {
	Category() payments.ParticipantCategory
	Calculate(ctx context.Context, params Parameters) ([]*payments.TransactionFact, error)
}

// StrategyRegistry is the strategy table keyed by category.
type StrategyRegistry struct {
	strategies map[payments.ParticipantCategory]Strategy
}

// NewStrategyRegistry registers strategies; later entries replace earlier ones
// of the same category.
func NewStrategyRegistry(strategies ...Strategy) *StrategyRegistry {
	r := &StrategyRegistry{strategies: make(map[payments.ParticipantCategory]Strategy, len(strategies))}
	for _, s := range strategies {
		if s != nil {
			r.strategies[s.Category()] = s
		}
	}
	return r
}

// Lookup returns the strategy for a category.
func (r *StrategyRegistry) Lookup(category payments.ParticipantCategory) (Strategy, bool) {
	if r == nil {
		return nil, false
	}
	s, ok := r.strategies[category]
	return s, ok
}

// NewDefaultRegistry wires the strategy of every category.
func NewDefaultRegistry(ref ReferenceData, clock payments.Clock, logger *zap.Logger) (*StrategyRegistry, error) {
	if ref == nil {
		return nil, errors.New("strategy registry: nil reference data")
	}
	forecast, err := NewForecastEngine(ref, clock, logger)
	if err != nil {
		return nil, err
	}
	return NewStrategyRegistry(
		NewManufacturerStrategy(ref, forecast, clock, logger),
		NewClaimStrategy(payments.CategoryProcessor, payments.RateKindProcessorRate, payments.PaymentTypeProcessingFee, ref, clock, logger),
		NewClaimStrategy(payments.CategoryCollectionPoint, payments.RateKindCollectionRate, payments.PaymentTypeCollectionFee, ref, clock, logger),
		NewClaimStrategy(payments.CategoryExporter, payments.RateKindExporterRate, payments.PaymentTypeExportFee, ref, clock, logger),
		NewMRFStrategy(ref, clock, logger),
		NewAuctionStrategy(clock, logger),
	), nil
}

// reviewLive are the statuses a claim fact may hold before invoicing.
var reviewLive = []payments.FactStatus{
	payments.FactAwaitingReview,
	payments.FactAwaitingApproval,
	payments.FactAwaitingInvoicing,
	payments.FactHold,
}

// factWriter applies invalidate-then-save for each new fact of a batch. Facts
// of one batch sharing a dimensional key collapse into a single fact, and keys
// that were already invoiced are not written again.
type factWriter struct {
	params      Parameters
	invalidator *StalenessInvalidator
	live        []payments.FactStatus
	clock       payments.Clock
	logger      *zap.Logger
	byKey       map[payments.DimensionalKey]*payments.TransactionFact
	invoiced    map[payments.DimensionalKey]bool
	facts       []*payments.TransactionFact
	staled      int
}

func newFactWriter(params Parameters, live []payments.FactStatus, clock payments.Clock, logger *zap.Logger) (*factWriter, error) {
	if params.Store == nil || params.Store.Facts() == nil {
		return nil, errors.New("fact writer: nil store")
	}
	if clock == nil {
		clock = payments.SystemClock{}
	}
	return &factWriter{
		params:      params,
		invalidator: NewStalenessInvalidator(params.Store.Facts()),
		live:        live,
		clock:       clock,
		logger:      nopIfNil(logger),
		byKey:       make(map[payments.DimensionalKey]*payments.TransactionFact),
		invoiced:    make(map[payments.DimensionalKey]bool),
	}, nil
}

// newFact prices a volume and stamps batch, period and arrears fields. It
// returns nil when volume or gross is zero.
func (w *factWriter) newFact(rec payments.SourceRecord, volume, rate decimal.Decimal, unit string, status payments.FactStatus) *payments.TransactionFact {
	gross := volume.Mul(rate).Round(2)
	if volume.IsZero() || gross.IsZero() {
		return nil
	}
	periodType := rec.PeriodType
	if periodType == "" {
		periodType = w.params.CurrentPeriod.Type
	}
	now := w.clock.Now()
	return &payments.TransactionFact{
		ID:              uuid.NewString(),
		SchemeID:        w.params.SchemeID,
		BatchID:         w.params.BatchID,
		ParticipantID:   rec.ParticipantID,
		ParticipantName: rec.ParticipantName,
		Category:        w.params.Category,
		PaymentType:     rec.PaymentType,
		PaymentMethod:   rec.PaymentMethod,
		MaterialID:      rec.MaterialID,
		PeriodType:      periodType,
		Period:          rec.Period,
		PeriodStart:     rec.PeriodStart,
		EntryType:       rec.EntryType,
		Volume:          volume,
		Unit:            unit,
		UnitPrice:       rate,
		GrossAmount:     gross,
		TaxableAmount:   gross,
		TaxAmount:       w.params.Rules.Tax(gross),
		Arrears:         payments.ArrearsFlag(rec.PeriodStart, w.params.CurrentPeriod),
		Status:          status,
		SourceRecordID:  rec.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// write stores fact and returns the fact now holding its key: fact itself,
// the earlier fact of this batch it was merged into, or nil when the key has
// already been invoiced.
func (w *factWriter) write(ctx context.Context, fact *payments.TransactionFact) (*payments.TransactionFact, error) {
	if fact == nil {
		return nil, nil
	}
	key := fact.Key()
	if prev, ok := w.byKey[key]; ok {
		w.merge(prev, fact)
		if err := w.params.Store.Facts().Save(ctx, prev); err != nil {
			return nil, fmt.Errorf("save fact %s/%s: %w", prev.ParticipantID, prev.MaterialID, err)
		}
		return prev, nil
	}
	invoiced, err := w.alreadyInvoiced(ctx, key)
	if err != nil {
		return nil, err
	}
	if invoiced {
		metrics.IncInvoicedKeySkipped(string(w.params.Category))
		w.logger.Warn("fact key already invoiced, record skipped",
			zap.String("batch_id", w.params.BatchID),
			zap.String("participant_id", fact.ParticipantID),
			zap.String("material_id", fact.MaterialID),
			zap.String("period", fact.Period),
			zap.String("entry_type", string(fact.EntryType)),
			zap.String("auction_lot_id", fact.AuctionLotID),
			zap.String("source_record_id", fact.SourceRecordID),
		)
		return nil, nil
	}
	n, err := w.invalidator.Invalidate(ctx, key, w.params.BatchID, w.live)
	if err != nil {
		return nil, fmt.Errorf("invalidate %s/%s: %w", fact.ParticipantID, fact.MaterialID, err)
	}
	w.staled += n
	if err := w.params.Store.Facts().Save(ctx, fact); err != nil {
		return nil, fmt.Errorf("save fact %s/%s: %w", fact.ParticipantID, fact.MaterialID, err)
	}
	w.byKey[key] = fact
	w.facts = append(w.facts, fact)
	return fact, nil
}

func (w *factWriter) alreadyInvoiced(ctx context.Context, key payments.DimensionalKey) (bool, error) {
	if v, ok := w.invoiced[key]; ok {
		return v, nil
	}
	v, err := w.params.Store.Facts().Invoiced(ctx, key)
	if err != nil {
		return false, fmt.Errorf("invoiced lookup %s/%s: %w", key.ParticipantID, key.MaterialID, err)
	}
	w.invoiced[key] = v
	return v, nil
}

// merge folds next into prev. Tax is recomputed on the combined taxable base.
func (w *factWriter) merge(prev, next *payments.TransactionFact) {
	prev.Volume = prev.Volume.Add(next.Volume)
	prev.GrossAmount = prev.GrossAmount.Add(next.GrossAmount)
	prev.TaxableAmount = prev.TaxableAmount.Add(next.TaxableAmount)
	prev.TaxAmount = w.params.Rules.Tax(prev.TaxableAmount)
	if !prev.UnitPrice.Equal(next.UnitPrice) && !prev.Volume.IsZero() {
		prev.UnitPrice = prev.GrossAmount.Div(prev.Volume).Round(6)
	}
	prev.UpdatedAt = w.clock.Now()
}

func (w *factWriter) done() []*payments.TransactionFact {
	metrics.AddFactsCreated(string(w.params.Category), len(w.facts))
	metrics.AddFactsStaled(string(w.params.Category), w.staled)
	return w.facts
}

// resolveRate looks a rate up at the record's period start, substituting zero
// with a warning when neither level has one.
func resolveRate(table *payments.RateTable, rec payments.SourceRecord, logger *zap.Logger) decimal.Decimal {
	rate, ok := table.Resolve(rec.MaterialID, rec.ParticipantID, rec.PeriodStart)
	if !ok {
		metrics.IncMissingRate(table.Kind())
		logger.Warn("reference rate missing",
			zap.String("kind", table.Kind()),
			zap.String("participant_id", rec.ParticipantID),
			zap.String("material_id", rec.MaterialID),
			zap.String("period", rec.Period),
			zap.Error(payments.ErrReferenceDataMissing),
		)
	}
	return rate
}

func loadRateTable(ctx context.Context, ref ReferenceData, schemeID, kind string) (*payments.RateTable, error) {
	rates, err := ref.LoadRates(ctx, schemeID, kind)
	if err != nil {
		return nil, fmt.Errorf("load %s rates: %w", kind, err)
	}
	return payments.NewRateTable(kind, rates), nil
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
