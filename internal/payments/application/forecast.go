package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stewardship-cloud/internal/observability/metrics"
	payments "stewardship-cloud/internal/payments/domain"
)

const (
	forecastWindowMonths = 12
	forecastMinPeriods   = 3
)

// ForecastInput is the forecasting request for one batch.
type ForecastInput struct {
	Params Parameters
	// Participants are the non-reporting participants to estimate.
	Participants []payments.Participant
	History      []payments.SourceRecord
	Rates        *payments.RateTable
	PaymentType  string
}

// ForecastEngine estimates volumes for participants absent from the current
// period from their trailing twelve-month history.
type ForecastEngine struct {
	ref    ReferenceData
	clock  payments.Clock
	logger *zap.Logger
}

// NewForecastEngine constructs the engine.
func NewForecastEngine(ref ReferenceData, clock payments.Clock, logger *zap.Logger) (*ForecastEngine, error) {
	if ref == nil {
		return nil, errors.New("forecast engine: nil reference data")
	}
	if clock == nil {
		clock = payments.SystemClock{}
	}
	return &ForecastEngine{ref: ref, clock: clock, logger: nopIfNil(logger)}, nil
}

// Forecast persists forecast facts, and one forecast header per participant
// with at least one non-zero fact.
func (e *ForecastEngine) Forecast(ctx context.Context, in ForecastInput) ([]*payments.TransactionFact, error) {
	if len(in.Participants) == 0 {
		return nil, nil
	}
	params := in.Params
	items, err := e.ref.LoadSeasonality(ctx, params.SchemeID)
	if err != nil {
		return nil, fmt.Errorf("load seasonality: %w", err)
	}
	seasonality := payments.NewSeasonalityTable(items)

	w, err := newFactWriter(params, reviewLive, e.clock, e.logger)
	if err != nil {
		return nil, err
	}
	target := params.CurrentPeriod
	for _, participant := range in.Participants {
		var lines []payments.ForecastLine
		for _, material := range forecastMaterials(participant, in.History) {
			mean, ok := MeanRecentVolume(in.History, participant.ID, material, target)
			if !ok {
				continue
			}
			index := e.seasonalityIndex(seasonality, params, material, target.Value)
			volume := mean.Mul(index)
			rec := payments.SourceRecord{
				SchemeID:        params.SchemeID,
				ParticipantID:   participant.ID,
				ParticipantName: participant.Name,
				MaterialID:      material,
				PaymentType:     in.PaymentType,
				PeriodType:      target.Type,
				Period:          target.Value,
				PeriodStart:     target.Start,
				EntryType:       payments.EntryForecast,
			}
			rate := resolveRate(in.Rates, rec, e.logger)
			fact := w.newFact(rec, volume, rate, "", payments.FactAwaitingReview)
			if fact == nil {
				continue
			}
			stored, err := w.write(ctx, fact)
			if err != nil {
				return nil, err
			}
			if stored == nil {
				continue
			}
			lines = append(lines, payments.ForecastLine{MaterialID: material, Volume: volume, FactID: stored.ID})
		}
		if len(lines) == 0 {
			continue
		}
		header := &payments.ForecastHeader{
			ID:              uuid.NewString(),
			SchemeID:        params.SchemeID,
			BatchID:         params.BatchID,
			ParticipantID:   participant.ID,
			ParticipantName: participant.Name,
			PeriodType:      target.Type,
			Period:          target.Value,
			PeriodStart:     target.Start,
			Lines:           lines,
			CreatedAt:       e.clock.Now(),
		}
		if err := params.Store.Forecasts().SaveHeader(ctx, header); err != nil {
			return nil, fmt.Errorf("save forecast header %s: %w", participant.ID, err)
		}
	}
	facts := w.done()
	metrics.AddForecastFacts(len(facts))
	return facts, nil
}

func (e *ForecastEngine) seasonalityIndex(table payments.SeasonalityTable, params Parameters, material, period string) decimal.Decimal {
	if v, ok := table.Lookup(material, period); ok {
		return v
	}
	e.logger.Warn("seasonality index missing, using scheme default",
		zap.String("scheme_id", params.SchemeID),
		zap.String("material_id", material),
		zap.String("period", period),
		zap.String("default", params.Rules.DefaultSeasonalityIndex.String()),
	)
	return params.Rules.DefaultSeasonalityIndex
}

// MeanRecentVolume averages the per-period regular and late volume of a
// participant and material over the twelve months before the target period.
// Records of one period are summed first. ok is false when fewer than three
// periods qualify.
func MeanRecentVolume(history []payments.SourceRecord, participantID, materialID string, target payments.Period) (decimal.Decimal, bool) {
	windowStart := target.Start.AddDate(0, -forecastWindowMonths, 0)
	totals := make(map[time.Time]decimal.Decimal)
	for _, rec := range history {
		if rec.ParticipantID != participantID || rec.MaterialID != materialID {
			continue
		}
		if rec.EntryType != payments.EntryRegular && rec.EntryType != payments.EntryLate {
			continue
		}
		if rec.PeriodStart.Before(windowStart) || !rec.PeriodStart.Before(target.Start) {
			continue
		}
		start := rec.PeriodStart.UTC()
		totals[start] = totals[start].Add(rec.Volume)
	}
	periods := make([]time.Time, 0, len(totals))
	for start := range totals {
		periods = append(periods, start)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].After(periods[j]) })
	if len(periods) > forecastWindowMonths {
		periods = periods[:forecastWindowMonths]
	}
	if len(periods) < forecastMinPeriods {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for _, start := range periods {
		sum = sum.Add(totals[start])
	}
	return sum.Div(decimal.NewFromInt(int64(len(periods)))), true
}

func forecastMaterials(p payments.Participant, history []payments.SourceRecord) []string {
	if len(p.Materials) > 0 {
		return p.Materials
	}
	seen := make(map[string]struct{})
	var materials []string
	for _, rec := range history {
		if rec.ParticipantID != p.ID {
			continue
		}
		if _, ok := seen[rec.MaterialID]; ok {
			continue
		}
		seen[rec.MaterialID] = struct{}{}
		materials = append(materials, rec.MaterialID)
	}
	sort.Strings(materials)
	return materials
}
