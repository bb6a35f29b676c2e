package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	payments "stewardship-cloud/internal/payments/domain"
)

const (
	defaultRatesTable       = "reference_rates"
	defaultConversionsTable = "mrf_unit_conversions"
	defaultSeasonalityTable = "seasonality_indices"
)

// ReferenceDataStore loads effective-dated reference tables from Postgres.
type ReferenceDataStore struct {
	db               *sql.DB
	ratesTable       string
	conversionsTable string
	seasonalityTable string
}

// ReferenceOption configures the store.
type ReferenceOption func(*ReferenceDataStore)

// WithRatesTable overrides the rates table name.
func WithRatesTable(table string) ReferenceOption {
	return func(s *ReferenceDataStore) {
		if table != "" {
			s.ratesTable = table
		}
	}
}

// WithConversionsTable overrides the conversions table name.
func WithConversionsTable(table string) ReferenceOption {
	return func(s *ReferenceDataStore) {
		if table != "" {
			s.conversionsTable = table
		}
	}
}

// WithSeasonalityTable overrides the seasonality table name.
func WithSeasonalityTable(table string) ReferenceOption {
	return func(s *ReferenceDataStore) {
		if table != "" {
			s.seasonalityTable = table
		}
	}
}

// NewReferenceDataStore constructs a store.
func NewReferenceDataStore(db *sql.DB, opts ...ReferenceOption) *ReferenceDataStore {
	s := &ReferenceDataStore{
		db:               db,
		ratesTable:       defaultRatesTable,
		conversionsTable: defaultConversionsTable,
		seasonalityTable: defaultSeasonalityTable,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadRates returns every rate of a kind for the scheme.
func (s *ReferenceDataStore) LoadRates(ctx context.Context, schemeID, kind string) ([]payments.ReferenceRate, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("reference data: nil db")
	}
	if schemeID == "" {
		return nil, errors.New("reference data: empty scheme id")
	}
	query := fmt.Sprintf(`
SELECT material_id, COALESCE(participant_id, ''), value, effective_from, effective_to
FROM %s
WHERE scheme_id = $1 AND kind = $2
ORDER BY material_id, effective_from`, s.ratesTable)
	rows, err := s.db.QueryContext(ctx, query, schemeID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []payments.ReferenceRate
	for rows.Next() {
		rate := payments.ReferenceRate{SchemeID: schemeID, Kind: kind}
		var to sql.NullTime
		if err := rows.Scan(&rate.MaterialID, &rate.ParticipantID, &rate.Value, &rate.EffectiveFrom, &to); err != nil {
			return nil, err
		}
		rate.EffectiveFrom = rate.EffectiveFrom.UTC()
		if to.Valid {
			rate.EffectiveTo = to.Time.UTC()
		}
		result = append(result, rate)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// LoadConversions returns MRF unit conversions for the scheme.
func (s *ReferenceDataStore) LoadConversions(ctx context.Context, schemeID string) ([]payments.UnitConversion, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("reference data: nil db")
	}
	query := fmt.Sprintf(`
SELECT participant_id, material_id, units_per_kg, unit
FROM %s
WHERE scheme_id = $1`, s.conversionsTable)
	rows, err := s.db.QueryContext(ctx, query, schemeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []payments.UnitConversion
	for rows.Next() {
		var c payments.UnitConversion
		if err := rows.Scan(&c.ParticipantID, &c.MaterialID, &c.UnitsPerKg, &c.Unit); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// LoadSeasonality returns seasonality indices for the scheme.
func (s *ReferenceDataStore) LoadSeasonality(ctx context.Context, schemeID string) ([]payments.SeasonalityIndex, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("reference data: nil db")
	}
	query := fmt.Sprintf(`
SELECT material_id, period, seasonality_index
FROM %s
WHERE scheme_id = $1`, s.seasonalityTable)
	rows, err := s.db.QueryContext(ctx, query, schemeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []payments.SeasonalityIndex
	for rows.Next() {
		var idx payments.SeasonalityIndex
		if err := rows.Scan(&idx.MaterialID, &idx.Period, &idx.Index); err != nil {
			return nil, err
		}
		result = append(result, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// InsertRate stores one rate; used by seeding tools and tests.
func (s *ReferenceDataStore) InsertRate(ctx context.Context, rate payments.ReferenceRate) error {
	if s == nil || s.db == nil {
		return errors.New("reference data: nil db")
	}
	var participant, to any
	if rate.ParticipantID != "" {
		participant = rate.ParticipantID
	}
	if !rate.EffectiveTo.IsZero() {
		to = rate.EffectiveTo
	}
	query := fmt.Sprintf(`
INSERT INTO %s (scheme_id, kind, material_id, participant_id, value, effective_from, effective_to)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, s.ratesTable)
	_, err := s.db.ExecContext(ctx, query, rate.SchemeID, rate.Kind, rate.MaterialID, participant, rate.Value, rate.EffectiveFrom.UTC(), to)
	return err
}

