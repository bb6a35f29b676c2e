package pricing

import (
	"context"
	"sync"

	payments "stewardship-cloud/internal/payments/domain"
)

// StaticReferenceData serves reference tables held in memory.
type StaticReferenceData struct {
	mu          sync.RWMutex
	rates       []payments.ReferenceRate
	conversions []payments.UnitConversion
	seasonality []payments.SeasonalityIndex
}

// NewStaticReferenceData constructs an empty provider.
func NewStaticReferenceData() *StaticReferenceData {
	return &StaticReferenceData{}
}

// AddRates registers rates.
func (s *StaticReferenceData) AddRates(rates ...payments.ReferenceRate) {
	s.mu.Lock()
	s.rates = append(s.rates, rates...)
	s.mu.Unlock()
}

// AddConversions registers MRF unit conversions.
func (s *StaticReferenceData) AddConversions(items ...payments.UnitConversion) {
	s.mu.Lock()
	s.conversions = append(s.conversions, items...)
	s.mu.Unlock()
}

// AddSeasonality registers seasonality indices.
func (s *StaticReferenceData) AddSeasonality(items ...payments.SeasonalityIndex) {
	s.mu.Lock()
	s.seasonality = append(s.seasonality, items...)
	s.mu.Unlock()
}

// LoadRates returns rates of the scheme and kind. Rates without a scheme
// apply to every scheme.
func (s *StaticReferenceData) LoadRates(ctx context.Context, schemeID, kind string) ([]payments.ReferenceRate, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []payments.ReferenceRate
	for _, r := range s.rates {
		if r.Kind == kind && (r.SchemeID == "" || r.SchemeID == schemeID) {
			result = append(result, r)
		}
	}
	return result, nil
}

// LoadConversions returns every registered conversion.
func (s *StaticReferenceData) LoadConversions(ctx context.Context, schemeID string) ([]payments.UnitConversion, error) {
	_ = ctx
	_ = schemeID
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]payments.UnitConversion(nil), s.conversions...), nil
}

// LoadSeasonality returns every registered index.
func (s *StaticReferenceData) LoadSeasonality(ctx context.Context, schemeID string) ([]payments.SeasonalityIndex, error) {
	_ = ctx
	_ = schemeID
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]payments.SeasonalityIndex(nil), s.seasonality...), nil
}
