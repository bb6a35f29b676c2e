package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reference data kinds, one rate kind per category.
const (
	RateKindManufacturerFee = "MANUFACTURER_FEE"
	RateKindProcessorRate   = "PROCESSOR_RATE"
	RateKindMRFRate         = "MRF_RATE"
	RateKindExporterRate    = "EXPORTER_RATE"
	RateKindCollectionRate  = "COLLECTION_RATE"
)

// ReferenceRate is an effective-dated rate. An empty ParticipantID marks the
// scheme-wide default; a zero EffectiveTo is open-ended.
type ReferenceRate struct {
	SchemeID      string
	Kind          string
	MaterialID    string
	ParticipantID string
	Value         decimal.Decimal
	EffectiveFrom time.Time
	EffectiveTo   time.Time
}

func (r ReferenceRate) effectiveAt(at time.Time) bool {
	if at.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo.IsZero() || at.Before(r.EffectiveTo)
}

type rateKey struct {
	material    string
	participant string
}

// RateTable resolves rates with a participant override falling back to the
// scheme-wide default. It is read-only after construction.
type RateTable struct {
	kind  string
	rates map[rateKey][]ReferenceRate
}

// NewRateTable indexes rates by material and participant.
func NewRateTable(kind string, rates []ReferenceRate) *RateTable {
	t := &RateTable{kind: kind, rates: make(map[rateKey][]ReferenceRate)}
	for _, r := range rates {
		k := rateKey{material: r.MaterialID, participant: r.ParticipantID}
		t.rates[k] = append(t.rates[k], r)
	}
	return t
}

// Kind returns the reference data kind held by the table.
func (t *RateTable) Kind() string {
	if t == nil {
		return ""
	}
	return t.kind
}

// Resolve returns the rate for material and participant effective at the
// given time. found is false when neither level has a rate; the value is then
// zero.
func (t *RateTable) Resolve(materialID, participantID string, at time.Time) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Zero, false
	}
	if participantID != "" {
		if v, ok := t.lookup(rateKey{material: materialID, participant: participantID}, at); ok {
			return v, true
		}
	}
	if v, ok := t.lookup(rateKey{material: materialID}, at); ok {
		return v, true
	}
	return decimal.Zero, false
}

func (t *RateTable) lookup(k rateKey, at time.Time) (decimal.Decimal, bool) {
	var (
		best  ReferenceRate
		found bool
	)
	for _, r := range t.rates[k] {
		if !r.effectiveAt(at) {
			continue
		}
		// latest effective-from wins when intervals overlap
		if !found || r.EffectiveFrom.After(best.EffectiveFrom) {
			best = r
			found = true
		}
	}
	return best.Value, found
}

// UnitConversion maps MRF kilogram volumes to reporting units.
type UnitConversion struct {
	ParticipantID string
	MaterialID    string
	UnitsPerKg    decimal.Decimal
	Unit          string
}

// ConversionTable indexes unit conversions by participant and material.
type ConversionTable map[string]UnitConversion

// NewConversionTable builds a table.
func NewConversionTable(items []UnitConversion) ConversionTable {
	t := make(ConversionTable, len(items))
	for _, c := range items {
		t[c.ParticipantID+"|"+c.MaterialID] = c
	}
	return t
}

// Lookup returns the conversion for a participant and material.
func (t ConversionTable) Lookup(participantID, materialID string) (UnitConversion, bool) {
	c, ok := t[participantID+"|"+materialID]
	return c, ok
}

// SeasonalityIndex is the multiplier for a material in a period.
type SeasonalityIndex struct {
	MaterialID string
	Period     string
	Index      decimal.Decimal
}

// SeasonalityTable indexes seasonality multipliers.
type SeasonalityTable map[string]decimal.Decimal

// NewSeasonalityTable builds a table.
func NewSeasonalityTable(items []SeasonalityIndex) SeasonalityTable {
	t := make(SeasonalityTable, len(items))
	for _, s := range items {
		t[s.MaterialID+"|"+s.Period] = s.Index
	}
	return t
}

// Lookup returns the index for a material and period.
func (t SeasonalityTable) Lookup(materialID, period string) (decimal.Decimal, bool) {
	v, ok := t[materialID+"|"+period]
	return v, ok
}
