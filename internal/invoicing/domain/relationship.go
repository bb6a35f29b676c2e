package invoicing

import "time"

// Relationship is a material-acceptance agreement naming the counterparty
// that takes a participant's material.
type Relationship struct {
	SchemeID         string
	ParticipantID    string
	MaterialID       string
	CounterpartyID   string
	CounterpartyName string
	LegalEntity      string
	PaymentMethod    string
	Active           bool
	EffectiveFrom    time.Time
	EffectiveTo      time.Time
}

// ActiveAt reports whether the relationship applies at t.
func (r Relationship) ActiveAt(t time.Time) bool {
	if !r.Active {
		return false
	}
	if !r.EffectiveFrom.IsZero() && t.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo.IsZero() || t.Before(r.EffectiveTo)
}
