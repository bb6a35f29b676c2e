package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionFact is one computed settlement line.
type TransactionFact struct {
	ID              string
	SchemeID        string
	BatchID         string
	ParticipantID   string
	ParticipantName string
	Category        ParticipantCategory
	PaymentType     string
	PaymentMethod   string
	MaterialID      string
	PeriodType      PeriodType
	Period          string
	PeriodStart     time.Time
	EntryType       EntryType
	Volume          decimal.Decimal
	Unit            string
	UnitPrice       decimal.Decimal
	GrossAmount     decimal.Decimal
	TaxableAmount   decimal.Decimal
	TaxAmount       decimal.Decimal
	Arrears         string
	Status          FactStatus
	SourceRecordID  string
	AuctionLotID    string
	ManifestID      string
	AuctionSubtype  AuctionSubtype
	SellerCategory  ParticipantCategory
	BuyerID         string
	BuyerName       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Key returns the dimensional key of the fact.
func (f *TransactionFact) Key() DimensionalKey {
	return DimensionalKey{
		SchemeID:      f.SchemeID,
		ParticipantID: f.ParticipantID,
		MaterialID:    f.MaterialID,
		PeriodType:    f.PeriodType,
		Period:        f.Period,
		EntryType:     f.EntryType,
		AuctionLotID:  f.AuctionLotID,
	}
}

// Clone returns a deep copy.
func (f *TransactionFact) Clone() *TransactionFact {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

// DimensionalKey identifies the settlement line a fact represents. At most one
// live fact exists per key.
type DimensionalKey struct {
	SchemeID      string
	ParticipantID string
	MaterialID    string
	PeriodType    PeriodType
	Period        string
	EntryType     EntryType
	// AuctionLotID is only set for auction facts.
	AuctionLotID string
}

// Matches reports whether the fact has this key.
func (k DimensionalKey) Matches(f *TransactionFact) bool {
	return f != nil && f.Key() == k
}

// ExecutionSummary reports the outcome of one computation.
type ExecutionSummary struct {
	BatchID          string          `json:"batchId"`
	SchemeID         string          `json:"schemeId"`
	Category         string          `json:"category"`
	Status           BatchStatus     `json:"status"`
	Start            time.Time       `json:"start"`
	End              time.Time       `json:"end"`
	TransactionCount int             `json:"transactionCount"`
	ParticipantCount int             `json:"participantCount"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Period           string          `json:"period"`
	Error            string          `json:"error,omitempty"`
}
