package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceRecord is a volume declaration or claim read from a source table.
type SourceRecord struct {
	ID              string
	SchemeID        string
	ParticipantID   string
	ParticipantName string
	MaterialID      string
	PaymentType     string
	PaymentMethod   string
	PeriodType      PeriodType
	Period          string
	PeriodStart     time.Time
	EntryType       EntryType
	Volume          decimal.Decimal
	Unit            string
}

// AuctionLot is a settled auction lot with its matched weight.
type AuctionLot struct {
	LotID          string
	ManifestID     string
	SchemeID       string
	SellerID       string
	SellerName     string
	SellerCategory ParticipantCategory
	BuyerID        string
	BuyerName      string
	MaterialID     string
	// SalePrice is per tonne; negative when the seller pays for removal.
	SalePrice    decimal.Decimal
	ActualWeight decimal.Decimal
	Period       string
	PeriodStart  time.Time
}

// Participant is a scheme member expected to report in a period.
type Participant struct {
	ID        string
	Name      string
	SchemeID  string
	Materials []string
}

// ParticipantFilter selects participants by id list. An empty list selects
// everyone; Exclude inverts the list.
type ParticipantFilter struct {
	IDs     []string
	Exclude bool
}

// Allows reports whether the participant passes the filter.
func (f ParticipantFilter) Allows(participantID string) bool {
	if len(f.IDs) == 0 {
		return true
	}
	listed := false
	for _, id := range f.IDs {
		if id == participantID {
			listed = true
			break
		}
	}
	return listed != f.Exclude
}

// SourceQuery selects source data for one computation.
type SourceQuery struct {
	SchemeID     string
	Category     ParticipantCategory
	Participants ParticipantFilter
	Period       Period
	AuctionLotID string
	ManifestID   string
}

// SourceSet bundles the source data a strategy consumes.
type SourceSet struct {
	Records []SourceRecord
	Lots    []AuctionLot
	// Targets and History feed forecasting of non-reporting participants.
	Targets []Participant
	History []SourceRecord
}

// ForecastHeader is the synthetic volume header written for a forecast
// participant, reconciled later against actual declarations.
type ForecastHeader struct {
	ID              string
	SchemeID        string
	BatchID         string
	ParticipantID   string
	ParticipantName string
	PeriodType      PeriodType
	Period          string
	PeriodStart     time.Time
	Lines           []ForecastLine
	CreatedAt       time.Time
}

// ForecastLine is one material of a forecast header.
type ForecastLine struct {
	MaterialID string
	Volume     decimal.Decimal
	FactID     string
}
