package invoicing

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType is the ledger side of a document.
type DocumentType string

const (
	DocumentPayable    DocumentType = "PAYABLE"
	DocumentReceivable DocumentType = "RECEIVABLE"
)

// Classification follows the sign of the document total.
type Classification string

const (
	ClassificationStandard Classification = "STANDARD"
	ClassificationCredit   Classification = "CREDIT"
)

// Classify returns STANDARD for totals at or above zero, CREDIT otherwise.
func Classify(total decimal.Decimal) Classification {
	if total.IsNegative() {
		return ClassificationCredit
	}
	return ClassificationStandard
}

// Document is an accounting document header with its lines.
type Document struct {
	Number           string          `json:"documentNumber"`
	InvoiceBatchID   string          `json:"invoiceBatchId"`
	SchemeID         string          `json:"schemeId"`
	Type             DocumentType    `json:"documentType"`
	Classification   Classification  `json:"classification"`
	BusinessUnit     string          `json:"businessUnit"`
	LegalEntity      string          `json:"legalEntity"`
	Currency         string          `json:"currency"`
	CounterpartyID   string          `json:"counterpartyId"`
	CounterpartyName string          `json:"counterpartyName"`
	Category         string          `json:"category"`
	PaymentType      string          `json:"paymentType"`
	PaymentMethod    string          `json:"paymentMethod,omitempty"`
	AuctionLotID     string          `json:"auctionLotId,omitempty"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	TaxAmount        decimal.Decimal `json:"taxAmount"`
	Description      string          `json:"description"`
	Lines            []Line          `json:"lines"`
	CreatedAt        time.Time       `json:"createdAt"`
	SyncedAt         time.Time       `json:"syncedAt,omitempty"`
}

// Line is one document line linked to its originating fact.
type Line struct {
	LineNumber        int             `json:"lineNumber"`
	FactID            string          `json:"factId"`
	MaterialID        string          `json:"materialId"`
	Quantity          decimal.Decimal `json:"quantity"`
	Unit              string          `json:"unit"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	Amount            decimal.Decimal `json:"amount"`
	TaxAmount         decimal.Decimal `json:"taxAmount"`
	TaxClassification string          `json:"taxClassification"`
	Distribution      string          `json:"distribution"`
}

// Synced reports whether the document was delivered downstream.
func (d *Document) Synced() bool {
	return d != nil && !d.SyncedAt.IsZero()
}

// MarkSynced records downstream delivery. It is the only change allowed
// after a document is persisted.
func (d *Document) MarkSynced(at time.Time) error {
	if d.Synced() {
		return ErrAlreadySynced
	}
	d.SyncedAt = at.UTC()
	return nil
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Lines = append([]Line(nil), d.Lines...)
	return &cp
}

// FactIDs returns the distinct facts linked from the document lines.
func (d *Document) FactIDs() []string {
	seen := make(map[string]struct{}, len(d.Lines))
	var ids []string
	for _, l := range d.Lines {
		if l.FactID == "" {
			continue
		}
		if _, ok := seen[l.FactID]; ok {
			continue
		}
		seen[l.FactID] = struct{}{}
		ids = append(ids, l.FactID)
	}
	return ids
}
