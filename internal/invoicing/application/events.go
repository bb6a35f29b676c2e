package application

import (
	"time"

	"github.com/shopspring/decimal"

	invoicing "stewardship-cloud/internal/invoicing/domain"
)

// InvoiceBatchGenerated is emitted after a generation run persists documents.
type InvoiceBatchGenerated struct {
	InvoiceBatchID  string          `json:"invoice_batch_id"`
	SchemeID        string          `json:"scheme_id"`
	DocumentCount   int             `json:"document_count"`
	ErrorCount      int             `json:"error_count"`
	TotalPayable    decimal.Decimal `json:"total_payable"`
	TotalReceivable decimal.Decimal `json:"total_receivable"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

// EventName implements eventing.Named.
func (InvoiceBatchGenerated) EventName() string { return "invoicing.batch_generated" }

// NewInvoiceBatchGenerated summarizes a generation result.
func NewInvoiceBatchGenerated(result GenerateResult, at time.Time) InvoiceBatchGenerated {
	evt := InvoiceBatchGenerated{
		InvoiceBatchID:  result.InvoiceBatchID,
		SchemeID:        result.SchemeID,
		DocumentCount:   len(result.Documents),
		ErrorCount:      len(result.Errors),
		TotalPayable:    decimal.Zero,
		TotalReceivable: decimal.Zero,
		OccurredAt:      at,
	}
	for _, doc := range result.Documents {
		switch doc.Type {
		case invoicing.DocumentPayable:
			evt.TotalPayable = evt.TotalPayable.Add(doc.TotalAmount)
		case invoicing.DocumentReceivable:
			evt.TotalReceivable = evt.TotalReceivable.Add(doc.TotalAmount)
		}
	}
	return evt
}
