package application

import (
	"time"

	"github.com/shopspring/decimal"

	payments "stewardship-cloud/internal/payments/domain"
)

// BatchCompleted is emitted after a batch closes successfully.
type BatchCompleted struct {
	BatchID          string          `json:"batch_id"`
	SchemeID         string          `json:"scheme_id"`
	Category         string          `json:"category"`
	Period           string          `json:"period"`
	TransactionCount int             `json:"transaction_count"`
	ParticipantCount int             `json:"participant_count"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	OccurredAt       time.Time       `json:"occurred_at"`
}

// EventName implements eventing.Named.
func (BatchCompleted) EventName() string { return "payments.batch_completed" }

// NewBatchCompleted builds the event from a summary.
func NewBatchCompleted(summary payments.ExecutionSummary) BatchCompleted {
	return BatchCompleted{
		BatchID:          summary.BatchID,
		SchemeID:         summary.SchemeID,
		Category:         summary.Category,
		Period:           summary.Period,
		TransactionCount: summary.TransactionCount,
		ParticipantCount: summary.ParticipantCount,
		TotalAmount:      summary.TotalAmount,
		OccurredAt:       summary.End,
	}
}
