package interfaces

import (
	"context"

	"stewardship-cloud/internal/eventing"
	"stewardship-cloud/internal/payments/application"
	payments "stewardship-cloud/internal/payments/domain"
)

// OutboxPublisher writes batch completed events to outbox.
type OutboxPublisher struct {
	publisher *eventing.Publisher
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher}
}

// PublishBatchCompleted writes event to outbox.
func (p *OutboxPublisher) PublishBatchCompleted(ctx context.Context, summary payments.ExecutionSummary) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	ctx = eventing.WithSchemeID(ctx, summary.SchemeID)
	ctx = eventing.WithCorrelationID(ctx, summary.BatchID)
	return p.publisher.Publish(ctx, application.NewBatchCompleted(summary))
}
