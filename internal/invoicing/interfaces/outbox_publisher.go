package interfaces

import (
	"context"
	"time"

	"stewardship-cloud/internal/eventing"
	"stewardship-cloud/internal/invoicing/application"
)

// OutboxPublisher writes invoice batch events to outbox.
type OutboxPublisher struct {
	publisher *eventing.Publisher
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher}
}

// PublishInvoiceBatchGenerated writes event to outbox.
func (p *OutboxPublisher) PublishInvoiceBatchGenerated(ctx context.Context, result application.GenerateResult) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	ctx = eventing.WithSchemeID(ctx, result.SchemeID)
	ctx = eventing.WithCorrelationID(ctx, result.InvoiceBatchID)
	return p.publisher.Publish(ctx, application.NewInvoiceBatchGenerated(result, time.Now().UTC()))
}
