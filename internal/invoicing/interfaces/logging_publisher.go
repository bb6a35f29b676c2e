package interfaces

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"stewardship-cloud/internal/invoicing/application"
)

// LoggingPublisher logs invoice batch events.
type LoggingPublisher struct {
	logger *zap.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger *zap.Logger) *LoggingPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingPublisher{logger: logger}
}

// PublishInvoiceBatchGenerated logs the event.
func (p *LoggingPublisher) PublishInvoiceBatchGenerated(ctx context.Context, result application.GenerateResult) error {
	_ = ctx
	if p == nil {
		return errors.New("invoicing publisher: nil publisher")
	}
	evt := application.NewInvoiceBatchGenerated(result, time.Now().UTC())
	p.logger.Info("invoice batch generated",
		zap.String("invoice_batch_id", evt.InvoiceBatchID),
		zap.String("scheme_id", evt.SchemeID),
		zap.Int("documents", evt.DocumentCount),
		zap.Int("errors", evt.ErrorCount),
		zap.String("total_payable", evt.TotalPayable.StringFixed(2)),
		zap.String("total_receivable", evt.TotalReceivable.StringFixed(2)),
	)
	return nil
}
