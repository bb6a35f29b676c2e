package interfaces

import (
	"context"
	"errors"

	"go.uber.org/zap"

	payments "stewardship-cloud/internal/payments/domain"
)

// LoggingPublisher logs batch completed events.
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

// PublishBatchCompleted logs the event.
func (p *LoggingPublisher) PublishBatchCompleted(ctx context.Context, summary payments.ExecutionSummary) error {
	_ = ctx
	if p == nil {
		return errors.New("payments publisher: nil publisher")
	}
	p.logger.Info("payment batch completed",
		zap.String("batch_id", summary.BatchID),
		zap.String("scheme_id", summary.SchemeID),
		zap.String("category", summary.Category),
		zap.Int("transactions", summary.TransactionCount),
		zap.String("total_amount", summary.TotalAmount.StringFixed(2)),
	)
	return nil
}
