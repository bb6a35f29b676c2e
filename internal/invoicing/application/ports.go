package application

import (
	"context"

	"stewardship-cloud/internal/scheme"
)

// RulesProvider returns scheme settlement rules.
type RulesProvider interface {
	RulesFor(schemeID string) scheme.Rules
}

// GenerationPublisher emits invoice batch events.
type GenerationPublisher interface {
	PublishInvoiceBatchGenerated(ctx context.Context, result GenerateResult) error
}

// ResultNotifier delivers async results to a caller-supplied URL.
type ResultNotifier interface {
	Notify(ctx context.Context, url, kind string, payload any) error
}
