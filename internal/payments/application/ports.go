package application

import (
	"context"

	payments "stewardship-cloud/internal/payments/domain"
	"stewardship-cloud/internal/scheme"
)

// SourceLoader reads the volume and claim data a strategy consumes.
type SourceLoader interface {
	Load(ctx context.Context, query payments.SourceQuery) (payments.SourceSet, error)
}

// ReferenceData loads effective-dated reference tables for one run.
type ReferenceData interface {
	LoadRates(ctx context.Context, schemeID, kind string) ([]payments.ReferenceRate, error)
	LoadConversions(ctx context.Context, schemeID string) ([]payments.UnitConversion, error)
	LoadSeasonality(ctx context.Context, schemeID string) ([]payments.SeasonalityIndex, error)
}

// RulesProvider returns scheme settlement rules.
type RulesProvider interface {
	RulesFor(schemeID string) scheme.Rules
}

// BatchPublisher emits batch completion events.
type BatchPublisher interface {
	PublishBatchCompleted(ctx context.Context, summary payments.ExecutionSummary) error
}

// ResultNotifier delivers async results to a caller-supplied URL.
type ResultNotifier interface {
	Notify(ctx context.Context, url, kind string, payload any) error
}
