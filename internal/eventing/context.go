package eventing

import "context"

type contextKey string

const (
	contextKeyScheme contextKey = "eventing.scheme_id"
	contextKeyCorr   contextKey = "eventing.correlation_id"
)

// WithSchemeID sets scheme id in context.
func WithSchemeID(ctx context.Context, schemeID string) context.Context {
	return context.WithValue(ctx, contextKeyScheme, schemeID)
}

// WithCorrelationID sets correlation id in context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, contextKeyCorr, correlationID)
}

// MetaFromContext builds metadata from context.
func MetaFromContext(ctx context.Context) Meta {
	meta := Meta{}
	if schemeID, ok := ctx.Value(contextKeyScheme).(string); ok {
		meta.SchemeID = schemeID
	}
	if corr, ok := ctx.Value(contextKeyCorr).(string); ok {
		meta.CorrelationID = corr
	}
	return meta
}
