package invoicing

import (
	"context"
	"time"

	payments "stewardship-cloud/internal/payments/domain"
)

// DocumentRepository persists generated documents.
type DocumentRepository interface {
	Save(ctx context.Context, doc *Document) error
	ListByBatch(ctx context.Context, invoiceBatchID string) ([]*Document, error)
	// MarkSynced stamps every unsynced document of the batch and returns how
	// many changed.
	MarkSynced(ctx context.Context, invoiceBatchID string, at time.Time) (int, error)
}

// AttributeSource looks up one stored attribute key without any cascade.
type AttributeSource interface {
	LookupAttribute(ctx context.Context, kind AttributeKind, key AttributeKey) (string, bool, error)
}

// RelationshipSource finds the active material-acceptance relationship.
type RelationshipSource interface {
	ActiveRelationship(ctx context.Context, schemeID, participantID, materialID string, at time.Time) (Relationship, bool, error)
}

// Tx is the transactional view of one participant's invoicing work.
type Tx interface {
	Documents() DocumentRepository
	Facts() payments.FactRepository
}

// UnitOfWork runs fn in one transaction; fn's error rolls it back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
