package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	invoicing "stewardship-cloud/internal/invoicing/domain"
)

// AttributeSource reads invoice_attributes. Wildcard columns hold "*".
type AttributeSource struct {
	db *sql.DB
}

// NewAttributeSource constructs a source.
func NewAttributeSource(db *sql.DB) *AttributeSource {
	return &AttributeSource{db: db}
}

// LookupAttribute returns the value stored under exactly this key.
func (s *AttributeSource) LookupAttribute(ctx context.Context, kind invoicing.AttributeKind, key invoicing.AttributeKey) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, errors.New("attribute source: nil db")
	}
	key = key.Normalized()
	var value string
	err := s.db.QueryRowContext(ctx, `
SELECT value
FROM invoice_attributes
WHERE scheme_id = $1 AND kind = $2 AND document_type = $3 AND category = $4
	AND payment_type = $5 AND material_id = $6 AND platform_fee = $7`,
		key.SchemeID, string(kind), string(key.DocumentType), key.Category,
		key.PaymentType, key.MaterialID, key.PlatformFee,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// RelationshipSource reads material_acceptance_relationships.
type RelationshipSource struct {
	db *sql.DB
}

// NewRelationshipSource constructs a source.
func NewRelationshipSource(db *sql.DB) *RelationshipSource {
	return &RelationshipSource{db: db}
}

// ActiveRelationship returns the latest effective active relationship for
// the participant and material at t.
func (s *RelationshipSource) ActiveRelationship(ctx context.Context, schemeID, participantID, materialID string, at time.Time) (invoicing.Relationship, bool, error) {
	if s == nil || s.db == nil {
		return invoicing.Relationship{}, false, errors.New("relationship source: nil db")
	}
	var (
		rel      invoicing.Relationship
		from, to sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
SELECT scheme_id, participant_id, material_id, counterparty_id, counterparty_name,
	legal_entity, payment_method, active, effective_from, effective_to
FROM material_acceptance_relationships
WHERE scheme_id = $1 AND participant_id = $2 AND material_id = $3 AND active
	AND (effective_from IS NULL OR effective_from <= $4)
	AND (effective_to IS NULL OR effective_to > $4)
ORDER BY effective_from DESC NULLS LAST
LIMIT 1`, schemeID, participantID, materialID, at.UTC()).Scan(
		&rel.SchemeID, &rel.ParticipantID, &rel.MaterialID, &rel.CounterpartyID, &rel.CounterpartyName,
		&rel.LegalEntity, &rel.PaymentMethod, &rel.Active, &from, &to,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return invoicing.Relationship{}, false, nil
	}
	if err != nil {
		return invoicing.Relationship{}, false, err
	}
	if from.Valid {
		rel.EffectiveFrom = from.Time.UTC()
	}
	if to.Valid {
		rel.EffectiveTo = to.Time.UTC()
	}
	return rel, true, nil
}
