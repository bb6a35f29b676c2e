package memory

import (
	"context"
	"sync"
	"time"

	invoicing "stewardship-cloud/internal/invoicing/domain"
)

type attributeEntry struct {
	kind invoicing.AttributeKind
	key  invoicing.AttributeKey
}

// Attributes is an in-memory attribute table.
type Attributes struct {
	mu     sync.RWMutex
	values map[attributeEntry]string
}

// NewAttributes constructs an empty table.
func NewAttributes() *Attributes {
	return &Attributes{values: make(map[attributeEntry]string)}
}

// Add stores a value. Empty payment type or material are stored as the
// wildcard.
func (a *Attributes) Add(kind invoicing.AttributeKind, key invoicing.AttributeKey, value string) {
	a.mu.Lock()
	a.values[attributeEntry{kind: kind, key: key.Normalized()}] = value
	a.mu.Unlock()
}

// LookupAttribute returns the value stored under exactly this key.
func (a *Attributes) LookupAttribute(ctx context.Context, kind invoicing.AttributeKind, key invoicing.AttributeKey) (string, bool, error) {
	_ = ctx
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.values[attributeEntry{kind: kind, key: key.Normalized()}]
	return v, ok, nil
}

// Relationships is an in-memory material-acceptance relationship list.
type Relationships struct {
	mu    sync.RWMutex
	items []invoicing.Relationship
}

// NewRelationships constructs an empty list.
func NewRelationships() *Relationships {
	return &Relationships{}
}

// Add appends relationships.
func (r *Relationships) Add(items ...invoicing.Relationship) {
	r.mu.Lock()
	r.items = append(r.items, items...)
	r.mu.Unlock()
}

// ActiveRelationship returns the most recently effective active relationship
// for the participant and material at t.
func (r *Relationships) ActiveRelationship(ctx context.Context, schemeID, participantID, materialID string, at time.Time) (invoicing.Relationship, bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		best  invoicing.Relationship
		found bool
	)
	for _, rel := range r.items {
		if rel.SchemeID != schemeID || rel.ParticipantID != participantID || rel.MaterialID != materialID {
			continue
		}
		if !rel.ActiveAt(at) {
			continue
		}
		if !found || rel.EffectiveFrom.After(best.EffectiveFrom) {
			best = rel
			found = true
		}
	}
	return best, found, nil
}
