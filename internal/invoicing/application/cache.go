package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	invoicing "stewardship-cloud/internal/invoicing/domain"
	"stewardship-cloud/internal/observability/metrics"
	payments "stewardship-cloud/internal/payments/domain"
)

type cacheKey struct {
	kind invoicing.AttributeKind
	key  invoicing.AttributeKey
}

// AttributeCache memoizes accounting attribute lookups for one scheme. It is
// built per generation run and is safe for concurrent use.
type AttributeCache struct {
	schemeID string
	source   invoicing.AttributeSource

	mu      sync.Mutex
	entries map[cacheKey]string
}

// NewAttributeCache constructs a cache bound to a scheme.
func NewAttributeCache(schemeID string, source invoicing.AttributeSource) (*AttributeCache, error) {
	if schemeID == "" {
		return nil, errors.New("attribute cache: empty scheme id")
	}
	if source == nil {
		return nil, errors.New("attribute cache: nil attribute source")
	}
	return &AttributeCache{
		schemeID: schemeID,
		source:   source,
		entries:  make(map[cacheKey]string),
	}, nil
}

// SchemeID returns the scheme the cache is bound to.
func (c *AttributeCache) SchemeID() string { return c.schemeID }

// Resolve walks the key cascade and memoizes the first hit under the
// requested key.
func (c *AttributeCache) Resolve(ctx context.Context, kind invoicing.AttributeKind, key invoicing.AttributeKey) (string, error) {
	if key.SchemeID != c.schemeID {
		return "", fmt.Errorf("%w: attribute cache for %s asked for %s", payments.ErrSchemeMismatch, c.schemeID, key.SchemeID)
	}
	requested := cacheKey{kind: kind, key: key}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.entries[requested]; ok {
		metrics.IncAttributeLookup(string(kind), true)
		return v, nil
	}
	metrics.IncAttributeLookup(string(kind), false)
	for _, candidate := range key.Cascade() {
		v, ok, err := c.source.LookupAttribute(ctx, kind, candidate)
		if err != nil {
			return "", fmt.Errorf("lookup %s: %w", kind, err)
		}
		if ok {
			c.entries[requested] = v
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %s category=%s payment_type=%s material=%s document_type=%s",
		invoicing.ErrAttributeNotFound, kind, key.Category, key.PaymentType, key.MaterialID, key.DocumentType)
}

// Len returns the number of memoized entries.
func (c *AttributeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
