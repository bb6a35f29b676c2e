package eventing

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryOutbox keeps outbox records in memory.
type MemoryOutbox struct {
	mu      sync.Mutex
	records []memoryRecord
}

type memoryRecord struct {
	OutboxRecord
	status string
}

// NewMemoryOutbox constructs an empty outbox.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{}
}

// Insert appends a pending record.
func (o *MemoryOutbox) Insert(ctx context.Context, env Envelope) (string, error) {
	_ = ctx
	id := uuid.NewString()
	o.mu.Lock()
	o.records = append(o.records, memoryRecord{OutboxRecord: OutboxRecord{ID: id, Envelope: env}, status: "pending"})
	o.mu.Unlock()
	return id, nil
}

// ListPending returns pending records in insertion order.
func (o *MemoryOutbox) ListPending(ctx context.Context, limit int) ([]OutboxRecord, error) {
	_ = ctx
	o.mu.Lock()
	defer o.mu.Unlock()
	var result []OutboxRecord
	for _, r := range o.records {
		if r.status != "pending" {
			continue
		}
		result = append(result, r.OutboxRecord)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// MarkSent marks a record sent.
func (o *MemoryOutbox) MarkSent(ctx context.Context, id string) error {
	return o.mark(ctx, id, "sent")
}

// MarkFailed marks a record failed.
func (o *MemoryOutbox) MarkFailed(ctx context.Context, id string) error {
	return o.mark(ctx, id, "failed")
}

// Envelopes returns every envelope written so far.
func (o *MemoryOutbox) Envelopes() []Envelope {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := make([]Envelope, 0, len(o.records))
	for _, r := range o.records {
		result = append(result, r.Envelope)
	}
	return result
}

func (o *MemoryOutbox) mark(ctx context.Context, id, status string) error {
	_ = ctx
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.records {
		if o.records[i].ID == id {
			o.records[i].status = status
		}
	}
	return nil
}
