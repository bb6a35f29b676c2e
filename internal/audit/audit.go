package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"stewardship-cloud/internal/auth"
)

// Entry represents an audit log entry.
type Entry struct {
	ID            string
	SchemeID      string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	Category      string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// Reader lists audit entries of a scheme.
type Reader interface {
	ListBySchemeID(ctx context.Context, schemeID string, limit int) ([]Entry, error)
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FromRequest builds an entry carrying the caller identity of r.
func FromRequest(r *http.Request, action, resourceType, resourceID string, meta map[string]any) Entry {
	entry := Entry{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
	if len(meta) > 0 {
		entry.Metadata, _ = json.Marshal(meta)
	}
	if r == nil {
		return entry
	}
	ctx := r.Context()
	entry.SchemeID = auth.SchemeIDFromContext(ctx)
	entry.Actor = auth.SubjectFromContext(ctx)
	entry.Role = string(auth.RoleFromContext(ctx))
	entry.IP = ClientIP(r)
	entry.UserAgent = r.UserAgent()
	return entry
}

// MemoryLog keeps entries in process.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryLog constructs an empty in-memory audit log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Log appends an entry.
func (l *MemoryLog) Log(_ context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	return nil
}

// Entries returns a copy of the logged entries.
func (l *MemoryLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ListBySchemeID returns the latest entries for a scheme, newest first.
func (l *MemoryLog) ListBySchemeID(_ context.Context, schemeID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if l.entries[i].SchemeID == schemeID {
			out = append(out, l.entries[i])
		}
	}
	return out, nil
}
