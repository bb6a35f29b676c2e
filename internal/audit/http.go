package audit

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stewardship-cloud/internal/auth"
)

const maxListLimit = 500

// Handler serves GET /api/v1/audit for the caller's scheme.
type Handler struct {
	reader Reader
}

// NewHandler constructs an audit handler.
func NewHandler(reader Reader) (*Handler, error) {
	if reader == nil {
		return nil, errors.New("audit handler: nil reader")
	}
	return &Handler{reader: reader}, nil
}

type entryView struct {
	ID            string          `json:"id"`
	SchemeID      string          `json:"schemeId"`
	Actor         string          `json:"actor"`
	Role          string          `json:"role"`
	Action        string          `json:"action"`
	ResourceType  string          `json:"resourceType"`
	ResourceID    string          `json:"resourceId"`
	Category      string          `json:"category,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	PayloadDigest string          `json:"payloadDigest,omitempty"`
	IP            string          `json:"ip,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	schemeID, err := auth.ResolveScheme(r.Context(), r.URL.Query().Get("schemeId"))
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if schemeID == "" {
		http.Error(w, "schemeId required", http.StatusBadRequest)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(parsed, maxListLimit)
	}

	entries, err := h.reader.ListBySchemeID(r.Context(), schemeID, limit)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView{
			ID:            e.ID,
			SchemeID:      e.SchemeID,
			Actor:         e.Actor,
			Role:          e.Role,
			Action:        e.Action,
			ResourceType:  e.ResourceType,
			ResourceID:    e.ResourceID,
			Category:      e.Category,
			Metadata:      e.Metadata,
			PayloadDigest: e.PayloadDigest,
			IP:            e.IP,
			CreatedAt:     e.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"schemeId": schemeID, "entries": views})
}

// ClientIP extracts client ip from common headers or RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
