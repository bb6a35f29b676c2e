package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"stewardship-cloud/internal/audit"
	"stewardship-cloud/internal/auth"
	"stewardship-cloud/internal/payments/application"
	payments "stewardship-cloud/internal/payments/domain"
)

// Handler serves payment computation routes under /api/v1/payments.
type Handler struct {
	compute     *application.ComputeService
	transitions *application.TransitionService
	batches     payments.BatchRepository
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(compute *application.ComputeService, transitions *application.TransitionService, batches payments.BatchRepository, auditLogger audit.Logger) (*Handler, error) {
	if compute == nil {
		return nil, errors.New("payments handler: nil compute service")
	}
	if transitions == nil {
		return nil, errors.New("payments handler: nil transition service")
	}
	return &Handler{compute: compute, transitions: transitions, batches: batches, auditLogger: auditLogger}, nil
}

// ServeHTTP routes payment requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/payments/compute" && r.Method == http.MethodPost:
		h.handleCompute(w, r)
		return
	case path == "/api/v1/payments/transitions" && r.Method == http.MethodPost:
		h.handleTransitions(w, r)
		return
	case strings.HasPrefix(path, "/api/v1/payments/batches/") && r.Method == http.MethodGet:
		h.handleGetBatch(w, r, strings.TrimPrefix(path, "/api/v1/payments/batches/"))
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

type computeRequest struct {
	SchemeID       string   `json:"schemeId"`
	Category       string   `json:"category"`
	ParticipantIDs []string `json:"participantIds"`
	Exclude        bool     `json:"exclude"`
	AuctionLotID   string   `json:"auctionLotId"`
	ManifestID     string   `json:"manifestId"`
	Period         string   `json:"period"`
	CallbackURL    string   `json:"callbackUrl"`
}

func (h *Handler) handleCompute(w http.ResponseWriter, r *http.Request) {
	var body computeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	schemeID, err := auth.ResolveScheme(r.Context(), body.SchemeID)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if err := auth.AuthorizeCategory(r.Context(), body.Category); err != nil {
		respondServiceError(w, err)
		return
	}
	req := application.ComputeRequest{
		SchemeID:       schemeID,
		Category:       body.Category,
		ParticipantIDs: body.ParticipantIDs,
		Exclude:        body.Exclude,
		AuctionLotID:   body.AuctionLotID,
		ManifestID:     body.ManifestID,
		Period:         body.Period,
		CallbackURL:    body.CallbackURL,
	}

	if r.URL.Query().Get("async") == "1" {
		if err := h.compute.ComputeAsync(req); err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "schemeId": schemeID})
		h.logAudit(r, "payments.compute_async", "payment_batch", "", body.Category, map[string]any{
			"callback_url": body.CallbackURL,
		})
		return
	}

	summary, err := h.compute.Compute(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
	h.logAudit(r, "payments.compute", "payment_batch", summary.BatchID, summary.Category, map[string]any{
		"status":       summary.Status,
		"transactions": summary.TransactionCount,
		"period":       summary.Period,
	})
}

func (h *Handler) handleTransitions(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SchemeID string `json:"schemeId"`
		Category string `json:"category"`
		Items    []struct {
			ParticipantID string `json:"participantId"`
			NewStatus     string `json:"newStatus"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	schemeID, err := auth.ResolveScheme(r.Context(), body.SchemeID)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if err := auth.AuthorizeCategory(r.Context(), body.Category); err != nil {
		respondServiceError(w, err)
		return
	}
	req := application.TransitionRequest{SchemeID: schemeID, Category: body.Category}
	for _, item := range body.Items {
		req.Items = append(req.Items, application.TransitionItem{ParticipantID: item.ParticipantID, NewStatus: item.NewStatus})
	}
	result, err := h.transitions.Apply(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
	h.logAudit(r, "payments.transition", "payment_transactions", "", body.Category, map[string]any{
		"updated": result.Updated,
		"skipped": result.Skipped,
	})
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" || strings.Contains(id, "/") || h.batches == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	batch, err := h.batches.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if _, err := auth.ResolveScheme(r.Context(), batch.SchemeID()); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if err := auth.AuthorizeCategory(r.Context(), string(batch.Category())); err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"batchId":  batch.ID(),
		"schemeId": batch.SchemeID(),
		"category": batch.Category(),
		"period":   batch.Period().Value,
		"status":   batch.Status(),
		"start":    batch.Start(),
		"end":      batch.End(),
		"error":    batch.ErrorMessage(),
	})
}

func (h *Handler) logAudit(r *http.Request, action, resourceType, resourceID, category string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	entry := audit.FromRequest(r, action, resourceType, resourceID, meta)
	if entry.SchemeID == "" {
		return
	}
	entry.Category = category
	_ = h.auditLogger.Log(r.Context(), entry)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, auth.ErrSchemeMismatch), errors.Is(err, auth.ErrCategoryForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, payments.ErrConcurrentUpdate):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, payments.ErrBatchNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, payments.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
