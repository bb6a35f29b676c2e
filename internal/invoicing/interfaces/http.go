package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"stewardship-cloud/internal/audit"
	"stewardship-cloud/internal/auth"
	"stewardship-cloud/internal/invoicing/application"
	invoicing "stewardship-cloud/internal/invoicing/domain"
	"stewardship-cloud/internal/observability/metrics"
	payments "stewardship-cloud/internal/payments/domain"
)

const routePrefix = "/api/v1/invoices/"

// Handler serves invoicing routes under /api/v1/invoices.
type Handler struct {
	service     *application.GenerationService
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *application.GenerationService, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("invoicing handler: nil generation service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes invoicing requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == routePrefix+"generate" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGenerate(w, r)
		return
	}
	if !strings.HasPrefix(path, routePrefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(strings.TrimPrefix(path, routePrefix), "/")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	batchID := parts[0]
	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGet(w, r, batchID)
		return
	}
	switch parts[1] {
	case "export.pdf":
		if r.Method == http.MethodGet {
			h.handleExport(w, r, batchID, "pdf")
			return
		}
	case "export.xlsx":
		if r.Method == http.MethodGet {
			h.handleExport(w, r, batchID, "xlsx")
			return
		}
	case "sync":
		if r.Method == http.MethodPost {
			h.handleSync(w, r, batchID)
			return
		}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusMethodNotAllowed)
}

type generateRequest struct {
	SchemeID            string   `json:"schemeId"`
	Category            string   `json:"category"`
	ParticipantIDs      []string `json:"participantIds"`
	Exclude             bool     `json:"exclude"`
	PaymentTypes        []string `json:"paymentTypes"`
	ExcludePaymentTypes bool     `json:"excludePaymentTypes"`
	AuctionLotID        string   `json:"auctionLotId"`
	CallbackURL         string   `json:"callbackUrl"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
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
	req := application.GenerateRequest{
		SchemeID:            schemeID,
		Category:            body.Category,
		ParticipantIDs:      body.ParticipantIDs,
		Exclude:             body.Exclude,
		PaymentTypes:        body.PaymentTypes,
		ExcludePaymentTypes: body.ExcludePaymentTypes,
		AuctionLotID:        body.AuctionLotID,
		CallbackURL:         body.CallbackURL,
	}

	if r.URL.Query().Get("async") == "1" {
		if err := h.service.GenerateAsync(req); err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "schemeId": schemeID})
		h.logAudit(r, "invoices.generate_async", "", body.Category, map[string]any{
			"callback_url": body.CallbackURL,
		})
		return
	}

	result, err := h.service.Generate(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
	h.logAudit(r, "invoices.generate", result.InvoiceBatchID, body.Category, map[string]any{
		"documents": len(result.Documents),
		"errors":    len(result.Errors),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, batchID string) {
	docs, ok := h.loadDocuments(w, r, batchID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"invoiceBatchId": batchID,
		"schemeId":       docs[0].SchemeID,
		"documents":      docs,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, batchID, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveDocumentExport(format, result, time.Since(start))
	}()

	docs, ok := h.loadDocuments(w, r, batchID)
	if !ok {
		result = metrics.ResultError
		return
	}
	var (
		data        []byte
		err         error
		contentType string
	)
	switch format {
	case "pdf":
		data, err = BuildDocumentsPDF(batchID, docs)
		contentType = "application/pdf"
	default:
		data, err = BuildDocumentsXLSX(batchID, docs)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export "+format+" error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="invoices-`+batchID+`.`+format+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, "invoices.export", batchID, docs[0].Category, map[string]any{"format": format})
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request, batchID string) {
	docs, ok := h.loadDocuments(w, r, batchID)
	if !ok {
		return
	}
	n, err := h.service.MarkSynced(r.Context(), batchID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoiceBatchId": batchID, "synced": n})
	h.logAudit(r, "invoices.sync", batchID, docs[0].Category, map[string]any{"synced": n})
}

// loadDocuments fetches a batch and checks it belongs to the caller's scheme.
func (h *Handler) loadDocuments(w http.ResponseWriter, r *http.Request, batchID string) ([]*invoicing.Document, bool) {
	docs, err := h.service.Documents(r.Context(), batchID)
	if err != nil {
		respondServiceError(w, err)
		return nil, false
	}
	if _, err := auth.ResolveScheme(r.Context(), docs[0].SchemeID); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, false
	}
	if err := auth.AuthorizeCategory(r.Context(), docs[0].Category); err != nil {
		respondServiceError(w, err)
		return nil, false
	}
	return docs, true
}

func (h *Handler) logAudit(r *http.Request, action, resourceID, category string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	entry := audit.FromRequest(r, action, "invoice_batch", resourceID, meta)
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
	case errors.Is(err, payments.ErrSchemeMismatch):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, invoicing.ErrDocumentNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, payments.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
