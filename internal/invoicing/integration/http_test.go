package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stewardship-cloud/internal/audit"
	"stewardship-cloud/internal/auth"
	"stewardship-cloud/internal/invoicing/application"
	invoicing "stewardship-cloud/internal/invoicing/domain"
	"stewardship-cloud/internal/invoicing/interfaces"
	payments "stewardship-cloud/internal/payments/domain"
)

func TestInvoiceHTTP_GenerateExportSync(t *testing.T) {
	h := newHarness(t)
	h.seedAttributes(payments.CategoryProcessor, invoicing.DocumentPayable, false)
	h.seed(t,
		fact("f-1", "proc-1", payments.CategoryProcessor, payments.PaymentTypeProcessingFee, "PET", "250.00"),
		fact("f-2", "proc-2", payments.CategoryProcessor, payments.PaymentTypeProcessingFee, "PET", "120.00"),
	)
	auditLog := audit.NewMemoryLog()
	handler, err := interfaces.NewHandler(h.service, auditLog)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/api/v1/invoices/", handler)

	serve := func(method, path string, body []byte, schemeID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewReader(body))
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{SchemeID: schemeID, Role: auth.RoleAdmin, Subject: "finance@example.com"}))
		resp := httptest.NewRecorder()
		mux.ServeHTTP(resp, req)
		return resp
	}

	genResp := serve(http.MethodPost, "/api/v1/invoices/generate", []byte(`{"category":"PROCESSOR"}`), testScheme)
	if genResp.Code != http.StatusOK {
		t.Fatalf("generate status %d: %s", genResp.Code, genResp.Body.String())
	}
	var result application.GenerateResult
	if err := json.Unmarshal(genResp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.SchemeID != testScheme || len(result.Documents) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	base := "/api/v1/invoices/" + result.InvoiceBatchID

	getResp := serve(http.MethodGet, base, nil, testScheme)
	if getResp.Code != http.StatusOK {
		t.Fatalf("get status %d", getResp.Code)
	}

	pdfResp := serve(http.MethodGet, base+"/export.pdf", nil, testScheme)
	if pdfResp.Code != http.StatusOK {
		t.Fatalf("pdf status %d: %s", pdfResp.Code, pdfResp.Body.String())
	}
	if pdfResp.Header().Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(pdfResp.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("unexpected pdf response")
	}

	xlsxResp := serve(http.MethodGet, base+"/export.xlsx", nil, testScheme)
	if xlsxResp.Code != http.StatusOK {
		t.Fatalf("xlsx status %d: %s", xlsxResp.Code, xlsxResp.Body.String())
	}
	if xlsxResp.Header().Get("Content-Type") != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("xlsx content type %s", xlsxResp.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(xlsxResp.Body.Bytes(), []byte("PK")) {
		t.Fatal("xlsx body is not a zip archive")
	}

	syncResp := serve(http.MethodPost, base+"/sync", nil, testScheme)
	if syncResp.Code != http.StatusOK {
		t.Fatalf("sync status %d", syncResp.Code)
	}
	var synced struct {
		Synced int `json:"synced"`
	}
	if err := json.Unmarshal(syncResp.Body.Bytes(), &synced); err != nil || synced.Synced != 2 {
		t.Fatalf("sync body %s", syncResp.Body.String())
	}

	if resp := serve(http.MethodGet, base, nil, "scheme-other"); resp.Code != http.StatusForbidden {
		t.Fatalf("cross-scheme get status %d", resp.Code)
	}
	if resp := serve(http.MethodGet, "/api/v1/invoices/unknown-batch", nil, testScheme); resp.Code != http.StatusNotFound {
		t.Fatalf("unknown batch status %d", resp.Code)
	}
	if resp := serve(http.MethodPost, "/api/v1/invoices/generate", []byte(`{"schemeId":"scheme-other","category":"PROCESSOR"}`), testScheme); resp.Code != http.StatusForbidden {
		t.Fatalf("foreign scheme generate status %d", resp.Code)
	}
	if resp := serve(http.MethodPost, "/api/v1/invoices/generate", []byte(`{"category":"SMELTER"}`), testScheme); resp.Code != http.StatusBadRequest {
		t.Fatalf("invalid category status %d", resp.Code)
	}

	actions := map[string]int{}
	for _, e := range auditLog.Entries() {
		if e.SchemeID != testScheme {
			t.Fatalf("audit entry scheme %s", e.SchemeID)
		}
		actions[e.Action]++
	}
	if actions["invoices.generate"] != 1 || actions["invoices.export"] != 2 || actions["invoices.sync"] != 1 {
		t.Fatalf("unexpected audit actions: %v", actions)
	}
}

func TestInvoiceHTTP_CategoryScopedTokens(t *testing.T) {
	h := newHarness(t)
	h.seedAttributes(payments.CategoryProcessor, invoicing.DocumentPayable, false)
	h.seed(t, fact("f-1", "proc-1", payments.CategoryProcessor, payments.PaymentTypeProcessingFee, "PET", "250.00"))
	handler, err := interfaces.NewHandler(h.service, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/api/v1/invoices/", handler)
	secret := []byte("finance-secret")
	server := auth.NewMiddleware(secret, auth.NewDefaultPolicy(nil, nil)).Wrap(mux)

	serve := func(method, path, body string, id auth.Identity) *httptest.ResponseRecorder {
		t.Helper()
		token, err := auth.SignToken(id, secret, time.Hour)
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		server.ServeHTTP(resp, req)
		return resp
	}
	mrfOnly := auth.Identity{SchemeID: testScheme, Role: auth.RoleFinance, Subject: "mrf-desk", Categories: []string{"MRF"}}
	processors := auth.Identity{SchemeID: testScheme, Role: auth.RoleFinance, Subject: "proc-desk", Categories: []string{"PROCESSOR"}}
	viewer := auth.Identity{SchemeID: testScheme, Role: auth.RoleViewer, Subject: "auditor"}

	if resp := serve(http.MethodPost, "/api/v1/invoices/generate", `{"category":"PROCESSOR"}`, viewer); resp.Code != http.StatusForbidden {
		t.Fatalf("viewer generate status %d", resp.Code)
	}
	if resp := serve(http.MethodPost, "/api/v1/invoices/generate", `{"category":"PROCESSOR"}`, mrfOnly); resp.Code != http.StatusForbidden {
		t.Fatalf("out-of-scope generate status %d", resp.Code)
	}
	if got := h.status(t, "f-1"); got != payments.FactAwaitingInvoicing {
		t.Fatalf("fact status after rejected generate = %s", got)
	}

	resp := serve(http.MethodPost, "/api/v1/invoices/generate", `{"category":"PROCESSOR"}`, processors)
	if resp.Code != http.StatusOK {
		t.Fatalf("generate status %d: %s", resp.Code, resp.Body.String())
	}
	var result application.GenerateResult
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil || len(result.Documents) != 1 {
		t.Fatalf("generate result %s", resp.Body.String())
	}
	base := "/api/v1/invoices/" + result.InvoiceBatchID
	if resp := serve(http.MethodGet, base, "", mrfOnly); resp.Code != http.StatusForbidden {
		t.Fatalf("out-of-scope get status %d", resp.Code)
	}
	if resp := serve(http.MethodGet, base, "", viewer); resp.Code != http.StatusOK {
		t.Fatalf("viewer get status %d", resp.Code)
	}
	if resp := serve(http.MethodPost, base+"/sync", "", viewer); resp.Code != http.StatusForbidden {
		t.Fatalf("viewer sync status %d", resp.Code)
	}
}
