package auth

import (
	"net/http"
	"strings"
)

// route maps a method and path to the permission it needs. An empty method
// matches any method; prefix routes match by path prefix and suffix.
type route struct {
	method string
	path   string
	prefix bool
	suffix string
	perm   Permission
}

var routes = []route{
	{method: http.MethodPost, path: "/api/v1/payments/compute", perm: PermComputePayments},
	{method: http.MethodPost, path: "/api/v1/payments/transitions", perm: PermTransitionFacts},
	{method: http.MethodGet, path: "/api/v1/payments/batches/", prefix: true, perm: PermViewBatches},
	{method: http.MethodPost, path: "/api/v1/invoices/generate", perm: PermGenerateInvoices},
	{method: http.MethodGet, path: "/api/v1/invoices/", prefix: true, suffix: "/export.pdf", perm: PermExportDocuments},
	{method: http.MethodGet, path: "/api/v1/invoices/", prefix: true, suffix: "/export.xlsx", perm: PermExportDocuments},
	{method: http.MethodPost, path: "/api/v1/invoices/", prefix: true, suffix: "/sync", perm: PermSyncDocuments},
	{method: http.MethodGet, path: "/api/v1/invoices/", prefix: true, perm: PermViewDocuments},
	{path: "/api/v1/audit", perm: PermViewAudit},
}

func (rt route) matches(method, path string) bool {
	if rt.method != "" && rt.method != method {
		return false
	}
	if !rt.prefix {
		return path == rt.path
	}
	return strings.HasPrefix(path, rt.path) && strings.HasSuffix(path, rt.suffix)
}

// Policy decides which permission a request needs.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds the route policy with unauthenticated exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt reports whether a request skips authentication.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredPermission resolves the permission of a request. Unlisted API
// reads need a view permission and unlisted writes need admin; non-API paths
// need none.
func (p Policy) RequiredPermission(r *http.Request) (Permission, bool) {
	if r == nil {
		return "", false
	}
	path, method := r.URL.Path, r.Method
	for _, rt := range routes {
		if rt.matches(method, path) {
			return rt.perm, true
		}
	}
	if !strings.HasPrefix(path, "/api/") {
		return "", false
	}
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return PermViewBatches, true
	}
	return PermAdminister, true
}
