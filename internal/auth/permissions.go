package auth

// Role is the job function carried in a token.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleReviewer Role = "reviewer"
	RoleOperator Role = "operator"
	RoleFinance  Role = "finance"
	RoleAdmin    Role = "admin"
)

// Permission is one guarded action of the payments and invoicing surface.
type Permission string

const (
	PermViewBatches      Permission = "payments:view"
	PermComputePayments  Permission = "payments:compute"
	PermTransitionFacts  Permission = "payments:transition"
	PermViewDocuments    Permission = "invoices:view"
	PermGenerateInvoices Permission = "invoices:generate"
	PermExportDocuments  Permission = "invoices:export"
	PermSyncDocuments    Permission = "invoices:sync"
	PermViewAudit        Permission = "audit:view"
	PermAdminister       Permission = "admin"
)

var viewerPermissions = []Permission{PermViewBatches, PermViewDocuments}

// Reviewers move facts through review and approval; operators also run
// computations. Finance owns document generation and delivery.
var rolePermissions = map[Role]map[Permission]struct{}{
	RoleViewer:   permissionSet(viewerPermissions),
	RoleReviewer: permissionSet(viewerPermissions, PermTransitionFacts),
	RoleOperator: permissionSet(viewerPermissions, PermTransitionFacts, PermComputePayments, PermExportDocuments),
	RoleFinance:  permissionSet(viewerPermissions, PermGenerateInvoices, PermExportDocuments, PermSyncDocuments),
	RoleAdmin: permissionSet(viewerPermissions,
		PermComputePayments, PermTransitionFacts,
		PermGenerateInvoices, PermExportDocuments, PermSyncDocuments,
		PermViewAudit, PermAdminister,
	),
}

func permissionSet(base []Permission, extra ...Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(base)+len(extra))
	for _, p := range base {
		set[p] = struct{}{}
	}
	for _, p := range extra {
		set[p] = struct{}{}
	}
	return set
}

// ParseRole validates a role claim.
func ParseRole(value string) (Role, bool) {
	role := Role(value)
	if _, ok := rolePermissions[role]; !ok {
		return "", false
	}
	return role, true
}

// Can reports whether the role grants perm.
func (r Role) Can(perm Permission) bool {
	_, ok := rolePermissions[r][perm]
	return ok
}
