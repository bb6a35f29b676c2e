package auth

import (
	"context"
	"fmt"
	"strings"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	SchemeID string
	Role     Role
	Subject  string
	// Categories limits the participant categories the caller may act on.
	// Empty means every category of the scheme.
	Categories []string
}

// AllowsCategory reports whether the identity may act on category.
func (id Identity) AllowsCategory(category string) bool {
	if len(id.Categories) == 0 {
		return true
	}
	category = strings.TrimSpace(category)
	for _, c := range id.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

type identityKey struct{}

// WithIdentity stores the caller identity in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// SchemeIDFromContext returns the caller's scheme.
func SchemeIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.SchemeID
}

// RoleFromContext returns the caller's role.
func RoleFromContext(ctx context.Context) Role {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}

// SubjectFromContext returns the caller's subject.
func SubjectFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Subject
}

// ResolveScheme returns the scheme a request acts on. An empty request scheme
// defaults to the token's; a different one is rejected. Requests without an
// authenticated identity pass through unchanged.
func ResolveScheme(ctx context.Context, requested string) (string, error) {
	claimed := SchemeIDFromContext(ctx)
	if claimed == "" {
		return requested, nil
	}
	if requested == "" {
		return claimed, nil
	}
	if requested != claimed {
		return "", ErrSchemeMismatch
	}
	return requested, nil
}

// AuthorizeCategory rejects a participant category outside the caller's
// category scope. Unauthenticated contexts are not restricted.
func AuthorizeCategory(ctx context.Context, category string) error {
	id, ok := IdentityFromContext(ctx)
	if !ok || id.AllowsCategory(category) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrCategoryForbidden, category)
}
