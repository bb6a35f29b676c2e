package auth

import "errors"

var (
	ErrUnauthorized   = errors.New("auth: unauthorized")
	ErrForbidden      = errors.New("auth: forbidden")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrSchemeMismatch = errors.New("auth: scheme mismatch")
	// ErrCategoryForbidden is returned when a token's category scope excludes
	// the participant category of a request.
	ErrCategoryForbidden = errors.New("auth: participant category not permitted")
)
