package auth

import "errors"

var (
	// ErrNotFound covers missing users, roles, sessions and assignments.
	ErrNotFound = errors.New("auth: not found")
	// ErrConflict covers duplicate emails, role names, tokens and assignments.
	ErrConflict = errors.New("auth: resource conflict")
	// ErrInvalidInput covers malformed input, unknown permission codes and
	// unresolvable role name sets.
	ErrInvalidInput = errors.New("auth: invalid input")
	// ErrUnauthorized covers bad credentials, inactive accounts and
	// invalid or expired tokens.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrForbidden means the caller is authenticated but lacks one or more
	// required permissions.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrInvariant marks data missing after a prior existence check.
	// Treated as a bug, not a recoverable outcome.
	ErrInvariant = errors.New("auth: invariant violation")

	// ErrInvalidToken indicates the token failed signature or claim validation.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenExpired indicates a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
)
