package auth

import (
	"fmt"
	"strings"
)

// Principal is a validated request identity: the subject's ids and the
// claims snapshot carried by the access token. It is built at token
// validation time and never refreshed within a request.
type Principal struct {
	UserID int64
	Email  string
	UUID   string
	Claims []string

	index map[string]struct{}
}

// NewPrincipal constructs a principal with an indexed claim set.
func NewPrincipal(userID int64, email, uuid string, claims []string) Principal {
	index := make(map[string]struct{}, len(claims))
	for _, c := range claims {
		index[c] = struct{}{}
	}
	return Principal{UserID: userID, Email: email, UUID: uuid, Claims: claims, index: index}
}

// HasPermission reports whether the principal's claims contain code.
func (p Principal) HasPermission(code string) bool {
	_, ok := p.index[code]
	return ok
}

// Missing returns the required codes absent from the principal's claims,
// preserving the required order.
func (p Principal) Missing(required []string) []string {
	var missing []string
	for _, code := range required {
		if !p.HasPermission(code) {
			missing = append(missing, code)
		}
	}
	return missing
}

// Authorize decides whether a principal may pass a route's required
// permission set. An empty set allows unconditionally. A nil principal
// with a non-empty set fails ErrUnauthorized. Otherwise every required
// code must be present in the claims; the Forbidden error names the
// missing codes, and includes the held claims only when diagnostic is
// true (never in production responses).
func Authorize(principal *Principal, required []string, diagnostic bool) error {
	if len(required) == 0 {
		return nil
	}
	if principal == nil {
		return fmt.Errorf("%w: not authenticated", ErrUnauthorized)
	}
	missing := principal.Missing(required)
	if len(missing) == 0 {
		return nil
	}
	if diagnostic {
		return fmt.Errorf("%w: missing permissions: %s (held: %s)",
			ErrForbidden, strings.Join(missing, ", "), strings.Join(principal.Claims, ", "))
	}
	return fmt.Errorf("%w: missing permissions: %s", ErrForbidden, strings.Join(missing, ", "))
}
