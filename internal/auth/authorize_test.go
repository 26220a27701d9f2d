package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestAuthorizeAllowsWhenClaimsPresent(t *testing.T) {
	p := NewPrincipal(1, "a@b.c", "uuid-1", []string{PermUsersCreate, PermUsersRead})
	if err := Authorize(&p, []string{PermUsersCreate, PermUsersRead}, false); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
}

func TestAuthorizeNamesMissingPermissions(t *testing.T) {
	p := NewPrincipal(1, "a@b.c", "uuid-1", []string{PermUsersRead})
	err := Authorize(&p, []string{PermUsersCreate, PermUsersRead}, false)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if !strings.Contains(err.Error(), PermUsersCreate) {
		t.Fatalf("error should name missing permission: %v", err)
	}
	if strings.Contains(err.Error(), "held") {
		t.Fatalf("non-diagnostic error leaked held claims: %v", err)
	}
}

func TestAuthorizeDiagnosticIncludesHeldClaims(t *testing.T) {
	p := NewPrincipal(1, "a@b.c", "uuid-1", []string{PermUsersRead})
	err := Authorize(&p, []string{PermUsersCreate}, true)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if !strings.Contains(err.Error(), PermUsersRead) {
		t.Fatalf("diagnostic error should list held claims: %v", err)
	}
}

func TestAuthorizeEmptyRequirementAllowsAnyone(t *testing.T) {
	if err := Authorize(nil, nil, false); err != nil {
		t.Fatalf("empty requirement should allow nil principal, got %v", err)
	}
	p := NewPrincipal(1, "a@b.c", "uuid-1", nil)
	if err := Authorize(&p, nil, false); err != nil {
		t.Fatalf("empty requirement should allow, got %v", err)
	}
}

func TestAuthorizeNilPrincipalUnauthorized(t *testing.T) {
	err := Authorize(nil, []string{PermUsersRead}, false)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSystemAdminIsNotAWildcard(t *testing.T) {
	p := NewPrincipal(1, "root@b.c", "uuid-1", []string{PermSystemAdmin})
	err := Authorize(&p, []string{PermUsersDelete}, false)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("system.admin must not satisfy unrelated codes, got %v", err)
	}
}
