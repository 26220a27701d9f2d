package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Default system role definitions created at process start.
const (
	BasicRoleName  = "Basic User"
	BasicRoleOrder = 1

	AdminRoleName  = "Administrator"
	AdminRoleOrder = 999
)

// Bootstrap seeds the singular BASIC and ADMIN roles at process start.
type Bootstrap struct {
	store   Store
	catalog *Catalog
	logf    func(format string, args ...any)
}

// NewBootstrap constructs a Bootstrap. logf may be nil.
func NewBootstrap(store Store, catalog *Catalog, logf func(format string, args ...any)) *Bootstrap {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Bootstrap{store: store, catalog: catalog, logf: logf}
}

// EnsureSystemRoles creates the BASIC and ADMIN roles when absent.
// Check-then-create, tolerating the race with a concurrent bootstrap: a
// duplicate-creation conflict means another instance already satisfied
// the requirement.
func (b *Bootstrap) EnsureSystemRoles(ctx context.Context) error {
	if err := b.ensureRole(ctx, RoleTypeBasic, BasicRoleName,
		"Default role for all registered users", BasicRoleOrder); err != nil {
		return err
	}
	return b.ensureRole(ctx, RoleTypeAdmin, AdminRoleName,
		"System administrator with full access", AdminRoleOrder)
}

func (b *Bootstrap) ensureRole(ctx context.Context, t RoleType, name, description string, order int) error {
	if _, err := b.store.FindRoleByType(ctx, t); err == nil {
		b.logf("bootstrap: %s role already exists, skipping", t)
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	role := &Role{
		UUID:        uuid.NewString(),
		Name:        name,
		Description: description,
		Permissions: b.catalog.DefaultSet(t),
		Type:        t,
		Order:       order,
	}
	if err := b.store.CreateRole(ctx, role); err != nil {
		if errors.Is(err, ErrConflict) {
			b.logf("bootstrap: %s role created concurrently, skipping", t)
			return nil
		}
		return err
	}
	b.logf("bootstrap: created default %s role %q", t, name)
	return nil
}

// CheckAdminUser reports whether an account exists for the configured
// admin email. Creation is intentionally disabled; this is only the
// existence check so operators can see whether provisioning is pending.
func (b *Bootstrap) CheckAdminUser(ctx context.Context, adminEmail string) (bool, error) {
	adminEmail = strings.TrimSpace(strings.ToLower(adminEmail))
	if adminEmail == "" {
		return false, nil
	}
	if _, err := b.store.FindUserByEmail(ctx, adminEmail); err != nil {
		if errors.Is(err, ErrNotFound) {
			b.logf("bootstrap: admin user %s not provisioned (creation disabled)", adminEmail)
			return false, nil
		}
		return false, err
	}
	b.logf("bootstrap: admin user %s already exists", adminEmail)
	return true, nil
}
