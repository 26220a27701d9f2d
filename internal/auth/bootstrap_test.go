package auth_test

import (
	"context"
	"testing"

	"egxo.tech/iam/internal/auth"
	"egxo.tech/iam/internal/store/mem"
)

func TestEnsureSystemRolesSeedsBoth(t *testing.T) {
	store := mem.New()
	catalog := auth.DefaultCatalog()
	boot := auth.NewBootstrap(store, catalog, nil)

	if err := boot.EnsureSystemRoles(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	basic, err := store.FindRoleByType(context.Background(), auth.RoleTypeBasic)
	if err != nil {
		t.Fatalf("basic role: %v", err)
	}
	if basic.Name != auth.BasicRoleName || basic.Order != auth.BasicRoleOrder {
		t.Fatalf("basic role misconfigured: %+v", basic)
	}
	if len(basic.Permissions) != len(catalog.DefaultSet(auth.RoleTypeBasic)) {
		t.Fatalf("basic defaults = %v", basic.Permissions)
	}

	admin, err := store.FindRoleByType(context.Background(), auth.RoleTypeAdmin)
	if err != nil {
		t.Fatalf("admin role: %v", err)
	}
	if admin.Name != auth.AdminRoleName || admin.Order != auth.AdminRoleOrder {
		t.Fatalf("admin role misconfigured: %+v", admin)
	}
	if len(admin.Permissions) != len(catalog.All()) {
		t.Fatalf("admin should hold the full catalog, got %d codes", len(admin.Permissions))
	}
}

func TestEnsureSystemRolesIdempotent(t *testing.T) {
	store := mem.New()
	boot := auth.NewBootstrap(store, auth.DefaultCatalog(), nil)

	if err := boot.EnsureSystemRoles(context.Background()); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	first, _ := store.FindRoleByType(context.Background(), auth.RoleTypeBasic)

	if err := boot.EnsureSystemRoles(context.Background()); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	second, _ := store.FindRoleByType(context.Background(), auth.RoleTypeBasic)
	if first.ID != second.ID {
		t.Fatalf("bootstrap recreated the basic role: %d vs %d", first.ID, second.ID)
	}

	roles, err := store.ListRoles(context.Background())
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected exactly 2 system roles, got %d", len(roles))
	}
}

func TestCheckAdminUser(t *testing.T) {
	store := mem.New()
	boot := auth.NewBootstrap(store, auth.DefaultCatalog(), nil)

	exists, err := boot.CheckAdminUser(context.Background(), "admin@example.com")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if exists {
		t.Fatal("no admin should exist yet")
	}

	if err := store.CreateUser(context.Background(), &auth.User{
		UUID: "uuid-admin", Email: "admin@example.com", PasswordHash: "x", IsActive: true,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	exists, err = boot.CheckAdminUser(context.Background(), "Admin@Example.com")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !exists {
		t.Fatal("admin lookup should be case-insensitive")
	}
}
