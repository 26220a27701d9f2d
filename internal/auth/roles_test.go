package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"egxo.tech/iam/internal/auth"
)

func TestCreateRoleValidatesPermissions(t *testing.T) {
	e := newEnv(t)
	_, err := e.roles.Create(context.Background(), auth.CreateRoleInput{
		Name:        "Broken",
		Permissions: []string{auth.PermUsersRead, "users.fly"},
	})
	if !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "users.fly") {
		t.Fatalf("error should name the invalid code: %v", err)
	}
	// nothing persisted
	if role, err := e.roles.FindByName(context.Background(), "Broken"); err != nil || role != nil {
		t.Fatalf("role must not exist after failed create: %v %v", role, err)
	}
}

func TestCreateRoleIsAlwaysCustom(t *testing.T) {
	e := newEnv(t)
	role, err := e.roles.Create(context.Background(), auth.CreateRoleInput{
		Name:        "Moderator",
		Permissions: []string{auth.PermPostsDelete, auth.PermPostsDelete, auth.PermUsersBan},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if role.Type != auth.RoleTypeCustom {
		t.Fatalf("type = %v, want CUSTOM", role.Type)
	}
	if len(role.Permissions) != 2 {
		t.Fatalf("duplicate codes must collapse, got %v", role.Permissions)
	}
}

func TestCreateRoleDuplicateName(t *testing.T) {
	e := newEnv(t)
	if _, err := e.roles.Create(context.Background(), auth.CreateRoleInput{Name: "Editor"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.roles.Create(context.Background(), auth.CreateRoleInput{Name: "Editor"}); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSystemRolesAreImmutable(t *testing.T) {
	e := newEnv(t)
	basic, err := e.roles.FindByName(context.Background(), auth.BasicRoleName)
	if err != nil || basic == nil {
		t.Fatalf("basic role missing: %v", err)
	}

	name := "Renamed"
	if _, err := e.roles.Update(context.Background(), basic.ID, auth.UpdateRoleInput{Name: &name}); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("update of system role must fail, got %v", err)
	}
	if _, err := e.roles.Delete(context.Background(), basic.ID); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("delete of system role must fail, got %v", err)
	}
}

func TestDeleteRoleInUse(t *testing.T) {
	e := newEnv(t)
	role, err := e.roles.Create(context.Background(), auth.CreateRoleInput{Name: "Held"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	user := e.register(t, "holder@example.com")
	if _, err := e.assign.Assign(context.Background(), user.ID, role.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	_, err = e.roles.Delete(context.Background(), role.ID)
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict for role in use, got %v", err)
	}
	if !strings.Contains(err.Error(), "1 user") {
		t.Fatalf("error should carry the holder count: %v", err)
	}

	// removing the holder unblocks deletion
	if err := e.assign.Remove(context.Background(), user.ID, role.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	deleted, err := e.roles.Delete(context.Background(), role.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.DeletedAt == nil {
		t.Fatal("expected tombstone timestamp")
	}
}

func TestDeletedRoleNameIsReusable(t *testing.T) {
	e := newEnv(t)
	role, err := e.roles.Create(context.Background(), auth.CreateRoleInput{Name: "Seasonal"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.roles.Delete(context.Background(), role.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.roles.Create(context.Background(), auth.CreateRoleInput{Name: "Seasonal"}); err != nil {
		t.Fatalf("name of tombstoned role should be reusable: %v", err)
	}
}

func TestUpdateRolePatchSemantics(t *testing.T) {
	e := newEnv(t)
	role, err := e.roles.Create(context.Background(), auth.CreateRoleInput{
		Name:        "Support",
		Description: "First line",
		Permissions: []string{auth.PermUsersRead},
		Order:       5,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newDesc := "Second line"
	updated, err := e.roles.Update(context.Background(), role.ID, auth.UpdateRoleInput{
		Description: &newDesc,
		Permissions: []string{auth.PermUsersRead, auth.PermUsersBan},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Support" || updated.Order != 5 {
		t.Fatalf("unset fields must stay put: %v", updated)
	}
	if updated.Description != newDesc || len(updated.Permissions) != 2 {
		t.Fatalf("patched fields not applied: %v", updated)
	}
}

func TestRoleUpdateDoesNotTouchHolderCaches(t *testing.T) {
	e := newEnv(t)
	role, err := e.roles.Create(context.Background(), auth.CreateRoleInput{
		Name:        "Drifter",
		Permissions: []string{auth.PermPostsRead},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	user := e.register(t, "drift@example.com", "Drifter")

	if _, err := e.roles.Update(context.Background(), role.ID, auth.UpdateRoleInput{
		Permissions: []string{auth.PermPostsRead, auth.PermPostsPublish},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// the holder's cache is now stale until the explicit repair
	stored, err := e.store.FindUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if contains(stored.Claims, auth.PermPostsPublish) {
		t.Fatal("role edits must not cascade into holder caches")
	}

	count, err := e.assign.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	if count != 1 {
		t.Fatalf("refreshed %d users, want 1", count)
	}
	repaired, err := e.store.FindUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if !contains(repaired.Claims, auth.PermPostsPublish) {
		t.Fatalf("repair should fold in the new permission, got %v", repaired.Claims)
	}
}

func TestListRolesOrderAndCounts(t *testing.T) {
	e := newEnv(t)
	user := e.register(t, "counted@example.com")
	_ = user

	roles, err := e.roles.FindAll(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected the two system roles, got %d", len(roles))
	}
	if roles[0].Name != auth.AdminRoleName || roles[1].Name != auth.BasicRoleName {
		t.Fatalf("expected order-descending listing, got %v then %v", roles[0].Name, roles[1].Name)
	}
	if roles[1].AssignedUsers != 1 {
		t.Fatalf("basic role should count its holder, got %d", roles[1].AssignedUsers)
	}
}

func TestRoleMembers(t *testing.T) {
	e := newEnv(t)
	first := e.register(t, "m1@example.com")
	second := e.register(t, "m2@example.com")

	basic, err := e.roles.FindByName(context.Background(), auth.BasicRoleName)
	if err != nil || basic == nil {
		t.Fatalf("basic role missing: %v", err)
	}
	members, err := e.roles.Members(context.Background(), basic.ID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].ID != first.ID || members[1].ID != second.ID {
		t.Fatalf("members should list in assignment order: %v", members)
	}
}
