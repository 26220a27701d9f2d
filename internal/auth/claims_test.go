package auth

import (
	"reflect"
	"testing"
	"time"
)

func TestBuildClaimsUnionOrder(t *testing.T) {
	editor := &Role{ID: 1, UUID: "uuid-editor", Name: "Editor",
		Permissions: []string{"posts.read", "posts.create", "posts.update"}}
	viewer := &Role{ID: 2, UUID: "uuid-viewer", Name: "Viewer",
		Permissions: []string{"posts.read", "users.read"}}

	links := []UserRole{
		{ID: 10, UserID: 1, RoleID: 1, Role: editor},
		{ID: 11, UserID: 1, RoleID: 2, Role: viewer},
	}
	grants := []UserPermission{
		{ID: 20, UserID: 1, PermissionCode: "system.logs"},
		{ID: 21, UserID: 1, PermissionCode: "posts.read"},
	}

	claims, roles := BuildClaims(links, grants)

	wantClaims := []string{"posts.read", "posts.create", "posts.update", "users.read", "system.logs"}
	if !reflect.DeepEqual(claims, wantClaims) {
		t.Fatalf("claims = %v, want %v", claims, wantClaims)
	}
	wantRoles := []RoleDescriptor{
		{RoleID: 1, RoleName: "Editor", RoleUUID: "uuid-editor"},
		{RoleID: 2, RoleName: "Viewer", RoleUUID: "uuid-viewer"},
	}
	if !reflect.DeepEqual(roles, wantRoles) {
		t.Fatalf("roles = %v, want %v", roles, wantRoles)
	}
}

func TestBuildClaimsSkipsDeletedAndMissingRoles(t *testing.T) {
	deletedAt := time.Now()
	tombstoned := &Role{ID: 3, UUID: "uuid-dead", Name: "Old",
		Permissions: []string{"users.delete"}, DeletedAt: &deletedAt}

	links := []UserRole{
		{ID: 1, UserID: 1, RoleID: 3, Role: tombstoned},
		{ID: 2, UserID: 1, RoleID: 4, Role: nil},
	}

	claims, roles := BuildClaims(links, nil)
	if len(claims) != 0 {
		t.Fatalf("expected no claims from dead links, got %v", claims)
	}
	if len(roles) != 0 {
		t.Fatalf("expected no role descriptors from dead links, got %v", roles)
	}
}

func TestBuildClaimsDeterministic(t *testing.T) {
	role := &Role{ID: 1, UUID: "u", Name: "R", Permissions: []string{"a.x", "b.y"}}
	links := []UserRole{{ID: 1, UserID: 1, RoleID: 1, Role: role}}
	grants := []UserPermission{{ID: 1, UserID: 1, PermissionCode: "c.z"}}

	first, _ := BuildClaims(links, grants)
	second, _ := BuildClaims(links, grants)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("recompute not deterministic: %v vs %v", first, second)
	}
}

func TestBuildClaimsEmptyInputs(t *testing.T) {
	claims, roles := BuildClaims(nil, nil)
	if claims == nil || roles == nil {
		t.Fatal("expected empty slices, not nil")
	}
	if len(claims) != 0 || len(roles) != 0 {
		t.Fatalf("expected empty result, got %v / %v", claims, roles)
	}
}
