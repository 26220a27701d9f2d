package auth

import (
	"reflect"
	"testing"
)

func TestDefaultCatalogValidity(t *testing.T) {
	c := DefaultCatalog()
	for _, code := range []string{PermUsersCreate, PermRolesAssign, PermPostsPublish, PermSystemAdmin} {
		if !c.IsValid(code) {
			t.Fatalf("expected %q to be valid", code)
		}
	}
	for _, code := range []string{"users.fly", "posts", "", "USERS.READ"} {
		if c.IsValid(code) {
			t.Fatalf("expected %q to be invalid", code)
		}
	}
}

func TestDefaultSets(t *testing.T) {
	c := DefaultCatalog()

	basic := c.DefaultSet(RoleTypeBasic)
	wantBasic := []string{PermPostsRead, PermPostsCreate, PermUsersRead}
	if !reflect.DeepEqual(basic, wantBasic) {
		t.Fatalf("basic defaults = %v, want %v", basic, wantBasic)
	}

	admin := c.DefaultSet(RoleTypeAdmin)
	if !reflect.DeepEqual(admin, c.All()) {
		t.Fatalf("admin defaults should be the full catalog")
	}

	if got := c.DefaultSet(RoleTypeCustom); got != nil {
		t.Fatalf("custom roles have no default set, got %v", got)
	}
}

func TestCatalogAllIsACopy(t *testing.T) {
	c := DefaultCatalog()
	all := c.All()
	all[0] = "mutated"
	if c.All()[0] == "mutated" {
		t.Fatal("All must return a copy")
	}
}
