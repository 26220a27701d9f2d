package auth

import "strings"

// Permission codes follow the "resource.action" convention. Validity is
// membership in the catalog, not a pattern match.
const (
	PermUsersCreate = "users.create"
	PermUsersRead   = "users.read"
	PermUsersUpdate = "users.update"
	PermUsersDelete = "users.delete"
	PermUsersBan    = "users.ban"

	PermRolesCreate = "roles.create"
	PermRolesRead   = "roles.read"
	PermRolesUpdate = "roles.update"
	PermRolesDelete = "roles.delete"
	PermRolesAssign = "roles.assign"

	PermPostsCreate  = "posts.create"
	PermPostsRead    = "posts.read"
	PermPostsUpdate  = "posts.update"
	PermPostsDelete  = "posts.delete"
	PermPostsPublish = "posts.publish"

	// system.admin is a plain code like any other: holding it does not
	// implicitly satisfy unrelated required codes.
	PermSystemAdmin    = "system.admin"
	PermSystemSettings = "system.settings"
	PermSystemLogs     = "system.logs"
)

// Catalog is the immutable registry of grantable permission codes and the
// default sets attached to system roles. It is passed to the services that
// need it so tests can substitute a smaller one.
type Catalog struct {
	codes []string
	index map[string]struct{}
	basic []string
}

// NewCatalog builds a catalog from the full code list and the default set
// granted to the BASIC role. The ADMIN default set is always every code.
func NewCatalog(codes, basicDefaults []string) *Catalog {
	c := &Catalog{
		codes: append([]string(nil), codes...),
		index: make(map[string]struct{}, len(codes)),
		basic: append([]string(nil), basicDefaults...),
	}
	for _, code := range codes {
		c.index[code] = struct{}{}
	}
	return c
}

// DefaultCatalog returns the catalog the service ships with.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		[]string{
			PermUsersCreate, PermUsersRead, PermUsersUpdate, PermUsersDelete, PermUsersBan,
			PermRolesCreate, PermRolesRead, PermRolesUpdate, PermRolesDelete, PermRolesAssign,
			PermPostsCreate, PermPostsRead, PermPostsUpdate, PermPostsDelete, PermPostsPublish,
			PermSystemAdmin, PermSystemSettings, PermSystemLogs,
		},
		[]string{PermPostsRead, PermPostsCreate, PermUsersRead},
	)
}

// IsValid reports whether code is a registered permission.
func (c *Catalog) IsValid(code string) bool {
	_, ok := c.index[strings.TrimSpace(code)]
	return ok
}

// All returns every registered code in declaration order.
func (c *Catalog) All() []string {
	out := make([]string, len(c.codes))
	copy(out, c.codes)
	return out
}

// DefaultSet returns the permission set seeded onto a system role of the
// given type. CUSTOM roles have no default set.
func (c *Catalog) DefaultSet(t RoleType) []string {
	switch t {
	case RoleTypeBasic:
		out := make([]string, len(c.basic))
		copy(out, c.basic)
		return out
	case RoleTypeAdmin:
		return c.All()
	default:
		return nil
	}
}
