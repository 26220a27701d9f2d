package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the identity core.
//
// Implementations must enforce the unique constraints (user email, live
// role name, session token, (user_id, role_id) pair) by returning
// ErrConflict, and must scope AssignRole / RemoveRole so that the link
// mutation and the claims recompute commit in one transaction: no reader
// observes a user whose links and cache disagree after the call returns.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *User) error
	FindUser(ctx context.Context, id int64) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	ListUserIDs(ctx context.Context) ([]int64, error)

	// Roles
	CreateRole(ctx context.Context, r *Role) error
	FindRole(ctx context.Context, id int64) (*Role, error)
	FindRoleByName(ctx context.Context, name string) (*Role, error)
	FindRoleByType(ctx context.Context, t RoleType) (*Role, error)
	ListRoles(ctx context.Context) ([]RoleWithCount, error)
	UpdateRole(ctx context.Context, r *Role) error
	SoftDeleteRole(ctx context.Context, id int64, at time.Time) error
	CountAssignments(ctx context.Context, roleID int64) (int64, error)
	ListRoleMembers(ctx context.Context, roleID int64) ([]UserSummary, error)

	// Assignments and the claims cache
	AssignRole(ctx context.Context, userID, roleID int64) (*UserRole, error)
	RemoveRole(ctx context.Context, userID, roleID int64) error
	ListUserRoles(ctx context.Context, userID int64) ([]UserRole, error)
	ListDirectGrants(ctx context.Context, userID int64) ([]UserPermission, error)
	// RecomputeClaims rebuilds the cache from live link state. Idempotent:
	// with no intervening mutation, a second call stores the same value.
	RecomputeClaims(ctx context.Context, userID int64) error

	// Sessions
	CreateSession(ctx context.Context, s *Session) error
	FindSessionByToken(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) (*Session, error)
}
