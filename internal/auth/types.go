package auth

import "time"

// RoleType discriminates system-protected roles from user-defined ones.
// BASIC and ADMIN are singular: at most one live role of each type exists.
type RoleType string

const (
	RoleTypeBasic  RoleType = "BASIC"
	RoleTypeAdmin  RoleType = "ADMIN"
	RoleTypeCustom RoleType = "CUSTOM"
)

// User is an account record. Claims and Roles form the denormalized claims
// cache: the flattened permission union and role summaries the access token
// embeds at login. The cache must equal the union of permissions from all
// live assigned roles plus direct grants; only the recompute path writes it.
type User struct {
	ID            int64            `json:"id"`
	UUID          string           `json:"uuid"`
	Email         string           `json:"email"`
	PasswordHash  string           `json:"-"`
	FirstName     string           `json:"first_name"`
	LastName      string           `json:"last_name"`
	Name          string           `json:"name"`
	EmailVerified bool             `json:"email_verified"`
	IsActive      bool             `json:"is_active"`
	Claims        []string         `json:"claims"`
	Roles         []RoleDescriptor `json:"roles"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeletedAt     *time.Time       `json:"deleted_at,omitempty"`
}

// RoleDescriptor is the role summary stored in the claims cache and
// returned alongside user payloads.
type RoleDescriptor struct {
	RoleID   int64  `json:"role_id"`
	RoleName string `json:"role_name"`
	RoleUUID string `json:"role_uuid"`
}

// Role bundles permission codes under a name. Order is the hierarchy
// weight: higher means more authority. Deletion is a tombstone.
type Role struct {
	ID          int64      `json:"id"`
	UUID        string     `json:"uuid"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Permissions []string   `json:"permissions"`
	Type        RoleType   `json:"type"`
	Order       int        `json:"order"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// IsSystem reports whether the role is protected from update and delete.
func (r *Role) IsSystem() bool {
	return r.Type != RoleTypeCustom
}

// RoleWithCount annotates a role with the number of users holding it.
type RoleWithCount struct {
	Role
	AssignedUsers int64 `json:"assigned_users"`
}

// UserRole links a user to a role. The (UserID, RoleID) pair is unique.
// It is a link, not an audit record: un-assignment deletes the row.
type UserRole struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	RoleID    int64     `json:"role_id"`
	Role      *Role     `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserPermission is a direct per-user grant folded into the claims union.
type UserPermission struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	PermissionCode string    `json:"permission_code"`
	CreatedAt      time.Time `json:"created_at"`
}

// Session records an issued access token. Sessions are audit state for the
// token's lifetime; the authorization decision never consults them.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"-"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	User      *User     `json:"user,omitempty"`
}

// UserSummary is the public shape returned from register and login.
type UserSummary struct {
	ID        int64            `json:"id"`
	UUID      string           `json:"uuid"`
	Email     string           `json:"email"`
	FirstName string           `json:"first_name"`
	LastName  string           `json:"last_name"`
	Claims    []string         `json:"claims"`
	Roles     []RoleDescriptor `json:"roles"`
}

// TokenPair carries the two tokens issued at login and refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func summarize(u *User) UserSummary {
	return UserSummary{
		ID:        u.ID,
		UUID:      u.UUID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Claims:    append([]string(nil), u.Claims...),
		Roles:     append([]RoleDescriptor(nil), u.Roles...),
	}
}
