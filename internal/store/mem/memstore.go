// Package mem provides an in-memory auth.Store used by tests and demos.
// All operations are safe for concurrent use. Semantics mirror the
// Postgres store: unique email and live role name, linked mutation and
// claims recompute applied under one lock.
package mem

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"egxo.tech/iam/internal/auth"
)

type Store struct {
	mu sync.RWMutex

	users    map[int64]*auth.User
	roles    map[int64]*auth.Role
	links    map[int64]*auth.UserRole
	grants   map[int64]*auth.UserPermission
	sessions map[string]*auth.Session

	nextUserID  int64
	nextRoleID  int64
	nextLinkID  int64
	nextGrantID int64

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[int64]*auth.User),
		roles:    make(map[int64]*auth.Role),
		links:    make(map[int64]*auth.UserRole),
		grants:   make(map[int64]*auth.UserPermission),
		sessions: make(map[string]*auth.Session),
		now:      time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.DeletedAt == nil && strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("%w: email already registered", auth.ErrConflict)
		}
	}
	s.nextUserID++
	u.ID = s.nextUserID
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) FindUser(ctx context.Context, id int64) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, auth.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.DeletedAt == nil && strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, auth.ErrNotFound
}

// SetUserActive flips the active flag. Test hook for account lifecycle.
func (s *Store) SetUserActive(userID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || u.DeletedAt != nil {
		return auth.ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = s.now()
	return nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, u := range s.users {
		if u.DeletedAt == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) CreateRole(ctx context.Context, r *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.roles {
		if existing.DeletedAt != nil {
			continue
		}
		if existing.Name == r.Name {
			return fmt.Errorf("%w: role name taken", auth.ErrConflict)
		}
		if existing.Type == r.Type && r.Type != auth.RoleTypeCustom {
			return fmt.Errorf("%w: system role exists", auth.ErrConflict)
		}
	}
	s.nextRoleID++
	r.ID = s.nextRoleID
	r.CreatedAt = s.now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	s.roles[r.ID] = &cp
	return nil
}

func (s *Store) FindRole(ctx context.Context, id int64) (*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[id]
	if !ok || r.DeletedAt != nil {
		return nil, auth.ErrNotFound
	}
	return copyRole(r), nil
}

func (s *Store) FindRoleByName(ctx context.Context, name string) (*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.roles {
		if r.DeletedAt == nil && r.Name == name {
			return copyRole(r), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *Store) FindRoleByType(ctx context.Context, t auth.RoleType) (*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.roles {
		if r.DeletedAt == nil && r.Type == t {
			return copyRole(r), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *Store) ListRoles(ctx context.Context) ([]auth.RoleWithCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []auth.RoleWithCount
	for _, r := range s.roles {
		if r.DeletedAt != nil {
			continue
		}
		rc := auth.RoleWithCount{Role: *copyRole(r)}
		for _, link := range s.links {
			if link.RoleID == r.ID {
				rc.AssignedUsers++
			}
		}
		result = append(result, rc)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order > result[j].Order
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *Store) UpdateRole(ctx context.Context, r *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.roles[r.ID]
	if !ok || existing.DeletedAt != nil {
		return auth.ErrNotFound
	}
	for _, other := range s.roles {
		if other.ID != r.ID && other.DeletedAt == nil && other.Name == r.Name {
			return fmt.Errorf("%w: role name taken", auth.ErrConflict)
		}
	}
	existing.Name = r.Name
	existing.Description = r.Description
	existing.Permissions = append([]string(nil), r.Permissions...)
	existing.Order = r.Order
	existing.UpdatedAt = s.now()
	return nil
}

func (s *Store) SoftDeleteRole(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[id]
	if !ok || r.DeletedAt != nil {
		return auth.ErrNotFound
	}
	t := at
	r.DeletedAt = &t
	r.UpdatedAt = s.now()
	return nil
}

func (s *Store) CountAssignments(ctx context.Context, roleID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, link := range s.links {
		if link.RoleID == roleID {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListRoleMembers(ctx context.Context, roleID int64) ([]auth.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var linkIDs []int64
	for id, link := range s.links {
		if link.RoleID == roleID {
			linkIDs = append(linkIDs, id)
		}
	}
	sort.Slice(linkIDs, func(i, j int) bool { return linkIDs[i] < linkIDs[j] })

	var members []auth.UserSummary
	for _, id := range linkIDs {
		u, ok := s.users[s.links[id].UserID]
		if !ok || u.DeletedAt != nil {
			continue
		}
		members = append(members, auth.UserSummary{
			ID:        u.ID,
			UUID:      u.UUID,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		})
	}
	return members, nil
}

func (s *Store) AssignRole(ctx context.Context, userID, roleID int64) (*auth.UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; !ok || u.DeletedAt != nil {
		return nil, auth.ErrNotFound
	}
	if _, ok := s.roles[roleID]; !ok {
		return nil, auth.ErrNotFound
	}
	for _, link := range s.links {
		if link.UserID == userID && link.RoleID == roleID {
			return nil, fmt.Errorf("%w: role already assigned", auth.ErrConflict)
		}
	}
	s.nextLinkID++
	link := &auth.UserRole{
		ID:        s.nextLinkID,
		UserID:    userID,
		RoleID:    roleID,
		CreatedAt: s.now(),
	}
	s.links[link.ID] = link
	s.recomputeLocked(userID)
	cp := *link
	return &cp, nil
}

func (s *Store) RemoveRole(ctx context.Context, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, link := range s.links {
		if link.UserID == userID && link.RoleID == roleID {
			delete(s.links, id)
			s.recomputeLocked(userID)
			return nil
		}
	}
	return auth.ErrNotFound
}

func (s *Store) ListUserRoles(ctx context.Context, userID int64) ([]auth.UserRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userRolesLocked(userID), nil
}

func (s *Store) ListDirectGrants(ctx context.Context, userID int64) ([]auth.UserPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.directGrantsLocked(userID), nil
}

// AddDirectGrant attaches a per-user permission and recomputes the cache.
func (s *Store) AddDirectGrant(ctx context.Context, userID int64, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; !ok || u.DeletedAt != nil {
		return auth.ErrNotFound
	}
	s.nextGrantID++
	s.grants[s.nextGrantID] = &auth.UserPermission{
		ID:             s.nextGrantID,
		UserID:         userID,
		PermissionCode: code,
		CreatedAt:      s.now(),
	}
	s.recomputeLocked(userID)
	return nil
}

func (s *Store) RecomputeClaims(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; !ok || u.DeletedAt != nil {
		return auth.ErrNotFound
	}
	s.recomputeLocked(userID)
	return nil
}

func (s *Store) CreateSession(ctx context.Context, sess *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.Token]; ok {
		return fmt.Errorf("%w: session token exists", auth.ErrConflict)
	}
	sess.CreatedAt = s.now()
	cp := *sess
	s.sessions[sess.Token] = &cp
	return nil
}

func (s *Store) FindSessionByToken(ctx context.Context, token string) (*auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *sess
	if u, ok := s.users[sess.UserID]; ok {
		cp.User = copyUser(u)
	}
	return &cp, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	delete(s.sessions, token)
	cp := *sess
	return &cp, nil
}

func (s *Store) recomputeLocked(userID int64) {
	u, ok := s.users[userID]
	if !ok || u.DeletedAt != nil {
		return
	}
	claims, roles := auth.BuildClaims(s.userRolesLocked(userID), s.directGrantsLocked(userID))
	u.Claims = claims
	u.Roles = roles
	u.UpdatedAt = s.now()
}

func (s *Store) userRolesLocked(userID int64) []auth.UserRole {
	var ids []int64
	for id, link := range s.links {
		if link.UserID == userID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var links []auth.UserRole
	for _, id := range ids {
		link := *s.links[id]
		if r, ok := s.roles[link.RoleID]; ok {
			link.Role = copyRole(r)
		}
		links = append(links, link)
	}
	return links
}

func (s *Store) directGrantsLocked(userID int64) []auth.UserPermission {
	var ids []int64
	for id, g := range s.grants {
		if g.UserID == userID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var grants []auth.UserPermission
	for _, id := range ids {
		grants = append(grants, *s.grants[id])
	}
	return grants
}

func copyUser(u *auth.User) *auth.User {
	cp := *u
	cp.Claims = append([]string(nil), u.Claims...)
	cp.Roles = append([]auth.RoleDescriptor(nil), u.Roles...)
	return &cp
}

func copyRole(r *auth.Role) *auth.Role {
	cp := *r
	cp.Permissions = append([]string(nil), r.Permissions...)
	return &cp
}

var _ auth.Store = (*Store)(nil)
