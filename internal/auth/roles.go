package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RoleService manages role definitions. API callers can only mint CUSTOM
// roles; BASIC and ADMIN exist once each and are immutable here.
type RoleService struct {
	store   Store
	catalog *Catalog
	now     func() time.Time
}

// NewRoleService constructs a RoleService.
func NewRoleService(store Store, catalog *Catalog) *RoleService {
	return &RoleService{store: store, catalog: catalog, now: time.Now}
}

// CreateRoleInput carries the fields accepted when creating a role.
type CreateRoleInput struct {
	Name        string
	Description string
	Permissions []string
	Order       int
}

// Create inserts a new CUSTOM role. The name must be unique among live
// roles (case-sensitive exact match) and every permission code must be
// registered in the catalog; the first unknown code fails the call.
func (s *RoleService) Create(ctx context.Context, in CreateRoleInput) (*Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	if err := s.validatePermissions(in.Permissions); err != nil {
		return nil, err
	}
	if _, err := s.store.FindRoleByName(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: role %q already exists", ErrConflict, name)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	role := &Role{
		UUID:        uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Permissions: dedupeCodes(in.Permissions),
		Type:        RoleTypeCustom,
		Order:       in.Order,
	}
	if err := s.store.CreateRole(ctx, role); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: role %q already exists", ErrConflict, name)
		}
		return nil, err
	}
	return role, nil
}

// FindAll returns live roles ordered by hierarchy weight descending,
// annotated with assigned-user counts.
func (s *RoleService) FindAll(ctx context.Context) ([]RoleWithCount, error) {
	return s.store.ListRoles(ctx)
}

// FindByID fetches a live role.
func (s *RoleService) FindByID(ctx context.Context, id int64) (*Role, error) {
	return s.store.FindRole(ctx, id)
}

// FindByName fetches a live role by exact name; absence is not an error.
func (s *RoleService) FindByName(ctx context.Context, name string) (*Role, error) {
	role, err := s.store.FindRoleByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return role, nil
}

// Members lists summaries of the users currently holding the role.
func (s *RoleService) Members(ctx context.Context, id int64) ([]UserSummary, error) {
	if _, err := s.store.FindRole(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListRoleMembers(ctx, id)
}

// Permissions returns the permission set of a role.
func (s *RoleService) Permissions(ctx context.Context, id int64) ([]string, error) {
	role, err := s.store.FindRole(ctx, id)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), role.Permissions...), nil
}

// UpdateRoleInput is a patch: nil fields are left unchanged.
type UpdateRoleInput struct {
	Name        *string
	Description *string
	Permissions []string
	Order       *int
}

// Update patches a CUSTOM role, re-validating name uniqueness (excluding
// self) and permission codes exactly as Create does. System roles cannot
// be updated.
//
// Editing a role's permission set does NOT recompute its holders' claims
// caches; that propagation is the explicit RefreshAllUserCaches repair.
func (s *RoleService) Update(ctx context.Context, id int64, in UpdateRoleInput) (*Role, error) {
	role, err := s.store.FindRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if role.IsSystem() {
		return nil, fmt.Errorf("%w: cannot update system role %q", ErrInvalidInput, role.Name)
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		if name != role.Name {
			if existing, err := s.store.FindRoleByName(ctx, name); err == nil && existing.ID != id {
				return nil, fmt.Errorf("%w: role %q already exists", ErrConflict, name)
			} else if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}
		role.Name = name
	}
	if in.Description != nil {
		role.Description = strings.TrimSpace(*in.Description)
	}
	if in.Permissions != nil {
		if err := s.validatePermissions(in.Permissions); err != nil {
			return nil, err
		}
		role.Permissions = dedupeCodes(in.Permissions)
	}
	if in.Order != nil {
		role.Order = *in.Order
	}
	if err := s.store.UpdateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// Delete tombstones a CUSTOM role with no remaining assignments. System
// roles can never be deleted; a role still held by users fails with the
// holder count.
func (s *RoleService) Delete(ctx context.Context, id int64) (*Role, error) {
	role, err := s.store.FindRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if role.IsSystem() {
		return nil, fmt.Errorf("%w: cannot delete system role %q", ErrInvalidInput, role.Name)
	}
	count, err := s.store.CountAssignments(ctx, id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: role is assigned to %d user(s)", ErrConflict, count)
	}
	deletedAt := s.now().UTC()
	if err := s.store.SoftDeleteRole(ctx, id, deletedAt); err != nil {
		return nil, err
	}
	role.DeletedAt = &deletedAt
	return role, nil
}

func (s *RoleService) validatePermissions(codes []string) error {
	for _, code := range codes {
		if !s.catalog.IsValid(code) {
			return fmt.Errorf("%w: invalid permission: %s", ErrInvalidInput, code)
		}
	}
	return nil
}

func dedupeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
