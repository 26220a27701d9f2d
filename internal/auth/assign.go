package auth

import (
	"context"
	"errors"
	"fmt"
)

// AssignmentService links users to roles and keeps the claims cache in
// step. Assignment and un-assignment are the only events that trigger a
// per-user recompute; role permission edits do not cascade (see
// RefreshAll).
type AssignmentService struct {
	store Store
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(store Store) *AssignmentService {
	return &AssignmentService{store: store}
}

// Assign links a role to a user. Not idempotent: assigning an existing
// pair fails ErrConflict. The link and the cache recompute commit
// together, so a login racing this call observes either the old or the
// new claims, never a link without its permissions.
func (s *AssignmentService) Assign(ctx context.Context, userID, roleID int64) (*UserRole, error) {
	if _, err := s.store.FindUser(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return nil, err
	}
	if _, err := s.store.FindRole(ctx, roleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: role not found", ErrNotFound)
		}
		return nil, err
	}
	link, err := s.store.AssignRole(ctx, userID, roleID)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: user already has this role", ErrConflict)
		}
		return nil, err
	}
	return link, nil
}

// Remove unlinks a role from a user and recomputes the cache in the same
// transaction. Fails ErrNotFound when the pair is not assigned.
func (s *AssignmentService) Remove(ctx context.Context, userID, roleID int64) error {
	if err := s.store.RemoveRole(ctx, userID, roleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: user does not have this role", ErrNotFound)
		}
		return err
	}
	return nil
}

// UserRoles lists a user's current role links with their roles attached.
func (s *AssignmentService) UserRoles(ctx context.Context, userID int64) ([]UserRole, error) {
	if _, err := s.store.FindUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListUserRoles(ctx, userID)
}

// RefreshAll recomputes every user's claims cache. This is the repair
// path for drift, in particular after editing a role's permission set,
// which deliberately does not recompute holders' caches on its own.
// Idempotent over a consistent population.
func (s *AssignmentService) RefreshAll(ctx context.Context) (int, error) {
	userIDs, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range userIDs {
		if err := s.store.RecomputeClaims(ctx, id); err != nil {
			return 0, fmt.Errorf("recompute claims for user %d: %w", id, err)
		}
	}
	return len(userIDs), nil
}
