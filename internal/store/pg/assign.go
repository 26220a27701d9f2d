package pg

import (
	"context"
	"database/sql"
	"fmt"

	"egxo.tech/iam/internal/auth"
)

// AssignRole inserts the user_roles link and rebuilds the holder's claims
// cache in the same transaction. A duplicate link surfaces as ErrConflict,
// a missing user or role as ErrNotFound.
func (s *Store) AssignRole(ctx context.Context, userID, roleID int64) (*auth.UserRole, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	link := &auth.UserRole{UserID: userID, RoleID: roleID}
	row := tx.QueryRowContext(ctx, `
		insert into user_roles (user_id, role_id)
		values ($1, $2)
		returning id, created_at
	`, userID, roleID)
	if err := row.Scan(&link.ID, &link.CreatedAt); err != nil {
		return nil, mapConstraintError(err)
	}

	if err := recomputeClaims(ctx, tx, userID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return link, nil
}

// RemoveRole deletes the user_roles link and rebuilds the holder's claims
// cache in the same transaction. Returns ErrNotFound when no link exists.
func (s *Store) RemoveRole(ctx context.Context, userID, roleID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`delete from user_roles where user_id = $1 and role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}

	if err := recomputeClaims(ctx, tx, userID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) ListUserRoles(ctx context.Context, userID int64) ([]auth.UserRole, error) {
	return listUserRoles(ctx, s.db, userID)
}

func (s *Store) ListDirectGrants(ctx context.Context, userID int64) ([]auth.UserPermission, error) {
	return listDirectGrants(ctx, s.db, userID)
}

// RecomputeClaims rebuilds the claims cache from live link state in its own
// transaction. Used by the bulk repair path after role permission edits.
func (s *Store) RecomputeClaims(ctx context.Context, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := recomputeClaims(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// recomputeClaims reads the user's links and grants through q, folds them
// into the flattened union, and writes both cache columns in one update.
func recomputeClaims(ctx context.Context, q dbtx, userID int64) error {
	links, err := listUserRoles(ctx, q, userID)
	if err != nil {
		return err
	}
	grants, err := listDirectGrants(ctx, q, userID)
	if err != nil {
		return err
	}
	claims, roles := auth.BuildClaims(links, grants)

	claimsJSON, err := marshalJSON(claims)
	if err != nil {
		return fmt.Errorf("marshal claims: %w", err)
	}
	rolesJSON, err := marshalJSON(roles)
	if err != nil {
		return fmt.Errorf("marshal roles cache: %w", err)
	}
	res, err := q.ExecContext(ctx, `
		update users set claims = $2, roles_cache = $3, updated_at = now()
		where id = $1 and deleted_at is null
	`, userID, claimsJSON, rolesJSON)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// listUserRoles returns links in link-insertion order with live role rows
// attached; links to tombstoned roles come back with a nil Role.
func listUserRoles(ctx context.Context, q dbtx, userID int64) ([]auth.UserRole, error) {
	rows, err := q.QueryContext(ctx, `
		select ur.id, ur.user_id, ur.role_id, ur.created_at,
			r.id, r.uuid, r.name, r.description, r.permissions, r.type, r.ord,
			r.created_at, r.updated_at, r.deleted_at
		from user_roles ur
		left join roles r on r.id = ur.role_id and r.deleted_at is null
		where ur.user_id = $1
		order by ur.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []auth.UserRole
	for rows.Next() {
		var (
			link      auth.UserRole
			roleID    sql.NullInt64
			roleUUID  sql.NullString
			roleName  sql.NullString
			desc      sql.NullString
			perms     []byte
			roleType  sql.NullString
			ord       sql.NullInt64
			createdAt sql.NullTime
			updatedAt sql.NullTime
			deletedAt sql.NullTime
		)
		if err := rows.Scan(&link.ID, &link.UserID, &link.RoleID, &link.CreatedAt,
			&roleID, &roleUUID, &roleName, &desc, &perms, &roleType, &ord,
			&createdAt, &updatedAt, &deletedAt); err != nil {
			return nil, err
		}
		if roleID.Valid {
			r := &auth.Role{
				ID:        roleID.Int64,
				UUID:      roleUUID.String,
				Name:      roleName.String,
				Type:      auth.RoleType(roleType.String),
				Order:     int(ord.Int64),
				CreatedAt: createdAt.Time,
				UpdatedAt: updatedAt.Time,
			}
			if desc.Valid {
				r.Description = desc.String
			}
			if r.Permissions, err = unmarshalStrings(perms); err != nil {
				return nil, fmt.Errorf("decode permissions: %w", err)
			}
			if deletedAt.Valid {
				r.DeletedAt = &deletedAt.Time
			}
			link.Role = r
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func listDirectGrants(ctx context.Context, q dbtx, userID int64) ([]auth.UserPermission, error) {
	rows, err := q.QueryContext(ctx, `
		select id, user_id, permission_code, created_at
		from user_permissions
		where user_id = $1
		order by id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []auth.UserPermission
	for rows.Next() {
		var g auth.UserPermission
		if err := rows.Scan(&g.ID, &g.UserID, &g.PermissionCode, &g.CreatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
