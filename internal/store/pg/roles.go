package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"egxo.tech/iam/internal/auth"
)

const roleColumns = `id, uuid, name, description, permissions, type, ord,
	created_at, updated_at, deleted_at`

func (s *Store) CreateRole(ctx context.Context, r *auth.Role) error {
	perms, err := marshalJSON(r.Permissions)
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		insert into roles (uuid, name, description, permissions, type, ord)
		values ($1, $2, $3, $4, $5, $6)
		returning id, created_at, updated_at
	`, r.UUID, r.Name, nullIfEmpty(r.Description), perms, string(r.Type), r.Order)
	if err := row.Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return mapConstraintError(err)
	}
	return nil
}

func (s *Store) FindRole(ctx context.Context, id int64) (*auth.Role, error) {
	return scanRole(s.db.QueryRowContext(ctx,
		`select `+roleColumns+` from roles where id = $1 and deleted_at is null`, id))
}

func (s *Store) FindRoleByName(ctx context.Context, name string) (*auth.Role, error) {
	return scanRole(s.db.QueryRowContext(ctx,
		`select `+roleColumns+` from roles where name = $1 and deleted_at is null`, name))
}

func (s *Store) FindRoleByType(ctx context.Context, t auth.RoleType) (*auth.Role, error) {
	return scanRole(s.db.QueryRowContext(ctx,
		`select `+roleColumns+` from roles where type = $1 and deleted_at is null`, string(t)))
}

func (s *Store) ListRoles(ctx context.Context) ([]auth.RoleWithCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.uuid, r.name, r.description, r.permissions, r.type, r.ord,
			r.created_at, r.updated_at, r.deleted_at,
			count(ur.id) as assigned_users
		from roles r
		left join user_roles ur on ur.role_id = r.id
		where r.deleted_at is null
		group by r.id
		order by r.ord desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.RoleWithCount
	for rows.Next() {
		var (
			rc        auth.RoleWithCount
			desc      sql.NullString
			perms     []byte
			roleType  string
			deletedAt sql.NullTime
		)
		if err := rows.Scan(&rc.ID, &rc.UUID, &rc.Name, &desc, &perms, &roleType, &rc.Order,
			&rc.CreatedAt, &rc.UpdatedAt, &deletedAt, &rc.AssignedUsers); err != nil {
			return nil, err
		}
		if desc.Valid {
			rc.Description = desc.String
		}
		if rc.Permissions, err = unmarshalStrings(perms); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
		rc.Type = auth.RoleType(roleType)
		if deletedAt.Valid {
			rc.DeletedAt = &deletedAt.Time
		}
		result = append(result, rc)
	}
	return result, rows.Err()
}

func (s *Store) UpdateRole(ctx context.Context, r *auth.Role) error {
	perms, err := marshalJSON(r.Permissions)
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		update roles
		set name = $2, description = $3, permissions = $4, ord = $5, updated_at = now()
		where id = $1 and deleted_at is null
	`, r.ID, r.Name, nullIfEmpty(r.Description), perms, r.Order)
	if err != nil {
		return mapConstraintError(err)
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

func (s *Store) SoftDeleteRole(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update roles set deleted_at = $2, updated_at = now()
		where id = $1 and deleted_at is null
	`, id, at)
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

func (s *Store) CountAssignments(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`select count(*) from user_roles where role_id = $1`, roleID).Scan(&count)
	return count, err
}

func (s *Store) ListRoleMembers(ctx context.Context, roleID int64) ([]auth.UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		select u.id, u.uuid, u.email, u.first_name, u.last_name
		from user_roles ur
		join users u on u.id = ur.user_id
		where ur.role_id = $1 and u.deleted_at is null
		order by ur.id
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []auth.UserSummary
	for rows.Next() {
		var m auth.UserSummary
		if err := rows.Scan(&m.ID, &m.UUID, &m.Email, &m.FirstName, &m.LastName); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func scanRole(row *sql.Row) (*auth.Role, error) {
	var (
		r         auth.Role
		desc      sql.NullString
		perms     []byte
		roleType  string
		deletedAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.UUID, &r.Name, &desc, &perms, &roleType, &r.Order,
		&r.CreatedAt, &r.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if desc.Valid {
		r.Description = desc.String
	}
	if r.Permissions, err = unmarshalStrings(perms); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	r.Type = auth.RoleType(roleType)
	if deletedAt.Valid {
		r.DeletedAt = &deletedAt.Time
	}
	return &r, nil
}
