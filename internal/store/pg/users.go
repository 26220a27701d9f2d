package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"egxo.tech/iam/internal/auth"
)

const userColumns = `id, uuid, email, password_hash, first_name, last_name, name,
	email_verified, is_active, claims, roles_cache, created_at, updated_at, deleted_at`

func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	claims, err := marshalJSON(u.Claims)
	if err != nil {
		return fmt.Errorf("marshal claims: %w", err)
	}
	rolesCache, err := marshalJSON(u.Roles)
	if err != nil {
		return fmt.Errorf("marshal roles cache: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (uuid, email, password_hash, first_name, last_name, name,
			email_verified, is_active, claims, roles_cache)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		returning id, created_at, updated_at
	`, u.UUID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Name,
		u.EmailVerified, u.IsActive, claims, rolesCache)
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapConstraintError(err)
	}
	return nil
}

func (s *Store) FindUser(ctx context.Context, id int64) (*auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id = $1`, id))
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email = $1`, email))
}

func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id from users where deleted_at is null order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var (
		u          auth.User
		claims     []byte
		rolesCache []byte
		deletedAt  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.UUID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Name, &u.EmailVerified, &u.IsActive, &claims, &rolesCache,
		&u.CreatedAt, &u.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.Claims, err = unmarshalStrings(claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	u.Roles = []auth.RoleDescriptor{}
	if len(rolesCache) > 0 {
		if err := json.Unmarshal(rolesCache, &u.Roles); err != nil {
			return nil, fmt.Errorf("decode roles cache: %w", err)
		}
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	return &u, nil
}

// Sessions ----------------------------------------------------------------

func (s *Store) CreateSession(ctx context.Context, sess *auth.Session) error {
	row := s.db.QueryRowContext(ctx, `
		insert into sessions (id, user_id, token, ip_address, user_agent, expires_at)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at
	`, sess.ID, sess.UserID, sess.Token, nullIfEmpty(sess.IPAddress),
		nullIfEmpty(sess.UserAgent), sess.ExpiresAt)
	if err := row.Scan(&sess.CreatedAt); err != nil {
		return mapConstraintError(err)
	}
	return nil
}

func (s *Store) FindSessionByToken(ctx context.Context, token string) (*auth.Session, error) {
	var (
		sess       auth.Session
		ip, ua     sql.NullString
		claims     []byte
		rolesCache []byte
		deletedAt  sql.NullTime
		u          auth.User
	)
	err := s.db.QueryRowContext(ctx, `
		select s.id, s.user_id, s.token, s.ip_address, s.user_agent, s.expires_at, s.created_at,
			u.id, u.uuid, u.email, u.password_hash, u.first_name, u.last_name, u.name,
			u.email_verified, u.is_active, u.claims, u.roles_cache, u.created_at, u.updated_at, u.deleted_at
		from sessions s
		join users u on u.id = s.user_id
		where s.token = $1
	`, token).Scan(&sess.ID, &sess.UserID, &sess.Token, &ip, &ua, &sess.ExpiresAt, &sess.CreatedAt,
		&u.ID, &u.UUID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Name,
		&u.EmailVerified, &u.IsActive, &claims, &rolesCache, &u.CreatedAt, &u.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ip.Valid {
		sess.IPAddress = ip.String
	}
	if ua.Valid {
		sess.UserAgent = ua.String
	}
	if u.Claims, err = unmarshalStrings(claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	u.Roles = []auth.RoleDescriptor{}
	if len(rolesCache) > 0 {
		if err := json.Unmarshal(rolesCache, &u.Roles); err != nil {
			return nil, fmt.Errorf("decode roles cache: %w", err)
		}
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	sess.User = &u
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) (*auth.Session, error) {
	var (
		sess   auth.Session
		ip, ua sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		delete from sessions where token = $1
		returning id, user_id, token, ip_address, user_agent, expires_at, created_at
	`, token).Scan(&sess.ID, &sess.UserID, &sess.Token, &ip, &ua, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ip.Valid {
		sess.IPAddress = ip.String
	}
	if ua.Valid {
		sess.UserAgent = ua.String
	}
	return &sess, nil
}

func nullIfEmpty(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
