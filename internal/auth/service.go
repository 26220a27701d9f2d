package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service wraps credential verification, registration and token issuance.
type Service struct {
	store    Store
	hasher   Hasher
	tokens   *TokenIssuer
	sessions *SessionService
	catalog  *Catalog
}

// NewService constructs the authentication service.
func NewService(store Store, hasher Hasher, tokens *TokenIssuer, sessions *SessionService, catalog *Catalog) *Service {
	return &Service{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		sessions: sessions,
		catalog:  catalog,
	}
}

// ValidateCredentials checks an email/password pair. Missing users, empty
// stored hashes and wrong passwords all collapse to the same unauthorized
// error so responses cannot enumerate accounts. A structurally valid match
// against an inactive or deleted account fails with a distinct message.
func (s *Service) ValidateCredentials(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, err
	}
	if user.PasswordHash == "" || !s.hasher.Verify(password, user.PasswordHash) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if !user.IsActive || user.DeletedAt != nil {
		return nil, fmt.Errorf("%w: account is inactive", ErrUnauthorized)
	}
	return user, nil
}

// RegisterInput carries the fields accepted at sign-up. RoleNames is
// optional; when empty the default basic role is assigned.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	RoleNames []string
}

// Register creates a user, links the resolved roles and recomputes the
// claims cache before returning. The recompute-after-link ordering is
// load-bearing: the summary returned (and any subsequent login) reflects
// the new roles' permissions.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*UserSummary, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	if _, err := s.store.FindUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	roles, err := s.resolveRoles(ctx, in.RoleNames)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		UUID:          uuid.NewString(),
		Email:         email,
		PasswordHash:  hash,
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Name:          strings.TrimSpace(strings.TrimSpace(in.FirstName) + " " + strings.TrimSpace(in.LastName)),
		EmailVerified: false,
		IsActive:      true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, err
	}

	// Each assignment commits its link together with a cache recompute, so
	// the user never persists with roles but stale claims.
	for _, role := range roles {
		if _, err := s.store.AssignRole(ctx, user.ID, role.ID); err != nil {
			return nil, err
		}
	}

	created, err := s.store.FindUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: user vanished after create: %v", ErrInvariant, err)
	}
	summary := summarize(created)
	return &summary, nil
}

// resolveRoles maps requested role names to live roles, or falls back to
// the single default basic role. Registration fails outright when none of
// the requested names resolve.
func (s *Service) resolveRoles(ctx context.Context, names []string) ([]*Role, error) {
	if len(names) == 0 {
		basic, err := s.store.FindRoleByType(ctx, RoleTypeBasic)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: no valid roles to assign", ErrInvalidInput)
			}
			return nil, err
		}
		return []*Role{basic}, nil
	}
	var roles []*Role
	seen := make(map[int64]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		role, err := s.store.FindRoleByName(ctx, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		// Repeated names resolve to one link; a second AssignRole would
		// conflict after the user row already committed.
		if seen[role.ID] {
			continue
		}
		seen[role.ID] = true
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: no valid roles to assign", ErrInvalidInput)
	}
	return roles, nil
}

// LoginResult is returned from Login and Refresh.
type LoginResult struct {
	Tokens TokenPair
	User   UserSummary
}

// Login issues an access/refresh token pair for a previously validated
// user and records a session for the access token. The user's claims are
// re-read from the store so the issued token reflects the latest role
// state even when the caller holds a stale object.
func (s *Service) Login(ctx context.Context, user *User, clientIP, clientUserAgent string) (*LoginResult, error) {
	fresh, err := s.store.FindUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", ErrUnauthorized)
		}
		return nil, err
	}
	return s.issue(ctx, fresh, clientIP, clientUserAgent)
}

// Refresh redeems a refresh token for a fresh token pair. The subject is
// re-read and re-checked, so revoked or deactivated accounts cannot renew,
// and the new access token carries the current claims snapshot.
func (s *Service) Refresh(ctx context.Context, refreshToken, clientIP, clientUserAgent string) (*LoginResult, error) {
	userID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", ErrUnauthorized)
		}
		return nil, err
	}
	if !user.IsActive || user.DeletedAt != nil {
		return nil, fmt.Errorf("%w: account is inactive", ErrUnauthorized)
	}
	return s.issue(ctx, user, clientIP, clientUserAgent)
}

func (s *Service) issue(ctx context.Context, user *User, clientIP, clientUserAgent string) (*LoginResult, error) {
	access, accessExp, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}
	// Only the access token is session-tracked; refresh tokens leave no row.
	if _, err := s.sessions.Create(ctx, CreateSessionInput{
		UserID:    user.ID,
		Token:     access,
		IPAddress: clientIP,
		UserAgent: clientUserAgent,
		Duration:  s.tokens.AccessTTL(),
	}); err != nil {
		return nil, err
	}
	return &LoginResult{
		Tokens: TokenPair{
			AccessToken:      access,
			RefreshToken:     refresh,
			AccessExpiresAt:  accessExp,
			RefreshExpiresAt: refreshExp,
		},
		User: summarize(user),
	}, nil
}

// Logout revokes the session recorded for the access token.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	_, err := s.sessions.Delete(ctx, accessToken)
	return err
}

// AuthenticateToken validates an access token and re-checks that the
// subject is still active, producing the request principal. The principal
// carries the token's embedded claims; the store is consulted only for the
// active/deleted flags, never to refresh permissions.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (Principal, error) {
	claims, err := s.tokens.ParseAccess(token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	userID, err := parseSubject(claims.Subject)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, ErrInvalidToken)
	}
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, fmt.Errorf("%w: account no longer exists", ErrUnauthorized)
		}
		return Principal{}, err
	}
	if !user.IsActive || user.DeletedAt != nil {
		return Principal{}, fmt.Errorf("%w: account is inactive", ErrUnauthorized)
	}
	return NewPrincipal(userID, claims.Email, claims.UUID, claims.Claims), nil
}
