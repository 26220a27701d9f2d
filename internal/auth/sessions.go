package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"egxo.tech/iam/internal/ids"
)

// Session rows record issued access tokens for audit and revocation.
// They cap the stored user-agent; everything else is persisted verbatim.
const maxUserAgentLength = 512

// SessionService tracks issued access tokens.
type SessionService struct {
	store Store
	now   func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(store Store) *SessionService {
	return &SessionService{store: store, now: time.Now}
}

// CreateSessionInput carries the fields persisted at token issuance.
type CreateSessionInput struct {
	UserID    int64
	Token     string
	IPAddress string
	UserAgent string
	Duration  time.Duration
}

// Create persists a session row with an absolute expiry computed from the
// relative duration. A token collision surfaces as ErrConflict from the
// store; it should not occur given token entropy, but it is never
// swallowed.
func (s *SessionService) Create(ctx context.Context, in CreateSessionInput) (*Session, error) {
	if in.UserID <= 0 || strings.TrimSpace(in.Token) == "" {
		return nil, fmt.Errorf("%w: user id and token are required", ErrInvalidInput)
	}
	ua := truncateUserAgent(in.UserAgent)
	session := &Session{
		ID:        ids.New(),
		UserID:    in.UserID,
		Token:     in.Token,
		IPAddress: in.IPAddress,
		UserAgent: ua,
		ExpiresAt: s.now().UTC().Add(in.Duration),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// truncateUserAgent caps the stored user-agent without splitting a
// multi-byte rune; Postgres rejects invalid UTF-8 in text columns.
func truncateUserAgent(ua string) string {
	if len(ua) <= maxUserAgentLength {
		return ua
	}
	cut := maxUserAgentLength
	for cut > 0 && !utf8.RuneStart(ua[cut]) {
		cut--
	}
	return ua[:cut]
}

// FindByToken looks up a session with its owning user. Absence is not an
// error: callers decide what a missing session means.
func (s *SessionService) FindByToken(ctx context.Context, token string) (*Session, error) {
	session, err := s.store.FindSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

// Delete revokes a session by token. Fails ErrNotFound when no session
// exists for the token.
func (s *SessionService) Delete(ctx context.Context, token string) (*Session, error) {
	return s.store.DeleteSession(ctx, token)
}
