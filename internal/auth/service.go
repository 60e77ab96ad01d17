// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Success messages returned alongside 2xx responses.
const (
	MsgRegistered      = "You have been registered. Please log in."
	MsgLoginSuccessful = "Login successful."
	MsgLoggedOut       = "You have been logged out."
)

// Registration payload keys. Login uses a single identifier field so
// clients can submit either a username or an email address.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
	FieldLoginIdentifier = "login_identifier"
)

// Service provides registration, login, logout, and session
// validation. The caller passes the current session (nil when
// unauthenticated) into each operation; the service never reads
// ambient request state.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	hasher   PasswordHasher
	logger   *slog.Logger
}

// NewService creates a new Service using the default logger.
func NewService(users UserRepository, sessions SessionRepository, hasher PasswordHasher) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		logger:   slog.Default(),
	}
}

// NewServiceWithLogger creates a new Service with an explicit logger.
// Best-effort failures (last-seen bumps, expired session cleanup) are
// logged at WARN through it.
func NewServiceWithLogger(users UserRepository, sessions SessionRepository, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		return nil, oops.Code(CodeInternal).Errorf("logger cannot be nil")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		logger:   logger,
	}, nil
}

// Register validates a registration payload and persists a new user.
// The checks run in a fixed order and the first failure wins:
// field presence, username length, username charset, username taken,
// email format, email taken, password confirmation, password length,
// password complexity. A non-nil current session rejects the request
// before any validation runs.
func (s *Service) Register(ctx context.Context, current *Session, payload map[string]any) error {
	if current != nil {
		return oops.Code(CodeUserAction).Errorf("%s", MsgAlreadyLoggedInReg)
	}

	if len(payload) == 0 {
		return oops.Code(CodeUserAction).Errorf("%s", MsgNoRegistrationData)
	}
	if !hasKeys(payload, FieldUsername, FieldEmail, FieldPassword, FieldConfirmPassword) {
		return oops.Code(CodeUserAction).Errorf("%s", MsgMissingKeys)
	}

	username := stringField(payload, FieldUsername)
	email := stringField(payload, FieldEmail)
	password := stringField(payload, FieldPassword)
	confirm := stringField(payload, FieldConfirmPassword)

	if username == "" || email == "" || password == "" || confirm == "" {
		return oops.Code(CodeUserAction).Errorf("%s", MsgMissingFields)
	}

	if err := ValidateUsernameFormat(username); err != nil {
		return err
	}
	if err := s.checkUsernameAvailable(ctx, username); err != nil {
		return err
	}
	if err := ValidateEmailFormat(email); err != nil {
		return err
	}
	if err := s.checkEmailAvailable(ctx, email); err != nil {
		return err
	}
	if err := ValidatePasswordPair(password, confirm); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.Code(CodeInternal).
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(username, email, hash)
	if err != nil {
		return oops.Code(CodeInternal).
			With("operation", "construct user").
			Wrap(err)
	}

	// The pre-checks above race with concurrent registrations; the
	// database constraint is the authority. A duplicate surfacing
	// here gets the same response as a pre-check hit.
	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateUsername):
			return oops.Code(CodeAlreadyExists).Errorf("%s", MsgUsernameTaken)
		case errors.Is(err, ErrDuplicateEmail):
			return oops.Code(CodeAlreadyExists).Errorf("%s", MsgEmailTaken)
		default:
			return oops.Code(CodeInternal).
				With("operation", "create user").
				Wrap(err)
		}
	}

	return nil
}

// Login authenticates a user and creates a session.
// Returns the session, plaintext token, and authenticated user.
// The identifier is treated as an email when it contains "@",
// otherwise as a username. A non-nil current session rejects the
// request before any validation runs.
func (s *Service) Login(ctx context.Context, current *Session, payload map[string]any, userAgent, ipAddress string) (*Session, string, *User, error) {
	if current != nil {
		return nil, "", nil, oops.Code(CodeUserAction).Errorf("%s", MsgAlreadyLoggedIn)
	}

	if len(payload) == 0 {
		return nil, "", nil, oops.Code(CodeUserAction).Errorf("%s", MsgNoLoginData)
	}
	if !hasKeys(payload, FieldLoginIdentifier, FieldPassword) {
		return nil, "", nil, oops.Code(CodeUserAction).Errorf("%s", MsgMissingKeys)
	}

	identifier := stringField(payload, FieldLoginIdentifier)
	password := stringField(payload, FieldPassword)

	if identifier == "" || password == "" {
		return nil, "", nil, oops.Code(CodeUserAction).Errorf("%s", MsgMissingFields)
	}

	user, err := s.resolveUser(ctx, identifier)
	if err != nil {
		return nil, "", nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, "", nil, oops.Code(CodePasswordMismatch).Errorf("%s", MsgPasswordIncorrect)
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", nil, oops.Code(CodeInternal).
			With("operation", "generate session token").
			Wrap(err)
	}

	expiresAt := time.Now().Add(SessionTokenExpiry)
	session, err := NewSession(user.ID, user.Username, user.Email, tokenHash, userAgent, ipAddress, expiresAt)
	if err != nil {
		return nil, "", nil, oops.Code(CodeInternal).
			With("operation", "construct session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", nil, oops.Code(CodeInternal).
			With("operation", "persist session").
			Wrap(err)
	}

	return session, token, user, nil
}

// resolveUser looks up the user behind a login identifier, applying
// email-format validation first when the identifier is an email.
func (s *Service) resolveUser(ctx context.Context, identifier string) (*User, error) {
	if IsEmailAddress(identifier) {
		if err := ValidateEmailFormat(identifier); err != nil {
			return nil, err
		}
		user, err := s.users.GetByEmail(ctx, identifier)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, oops.Code(CodeNotFound).Errorf("%s", MsgEmailNotFound)
			}
			return nil, oops.Code(CodeInternal).
				With("operation", "get user by email").
				Wrap(err)
		}
		return user, nil
	}

	user, err := s.users.GetByUsername(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeNotFound).Errorf("%s", MsgUsernameNotFound)
		}
		return nil, oops.Code(CodeInternal).
			With("operation", "get user by username").
			Wrap(err)
	}
	return user, nil
}

// Logout deletes the current session. A session that disappeared
// between validation and deletion still counts as a clean logout.
func (s *Service) Logout(ctx context.Context, current *Session) error {
	if current == nil {
		return oops.Code(CodeUnauthorized).Errorf("%s", MsgLoginRequired)
	}

	if err := s.sessions.Delete(ctx, current.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code(CodeInternal).
			With("operation", "delete session").
			With("session_id", current.ID.String()).
			Wrap(err)
	}
	return nil
}

// ValidateSession resolves a session token to its live session.
// Expired or unknown tokens produce an unauthorized error; valid
// lookups bump LastSeenAt best-effort.
func (s *Service) ValidateSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code(CodeUnauthorized).Errorf("%s", MsgLoginRequired)
	}

	tokenHash := HashSessionToken(token)

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUnauthorized).Errorf("%s", MsgLoginRequired)
		}
		return nil, oops.Code(CodeInternal).
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		if delErr := s.sessions.Delete(ctx, session.ID); delErr != nil && !errors.Is(delErr, ErrNotFound) {
			s.logger.WarnContext(ctx, "best-effort expired session cleanup failed",
				"operation", "delete_expired_session",
				"session_id", session.ID.String(),
				"error", delErr.Error())
		}
		return nil, oops.Code(CodeUnauthorized).Errorf("%s", MsgLoginRequired)
	}

	now := time.Now()
	if err := s.sessions.UpdateLastSeen(ctx, session.ID, now); err != nil {
		s.logger.WarnContext(ctx, "best-effort last-seen update failed",
			"operation", "update_last_seen",
			"session_id", session.ID.String(),
			"error", err.Error())
	} else {
		session.LastSeenAt = now
	}

	return session, nil
}

// SweepExpired removes all expired sessions and returns the count.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code(CodeInternal).
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return n, nil
}

// checkUsernameAvailable verifies no user owns the username.
func (s *Service) checkUsernameAvailable(ctx context.Context, username string) error {
	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return oops.Code(CodeAlreadyExists).Errorf("%s", MsgUsernameTaken)
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return oops.Code(CodeInternal).
			With("operation", "get user by username").
			Wrap(err)
	}
}

// checkEmailAvailable verifies no user owns the email address.
func (s *Service) checkEmailAvailable(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return oops.Code(CodeAlreadyExists).Errorf("%s", MsgEmailTaken)
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return oops.Code(CodeInternal).
			With("operation", "get user by email").
			Wrap(err)
	}
}

// hasKeys reports whether every key is present in the payload,
// regardless of value. Key presence and field emptiness are distinct
// failures with distinct messages.
func hasKeys(payload map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := payload[k]; !ok {
			return false
		}
	}
	return true
}

// stringField extracts a string value from the payload. Non-string
// values are treated as absent content.
func stringField(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}
