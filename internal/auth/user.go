// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinUsernameLength is the shortest username accepted at registration.
const MinUsernameLength = 3

// User is an identity record. Users are created by a successful
// registration and never edited or deleted by this core; the store
// owns CreatedAt/UpdatedAt.
type User struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a User with a fresh ID and timestamps. The password
// hash must already be produced by a PasswordHasher; plaintext never
// reaches this constructor.
func NewUser(username, email, passwordHash string) (*User, error) {
	if username == "" {
		return nil, oops.Code(CodeInternal).Errorf("username cannot be empty")
	}
	if email == "" {
		return nil, oops.Code(CodeInternal).Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code(CodeInternal).Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// UserRepository manages user persistence. The store is the sole
// writer of user rows and enforces username/email uniqueness with
// real constraints; Create surfaces constraint violations as
// ErrDuplicateUsername / ErrDuplicateEmail so concurrent
// registrations never both succeed.
type UserRepository interface {
	// Create stores a new user. Uniqueness violations are reported
	// as ErrDuplicateUsername or ErrDuplicateEmail (wrapped).
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID. Returns ErrNotFound (wrapped)
	// if no user exists.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by exact username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retrieves a user by exact email.
	GetByEmail(ctx context.Context, email string) (*User, error)
}
