// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorkeep/doorkeep/internal/auth"
	"github.com/doorkeep/doorkeep/internal/auth/postgres"
)

func testUser(t *testing.T) *auth.User {
	t.Helper()
	user, err := auth.NewUser("bob", "bob@x.com", "$argon2id$v=19$m=65536,t=1,p=4$salt$hash")
	require.NoError(t, err)
	return user
}

func userColumns() []string {
	return []string{"id", "username", "email", "password_hash", "created_at", "updated_at"}
}

func TestUserRepository_Create(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface, user *auth.User)
		wantErr   error
	}{
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface, user *auth.User) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Username, user.Email, user.PasswordHash,
						user.CreatedAt, user.UpdatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "username constraint violation",
			setupMock: func(mock pgxmock.PgxPoolIface, user *auth.User) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Username, user.Email, user.PasswordHash,
						user.CreatedAt, user.UpdatedAt).
					WillReturnError(&pgconn.PgError{
						Code:           pgerrcode.UniqueViolation,
						ConstraintName: "users_username_key",
					})
			},
			wantErr: auth.ErrDuplicateUsername,
		},
		{
			name: "email constraint violation",
			setupMock: func(mock pgxmock.PgxPoolIface, user *auth.User) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Username, user.Email, user.PasswordHash,
						user.CreatedAt, user.UpdatedAt).
					WillReturnError(&pgconn.PgError{
						Code:           pgerrcode.UniqueViolation,
						ConstraintName: "users_email_key",
					})
			},
			wantErr: auth.ErrDuplicateEmail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			user := testUser(t)
			tt.setupMock(mock, user)

			repo := postgres.NewUserRepository(mock)
			err = repo.Create(context.Background(), user)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_Create_OtherErrorIsNotDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	user := testUser(t)
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(user.ID.String(), user.Username, user.Email, user.PasswordHash,
			user.CreatedAt, user.UpdatedAt).
		WillReturnError(errors.New("connection refused"))

	repo := postgres.NewUserRepository(mock)
	err = repo.Create(context.Background(), user)

	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrDuplicateUsername)
	assert.NotErrorIs(t, err, auth.ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByUsername(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := ulid.Make()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(userColumns()).
					AddRow(id.String(), "bob", "bob@x.com", "hash", now, now)
				mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at FROM users`).
					WithArgs("bob").
					WillReturnRows(rows)
			},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at FROM users`).
					WithArgs("bob").
					WillReturnRows(pgxmock.NewRows(userColumns()))
			},
			wantErr: auth.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.setupMock(mock)

			repo := postgres.NewUserRepository(mock)
			user, err := repo.GetByUsername(context.Background(), "bob")

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, id, user.ID)
				assert.Equal(t, "bob", user.Username)
				assert.Equal(t, "bob@x.com", user.Email)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at FROM users`).
		WithArgs("nobody@x.com").
		WillReturnRows(pgxmock.NewRows(userColumns()))

	repo := postgres.NewUserRepository(mock)
	_, err = repo.GetByEmail(context.Background(), "nobody@x.com")

	assert.ErrorIs(t, err, auth.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_BadStoredID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	id := ulid.Make()
	rows := pgxmock.NewRows(userColumns()).
		AddRow("not-a-ulid", "bob", "bob@x.com", "hash", now, now)
	mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at FROM users`).
		WithArgs(id.String()).
		WillReturnRows(rows)

	repo := postgres.NewUserRepository(mock)
	_, err = repo.GetByID(context.Background(), id)

	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
