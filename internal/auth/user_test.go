// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

package auth_test

import (
	"net/http"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorkeep/doorkeep/internal/auth"
)

func TestNewUser(t *testing.T) {
	t.Run("creates valid user", func(t *testing.T) {
		user, err := auth.NewUser("bob", "bob@x.com", "$argon2id$v=19$m=65536,t=1,p=4$salt$hash")
		require.NoError(t, err)
		assert.NotEqual(t, ulid.ULID{}, user.ID)
		assert.Equal(t, "bob", user.Username)
		assert.Equal(t, "bob@x.com", user.Email)
		assert.False(t, user.CreatedAt.IsZero())
		assert.Equal(t, user.CreatedAt, user.UpdatedAt)
	})

	t.Run("generates unique IDs", func(t *testing.T) {
		u1, err := auth.NewUser("bob", "bob@x.com", "hash")
		require.NoError(t, err)
		u2, err := auth.NewUser("alice", "alice@x.com", "hash")
		require.NoError(t, err)
		assert.NotEqual(t, u1.ID, u2.ID)
	})

	t.Run("rejects empty fields", func(t *testing.T) {
		_, err := auth.NewUser("", "bob@x.com", "hash")
		assert.Error(t, err)
		_, err = auth.NewUser("bob", "", "hash")
		assert.Error(t, err)
		_, err = auth.NewUser("bob", "bob@x.com", "")
		assert.Error(t, err)
	})
}

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{auth.CodeValidation, http.StatusBadRequest},
		{auth.CodeUserAction, http.StatusBadRequest},
		{auth.CodePasswordMismatch, http.StatusBadRequest},
		{auth.CodeNotFound, http.StatusNotFound},
		{auth.CodeAlreadyExists, http.StatusConflict},
		{auth.CodeUnauthorized, http.StatusUnauthorized},
		{auth.CodeInternal, http.StatusInternalServerError},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.StatusForCode(tt.code))
		})
	}
}
