// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

package auth

import (
	"errors"
	"net/http"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Duplicate sentinels surfaced by UserRepository.Create when the
// storage layer rejects an insert on a uniqueness constraint. The
// orchestrator maps them to the same outcome as a pre-check hit.
var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
)

// Error codes carried on oops errors. Every failure the core produces
// uses exactly one of these; the boundary maps codes to HTTP statuses
// via StatusForCode.
const (
	CodeValidation       = "AUTH_VALIDATION"
	CodeUserAction       = "AUTH_USER_ACTION"
	CodeNotFound         = "AUTH_NOT_FOUND"
	CodeAlreadyExists    = "AUTH_ALREADY_EXISTS"
	CodePasswordMismatch = "AUTH_PASSWORD_MISMATCH"
	CodeUnauthorized     = "AUTH_UNAUTHORIZED"
	CodeInternal         = "AUTH_INTERNAL"
)

// StatusForCode maps an error code to its HTTP status. Unknown codes
// are treated as internal failures.
func StatusForCode(code string) int {
	switch code {
	case CodeValidation, CodeUserAction, CodePasswordMismatch:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// InternalMessage is the only text clients ever see for CodeInternal
// failures; the wrapped cause stays in the server log.
const InternalMessage = "Something went wrong. Please try again."
