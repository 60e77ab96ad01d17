// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

// Package server exposes the authentication core over a small JSON
// HTTP API. It owns request decoding, the session cookie, and the
// mapping from domain error codes to HTTP statuses; all business
// rules live in internal/auth.
package server
