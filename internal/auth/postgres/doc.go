// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

// Package postgres implements the auth repositories on PostgreSQL.
//
// Uniqueness of usernames and email addresses is enforced by named
// database constraints, not by the repositories; Create methods
// translate constraint violations into the auth package's duplicate
// sentinels so the orchestrator can treat a lost insert race exactly
// like a pre-check hit.
package postgres
