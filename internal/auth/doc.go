// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

// Package auth implements the credential authentication core.
//
// # Domain Types
//
// Domain types (User, Session) should be created using their
// constructors:
//   - NewUser - creates a User with a fresh ID and timestamps
//   - NewSession - creates a Session bound to a user and token hash
//
// Direct struct initialization bypasses validation and may create
// invalid state. Repository implementations receive pre-validated
// types from these constructors.
//
// # Pipeline
//
// Service composes the pipeline for each operation: session guard,
// ordered validation (ValidateRegistration / ResolveLogin), password
// hashing or verification, and session lifecycle. The first failing
// rule short-circuits the rest and is returned as a typed error whose
// oops code maps to an HTTP status (see StatusForCode).
package auth
