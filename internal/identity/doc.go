// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

// Package identity implements account registration, authentication and the
// persisted user session for campusid.
//
// # Domain Types
//
// An Account is a registered user: an email, a credential secret, a fixed
// Role and role-specific details held in the RoleDetails sum type
// (*StudentDetails or *FacultyDetails). A Session is the projection of one
// Account without its secret.
//
// Accounts should be created through NewAccount (via RegistrationData) so
// the role schema is enforced; direct struct initialization is only checked
// again when the account reaches AccountStore.Insert.
//
// # Components
//
//   - AccountStore - durable account collection, unique email index
//   - Manager - register, login, logout, profile update and the current session
//
// Both persist JSON snapshots through a snapshot.Store under the keys named
// by Keys.
package identity
