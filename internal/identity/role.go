// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package identity

import "strings"

// Role is the account variant. It is fixed when the account is created.
type Role string

// Known roles.
const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleFaculty
}

func (r Role) String() string {
	return string(r)
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", validationError("role", "role must be student or faculty")
	}
	return r, nil
}
