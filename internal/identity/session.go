// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package identity

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Session is the credential-free projection of the authenticated account.
// It has no expiry: it lasts until Logout.
type Session struct {
	AccountID ulid.ULID
	Email     string
	Role      Role
	Profile   Profile
	Details   RoleDetails
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Student returns the student details when the session is a student.
func (s *Session) Student() (*StudentDetails, bool) {
	d, ok := s.Details.(*StudentDetails)
	return d, ok
}

// Faculty returns the faculty details when the session is faculty.
func (s *Session) Faculty() (*FacultyDetails, bool) {
	d, ok := s.Details.(*FacultyDetails)
	return d, ok
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.Profile = s.Profile.clone()
	if s.Details != nil {
		c.Details = s.Details.cloneDetails()
	}
	return &c
}
