// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package identity

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// RegistrationData is the raw input of Register. Exactly one of Student or
// Faculty must be set, matching Role.
type RegistrationData struct {
	Email   string
	Secret  string
	Role    Role
	Profile Profile
	Student *StudentDetails
	Faculty *FacultyDetails
}

// NewAccount normalizes data into an Account and runs the authoritative
// role check. The caller supplies the identifier and creation time.
func NewAccount(data RegistrationData, id ulid.ULID, now time.Time) (*Account, error) {
	role, err := ParseRole(string(data.Role))
	if err != nil {
		return nil, err
	}
	if len(data.Secret) < MinSecretLength {
		return nil, validationError("secret", "password must be at least 6 characters")
	}

	var details RoleDetails
	switch role {
	case RoleStudent:
		if data.Faculty != nil {
			return nil, validationError("role", "faculty details given for a student")
		}
		if data.Student == nil {
			return nil, validationError("role", "student details are required")
		}
		s := *data.Student
		s.RollNumber = strings.TrimSpace(s.RollNumber)
		s.Department = strings.TrimSpace(s.Department)
		s.PortfolioURL = strings.TrimSpace(s.PortfolioURL)
		details = &s
	case RoleFaculty:
		if data.Student != nil {
			return nil, validationError("role", "student details given for a faculty member")
		}
		if data.Faculty == nil {
			return nil, validationError("role", "faculty details are required")
		}
		f := data.Faculty.cloneDetails().(*FacultyDetails)
		f.EmployeeID = strings.TrimSpace(f.EmployeeID)
		f.Designation = strings.TrimSpace(f.Designation)
		f.DateOfJoining = strings.TrimSpace(f.DateOfJoining)
		f.Qualification = strings.TrimSpace(f.Qualification)
		f.Specialization = strings.TrimSpace(f.Specialization)
		if len(f.ResearchProjects) == 0 {
			f.ResearchProjects = nil
		}
		details = f
	}

	a := &Account{
		ID:        id,
		Email:     strings.TrimSpace(data.Email),
		Secret:    data.Secret,
		Role:      role,
		Profile:   normalizeProfile(data.Profile),
		Details:   details,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// normalizeProfile trims names and reduces empty collections to nil so a
// profile compares equal after a JSON round trip.
func normalizeProfile(p Profile) Profile {
	p = p.clone()
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.MiddleName = strings.TrimSpace(p.MiddleName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.ContactNumber = strings.TrimSpace(p.ContactNumber)
	p.Gender = strings.TrimSpace(p.Gender)
	p.Skills = NormalizeSkills(p.Skills)
	if len(p.Projects) == 0 {
		p.Projects = nil
	}
	for i := range p.Projects {
		if len(p.Projects[i].Technologies) == 0 {
			p.Projects[i].Technologies = nil
		}
	}
	if len(p.Achievements) == 0 {
		p.Achievements = nil
	}
	return p
}
