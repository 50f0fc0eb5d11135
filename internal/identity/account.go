// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package identity

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Graduation year bounds accepted for students.
const (
	MinGraduationYear = 1950
	MaxGraduationYear = 2100
)

// MinSecretLength is the shortest credential secret accepted at registration.
const MinSecretLength = 6

// DateLayout is the format of FacultyDetails.DateOfJoining.
const DateLayout = "2006-01-02"

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Account is a registered user.
type Account struct {
	ID        ulid.ULID
	Email     string
	Secret    string
	Role      Role
	Profile   Profile
	Details   RoleDetails
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoleDetails holds the fields that exist only for one role. The only
// implementations are *StudentDetails and *FacultyDetails.
type RoleDetails interface {
	Role() Role
	cloneDetails() RoleDetails
	validate() error
}

// StudentDetails are the student-only account fields.
type StudentDetails struct {
	RollNumber      string `json:"roll_number"`
	Department      string `json:"department"`
	GraduationYear  int    `json:"graduation_year"`
	ExperienceYears int    `json:"experience_years,omitempty"`
	PortfolioURL    string `json:"portfolio_url,omitempty"`
	Resume          string `json:"resume,omitempty"`
}

// Role returns RoleStudent.
func (*StudentDetails) Role() Role { return RoleStudent }

func (d *StudentDetails) cloneDetails() RoleDetails {
	c := *d
	return &c
}

func (d *StudentDetails) validate() error {
	switch {
	case d.RollNumber == "":
		return validationError("roll_number", "roll number is required")
	case d.Department == "":
		return validationError("department", "department is required")
	case d.GraduationYear < MinGraduationYear || d.GraduationYear > MaxGraduationYear:
		return validationError("graduation_year", "graduation year is out of range")
	case d.ExperienceYears < 0:
		return validationError("experience_years", "experience years cannot be negative")
	}
	return nil
}

// FacultyDetails are the faculty-only account fields.
type FacultyDetails struct {
	EmployeeID         string            `json:"employee_id"`
	Designation        string            `json:"designation"`
	DateOfJoining      string            `json:"date_of_joining"`
	Qualification      string            `json:"qualification"`
	Specialization     string            `json:"specialization,omitempty"`
	TotalExperience    int               `json:"total_experience,omitempty"`
	TeachingExperience int               `json:"teaching_experience,omitempty"`
	IndustryExperience int               `json:"industry_experience,omitempty"`
	ResearchProjects   []ResearchProject `json:"research_projects,omitempty"`
	CV                 string            `json:"cv,omitempty"`
}

// ResearchProject is a free-form research entry on a faculty profile.
type ResearchProject struct {
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	FundingAgency string `json:"funding_agency,omitempty"`
	Year          int    `json:"year,omitempty"`
}

// Role returns RoleFaculty.
func (*FacultyDetails) Role() Role { return RoleFaculty }

func (d *FacultyDetails) cloneDetails() RoleDetails {
	c := *d
	c.ResearchProjects = slices.Clone(d.ResearchProjects)
	return &c
}

func (d *FacultyDetails) validate() error {
	switch {
	case d.EmployeeID == "":
		return validationError("employee_id", "employee id is required")
	case d.Designation == "":
		return validationError("designation", "designation is required")
	case d.Qualification == "":
		return validationError("qualification", "qualification is required")
	case d.DateOfJoining == "":
		return validationError("date_of_joining", "date of joining is required")
	}
	if _, err := time.Parse(DateLayout, d.DateOfJoining); err != nil {
		return validationError("date_of_joining", "date of joining must be YYYY-MM-DD")
	}
	if d.TotalExperience < 0 || d.TeachingExperience < 0 || d.IndustryExperience < 0 {
		return validationError("total_experience", "experience years cannot be negative")
	}
	if d.TotalExperience > 0 && d.TeachingExperience+d.IndustryExperience > d.TotalExperience {
		return validationError("total_experience", "teaching and industry experience exceed total experience")
	}
	for _, rp := range d.ResearchProjects {
		if strings.TrimSpace(rp.Title) == "" {
			return validationError("research_projects", "every research project needs a title")
		}
	}
	return nil
}

// Student returns the student details when the account is a student.
func (a *Account) Student() (*StudentDetails, bool) {
	d, ok := a.Details.(*StudentDetails)
	return d, ok
}

// Faculty returns the faculty details when the account is faculty.
func (a *Account) Faculty() (*FacultyDetails, bool) {
	d, ok := a.Details.(*FacultyDetails)
	return d, ok
}

// Validate checks the account against the role schema. It is the
// authoritative check run at the store boundary.
func (a *Account) Validate() error {
	if a.ID.Compare(ulid.ULID{}) == 0 {
		return validationError("id", "account id cannot be zero")
	}
	if err := validateEmail(a.Email); err != nil {
		return err
	}
	if a.Secret == "" {
		return validationError("secret", "password is required")
	}
	if !a.Role.Valid() {
		return validationError("role", "role must be student or faculty")
	}
	if a.Details == nil {
		return validationError("role", a.Role.String()+" details are required")
	}
	if a.Details.Role() != a.Role {
		return validationError("role", "details do not match role "+a.Role.String())
	}
	if err := a.Profile.validate(); err != nil {
		return err
	}
	return a.Details.validate()
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	c := *a
	c.Profile = a.Profile.clone()
	if a.Details != nil {
		c.Details = a.Details.cloneDetails()
	}
	return &c
}

// Session returns the credential-free projection of the account.
func (a *Account) Session() *Session {
	s := &Session{
		AccountID: a.ID,
		Email:     a.Email,
		Role:      a.Role,
		Profile:   a.Profile.clone(),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.Details != nil {
		s.Details = a.Details.cloneDetails()
	}
	return s
}

func validateEmail(email string) error {
	if email == "" {
		return validationError("email", "email is required")
	}
	if !emailRegex.MatchString(email) {
		return validationError("email", "email address is not valid")
	}
	return nil
}

// emailKey is the case-insensitive form used for uniqueness and lookup.
func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
