// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package identity

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"

	"github.com/samber/oops"
)

// ProfilePatch is a partial profile update. Nil fields are left unchanged.
// There are no fields for the immutable id, email, role or secret.
type ProfilePatch struct {
	FirstName      *string
	MiddleName     *string
	LastName       *string
	ContactNumber  *string
	Gender         *string
	Skills         *[]string
	Projects       *[]Project
	Achievements   *[]Achievement
	ProfilePicture *string

	Student *StudentPatch
	Faculty *FacultyPatch
}

// StudentPatch updates student-only fields.
type StudentPatch struct {
	RollNumber      *string
	Department      *string
	GraduationYear  *int
	ExperienceYears *int
	PortfolioURL    *string
	Resume          *string
}

// FacultyPatch updates faculty-only fields.
type FacultyPatch struct {
	EmployeeID         *string
	Designation        *string
	DateOfJoining      *string
	Qualification      *string
	Specialization     *string
	TotalExperience    *int
	TeachingExperience *int
	IndustryExperience *int
	ResearchProjects   *[]ResearchProject
	CV                 *string
}

// immutableKeys may never appear in a decoded patch.
var immutableKeys = []string{"id", "email", "role", "secret", "password", "credentialSecret"}

// patchWire is the flat snake_case JSON form accepted by DecodePatch.
type patchWire struct {
	FirstName      *string        `json:"first_name"`
	MiddleName     *string        `json:"middle_name"`
	LastName       *string        `json:"last_name"`
	ContactNumber  *string        `json:"contact_number"`
	Gender         *string        `json:"gender"`
	Skills         *[]string      `json:"skills"`
	Projects       *[]Project     `json:"projects"`
	Achievements   *[]Achievement `json:"achievements"`
	ProfilePicture *string        `json:"profile_picture"`

	RollNumber      *string `json:"roll_number"`
	Department      *string `json:"department"`
	GraduationYear  *int    `json:"graduation_year"`
	ExperienceYears *int    `json:"experience_years"`
	PortfolioURL    *string `json:"portfolio_url"`
	Resume          *string `json:"resume"`

	EmployeeID         *string            `json:"employee_id"`
	Designation        *string            `json:"designation"`
	DateOfJoining      *string            `json:"date_of_joining"`
	Qualification      *string            `json:"qualification"`
	Specialization     *string            `json:"specialization"`
	TotalExperience    *int               `json:"total_experience"`
	TeachingExperience *int               `json:"teaching_experience"`
	IndustryExperience *int               `json:"industry_experience"`
	ResearchProjects   *[]ResearchProject `json:"research_projects"`
	CV                 *string            `json:"cv"`
}

// DecodePatch parses a flat JSON object of snake_case profile fields.
// Immutable fields and unknown keys are rejected with ErrValidation.
func DecodePatch(data []byte) (ProfilePatch, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return ProfilePatch{}, validationError("patch", "patch must be a JSON object")
	}
	for _, k := range immutableKeys {
		if _, ok := keys[k]; ok {
			return ProfilePatch{}, validationError(k, k+" cannot be changed")
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var w patchWire
	if err := dec.Decode(&w); err != nil {
		return ProfilePatch{}, oops.Code(CodeValidation).
			With("field", "patch").
			With("cause", err.Error()).
			Wrap(&FieldError{Field: "patch", Message: "patch contains an unknown or mistyped field"})
	}

	p := ProfilePatch{
		FirstName:      w.FirstName,
		MiddleName:     w.MiddleName,
		LastName:       w.LastName,
		ContactNumber:  w.ContactNumber,
		Gender:         w.Gender,
		Skills:         w.Skills,
		Projects:       w.Projects,
		Achievements:   w.Achievements,
		ProfilePicture: w.ProfilePicture,
	}
	sp := StudentPatch{
		RollNumber:      w.RollNumber,
		Department:      w.Department,
		GraduationYear:  w.GraduationYear,
		ExperienceYears: w.ExperienceYears,
		PortfolioURL:    w.PortfolioURL,
		Resume:          w.Resume,
	}
	if sp != (StudentPatch{}) {
		p.Student = &sp
	}
	fp := FacultyPatch{
		EmployeeID:         w.EmployeeID,
		Designation:        w.Designation,
		DateOfJoining:      w.DateOfJoining,
		Qualification:      w.Qualification,
		Specialization:     w.Specialization,
		TotalExperience:    w.TotalExperience,
		TeachingExperience: w.TeachingExperience,
		IndustryExperience: w.IndustryExperience,
		ResearchProjects:   w.ResearchProjects,
		CV:                 w.CV,
	}
	if fp != (FacultyPatch{}) {
		p.Faculty = &fp
	}
	return p, nil
}

// IsEmpty reports whether the patch changes nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.FirstName == nil && p.MiddleName == nil && p.LastName == nil &&
		p.ContactNumber == nil && p.Gender == nil && p.Skills == nil &&
		p.Projects == nil && p.Achievements == nil && p.ProfilePicture == nil &&
		p.Student == nil && p.Faculty == nil
}

// validateFor rejects role-specific fields of the other role.
func (p ProfilePatch) validateFor(role Role) error {
	switch {
	case role == RoleStudent && p.Faculty != nil:
		return validationError("role", "faculty fields cannot be set on a student profile")
	case role == RoleFaculty && p.Student != nil:
		return validationError("role", "student fields cannot be set on a faculty profile")
	}
	return nil
}

// apply returns the merged profile and details. The inputs are not
// modified. The merged result is validated.
func (p ProfilePatch) apply(role Role, prof Profile, details RoleDetails) (Profile, RoleDetails, error) {
	if err := p.validateFor(role); err != nil {
		return Profile{}, nil, err
	}

	out := prof.clone()
	setString(&out.FirstName, p.FirstName)
	setString(&out.MiddleName, p.MiddleName)
	setString(&out.LastName, p.LastName)
	setString(&out.ContactNumber, p.ContactNumber)
	setString(&out.Gender, p.Gender)
	setString(&out.ProfilePicture, p.ProfilePicture)
	if p.Skills != nil {
		out.Skills = slices.Clone(*p.Skills)
	}
	if p.Projects != nil {
		out.Projects = slices.Clone(*p.Projects)
	}
	if p.Achievements != nil {
		out.Achievements = slices.Clone(*p.Achievements)
	}
	out = normalizeProfile(out)

	var merged RoleDetails
	if details != nil {
		merged = details.cloneDetails()
	}
	switch d := merged.(type) {
	case *StudentDetails:
		if sp := p.Student; sp != nil {
			setString(&d.RollNumber, sp.RollNumber)
			setString(&d.Department, sp.Department)
			setInt(&d.GraduationYear, sp.GraduationYear)
			setInt(&d.ExperienceYears, sp.ExperienceYears)
			setString(&d.PortfolioURL, sp.PortfolioURL)
			setString(&d.Resume, sp.Resume)
		}
	case *FacultyDetails:
		if fp := p.Faculty; fp != nil {
			setString(&d.EmployeeID, fp.EmployeeID)
			setString(&d.Designation, fp.Designation)
			setString(&d.DateOfJoining, fp.DateOfJoining)
			setString(&d.Qualification, fp.Qualification)
			setString(&d.Specialization, fp.Specialization)
			setInt(&d.TotalExperience, fp.TotalExperience)
			setInt(&d.TeachingExperience, fp.TeachingExperience)
			setInt(&d.IndustryExperience, fp.IndustryExperience)
			if fp.ResearchProjects != nil {
				d.ResearchProjects = slices.Clone(*fp.ResearchProjects)
				if len(d.ResearchProjects) == 0 {
					d.ResearchProjects = nil
				}
			}
			setString(&d.CV, fp.CV)
		}
	default:
		return Profile{}, nil, validationError("role", role.String()+" details are required")
	}

	if err := out.validate(); err != nil {
		return Profile{}, nil, err
	}
	if err := merged.validate(); err != nil {
		return Profile{}, nil, err
	}
	return out, merged, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// fullPatch sets every mutable field to the values in prof and details.
// It is used to put an account back to an earlier state.
func fullPatch(prof Profile, details RoleDetails) ProfilePatch {
	prof = prof.clone()
	p := ProfilePatch{
		FirstName:      &prof.FirstName,
		MiddleName:     &prof.MiddleName,
		LastName:       &prof.LastName,
		ContactNumber:  &prof.ContactNumber,
		Gender:         &prof.Gender,
		Skills:         &prof.Skills,
		Projects:       &prof.Projects,
		Achievements:   &prof.Achievements,
		ProfilePicture: &prof.ProfilePicture,
	}
	switch d := details.(type) {
	case *StudentDetails:
		c := *d
		p.Student = &StudentPatch{
			RollNumber:      &c.RollNumber,
			Department:      &c.Department,
			GraduationYear:  &c.GraduationYear,
			ExperienceYears: &c.ExperienceYears,
			PortfolioURL:    &c.PortfolioURL,
			Resume:          &c.Resume,
		}
	case *FacultyDetails:
		c := d.cloneDetails().(*FacultyDetails)
		p.Faculty = &FacultyPatch{
			EmployeeID:         &c.EmployeeID,
			Designation:        &c.Designation,
			DateOfJoining:      &c.DateOfJoining,
			Qualification:      &c.Qualification,
			Specialization:     &c.Specialization,
			TotalExperience:    &c.TotalExperience,
			TeachingExperience: &c.TeachingExperience,
			IndustryExperience: &c.IndustryExperience,
			ResearchProjects:   &c.ResearchProjects,
			CV:                 &c.CV,
		}
	}
	return p
}
