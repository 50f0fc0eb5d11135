// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package identity

import (
	"slices"
	"strings"
)

// Profile holds the fields every account has regardless of role.
type Profile struct {
	FirstName      string        `json:"first_name"`
	MiddleName     string        `json:"middle_name,omitempty"`
	LastName       string        `json:"last_name"`
	ContactNumber  string        `json:"contact_number,omitempty"`
	Gender         string        `json:"gender,omitempty"`
	Skills         []string      `json:"skills,omitempty"`
	Projects       []Project     `json:"projects,omitempty"`
	Achievements   []Achievement `json:"achievements,omitempty"`
	ProfilePicture string        `json:"profile_picture,omitempty"`
}

// Project is a free-form project entry.
type Project struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	Link         string   `json:"link,omitempty"`
}

// Achievement is a free-form achievement entry.
type Achievement struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`
}

// FullName joins the non-empty name parts.
func (p Profile) FullName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.FirstName, p.MiddleName, p.LastName} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func (p Profile) clone() Profile {
	out := p
	out.Skills = slices.Clone(p.Skills)
	if p.Projects != nil {
		out.Projects = make([]Project, len(p.Projects))
		for i, pr := range p.Projects {
			pr.Technologies = slices.Clone(pr.Technologies)
			out.Projects[i] = pr
		}
	}
	out.Achievements = slices.Clone(p.Achievements)
	return out
}

func (p Profile) validate() error {
	if p.FirstName == "" {
		return validationError("first_name", "first name is required")
	}
	if p.LastName == "" {
		return validationError("last_name", "last name is required")
	}
	for _, pr := range p.Projects {
		if strings.TrimSpace(pr.Title) == "" {
			return validationError("projects", "every project needs a title")
		}
	}
	for _, a := range p.Achievements {
		if strings.TrimSpace(a.Title) == "" {
			return validationError("achievements", "every achievement needs a title")
		}
	}
	return nil
}

// NormalizeSkills treats skills as a set: entries are trimmed, blanks
// dropped and case-insensitive duplicates removed, keeping the first
// spelling. A nil result means no skills.
func NormalizeSkills(skills []string) []string {
	if len(skills) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SameSkills reports whether a and b hold the same skill set, ignoring order
// and case.
func SameSkills(a, b []string) bool {
	a, b = NormalizeSkills(a), NormalizeSkills(b)
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[strings.ToLower(s)] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[strings.ToLower(s)]; !ok {
			return false
		}
	}
	return true
}
