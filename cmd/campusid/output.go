// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/campuslink/campusid/internal/identity"
)

// Output formats accepted by --output.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// textWriter is implemented by values with a human-readable form.
type textWriter interface {
	writeText(w io.Writer) error
}

// printer writes command results in the selected format.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string, w io.Writer) (*printer, error) {
	switch format {
	case "", formatText:
		format = formatText
	case formatJSON, formatYAML:
	default:
		return nil, oops.Code("OUTPUT_FORMAT_INVALID").
			With("format", format).
			Errorf("unknown output format %q (want text, json or yaml)", format)
	}
	return &printer{format: format, w: w}, nil
}

func (p *printer) print(v any) error {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		// Round-trip through JSON so YAML keys match the JSON field names.
		raw, err := json.Marshal(v)
		if err != nil {
			return oops.Wrapf(err, "failed to marshal output")
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return oops.Wrapf(err, "failed to convert output")
		}
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return oops.Wrapf(err, "failed to encode yaml")
		}
		return enc.Close()
	default:
		if tw, ok := v.(textWriter); ok {
			return tw.writeText(p.w)
		}
		_, err := fmt.Fprintln(p.w, v)
		return err
	}
}

// sessionView is the printed form of a session.
type sessionView struct {
	ID        string                   `json:"id"`
	Email     string                   `json:"email"`
	Role      string                   `json:"role"`
	Name      string                   `json:"name"`
	Profile   identity.Profile         `json:"profile"`
	Student   *identity.StudentDetails `json:"student,omitempty"`
	Faculty   *identity.FacultyDetails `json:"faculty,omitempty"`
	CreatedAt string                   `json:"created_at"`
	UpdatedAt string                   `json:"updated_at"`
}

func newSessionView(s *identity.Session) sessionView {
	v := sessionView{
		ID:        s.AccountID.String(),
		Email:     s.Email,
		Role:      s.Role.String(),
		Name:      s.Profile.FullName(),
		Profile:   s.Profile,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
	v.Student, _ = s.Student()
	v.Faculty, _ = s.Faculty()
	return v
}

func (v sessionView) writeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(k, val string) {
		if val != "" {
			_, _ = fmt.Fprintf(tw, "%s:\t%s\n", k, val)
		}
	}
	row("Name", v.Name)
	row("Email", v.Email)
	row("Role", v.Role)
	row("ID", v.ID)
	row("Contact", v.Profile.ContactNumber)
	row("Skills", strings.Join(v.Profile.Skills, ", "))
	if st := v.Student; st != nil {
		row("Roll number", st.RollNumber)
		row("Department", st.Department)
		row("Graduation year", fmt.Sprint(st.GraduationYear))
		row("Portfolio", st.PortfolioURL)
	}
	if f := v.Faculty; f != nil {
		row("Employee ID", f.EmployeeID)
		row("Designation", f.Designation)
		row("Joined", f.DateOfJoining)
		row("Qualification", f.Qualification)
		row("Specialization", f.Specialization)
	}
	return tw.Flush()
}

// accountRow is one line of `accounts list`. It never carries the secret.
type accountRow struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type accountList []accountRow

func newAccountList(accounts []identity.Account) accountList {
	rows := make(accountList, len(accounts))
	for i, a := range accounts {
		rows[i] = accountRow{
			ID:        a.ID.String(),
			Email:     a.Email,
			Role:      a.Role.String(),
			Name:      a.Profile.FullName(),
			CreatedAt: a.CreatedAt.Format(identity.DateLayout),
		}
	}
	return rows
}

func (l accountList) writeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "EMAIL\tROLE\tNAME\tCREATED\tID")
	for _, r := range l {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Email, r.Role, r.Name, r.CreatedAt, r.ID)
	}
	return tw.Flush()
}

// message is a plain status line.
type message struct {
	Message string `json:"message"`
}

func (m message) writeText(w io.Writer) error {
	_, err := fmt.Fprintln(w, m.Message)
	return err
}
