// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/campuslink/campusid/internal/identity"
)

// registrationInput is the JSON form of a registration form. Profile
// fields sit at the top level next to email, password and role.
type registrationInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	identity.Profile
	Student *identity.StudentDetails `json:"student,omitempty"`
	Faculty *identity.FacultyDetails `json:"faculty,omitempty"`
}

func (in registrationInput) data() identity.RegistrationData {
	return identity.RegistrationData{
		Email:   in.Email,
		Secret:  in.Password,
		Role:    identity.Role(in.Role),
		Profile: in.Profile,
		Student: in.Student,
		Faculty: in.Faculty,
	}
}

func decodeRegistration(raw []byte) (identity.RegistrationData, error) {
	var in registrationInput
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return identity.RegistrationData{}, oops.Code("INPUT_INVALID").Wrapf(err, "decode registration")
	}
	return in.data(), nil
}

// registerConfig holds the register flags.
type registerConfig struct {
	fromJSON string
	input    registrationInput
	student  identity.StudentDetails
	faculty  identity.FacultyDetails
}

func newRegisterCmd(opts *globalOptions, deps *Deps) *cobra.Command {
	cfg := &registerConfig{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Long: `Create a student or faculty account and sign in as it.

Fields come from flags, or from a JSON document with --from-json
(use "-" to read it from stdin).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, deps, func(a *app) error {
				return runRegister(cmd, a, cfg)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.fromJSON, "from-json", "", "read the registration from a JSON file")
	f.StringVar(&cfg.input.Email, "email", "", "email address")
	f.StringVar(&cfg.input.Password, "password", "", "password (at least 6 characters)")
	f.StringVar(&cfg.input.Role, "role", "", "role (student|faculty)")
	f.StringVar(&cfg.input.FirstName, "first-name", "", "first name")
	f.StringVar(&cfg.input.MiddleName, "middle-name", "", "middle name")
	f.StringVar(&cfg.input.LastName, "last-name", "", "last name")
	f.StringVar(&cfg.input.ContactNumber, "contact", "", "contact number")
	f.StringVar(&cfg.input.Gender, "gender", "", "gender")
	f.StringSliceVar(&cfg.input.Skills, "skills", nil, "comma-separated skills")

	f.StringVar(&cfg.student.RollNumber, "roll-number", "", "student roll number")
	f.StringVar(&cfg.student.Department, "department", "", "student department")
	f.IntVar(&cfg.student.GraduationYear, "graduation-year", 0, "student graduation year")
	f.IntVar(&cfg.student.ExperienceYears, "experience-years", 0, "student experience in years")
	f.StringVar(&cfg.student.PortfolioURL, "portfolio-url", "", "student portfolio URL")

	f.StringVar(&cfg.faculty.EmployeeID, "employee-id", "", "faculty employee id")
	f.StringVar(&cfg.faculty.Designation, "designation", "", "faculty designation")
	f.StringVar(&cfg.faculty.DateOfJoining, "date-of-joining", "", "faculty date of joining (YYYY-MM-DD)")
	f.StringVar(&cfg.faculty.Qualification, "qualification", "", "faculty qualification")
	f.StringVar(&cfg.faculty.Specialization, "specialization", "", "faculty specialization")
	f.IntVar(&cfg.faculty.TotalExperience, "total-experience", 0, "faculty total experience in years")
	f.IntVar(&cfg.faculty.TeachingExperience, "teaching-experience", 0, "faculty teaching experience in years")
	f.IntVar(&cfg.faculty.IndustryExperience, "industry-experience", 0, "faculty industry experience in years")

	cmd.MarkFlagsMutuallyExclusive("from-json", "email")
	return cmd
}

func runRegister(cmd *cobra.Command, a *app, cfg *registerConfig) error {
	var data identity.RegistrationData
	if cfg.fromJSON != "" {
		raw, err := readInput(cmd, cfg.fromJSON)
		if err != nil {
			return err
		}
		if data, err = decodeRegistration(raw); err != nil {
			return err
		}
	} else {
		in := cfg.input
		switch strings.ToLower(strings.TrimSpace(in.Role)) {
		case string(identity.RoleStudent):
			st := cfg.student
			in.Student = &st
		case string(identity.RoleFaculty):
			fa := cfg.faculty
			in.Faculty = &fa
		}
		data = in.data()
	}

	s, err := a.manager.Register(cmd.Context(), data)
	if err != nil {
		return err
	}
	return a.out.print(newSessionView(s))
}

func newLoginCmd(opts *globalOptions, deps *Deps) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in to an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, deps, func(a *app) error {
				s, err := a.manager.Login(cmd.Context(), args[0], password)
				if err != nil {
					return err
				}
				return a.out.print(newSessionView(s))
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(opts *globalOptions, deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear local session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, deps, func(a *app) error {
				if err := a.manager.Logout(cmd.Context()); err != nil {
					return err
				}
				return a.out.print(message{Message: "Signed out."})
			})
		},
	}
}

func newWhoamiCmd(opts *globalOptions, deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, deps, func(a *app) error {
				s, err := a.requireSession()
				if err != nil {
					return err
				}
				return a.out.print(newSessionView(s))
			})
		},
	}
}

func newUpdateCmd(opts *globalOptions, deps *Deps) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "update [patch-json]",
		Short: "Update the signed-in profile",
		Long: `Apply a JSON patch to the signed-in profile. Only the listed fields
change; email, role and password cannot be changed.

  campusid update '{"skills":["Go"],"contact_number":"555-0100"}'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := patchSource(cmd, args, file)
			if err != nil {
				return err
			}
			patch, err := identity.DecodePatch(raw)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, deps, func(a *app) error {
				s, err := a.manager.UpdateProfile(cmd.Context(), patch)
				if err != nil {
					return err
				}
				return a.out.print(newSessionView(s))
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", `read the patch from a file ("-" for stdin)`)
	return cmd
}

func patchSource(cmd *cobra.Command, args []string, file string) ([]byte, error) {
	switch {
	case len(args) == 1 && file != "":
		return nil, oops.Code("INPUT_INVALID").Errorf("give the patch as an argument or with --file, not both")
	case len(args) == 1:
		return []byte(args[0]), nil
	case file != "":
		return readInput(cmd, file)
	default:
		return nil, oops.Code("INPUT_INVALID").Errorf("a patch is required")
	}
}

// readInput reads path, or the command's stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path) //nolint:gosec // path is operator-supplied
	}
	if err != nil {
		return nil, oops.Code("INPUT_READ_FAILED").With("path", path).Wrap(err)
	}
	return raw, nil
}
