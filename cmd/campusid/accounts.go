// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/campuslink/campusid/internal/identity"
)

func newAccountsCmd(opts *globalOptions, deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect the local account store",
	}
	cmd.AddCommand(newAccountsListCmd(opts, deps))
	cmd.AddCommand(newAccountsCheckCmd(opts, deps))
	return cmd
}

func newAccountsListCmd(opts *globalOptions, deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, deps, func(a *app) error {
				all, err := a.accounts.All(cmd.Context())
				if err != nil {
					return err
				}
				return a.out.print(newAccountList(all))
			})
		},
	}
}

// checkReport is the result of `accounts check`.
type checkReport struct {
	Accounts int      `json:"accounts"`
	Session  string   `json:"session"`
	Problems []string `json:"problems,omitempty"`
}

func (r checkReport) writeText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "accounts: %d\nsession: %s\n", r.Accounts, r.Session); err != nil {
		return err
	}
	if len(r.Problems) == 0 {
		_, err := fmt.Fprintln(w, "ok")
		return err
	}
	for _, p := range r.Problems {
		if _, err := fmt.Fprintln(w, "problem:", p); err != nil {
			return err
		}
	}
	return nil
}

func newAccountsCheckCmd(opts *globalOptions, deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the account store and session snapshot",
		Long: `Load both snapshots and report accounts that fail validation and a
session whose account no longer exists. Exits non-zero when a problem
is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, deps, func(a *app) error {
				report, err := checkStores(cmd, a)
				if err != nil {
					return err
				}
				if err := a.out.print(report); err != nil {
					return err
				}
				if len(report.Problems) > 0 {
					return oops.Code("CHECK_FAILED").
						With("problems", len(report.Problems)).
						Errorf("%d problem(s) found", len(report.Problems))
				}
				return nil
			})
		},
	}
}

// checkStores inspects an already loaded app. Duplicate emails or ids
// would have failed the load itself.
func checkStores(cmd *cobra.Command, a *app) (checkReport, error) {
	all, err := a.accounts.All(cmd.Context())
	if err != nil {
		return checkReport{}, err
	}

	report := checkReport{Accounts: len(all), Session: "none"}
	for i := range all {
		if err := all[i].Validate(); err != nil {
			report.Problems = append(report.Problems,
				fmt.Sprintf("account %s (%s): %s", all[i].ID, all[i].Email, identity.UserMessage(err)))
		}
	}

	s, ok := a.manager.Current()
	if !ok {
		return report, nil
	}
	report.Session = s.Email
	acct, err := a.accounts.Get(cmd.Context(), s.AccountID)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		report.Problems = append(report.Problems,
			fmt.Sprintf("session account %s (%s) is not in the account store", s.AccountID, s.Email))
	case err != nil:
		return checkReport{}, err
	case acct.Role != s.Role || acct.Email != s.Email:
		report.Problems = append(report.Problems,
			fmt.Sprintf("session for %s does not match its account", s.Email))
	}
	return report, nil
}
