// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/campuslink/campusid/internal/config"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	output     string
}

// NewRootCmd creates the root command for the campusid CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmdWithDeps(nil)
}

func newRootCmdWithDeps(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "campusid",
		Short: "campusid - campus account and session management",
		Long: `campusid registers student and faculty accounts, signs users in and
keeps the signed-in session across restarts in a local snapshot store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file path")
	pf.StringVarP(&opts.output, "output", "o", formatText, "output format (text|json|yaml)")
	config.BindFlags(pf)

	cmd.AddCommand(newRegisterCmd(opts, deps))
	cmd.AddCommand(newLoginCmd(opts, deps))
	cmd.AddCommand(newLogoutCmd(opts, deps))
	cmd.AddCommand(newWhoamiCmd(opts, deps))
	cmd.AddCommand(newUpdateCmd(opts, deps))
	cmd.AddCommand(newAccountsCmd(opts, deps))
	cmd.AddCommand(newShellCmd(opts, deps))
	cmd.AddCommand(newSchemaCmd())

	return cmd
}
