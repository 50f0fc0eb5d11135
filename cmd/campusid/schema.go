// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/campuslink/campusid/internal/identity"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "schema <account|session>",
		Short:     "Print the JSON Schema of a snapshot record",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{identity.SchemaAccount, identity.SchemaSession},
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := identity.GenerateSchema(args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(schema, '\n'))
			return err
		},
	}
}
