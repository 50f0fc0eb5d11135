// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

// Command gen-schema writes the snapshot record JSON Schema files.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/campuslink/campusid/internal/identity"
)

func main() {
	for _, name := range []string{identity.SchemaAccount, identity.SchemaSession} {
		schema, err := identity.GenerateSchema(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating %s schema: %v\n", name, err)
			os.Exit(1)
		}

		outPath := filepath.Join("schemas", name+".schema.json")
		if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
			os.Exit(1)
		}

		if err := os.WriteFile(outPath, append(schema, '\n'), 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Generated %s\n", outPath)
	}
}
