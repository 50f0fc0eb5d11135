// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

// Package main is the entry point for the campusid CLI.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/campuslink/campusid/internal/identity"
	"github.com/campuslink/campusid/pkg/errutil"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		errutil.LogErrorContext(cmd.Context(), slog.Default(), slog.LevelDebug, "command failed", err)
		fmt.Fprintln(os.Stderr, "Error:", errorMessage(err))
		os.Exit(1)
	}
}

// userFacing are the identity errors whose short message is shown instead
// of the full error text.
var userFacing = []error{
	identity.ErrValidation,
	identity.ErrEmailAlreadyRegistered,
	identity.ErrAccountNotFound,
	identity.ErrInvalidCredential,
	identity.ErrNoActiveSession,
	identity.ErrPersistence,
}

func errorMessage(err error) string {
	for _, target := range userFacing {
		if errors.Is(err, target) {
			return identity.UserMessage(err)
		}
	}
	return err.Error()
}
