// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/campuslink/campusid/internal/identity"
	"github.com/campuslink/campusid/internal/observability"
	"github.com/campuslink/campusid/internal/snapshot"
	"github.com/campuslink/campusid/internal/xdg"
)

// Deps contains injectable dependencies for the CLI.
// All fields with nil values will use their default implementations.
type Deps struct {
	// StoreOpener opens the snapshot store.
	// Default: snapshot.Open
	StoreOpener func(ctx context.Context, cfg snapshot.Config, logger *slog.Logger) (snapshot.Store, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// DataDirGetter returns the default store directory.
	// Default: xdg.DataDir
	DataDirGetter func() (string, error)

	// ConfigFileGetter returns the default config file path.
	// Default: xdg.ConfigFile
	ConfigFileGetter func() (string, error)
}

// ObservabilityServer is the part of observability.Server used by shell.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *identity.Metrics
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.StoreOpener == nil {
		out.StoreOpener = snapshot.Open
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, logger)
		}
	}
	if out.DataDirGetter == nil {
		out.DataDirGetter = xdg.DataDir
	}
	if out.ConfigFileGetter == nil {
		out.ConfigFileGetter = xdg.ConfigFile
	}
	return &out
}
