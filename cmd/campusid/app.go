// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package main

import (
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/campuslink/campusid/internal/config"
	"github.com/campuslink/campusid/internal/identity"
	"github.com/campuslink/campusid/internal/logging"
	"github.com/campuslink/campusid/internal/snapshot"
)

// app is the wiring shared by every command: config, logger, snapshot
// store, account store and a restored Manager.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	snapshots snapshot.Store
	accounts  *identity.AccountStore
	manager   *identity.Manager
	out       *printer
}

// loadConfig resolves the effective configuration for cmd.
func loadConfig(cmd *cobra.Command, opts *globalOptions, deps *Deps) (config.Config, error) {
	dataDir, err := deps.DataDirGetter()
	if err != nil {
		return config.Config{}, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "resolve data directory")
	}

	src := config.Source{
		Defaults: config.Defaults(dataDir),
		File:     opts.configFile,
		Required: opts.configFile != "",
		Flags:    cmd.Flags(),
	}
	if src.File == "" {
		if path, err := deps.ConfigFileGetter(); err == nil {
			src.File = path
		}
	}
	return config.Load(src)
}

// newApp loads config, opens the stores and restores the session.
// Callers must Close the returned app.
func newApp(cmd *cobra.Command, opts *globalOptions, deps *Deps, extra ...identity.Option) (*app, error) {
	cfg, err := loadConfig(cmd, opts, deps)
	if err != nil {
		return nil, err
	}
	logger, err := setupLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}
	return openApp(cmd, opts, deps, cfg, logger, extra...)
}

// setupLogger builds the configured logger and installs it as the default.
func setupLogger(cmd *cobra.Command, cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup("campusid", version, cfg.Log.Format, level, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return logger, nil
}

func openApp(cmd *cobra.Command, opts *globalOptions, deps *Deps, cfg config.Config, logger *slog.Logger, extra ...identity.Option) (*app, error) {
	out, err := newPrinter(opts.output, cmd.OutOrStdout())
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	snaps, err := deps.StoreOpener(ctx, cfg.Snapshot(), logger)
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").
			With("driver", cfg.Store.Driver).
			Wrapf(err, "open snapshot store")
	}

	identityOpts := append([]identity.Option{
		identity.WithKeyPrefix(cfg.Store.KeyPrefix),
		identity.WithLogger(logger),
	}, extra...)

	accounts, err := identity.OpenAccountStore(ctx, snaps, identityOpts...)
	if err != nil {
		return nil, errors.Join(err, snaps.Close())
	}
	manager, err := identity.NewManager(accounts, snaps, identityOpts...)
	if err != nil {
		return nil, errors.Join(err, snaps.Close())
	}
	if err := manager.Restore(ctx); err != nil {
		// An unreadable session leaves the manager signed out; commands
		// still run against the account store.
		logger.Warn("session restore failed", "error", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		snapshots: snaps,
		accounts:  accounts,
		manager:   manager,
		out:       out,
	}, nil
}

func (a *app) Close() error {
	if err := a.snapshots.Close(); err != nil {
		return oops.Code("STORE_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

// requireSession returns the current session or a NO_ACTIVE_SESSION error.
func (a *app) requireSession() (*identity.Session, error) {
	s, ok := a.manager.Current()
	if !ok {
		return nil, oops.Code(identity.CodeNoActiveSession).Wrap(identity.ErrNoActiveSession)
	}
	return s, nil
}

// withApp runs fn against a freshly opened app and closes it afterwards.
func withApp(cmd *cobra.Command, opts *globalOptions, deps *Deps, fn func(*app) error) (err error) {
	a, err := newApp(cmd, opts, deps)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}
