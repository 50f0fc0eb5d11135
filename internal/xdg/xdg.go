// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

// Package xdg resolves XDG Base Directory paths for campusid.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "campusid"

// ConfigFileName is the name of the YAML config file inside ConfigDir.
const ConfigFileName = "config.yaml"

// ConfigDir returns the campusid config directory.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	return resolve("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the campusid data directory, where snapshot stores
// keep their files. Checks XDG_DATA_HOME first, falls back to
// ~/.local/share.
func DataDir() (string, error) {
	return resolve("XDG_DATA_HOME", ".local", "share")
}

// ConfigFile returns the default config file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

func resolve(envVar string, fallback ...string) (string, error) {
	if base := os.Getenv(envVar); base != "" {
		return filepath.Join(base, appName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil || home == "" {
			return "", oops.Code("XDG_NO_HOME").
				With("env", envVar).
				Errorf("cannot resolve %s: no home directory", envVar)
		}
	}
	parts := append([]string{home}, fallback...)
	return filepath.Join(append(parts, appName)...), nil
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.With("path", path).Wrapf(err, "failed to create directory")
	}
	return nil
}
