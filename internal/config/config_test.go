// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslink/campusid/internal/config"
	"github.com/campuslink/campusid/internal/snapshot"
	"github.com/campuslink/campusid/pkg/errutil"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(config.Source{Defaults: config.Defaults("/data/campusid")})
	require.NoError(t, err)

	assert.Equal(t, snapshot.DriverFile, cfg.Store.Driver)
	assert.Equal(t, "/data/campusid", cfg.Store.Dir)
	assert.Equal(t, "campusid.", cfg.Store.KeyPrefix)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, `
store:
  driver: sqlite
  dir: /from/file
log:
  level: info
  format: json
`)
	t.Setenv("CAMPUSID_STORE_DIR", "/from/env")
	t.Setenv("CAMPUSID_STORE_KEY_PREFIX", "env.")
	t.Setenv("CAMPUSID_LOG_LEVEL", "error")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.BindFlags(fs)
	fs.String("unrelated", "x", "")
	require.NoError(t, fs.Parse([]string{"--log-level=debug", "--metrics-addr=127.0.0.1:9100"}))

	cfg, err := config.Load(config.Source{
		Defaults: config.Defaults("/default"),
		File:     path,
		Flags:    fs,
	})
	require.NoError(t, err)

	assert.Equal(t, snapshot.DriverSQLite, cfg.Store.Driver, "file beats defaults")
	assert.Equal(t, "/from/env", cfg.Store.Dir, "env beats file")
	assert.Equal(t, "env.", cfg.Store.KeyPrefix)
	assert.Equal(t, "debug", cfg.Log.Level, "flags beat env")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Addr)
}

func TestLoad_UnsetFlagsDoNotOverride(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.BindFlags(fs)
	require.NoError(t, fs.Parse(nil))

	cfg, err := config.Load(config.Source{Defaults: config.Defaults("/default"), Flags: fs})
	require.NoError(t, err)
	assert.Equal(t, "/default", cfg.Store.Dir)
	assert.Equal(t, snapshot.DriverFile, cfg.Store.Driver)
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := config.Load(config.Source{Defaults: config.Defaults("/d"), File: missing})
	require.NoError(t, err, "optional file may be absent")

	_, err = config.Load(config.Source{Defaults: config.Defaults("/d"), File: missing, Required: true})
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeFile(t, "store: [unterminated")

	_, err := config.Load(config.Source{Defaults: config.Defaults("/d"), File: path})
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		ok     bool
	}{
		{"defaults", func(*config.Config) {}, true},
		{"memory needs no dir", func(c *config.Config) { c.Store.Driver = "memory"; c.Store.Dir = "" }, true},
		{"unknown driver", func(c *config.Config) { c.Store.Driver = "redis" }, false},
		{"postgres without dsn", func(c *config.Config) { c.Store.Driver = "postgres" }, false},
		{"postgres with dsn", func(c *config.Config) {
			c.Store.Driver = "postgres"
			c.Store.DSN = "postgres://localhost/campusid"
		}, true},
		{"badger without dir", func(c *config.Config) { c.Store.Driver = "badger"; c.Store.Dir = "" }, false},
		{"empty prefix", func(c *config.Config) { c.Store.KeyPrefix = "" }, false},
		{"bad format", func(c *config.Config) { c.Log.Format = "xml" }, false},
		{"bad level", func(c *config.Config) { c.Log.Level = "loud" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults("/d")
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		})
	}
}

func TestSnapshotConfig(t *testing.T) {
	cfg := config.Defaults("/d")
	cfg.Store.DSN = "postgres://x"

	assert.Equal(t, snapshot.Config{Driver: "file", Dir: "/d", DSN: "postgres://x"}, cfg.Snapshot())
}
