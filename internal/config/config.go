// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

// Package config loads campusid settings. Sources are layered, later ones
// winning: built-in defaults, the YAML config file, CAMPUSID_* environment
// variables, then command-line flags.
package config

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/campuslink/campusid/internal/identity"
	"github.com/campuslink/campusid/internal/logging"
	"github.com/campuslink/campusid/internal/snapshot"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "CAMPUSID_"

// Config is the full campusid configuration.
type Config struct {
	Store   StoreConfig   `koanf:"store"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// StoreConfig selects the snapshot store backend.
type StoreConfig struct {
	Driver    string `koanf:"driver"`
	Dir       string `koanf:"dir"`
	DSN       string `koanf:"dsn"`
	KeyPrefix string `koanf:"key_prefix"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MetricsConfig controls the observability HTTP server. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Defaults returns the built-in configuration. dataDir is the default
// store directory.
func Defaults(dataDir string) Config {
	return Config{
		Store: StoreConfig{
			Driver:    snapshot.DriverFile,
			Dir:       dataDir,
			KeyPrefix: identity.DefaultKeyPrefix,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "warn",
		},
	}
}

// Snapshot converts the store section into a snapshot.Config.
func (c Config) Snapshot() snapshot.Config {
	return snapshot.Config{
		Driver: c.Store.Driver,
		Dir:    c.Store.Dir,
		DSN:    c.Store.DSN,
	}
}

// Validate checks that the configuration can be used.
func (c Config) Validate() error {
	if !slices.Contains(snapshot.Drivers, c.Store.Driver) {
		return invalid("store.driver", "must be one of "+strings.Join(snapshot.Drivers, ", "))
	}
	switch c.Store.Driver {
	case snapshot.DriverPostgres:
		if c.Store.DSN == "" {
			return invalid("store.dsn", "is required for the postgres driver")
		}
	case snapshot.DriverMemory:
	default:
		if c.Store.Dir == "" {
			return invalid("store.dir", "is required for the "+c.Store.Driver+" driver")
		}
	}
	if c.Store.KeyPrefix == "" {
		return invalid("store.key_prefix", "cannot be empty")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "must be json or text")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "must be debug, info, warn or error")
	}
	return nil
}

func invalid(key, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s %s", key, msg)
}

// Source describes where Load reads from.
type Source struct {
	// Defaults are the base values.
	Defaults Config
	// File is an optional YAML file. A missing file is ignored unless
	// Required is set.
	File     string
	Required bool
	// Flags holds command-line flags. Only flags registered with
	// BindFlags are read.
	Flags *pflag.FlagSet
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"store-driver": "store.driver",
	"store-dir":    "store.dir",
	"store-dsn":    "store.dsn",
	"key-prefix":   "store.key_prefix",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"metrics-addr": "metrics.addr",
}

// BindFlags registers the config flags on fs. Flag defaults are empty so
// that only flags set on the command line override other sources.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("store-driver", "", "snapshot store driver ("+strings.Join(snapshot.Drivers, "|")+")")
	fs.String("store-dir", "", "data directory for file, badger and sqlite stores")
	fs.String("store-dsn", "", "postgres connection URL")
	fs.String("key-prefix", "", "snapshot key prefix")
	fs.String("log-format", "", "log format (json|text)")
	fs.String("log-level", "", "log level (debug|info|warn|error)")
	fs.String("metrics-addr", "", "observability listen address for the shell command")
}

// Load merges all sources and validates the result.
func Load(src Source) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(defaultsProvider(src.Defaults), nil); err != nil {
		return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if src.File != "" {
		_, statErr := os.Stat(src.File)
		switch {
		case statErr == nil:
			if err := k.Load(file.Provider(src.File), yaml.Parser()); err != nil {
				return Config{}, oops.Code("CONFIG_LOAD_FAILED").
					With("source", "file").
					With("path", src.File).
					Wrap(err)
			}
		case errors.Is(statErr, fs.ErrNotExist) && !src.Required:
		default:
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", src.File).
				Wrap(statErr)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if src.Flags != nil {
		p := posflag.ProviderWithFlag(src.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(src.Flags, f)
		})
		if err := k.Load(p, nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "unmarshal").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps CAMPUSID_STORE_KEY_PREFIX to store.key_prefix: the first
// underscore separates the section, the rest stay in the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// defaultsProvider feeds a Config into koanf as a nested map.
type defaultsProvider Config

func (d defaultsProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("defaults provider does not support ReadBytes")
}

func (d defaultsProvider) Read() (map[string]any, error) {
	return map[string]any{
		"store": map[string]any{
			"driver":     d.Store.Driver,
			"dir":        d.Store.Dir,
			"dsn":        d.Store.DSN,
			"key_prefix": d.Store.KeyPrefix,
		},
		"log": map[string]any{
			"format": d.Log.Format,
			"level":  d.Log.Level,
		},
		"metrics": map[string]any{
			"addr": d.Metrics.Addr,
		},
	}, nil
}
