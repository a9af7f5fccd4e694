// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads aclkey configuration from defaults, an optional YAML
// file, and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/aclkey/internal/acl"
	"github.com/holomush/aclkey/internal/xdg"
)

// ErrCodeInvalid is returned for configuration that fails to load or validate.
const ErrCodeInvalid = "CONFIG_INVALID"

const databaseURLEnv = "DATABASE_URL"

// Default values for flags and config keys.
const (
	DefaultLogFormat     = "json"
	DefaultLogLevel      = "info"
	DefaultListenAddr    = "127.0.0.1:8080"
	DefaultMetricsAddr   = "127.0.0.1:9100"
	DefaultSubjectHeader = "X-Subject"
)

// Config is the full aclkey configuration.
type Config struct {
	ACL    acl.Config   `koanf:"acl"`
	Log    LogConfig    `koanf:"log"`
	HTTP   HTTPConfig   `koanf:"http"`
	Grants GrantsConfig `koanf:"grants"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// HTTPConfig controls the guarded HTTP server.
type HTTPConfig struct {
	Addr          string `koanf:"addr"`
	MetricsAddr   string `koanf:"metrics_addr"`
	SubjectHeader string `koanf:"subject_header"`
}

// GrantsConfig selects the grant source: a YAML document or PostgreSQL.
// Setting both is a configuration error. $DATABASE_URL fills DatabaseURL
// only when neither is set.
type GrantsConfig struct {
	File        string `koanf:"file"`
	DatabaseURL string `koanf:"database_url"`
}

// StoreURL returns the PostgreSQL URL for commands that only work against
// stored grants. $DATABASE_URL applies here even when a grant file is
// configured.
func (g GrantsConfig) StoreURL() string {
	if g.DatabaseURL != "" {
		return g.DatabaseURL
	}
	return os.Getenv(databaseURLEnv)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ACL: acl.DefaultConfig(),
		Log: LogConfig{Format: DefaultLogFormat, Level: DefaultLogLevel},
		HTTP: HTTPConfig{
			Addr:          DefaultListenAddr,
			MetricsAddr:   DefaultMetricsAddr,
			SubjectHeader: DefaultSubjectHeader,
		},
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"separator":      "acl.separator",
	"module-prefix":  "acl.module_prefix",
	"default-module": "acl.default_module",
	"log-format":     "log.format",
	"log-level":      "log.level",
	"listen-addr":    "http.addr",
	"metrics-addr":   "http.metrics_addr",
	"subject-header": "http.subject_header",
	"grants":         "grants.file",
	"database-url":   "grants.database_url",
}

// Load builds a Config. path names a YAML file; when empty the XDG default
// file is used if it exists. Only flags present in flags and known to the
// loader are applied; flags left at their default do not override the file.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.In("config").Code(ErrCodeInvalid).With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.In("config").Code(ErrCodeInvalid).With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.In("config").Code(ErrCodeInvalid).Wrap(err)
	}
	if cfg.Grants.DatabaseURL == "" && cfg.Grants.File == "" {
		cfg.Grants.DatabaseURL = os.Getenv(databaseURLEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ACL.Separator == "" {
		return oops.In("config").Code(ErrCodeInvalid).With("key", "acl.separator").Errorf("separator must not be empty")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.In("config").Code(ErrCodeInvalid).
			With("key", "log.format").
			Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if c.Grants.File != "" && c.Grants.DatabaseURL != "" {
		return oops.In("config").Code(ErrCodeInvalid).
			With("key", "grants").
			Errorf("grants.file and grants.database_url are mutually exclusive")
	}
	if c.HTTP.SubjectHeader == "" {
		return oops.In("config").Code(ErrCodeInvalid).With("key", "http.subject_header").Errorf("subject header must not be empty")
	}
	return nil
}

// RegisterFlags adds the flags understood by Load to fs, with defaults
// taken from Default.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("separator", d.ACL.Separator, "permission key separator")
	fs.String("module-prefix", d.ACL.ModulePrefix, "prefix stripped from module names")
	fs.String("default-module", d.ACL.DefaultModule, "module used when the request has none")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("grants", d.Grants.File, "grant document (YAML)")
	fs.String("database-url", d.Grants.DatabaseURL, "PostgreSQL URL for stored grants (default: $DATABASE_URL)")
}

// RegisterServeFlags adds the HTTP flags understood by Load to fs.
func RegisterServeFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("listen-addr", d.HTTP.Addr, "guarded HTTP listen address")
	fs.String("metrics-addr", d.HTTP.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("subject-header", d.HTTP.SubjectHeader, "request header naming the authenticated subject")
}
