// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/aclkey/internal/config"
	"github.com/holomush/aclkey/pkg/errutil"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	config.RegisterServeFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "")

	cfg, err := config.Load("", newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, config.Default(), *cfg)
	assert.Equal(t, "|", cfg.ACL.Separator)
	assert.Equal(t, "default", cfg.ACL.DefaultModule)
	assert.Equal(t, "", cfg.ACL.ModulePrefix)
}

func TestLoad_File(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	path := writeConfig(t, `
acl:
  separator: "."
  module_prefix: Admin
  default_module: home
log:
  format: text
  level: debug
grants:
  file: /etc/aclkey/grants.yaml
`)

	cfg, err := config.Load(path, newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.ACL.Separator)
	assert.Equal(t, "Admin", cfg.ACL.ModulePrefix)
	assert.Equal(t, "home", cfg.ACL.DefaultModule)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/etc/aclkey/grants.yaml", cfg.Grants.File)
	assert.Equal(t, config.DefaultListenAddr, cfg.HTTP.Addr, "unset keys keep defaults")
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	path := writeConfig(t, "acl:\n  separator: \".\"\n  module_prefix: Admin\n")

	cfg, err := config.Load(path, newFlags(t, "--separator=/", "--listen-addr=:9999"))
	require.NoError(t, err)

	assert.Equal(t, "/", cfg.ACL.Separator, "changed flag wins")
	assert.Equal(t, "Admin", cfg.ACL.ModulePrefix, "unchanged flag does not override file")
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
}

func TestLoad_XDGDefaultFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("DATABASE_URL", "")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "aclkey"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aclkey", "config.yaml"),
		[]byte("acl:\n  default_module: site\n"), 0o600))

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "site", cfg.ACL.DefaultModule)
}

func TestLoad_DatabaseURLFromEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://env/acl")

	cfg, err := config.Load("", newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/acl", cfg.Grants.DatabaseURL)

	cfg, err = config.Load("", newFlags(t, "--database-url=postgres://flag/acl"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag/acl", cfg.Grants.DatabaseURL)
}

func TestLoad_GrantsFlagBeatsDatabaseURLEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://env/acl")

	cfg, err := config.Load("", newFlags(t, "--grants=/etc/aclkey/grants.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/etc/aclkey/grants.yaml", cfg.Grants.File)
	assert.Empty(t, cfg.Grants.DatabaseURL)
	assert.Equal(t, "postgres://env/acl", cfg.Grants.StoreURL())
}

func TestLoad_GrantsFileFromConfigBeatsDatabaseURLEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://env/acl")

	cfg, err := config.Load(writeConfig(t, "grants:\n  file: grants.yaml\n"), newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "grants.yaml", cfg.Grants.File)
	assert.Empty(t, cfg.Grants.DatabaseURL)
}

func TestLoad_GrantSourceConflict(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "")

	_, err := config.Load("", newFlags(t, "--grants=grants.yaml", "--database-url=postgres://flag/acl"))
	errutil.AssertErrorCode(t, err, config.ErrCodeInvalid)
	errutil.AssertErrorContext(t, err, "key", "grants")
}

func TestGrantsConfig_StoreURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/acl")

	assert.Equal(t, "postgres://flag/acl", config.GrantsConfig{DatabaseURL: "postgres://flag/acl"}.StoreURL())
	assert.Equal(t, "postgres://env/acl", config.GrantsConfig{File: "grants.yaml"}.StoreURL())
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	errutil.AssertErrorCode(t, err, config.ErrCodeInvalid)

	_, err = config.Load(writeConfig(t, "acl: [not, a, map"), nil)
	errutil.AssertErrorCode(t, err, config.ErrCodeInvalid)

	_, err = config.Load("", newFlags(t, "--log-format=xml"))
	errutil.AssertErrorCode(t, err, config.ErrCodeInvalid)
	errutil.AssertErrorContext(t, err, "key", "log.format")

	_, err = config.Load("", newFlags(t, "--separator="))
	errutil.AssertErrorContext(t, err, "key", "acl.separator")
}
