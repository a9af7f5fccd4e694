// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGrants = `
version: "1"
roles:
  reader:
    - "*|*|list"
  admin:
    - "**"
subjects:
  alice: [reader]
  root: [admin]
`

// execute runs the root command with args in an isolated environment.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "")
	return run(t, args...)
}

// run executes the root command with args in the current environment.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile = ""

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func writeGrants(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"key", "check", "serve", "migrate", "validate", "gen-schema"} {
		assert.Contains(t, out, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	_, err := execute(t, "--config=/etc/aclkey.yaml", "--help")
	require.NoError(t, err)
	assert.Equal(t, "/etc/aclkey.yaml", configFile)
}

func TestRootCommand_VersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	cmd.Version = "test-version"
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "test-version")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(errDenied))
	assert.Equal(t, 1, exitCode(oops.With("key", "a|b|c").Wrap(errDenied)))
	assert.Equal(t, 2, exitCode(errors.New("boom")))
}

func TestLoadConfig_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "key")
	require.Error(t, err)
}
