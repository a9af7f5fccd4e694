// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg provides XDG Base Directory paths for aclkey.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "aclkey"

// ConfigDir returns the aclkey config directory.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// GrantsFile returns the default grant document path.
func GrantsFile() string {
	return filepath.Join(ConfigDir(), "grants.yaml")
}
