// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/holomush/aclkey/internal/config"
	"github.com/holomush/aclkey/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// errDenied is returned by check when the subject lacks the permission.
var errDenied = errors.New("permission denied")

// NewRootCmd creates the root command for the aclkey CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aclkey",
		Short: "aclkey - permission keys for module/controller/action routes",
		Long: `aclkey builds permission keys of the form module|controller|action
and checks them against grants held in a YAML document or PostgreSQL.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/aclkey/config.yaml)")

	cmd.AddCommand(NewKeyCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewGrantCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewGenSchemaCmd())

	return cmd
}

// loadConfig loads configuration for cmd and installs the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if _, err := logging.SetDefault(logging.Options{
		Service: "aclkey",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// exitCode maps a command error to a process exit code: 1 for a denied
// check, 2 for everything else.
func exitCode(err error) int {
	if errors.Is(err, errDenied) {
		return 1
	}
	return 2
}
