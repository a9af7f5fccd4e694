// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/aclkey/internal/config"
	"github.com/holomush/aclkey/internal/grant"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a grant document",
		Long: `Validate checks a grant document against the grant schema, its version
and its patterns, then prints the roles and subjects it defines.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runValidate(cmd *cobra.Command, path string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is an operator-supplied CLI argument
	if err != nil {
		return oops.Code(grant.ErrCodeInvalidFile).With("path", path).Wrap(err)
	}
	s, err := grant.Parse(data, cfg.ACL)
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: ok\n", path)
	for _, role := range s.RoleNames() {
		fmt.Fprintf(out, "  role %s\n", role)
	}
	for _, subject := range s.Subjects() {
		fmt.Fprintf(out, "  subject %s: %v\n", subject, s.Roles(subject))
	}
	return nil
}
