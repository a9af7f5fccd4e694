// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/aclkey/internal/acl"
	"github.com/holomush/aclkey/internal/config"
)

// checkConfig holds flags for the check command.
type checkConfig struct {
	route   routeFlags
	key     string
	subject string
}

// NewCheckCmd creates the check subcommand.
func NewCheckCmd() *cobra.Command {
	cfg := &checkConfig{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a subject holds the permission for a route",
		Long: `Check resolves the permission key for the given route and asks the
configured grant source whether the subject holds it. With --key, a
complete permission key is checked as given instead. It prints "allowed"
or "denied" and exits with status 1 when denied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), cmd, cfg, nil)
		},
	}

	cfg.route.register(cmd)
	cmd.Flags().StringVar(&cfg.key, "key", "", "permission key to check instead of a route (module|controller|action)")
	cmd.Flags().StringVar(&cfg.subject, "subject", "", "subject to check (required)")
	cmd.MarkFlagsMutuallyExclusive("key", "module")
	cmd.MarkFlagsMutuallyExclusive("key", "controller")
	cmd.MarkFlagsMutuallyExclusive("key", "action")
	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runCheck(ctx context.Context, cmd *cobra.Command, cfg *checkConfig, deps *Deps) error {
	if cfg.subject == "" {
		return oops.Code(config.ErrCodeInvalid).Errorf("--subject is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	appCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var rc *acl.RoutingContext
	if cfg.key != "" {
		parsed, err := acl.ParseKey(cfg.key, appCfg.ACL.Separator)
		if err != nil {
			return err
		}
		rc = &parsed
	}

	source, err := openIdentitySource(ctx, appCfg, nil, deps)
	if err != nil {
		return err
	}
	defer source.Close()
	id := source.Identity(ctx, cfg.subject)

	var (
		key       string
		permitted bool
	)
	if rc != nil {
		// A given key is already resolved; prefix and default module rules do not apply.
		key = acl.FormatKey(*rc, appCfg.ACL.Separator)
		permitted = id.HasPermission(key)
	} else {
		res := acl.NewWithConfig(cfg.route.routingContext(), id, appCfg.ACL)
		key = res.PermissionKey()
		permitted = res.IsPermitted()
	}

	if !permitted {
		fmt.Fprintf(cmd.OutOrStdout(), "denied %s\n", key)
		return oops.With("subject", cfg.subject).With("key", key).Wrap(errDenied)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "allowed %s\n", key)
	return nil
}
