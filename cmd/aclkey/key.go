// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/holomush/aclkey/internal/acl"
	"github.com/holomush/aclkey/internal/config"
)

// routeFlags holds the routing context given on the command line.
type routeFlags struct {
	module     string
	controller string
	action     string
}

func (f *routeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.module, "module", "", "module name (empty = default module)")
	cmd.Flags().StringVar(&f.controller, "controller", "index", "controller name")
	cmd.Flags().StringVar(&f.action, "action", "index", "action name")
}

func (f *routeFlags) routingContext() acl.RoutingContext {
	return acl.RoutingContext{Module: f.module, Controller: f.controller, Action: f.action}
}

// NewKeyCmd creates the key subcommand.
func NewKeyCmd() *cobra.Command {
	route := &routeFlags{}

	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the permission key for a route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			res := acl.NewWithConfig(route.routingContext(), nil, cfg.ACL)
			fmt.Fprintln(cmd.OutOrStdout(), res.PermissionKey())
			return nil
		},
	}

	route.register(cmd)
	config.RegisterFlags(cmd.Flags())

	return cmd
}
