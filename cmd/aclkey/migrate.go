// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/aclkey/internal/config"
	"github.com/holomush/aclkey/internal/store"
)

// migrator is the subset of *store.Migrator used by the migrate commands.
type migrator interface {
	Up() ([]store.Migration, error)
	Down() error
	Status() (store.SchemaStatus, error)
	Force(version int) error
	Close() error
}

// migratorFactory creates a migrator; tests replace it.
var migratorFactory = func(url string) (migrator, error) {
	return store.NewMigrator(url)
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the grant database schema",
		Long:  `Manage the embedded acl_grants schema migrations.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				applied, err := m.Up()
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					cmd.Println("Database is up to date")
					return nil
				}
				for _, mig := range applied {
					cmd.Printf("Applied %s\n", mig)
				}
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations, dropping stored grants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Rolled back all migrations")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				name := st.Current.Name
				if name == "" {
					name = "none"
				}
				state := ""
				if st.Dirty {
					state = " (dirty)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d %s%s\n", st.Current.Version, name, state)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				return printSchemaStatus(cmd.OutOrStdout(), st)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				cmd.Printf("Forced version %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator resolves the database URL, opens a migrator, runs fn and
// closes the migrator.
func withMigrator(cmd *cobra.Command, fn func(migrator) error) (err error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	url := cfg.Grants.StoreURL()
	if url == "" {
		return oops.Code(config.ErrCodeInvalid).Errorf("--database-url or DATABASE_URL is required")
	}

	m, err := migratorFactory(url)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(m)
}

// printSchemaStatus writes one row per embedded migration.
func printSchemaStatus(out io.Writer, st store.SchemaStatus) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tMIGRATION\tSTATE")
	for _, mig := range st.Applied {
		state := "applied"
		if st.Dirty && mig == st.Current {
			state = "dirty"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", mig.Version, mig.Name, state)
	}
	for _, mig := range st.Pending {
		fmt.Fprintf(tw, "%d\t%s\tpending\n", mig.Version, mig.Name)
	}
	return tw.Flush()
}

// parseForceVersion parses the VERSION argument of migrate force. Parsing
// stops at the first non-digit.
func parseForceVersion(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("invalid version %q", s)
	}
	return v, nil
}
