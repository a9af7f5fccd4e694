// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/aclkey/internal/config"
	"github.com/holomush/aclkey/internal/grant"
	"github.com/holomush/aclkey/internal/store"
)

// repositoryFactory connects to the grant database; tests replace it.
var repositoryFactory = func(ctx context.Context, url string) (store.GrantRepository, func(), error) {
	pool, err := store.Open(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgresGrantRepository(pool), pool.Close, nil
}

// grantFlags holds flags shared by the grant subcommands.
type grantFlags struct {
	subject   string
	pattern   string
	note      string
	createdBy string
}

// NewGrantCmd creates the grant command group for stored grants.
func NewGrantCmd() *cobra.Command {
	f := &grantFlags{}

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Manage grants stored in PostgreSQL",
	}
	config.RegisterFlags(cmd.PersistentFlags())

	add := &cobra.Command{
		Use:   "add",
		Short: "Grant a permission pattern to a subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRepository(cmd, func(ctx context.Context, cfg *config.Config, repo store.GrantRepository) error {
				if _, err := grant.CompilePattern(f.pattern, cfg.ACL.Separator); err != nil {
					return err
				}
				g := &store.Grant{Subject: f.subject, Pattern: f.pattern, Note: f.note, CreatedBy: f.createdBy}
				if err := repo.Grant(ctx, g); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "granted %s %s (%s)\n", g.Subject, g.Pattern, g.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&f.subject, "subject", "", "subject receiving the grant")
	add.Flags().StringVar(&f.pattern, "pattern", "", "permission pattern, e.g. Users|*|list")
	add.Flags().StringVar(&f.note, "note", "", "free-form note stored with the grant")
	add.Flags().StringVar(&f.createdBy, "created-by", "", "operator recorded as the grant's creator")

	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Remove a permission pattern from a subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRepository(cmd, func(ctx context.Context, _ *config.Config, repo store.GrantRepository) error {
				if err := repo.Revoke(ctx, f.subject, f.pattern); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %s %s\n", f.subject, f.pattern)
				return nil
			})
		},
	}
	revoke.Flags().StringVar(&f.subject, "subject", "", "subject holding the grant")
	revoke.Flags().StringVar(&f.pattern, "pattern", "", "permission pattern to remove")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored grants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRepository(cmd, func(ctx context.Context, _ *config.Config, repo store.GrantRepository) error {
				grants, err := repo.List(ctx, f.subject)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "SUBJECT\tPATTERN\tCREATED BY\tCREATED\tNOTE")
				for _, g := range grants {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						g.Subject, g.Pattern, g.CreatedBy, g.CreatedAt.UTC().Format(time.RFC3339), g.Note)
				}
				return w.Flush() //nolint:wrapcheck // stdout write
			})
		},
	}
	list.Flags().StringVar(&f.subject, "subject", "", "only list grants of this subject")

	cmd.AddCommand(add, revoke, list)
	return cmd
}

// withRepository loads configuration, connects to the grant database and
// runs fn.
func withRepository(cmd *cobra.Command, fn func(context.Context, *config.Config, store.GrantRepository) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	url := cfg.Grants.StoreURL()
	if url == "" {
		return oops.Code(config.ErrCodeInvalid).Errorf("--database-url or DATABASE_URL is required")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	repo, closeFn, err := repositoryFactory(ctx, url)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, cfg, repo)
}
