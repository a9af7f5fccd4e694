// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/holomush/aclkey/internal/acl"
	"github.com/holomush/aclkey/internal/config"
	"github.com/holomush/aclkey/internal/grant"
	"github.com/holomush/aclkey/internal/store"
	"github.com/holomush/aclkey/internal/xdg"
)

// identitySource hands out identities for authenticated subjects.
type identitySource interface {
	Identity(ctx context.Context, subject string) acl.Identity
	Ready(ctx context.Context) error
	Close()
}

// Deps contains injectable dependencies for commands that check grants.
// All fields with nil values will use their default implementations.
type Deps struct {
	// PoolFactory connects to PostgreSQL.
	// Default: store.Open
	PoolFactory func(ctx context.Context, url string) (*pgxpool.Pool, error)

	// GrantLoader loads a grant document.
	// Default: grant.Load
	GrantLoader func(path string, cfg acl.Config) (*grant.Store, error)
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = store.Open
	}
	if out.GrantLoader == nil {
		out.GrantLoader = grant.Load
	}
	return &out
}

// openIdentitySource selects the grant source named by cfg: the database
// or the grant file, which config validation keeps exclusive. With
// neither, the grant document in the XDG config directory is used if it
// exists.
func openIdentitySource(ctx context.Context, cfg *config.Config, recorder store.LookupRecorder, deps *Deps) (identitySource, error) {
	deps = deps.withDefaults()

	grantsFile := cfg.Grants.File
	if grantsFile == "" {
		if _, err := os.Stat(xdg.GrantsFile()); err == nil {
			grantsFile = xdg.GrantsFile()
		}
	}

	switch {
	case cfg.Grants.DatabaseURL != "":
		pool, err := deps.PoolFactory(ctx, cfg.Grants.DatabaseURL)
		if err != nil {
			return nil, err
		}
		src := &dbSource{
			pool:     pool,
			repo:     store.NewPostgresGrantRepository(pool),
			sep:      cfg.ACL.Separator,
			recorder: recorder,
		}
		if err := src.Ready(ctx); err != nil {
			slog.Warn("stored grants not ready", "error", err)
		}
		slog.Info("using stored grants", "source", "postgres")
		return src, nil
	case grantsFile != "":
		s, err := deps.GrantLoader(grantsFile, cfg.ACL)
		if err != nil {
			return nil, err
		}
		slog.Info("using grant document", "source", "file", "path", grantsFile)
		return &fileSource{store: s}, nil
	default:
		return nil, oops.Code(config.ErrCodeInvalid).
			Errorf("no grant source: set --grants, --database-url or DATABASE_URL")
	}
}

type fileSource struct {
	store *grant.Store
}

func (s *fileSource) Identity(_ context.Context, subject string) acl.Identity {
	return s.store.Identity(subject)
}

func (s *fileSource) Ready(context.Context) error { return nil }

func (s *fileSource) Close() {}

// dbPool is the subset of *pgxpool.Pool used by dbSource.
type dbPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type dbSource struct {
	pool     dbPool
	repo     store.PatternSource
	sep      string
	recorder store.LookupRecorder
}

func (s *dbSource) Identity(ctx context.Context, subject string) acl.Identity {
	opts := []store.IdentityOption{store.WithLogger(slog.Default())}
	if s.recorder != nil {
		opts = append(opts, store.WithRecorder(s.recorder))
	}
	return store.NewIdentity(ctx, s.repo, subject, s.sep, opts...)
}

// Ready fails when the database does not answer or the acl_grants schema
// is dirty or behind the embedded migrations.
func (s *dbSource) Ready(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.Code("DB_UNAVAILABLE").Wrap(err)
	}
	st, err := store.CheckSchema(ctx, s.pool)
	if err != nil {
		return err
	}
	return st.Err()
}

func (s *dbSource) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
