// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"cmp"
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// Error codes for schema state.
const (
	ErrCodeSchemaDirty    = "SCHEMA_DIRTY"
	ErrCodeSchemaOutdated = "SCHEMA_OUTDATED"
	ErrCodeInvalidVersion = "INVALID_VERSION"
)

// migrationsTable is where golang-migrate records the applied version.
const migrationsTable = "schema_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one embedded acl_grants schema change.
type Migration struct {
	Version uint
	Name    string // e.g. "000002_acl_grants_note"
}

func (m Migration) String() string {
	return m.Name
}

// embeddedMigrations lists the embedded migrations in version order. The
// result is shared; callers must not modify it.
var embeddedMigrations = sync.OnceValues(readMigrations)

func readMigrations() ([]Migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").Wrap(err)
	}

	var all []Migration
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".up.sql")
		if !ok {
			continue
		}
		var version uint
		if _, err := fmt.Sscanf(name, "%06d_", &version); err != nil {
			slog.Warn("skipping migration with unexpected name", "filename", entry.Name(), "error", err)
			continue
		}
		all = append(all, Migration{Version: version, Name: name})
	}
	slices.SortFunc(all, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return all, nil
}

// SchemaStatus describes how far a database is through the embedded
// migrations. Current is the zero Migration when nothing is applied.
type SchemaStatus struct {
	Current Migration
	Dirty   bool
	Applied []Migration
	Pending []Migration
}

// Err returns nil when the schema can serve grant lookups: not dirty and
// nothing pending.
func (s SchemaStatus) Err() error {
	if s.Dirty {
		return oops.Code(ErrCodeSchemaDirty).
			With("version", s.Current.Version).
			Errorf("grant schema is dirty at %s; fix it and run migrate force", s.Current)
	}
	if len(s.Pending) > 0 {
		names := make([]string, len(s.Pending))
		for i, m := range s.Pending {
			names[i] = m.Name
		}
		return oops.Code(ErrCodeSchemaOutdated).
			With("pending", names).
			Errorf("grant schema has %d pending migration(s): %s", len(s.Pending), strings.Join(names, ", "))
	}
	return nil
}

func schemaStatus(version uint, dirty bool) (SchemaStatus, error) {
	all, err := embeddedMigrations()
	if err != nil {
		return SchemaStatus{}, err
	}
	st := SchemaStatus{Dirty: dirty, Current: Migration{Version: version}}
	for _, m := range all {
		switch {
		case m.Version == version:
			st.Current = m
			st.Applied = append(st.Applied, m)
		case m.Version < version:
			st.Applied = append(st.Applied, m)
		default:
			st.Pending = append(st.Pending, m)
		}
	}
	return st, nil
}

// CheckSchema reads the version golang-migrate recorded in q's database.
// A database that was never migrated reports every migration pending.
func CheckSchema(ctx context.Context, q poolIface) (SchemaStatus, error) {
	var (
		version int64
		dirty   bool
	)
	err := q.QueryRow(ctx, "SELECT version, dirty FROM "+migrationsTable+" LIMIT 1").Scan(&version, &dirty)
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows), errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable:
		return schemaStatus(0, false)
	case err != nil:
		return SchemaStatus{}, oops.With("operation", "read schema version").Wrap(err)
	}
	return schemaStatus(uint(version), dirty) //nolint:gosec // versions are small positive integers
}

// migrateIface is the subset of *migrate.Migrate used by Migrator.
type migrateIface interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies the embedded acl_grants schema migrations.
type Migrator struct {
	m migrateIface
}

// NewMigrator creates a Migrator for the database at databaseURL.
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	return &Migrator{m: m}, nil
}

// migrateURL rewrites postgres:// and postgresql:// to the pgx5:// scheme
// the golang-migrate pgx/v5 driver registers.
func migrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, found := strings.CutPrefix(databaseURL, scheme); found {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

// Status reports the applied and pending migrations.
func (m *Migrator) Status() (SchemaStatus, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return schemaStatus(0, false)
	}
	if err != nil {
		return SchemaStatus{}, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return schemaStatus(version, dirty)
}

// Up applies the pending migrations and returns them. A dirty schema is
// refused before anything runs.
func (m *Migrator) Up() ([]Migration, error) {
	st, err := m.Status()
	if err != nil {
		return nil, err
	}
	if st.Dirty {
		return nil, st.Err()
	}
	if len(st.Pending) == 0 {
		return nil, nil
	}
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, oops.Code("MIGRATION_UP_FAILED").With("from", st.Current.Name).Wrap(err)
	}
	for _, p := range st.Pending {
		slog.Info("applied grant migration", "migration", p.Name)
	}
	return st.Pending, nil
}

// Down drops the acl_grants schema, deleting every stored grant.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Force records version as applied without running anything, to recover
// from a dirty schema. version must be 0 or an embedded migration.
func (m *Migrator) Force(version int) error {
	if version != 0 {
		all, err := embeddedMigrations()
		if err != nil {
			return err
		}
		known := slices.ContainsFunc(all, func(mig Migration) bool { return int(mig.Version) == version }) //nolint:gosec // small versions
		if !known {
			return oops.Code(ErrCodeInvalidVersion).With("version", version).
				Errorf("no grant migration has version %d", version)
		}
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases the migration source and database connection.
func (m *Migrator) Close() error {
	return oops.Code("MIGRATION_CLOSE_FAILED").Wrap(errors.Join(m.m.Close()))
}
