// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// PostgresGrantRepository implements GrantRepository using PostgreSQL.
type PostgresGrantRepository struct {
	pool poolIface
}

// NewPostgresGrantRepository creates a grant repository backed by pool.
func NewPostgresGrantRepository(pool poolIface) *PostgresGrantRepository {
	return &PostgresGrantRepository{pool: pool}
}

// Grant stores g, assigning it a ULID and creation time.
// Returns GRANT_EXISTS if the subject already holds the pattern.
func (r *PostgresGrantRepository) Grant(ctx context.Context, g *Grant) error {
	if g.Subject == "" || g.Pattern == "" {
		return oops.Code(ErrCodeInvalidGrant).
			With("subject", g.Subject).
			With("pattern", g.Pattern).
			Errorf("subject and pattern are required")
	}

	var createdBy any = g.CreatedBy
	if g.CreatedBy == "" {
		createdBy = nil
	}

	id := ulid.Make().String()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO acl_grants (id, subject, pattern, created_by, note)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		id, g.Subject, g.Pattern, createdBy, g.Note,
	).Scan(&g.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code(ErrCodeGrantExists).
				With("subject", g.Subject).
				With("pattern", g.Pattern).
				Errorf("grant already exists")
		}
		return oops.With("operation", "insert grant").With("subject", g.Subject).Wrap(err)
	}

	g.ID = id
	return nil
}

// Revoke deletes the grant of pattern to subject.
// Returns GRANT_NOT_FOUND if no such grant exists.
func (r *PostgresGrantRepository) Revoke(ctx context.Context, subject, pattern string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM acl_grants WHERE subject = $1 AND pattern = $2`,
		subject, pattern)
	if err != nil {
		return oops.With("operation", "delete grant").With("subject", subject).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code(ErrCodeGrantNotFound).
			With("subject", subject).
			With("pattern", pattern).
			Errorf("grant not found")
	}
	return nil
}

// ListForSubject returns the patterns granted to subject.
func (r *PostgresGrantRepository) ListForSubject(ctx context.Context, subject string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT pattern FROM acl_grants WHERE subject = $1 ORDER BY pattern`, subject)
	if err != nil {
		return nil, oops.With("operation", "list patterns").With("subject", subject).Wrap(err)
	}
	defer rows.Close()

	var patterns []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, oops.With("operation", "scan pattern row").Wrap(err)
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate patterns").Wrap(err)
	}
	return patterns, nil
}

// List returns stored grants, all of them when subject is empty.
func (r *PostgresGrantRepository) List(ctx context.Context, subject string) ([]*Grant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, subject, pattern, COALESCE(created_by, ''), note, created_at
		 FROM acl_grants
		 WHERE $1 = '' OR subject = $1
		 ORDER BY subject, pattern`, subject)
	if err != nil {
		return nil, oops.With("operation", "list grants").With("subject", subject).Wrap(err)
	}
	defer rows.Close()

	var grants []*Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.Subject, &g.Pattern, &g.CreatedBy, &g.Note, &g.CreatedAt); err != nil {
			return nil, oops.With("operation", "scan grant row").Wrap(err)
		}
		grants = append(grants, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate grants").Wrap(err)
	}
	return grants, nil
}

var _ GrantRepository = (*PostgresGrantRepository)(nil)
