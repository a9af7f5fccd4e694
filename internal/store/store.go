// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store persists permission grants in PostgreSQL and exposes them
// as acl identities.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Error codes returned by the grant repository.
const (
	ErrCodeGrantExists   = "GRANT_EXISTS"
	ErrCodeGrantNotFound = "GRANT_NOT_FOUND"
	ErrCodeInvalidGrant  = "INVALID_GRANT"
)

// poolIface is the subset of *pgxpool.Pool used by the repository.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Grant is one stored grant pattern for a subject.
type Grant struct {
	ID        string
	Subject   string
	Pattern   string
	CreatedBy string
	Note      string
	CreatedAt time.Time
}

// PatternSource returns the grant patterns held by a subject.
type PatternSource interface {
	ListForSubject(ctx context.Context, subject string) ([]string, error)
}

// GrantRepository manages stored grants.
type GrantRepository interface {
	PatternSource
	Grant(ctx context.Context, g *Grant) error
	Revoke(ctx context.Context, subject, pattern string) error
	List(ctx context.Context, subject string) ([]*Grant, error)
}

// Connection retry defaults for Open.
const (
	defaultConnectRetries = 5
	defaultConnectBackoff = 200 * time.Millisecond
)

// Open connects to PostgreSQL and pings it, retrying with exponential
// backoff until the database answers or ctx is done.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	backoff := retry.WithMaxRetries(defaultConnectRetries, retry.NewExponential(defaultConnectBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return pool, nil
}
