// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/aclkey/internal/acl"
	"github.com/holomush/aclkey/internal/grant"
	"github.com/holomush/aclkey/pkg/errutil"
)

var tracer = otel.Tracer("aclkey/store")

// LookupRecorder observes grant lookups.
type LookupRecorder interface {
	ObserveLookup(duration time.Duration, err error)
}

// IdentityOption configures an Identity.
type IdentityOption func(*Identity)

// WithLogger sets the logger used for lookup failures.
func WithLogger(l *slog.Logger) IdentityOption {
	return func(i *Identity) { i.logger = l }
}

// WithRecorder sets the recorder notified after every lookup.
func WithRecorder(r LookupRecorder) IdentityOption {
	return func(i *Identity) { i.recorder = r }
}

// Identity is a subject whose grants live in a PatternSource. It is bound
// to the context of the request that created it; lookups use that context
// and fail closed when it is done or the source errors.
type Identity struct {
	ctx      context.Context //nolint:containedctx // acl.Identity has no context parameter
	source   PatternSource
	subject  string
	sep      string
	logger   *slog.Logger
	recorder LookupRecorder
}

// NewIdentity creates an Identity for subject. sep is the permission key
// separator the stored patterns are written for.
func NewIdentity(ctx context.Context, source PatternSource, subject, sep string, opts ...IdentityOption) *Identity {
	i := &Identity{
		ctx:     ctx,
		source:  source,
		subject: subject,
		sep:     sep,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Subject returns the subject this identity checks.
func (i *Identity) Subject() string {
	return i.subject
}

// HasPermission implements acl.Identity. Patterns are loaded on every call.
func (i *Identity) HasPermission(key string) bool {
	ctx, span := tracer.Start(i.ctx, "grant.lookup",
		trace.WithAttributes(
			attribute.String("acl.subject", i.subject),
			attribute.String("acl.key", key),
		))
	defer span.End()

	start := time.Now()
	patterns, err := i.source.ListForSubject(ctx, i.subject)
	if i.recorder != nil {
		i.recorder.ObserveLookup(time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		errutil.LogError(ctx, i.logger, "grant lookup failed", err, "subject", i.subject, "key", key)
		return false
	}

	allowed := i.match(ctx, patterns, key)
	span.SetAttributes(attribute.Bool("acl.allowed", allowed))
	return allowed
}

func (i *Identity) match(ctx context.Context, patterns []string, key string) bool {
	for _, raw := range patterns {
		p, err := grant.CompilePattern(raw, i.sep)
		if err != nil {
			i.logger.WarnContext(ctx, "skipping invalid stored grant pattern",
				"subject", i.subject,
				"pattern", raw,
				"error", err)
			continue
		}
		if p.Match(key) {
			return true
		}
	}
	return false
}

var _ acl.Identity = (*Identity)(nil)
