// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"

	"github.com/holomush/aclkey/internal/acl"
)

type resolverKey struct{}

// WithResolver returns a copy of ctx carrying r.
func WithResolver(ctx context.Context, r *acl.Resolver) context.Context {
	return context.WithValue(ctx, resolverKey{}, r)
}

// FromContext returns the resolver stored by the middleware, or nil.
func FromContext(ctx context.Context) *acl.Resolver {
	r, _ := ctx.Value(resolverKey{}).(*acl.Resolver)
	return r
}
