// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web guards HTTP handlers with permission-key checks.
package web

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/holomush/aclkey/internal/acl"
	"github.com/holomush/aclkey/internal/observability"
)

var tracer = otel.Tracer("aclkey/web")

// Middleware authorizes each request against the permission key of its
// route. Route defaults to PathRoute. Identify is required. Metrics and
// Logger are optional.
type Middleware struct {
	Config   acl.Config
	Route    RouteFunc
	Identify IdentifyFunc
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// Handler wraps next. Requests without an identity get 401, requests whose
// identity lacks the key get 403. Permitted requests reach next with the
// resolver available through FromContext.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	route := m.Route
	if route == nil {
		route = PathRoute
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "acl.authorize")
		defer span.End()
		r = r.WithContext(ctx)

		var id acl.Identity
		if m.Identify != nil {
			id = m.Identify(r)
		}
		res := acl.NewWithConfig(route(r), id, m.Config)
		key := res.PermissionKey()
		span.SetAttributes(
			attribute.String("acl.module", res.CurrentModule()),
			attribute.String("acl.key", key),
		)

		result := observability.ResultAllowed
		switch {
		case id == nil:
			result = observability.ResultUnauthenticated
		case !res.IsPermitted():
			result = observability.ResultDenied
		}
		span.SetAttributes(attribute.String("acl.result", result))
		if m.Metrics != nil {
			m.Metrics.RecordDecision(result)
		}

		switch result {
		case observability.ResultUnauthenticated:
			logger.DebugContext(ctx, "request unauthenticated", "key", key, "path", r.URL.Path)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		case observability.ResultDenied:
			logger.InfoContext(ctx, "permission denied", "key", key, "path", r.URL.Path)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		default:
			next.ServeHTTP(w, r.WithContext(WithResolver(ctx, res)))
		}
	})
}

