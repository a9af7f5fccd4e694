// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/holomush/aclkey/internal/acl"
)

// DefaultName is used for a controller or action missing from the path.
const DefaultName = "index"

// RouteFunc resolves the routing context of a request.
type RouteFunc func(r *http.Request) acl.RoutingContext

// IdentifyFunc returns the authenticated identity of a request, or nil.
type IdentifyFunc func(r *http.Request) acl.Identity

// PathRoute maps /module/controller/action onto a routing context. A
// missing module stays empty so the resolver's default module applies;
// a missing controller or action becomes "index". Extra segments are
// ignored.
func PathRoute(r *http.Request) acl.RoutingContext {
	parts := strings.SplitN(strings.Trim(r.URL.Path, "/"), "/", 4)
	rc := acl.RoutingContext{Controller: DefaultName, Action: DefaultName}
	if len(parts) > 0 {
		rc.Module = parts[0]
	}
	if len(parts) > 1 && parts[1] != "" {
		rc.Controller = parts[1]
	}
	if len(parts) > 2 && parts[2] != "" {
		rc.Action = parts[2]
	}
	return rc
}

// HeaderIdentify reads the subject from header and hands it to lookup. A
// request without the header is unauthenticated.
func HeaderIdentify(header string, lookup func(ctx context.Context, subject string) acl.Identity) IdentifyFunc {
	return func(r *http.Request) acl.Identity {
		subject := strings.TrimSpace(r.Header.Get(header))
		if subject == "" {
			return nil
		}
		return lookup(r.Context(), subject)
	}
}
