// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package acl

import (
	"strings"

	"github.com/samber/oops"
)

// ErrCodeInvalidKey is the oops code returned by ParseKey.
const ErrCodeInvalidKey = "INVALID_PERMISSION_KEY"

// keyParts is the number of segments in a permission key.
const keyParts = 3

// FormatKey joins a routing context into a permission key without applying
// any prefix or default-module rules.
func FormatKey(rc RoutingContext, sep string) string {
	return strings.Join([]string{rc.Module, rc.Controller, rc.Action}, sep)
}

// ParseKey splits a permission key into module, controller and action.
// Returns an INVALID_PERMISSION_KEY error when sep is empty or the key does
// not have exactly three segments.
func ParseKey(key, sep string) (RoutingContext, error) {
	if sep == "" {
		return RoutingContext{}, oops.In("acl").
			Code(ErrCodeInvalidKey).
			With("key", key).
			Errorf("empty separator")
	}
	parts := strings.Split(key, sep)
	if len(parts) != keyParts {
		return RoutingContext{}, oops.In("acl").
			Code(ErrCodeInvalidKey).
			With("key", key).
			With("separator", sep).
			With("segments", len(parts)).
			Errorf("permission key must have %d segments", keyParts)
	}
	return RoutingContext{Module: parts[0], Controller: parts[1], Action: parts[2]}, nil
}
