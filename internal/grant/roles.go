// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package grant

import "strings"

// Permission groups are reusable action sets; roles compose them rather
// than inheriting from each other.

var readerActions = []string{"index", "list", "view", "show"}

var editorActions = []string{"create", "edit", "update", "delete"}

// DefaultRoles returns the built-in roles with patterns joined by sep.
// defaultModule is the module requests without one resolve to.
//
//	guest:  index actions of the default module
//	reader: read actions in every module
//	editor: reader plus write actions
//	admin:  everything
func DefaultRoles(sep, defaultModule string) map[string][]string {
	reader := actionPatterns(sep, readerActions)
	editor := actionPatterns(sep, editorActions)
	return map[string][]string{
		"guest":  {join(sep, defaultModule, "*", "index")},
		"reader": reader,
		"editor": compose(reader, editor),
		"admin":  {"**"},
	}
}

func actionPatterns(sep string, actions []string) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, join(sep, "*", "*", a))
	}
	return out
}

func join(sep string, parts ...string) string {
	return strings.Join(parts, sep)
}

// compose merges multiple pattern slices into one.
func compose(groups ...[]string) []string {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	result := make([]string, 0, total)
	for _, g := range groups {
		result = append(result, g...)
	}
	return result
}
