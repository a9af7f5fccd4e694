// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package grant

import (
	"strings"
	"unicode/utf8"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/holomush/aclkey/internal/acl"
)

// ErrCodeInvalidPattern is returned when a grant pattern fails to compile.
const ErrCodeInvalidPattern = "INVALID_GRANT_PATTERN"

// globMeta lists the characters that make a pattern a glob.
const globMeta = `*?[]{}\`

// Pattern is a compiled grant pattern.
type Pattern struct {
	raw  string
	glob glob.Glob
}

// CompilePattern compiles a grant pattern for keys joined by sep.
//
// When sep is a single character, "*" stops at it and "**" crosses it, so
// "*|*|index" matches "shop|cart|index" but not "shop|cart|index|x".
// Longer separators cannot act as glob separators and "*" then matches
// across segments. A pattern without glob syntax is a literal key and must
// have exactly three segments.
func CompilePattern(pattern, sep string) (Pattern, error) {
	if !strings.ContainsAny(pattern, globMeta) {
		if _, err := acl.ParseKey(pattern, sep); err != nil {
			// Not wrapped: the key error code would shadow the pattern code.
			return Pattern{}, oops.In("grant").
				Code(ErrCodeInvalidPattern).
				With("pattern", pattern).
				With("separator", sep).
				Errorf("literal pattern is not a permission key: %v", err)
		}
	}
	var seps []rune
	if utf8.RuneCountInString(sep) == 1 {
		r, _ := utf8.DecodeRuneInString(sep)
		seps = append(seps, r)
	}
	g, err := glob.Compile(pattern, seps...)
	if err != nil {
		return Pattern{}, oops.In("grant").
			Code(ErrCodeInvalidPattern).
			With("pattern", pattern).
			Wrap(err)
	}
	return Pattern{raw: pattern, glob: g}, nil
}

// String returns the pattern source.
func (p Pattern) String() string {
	return p.raw
}

// Match reports whether key matches the pattern.
func (p Pattern) Match(key string) bool {
	return p.glob != nil && p.glob.Match(key)
}

// MatchAny reports whether any pattern matches key.
func MatchAny(patterns []Pattern, key string) bool {
	for _, p := range patterns {
		if p.Match(key) {
			return true
		}
	}
	return false
}
