// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package grant holds role-based permission grants loaded from a YAML
// document and exposes them as acl identities.
//
// A grant pattern is a glob over permission keys: "*" matches inside one
// key segment and "**" matches across segments.
package grant

import (
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/aclkey/internal/acl"
)

// Store maps subjects to roles and roles to compiled grant patterns.
//
// Thread-safety: roles is immutable after construction. Only subjects is
// mutable and it is protected by mu.
type Store struct {
	sep      string
	roles    map[string][]Pattern // roleName → compiled patterns (immutable)
	subjects map[string][]string  // subject → role names (protected by mu)
	mu       sync.RWMutex
}

// NewStore creates a Store with the given role definitions for keys joined
// by sep. Returns an INVALID_GRANT_PATTERN error if any pattern fails to
// compile.
func NewStore(roles map[string][]string, sep string) (*Store, error) {
	compiled := make(map[string][]Pattern, len(roles))
	for role, patterns := range roles {
		ps := make([]Pattern, 0, len(patterns))
		for _, raw := range patterns {
			p, err := CompilePattern(raw, sep)
			if err != nil {
				return nil, oops.In("grant").With("role", role).Wrap(err)
			}
			ps = append(ps, p)
		}
		compiled[role] = ps
	}
	return &Store{
		sep:      sep,
		roles:    compiled,
		subjects: make(map[string][]string),
	}, nil
}

// Separator returns the key separator the patterns were compiled for.
func (s *Store) Separator() string {
	return s.sep
}

// RoleNames returns the defined role names, sorted.
func (s *Store) RoleNames() []string {
	names := make([]string, 0, len(s.roles))
	for name := range s.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subjects returns the subjects holding at least one role, sorted.
func (s *Store) Subjects() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subjects := make([]string, 0, len(s.subjects))
	for subject := range s.subjects {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects
}

// AssignRole adds role to subject. Assigning a role twice is a no-op.
// Returns an error if subject or role is empty, or role is unknown.
func (s *Store) AssignRole(subject, role string) error {
	if subject == "" {
		return oops.In("grant").Code("INVALID_SUBJECT").New("subject cannot be empty")
	}
	if role == "" {
		return oops.In("grant").Code("INVALID_ROLE").New("role cannot be empty")
	}
	if _, ok := s.roles[role]; !ok {
		return oops.In("grant").Code("UNKNOWN_ROLE").With("role", role).New("unknown role")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.subjects[subject], role) {
		s.subjects[subject] = append(s.subjects[subject], role)
	}
	return nil
}

// Roles returns the roles assigned to subject.
func (s *Store) Roles(subject string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.subjects[subject])
}

// Allows reports whether any role of subject grants key.
// Unknown and empty subjects are denied.
func (s *Store) Allows(subject, key string) bool {
	if subject == "" {
		return false
	}

	s.mu.RLock()
	roles := s.subjects[subject]
	s.mu.RUnlock()

	for _, role := range roles {
		if MatchAny(s.roles[role], key) {
			return true
		}
	}

	slog.Debug("grant denied", "subject", subject, "key", key, "roles", roles)
	return false
}

// Identity returns an acl.Identity for subject backed by this store.
func (s *Store) Identity(subject string) acl.Identity {
	return &Identity{store: s, subject: subject}
}

// Identity is a subject bound to a Store.
type Identity struct {
	store   *Store
	subject string
}

// Subject returns the subject this identity checks.
func (i *Identity) Subject() string {
	return i.subject
}

// HasPermission implements acl.Identity.
func (i *Identity) HasPermission(key string) bool {
	return i.store.Allows(i.subject, key)
}

var _ acl.Identity = (*Identity)(nil)
