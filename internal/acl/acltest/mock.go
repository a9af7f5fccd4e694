// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package acltest provides test identities for the acl package.
package acltest

import (
	"sync"

	"github.com/holomush/aclkey/internal/acl"
)

// AllowAll holds every permission.
type AllowAll struct{}

// HasPermission always returns true.
func (AllowAll) HasPermission(_ string) bool {
	return true
}

// DenyAll holds no permission.
type DenyAll struct{}

// HasPermission always returns false.
func (DenyAll) HasPermission(_ string) bool {
	return false
}

// MockIdentity grants an explicit set of keys and records every key it is
// asked about.
type MockIdentity struct {
	mu      sync.Mutex
	grants  map[string]bool
	queried []string
}

// NewMockIdentity creates a MockIdentity holding keys.
func NewMockIdentity(keys ...string) *MockIdentity {
	m := &MockIdentity{grants: make(map[string]bool, len(keys))}
	for _, k := range keys {
		m.grants[k] = true
	}
	return m
}

// Grant adds key to the held permissions.
func (m *MockIdentity) Grant(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[key] = true
}

// HasPermission implements acl.Identity.
func (m *MockIdentity) HasPermission(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queried = append(m.queried, key)
	return m.grants[key]
}

// Queried returns the keys passed to HasPermission, in call order.
func (m *MockIdentity) Queried() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queried))
	copy(out, m.queried)
	return out
}

// Verify interfaces are satisfied.
var (
	_ acl.Identity = AllowAll{}
	_ acl.Identity = DenyAll{}
	_ acl.Identity = (*MockIdentity)(nil)
)
