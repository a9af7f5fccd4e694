// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package acl resolves the permission key for the current request and asks
// the authenticated identity whether it holds that permission.
//
// A permission key joins module, controller and action with a separator:
//
//	"Users|Report|list"
//	"default|Home|index"
//
// A Resolver is bound to one request. It is not safe for concurrent use.
package acl

import (
	"strings"
)

// Default configuration values.
const (
	DefaultSeparator    = "|"
	DefaultModulePrefix = ""
	DefaultModuleName   = "default"
)

// RoutingContext is the module, controller and action resolved by the router
// for the current request.
type RoutingContext struct {
	Module     string
	Controller string
	Action     string
}

// Identity is the authenticated principal. HasPermission reports whether it
// holds the permission named by key.
type Identity interface {
	HasPermission(key string) bool
}

// IdentityFunc adapts a function to Identity.
type IdentityFunc func(key string) bool

// HasPermission calls f(key).
func (f IdentityFunc) HasPermission(key string) bool {
	return f(key)
}

// Config controls how permission keys are built.
type Config struct {
	Separator     string `koanf:"separator" yaml:"separator" json:"separator"`
	ModulePrefix  string `koanf:"module_prefix" yaml:"module_prefix" json:"module_prefix"`
	DefaultModule string `koanf:"default_module" yaml:"default_module" json:"default_module"`
}

// DefaultConfig returns the default key configuration.
func DefaultConfig() Config {
	return Config{
		Separator:     DefaultSeparator,
		ModulePrefix:  DefaultModulePrefix,
		DefaultModule: DefaultModuleName,
	}
}

// Option configures a Resolver before its routing context is applied.
type Option func(*Resolver)

// WithSeparator sets the key separator.
func WithSeparator(sep string) Option {
	return func(r *Resolver) { r.cfg.Separator = sep }
}

// WithModulePrefix sets the prefix stripped from raw module names.
func WithModulePrefix(prefix string) Option {
	return func(r *Resolver) { r.cfg.ModulePrefix = prefix }
}

// WithDefaultModule sets the module used when the stripped module is empty.
func WithDefaultModule(module string) Option {
	return func(r *Resolver) { r.cfg.DefaultModule = module }
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(r *Resolver) { r.cfg = cfg }
}

// Resolver builds the permission key for one request and delegates the
// permission check to an Identity.
type Resolver struct {
	cfg        Config
	identity   Identity
	module     string
	controller string
	action     string
}

// New creates a Resolver for rc and id. Options are applied before rc is
// initialized, so a module prefix given here is already stripped.
func New(rc RoutingContext, id Identity, opts ...Option) *Resolver {
	r := &Resolver{
		cfg:      DefaultConfig(),
		identity: id,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Initialize(rc)
	return r
}

// NewWithConfig is New with a loaded Config.
func NewWithConfig(rc RoutingContext, id Identity, cfg Config) *Resolver {
	return New(rc, id, WithConfig(cfg))
}

// Initialize stores the routing context. The module prefix is stripped from
// the start of the raw module name; an empty result falls back to the
// default module. A raw module that does not start with the prefix is kept
// whole.
func (r *Resolver) Initialize(rc RoutingContext) {
	module := strings.TrimPrefix(rc.Module, r.cfg.ModulePrefix)
	if module == "" {
		module = r.cfg.DefaultModule
	}
	r.module = module
	r.controller = rc.Controller
	r.action = rc.Action
}

// CurrentModule returns the module of the current request.
func (r *Resolver) CurrentModule() string { return r.module }

// CurrentController returns the controller of the current request.
func (r *Resolver) CurrentController() string { return r.controller }

// CurrentAction returns the action of the current request.
func (r *Resolver) CurrentAction() string { return r.action }

// RoutingContext returns the stored routing context. Module is the resolved
// module, not the raw one.
func (r *Resolver) RoutingContext() RoutingContext {
	return RoutingContext{Module: r.module, Controller: r.controller, Action: r.action}
}

// SetModulePrefix sets the module prefix. It applies on the next Initialize.
func (r *Resolver) SetModulePrefix(prefix string) { r.cfg.ModulePrefix = prefix }

// ModulePrefix returns the configured module prefix.
func (r *Resolver) ModulePrefix() string { return r.cfg.ModulePrefix }

// SetSeparator sets the key separator. It applies to the next PermissionKey.
func (r *Resolver) SetSeparator(sep string) { r.cfg.Separator = sep }

// Separator returns the configured key separator.
func (r *Resolver) Separator() string { return r.cfg.Separator }

// SetDefaultModule sets the fallback module. It applies on the next Initialize.
func (r *Resolver) SetDefaultModule(module string) { r.cfg.DefaultModule = module }

// DefaultModule returns the configured fallback module.
func (r *Resolver) DefaultModule() string { return r.cfg.DefaultModule }

// Config returns a copy of the current configuration.
func (r *Resolver) Config() Config { return r.cfg }

// SetIdentity replaces the identity used by IsPermitted.
func (r *Resolver) SetIdentity(id Identity) { r.identity = id }

// Identity returns the identity used by IsPermitted.
func (r *Resolver) Identity() Identity { return r.identity }

// PermissionKey returns module, controller and action joined by the separator.
func (r *Resolver) PermissionKey() string {
	return FormatKey(r.RoutingContext(), r.cfg.Separator)
}

// IsPermitted asks the identity whether it holds the current permission key.
// A nil identity is never permitted. The result is not cached.
func (r *Resolver) IsPermitted() bool {
	if r.identity == nil {
		return false
	}
	return r.identity.HasPermission(r.PermissionKey())
}
