// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package grant

import (
	"maps"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/holomush/aclkey/internal/acl"
)

// ErrCodeInvalidFile is returned for grant documents that fail to parse,
// validate, or compile.
const ErrCodeInvalidFile = "GRANT_FILE_INVALID"

// SupportedVersions is the semver constraint grant documents must satisfy.
const SupportedVersions = "^1"

// Document is the YAML grant file.
//
//	version: "1.0.0"
//	roles:
//	  reports: ["Users|Report|*"]
//	subjects:
//	  user:alice: [reader, reports]
//
// The built-in roles of DefaultRoles are always defined; a document role
// with the same name replaces the built-in one.
type Document struct {
	Version  string              `yaml:"version" json:"version" jsonschema:"required,description=Grant document format version (semver)"`
	Roles    map[string][]string `yaml:"roles,omitempty" json:"roles,omitempty" jsonschema:"description=Role name to grant patterns; extends the built-in roles"`
	Subjects map[string][]string `yaml:"subjects,omitempty" json:"subjects,omitempty" jsonschema:"description=Subject to role names"`
}

// Load reads, validates, and compiles the grant file at path for keys
// built with cfg.
func Load(path string, cfg acl.Config) (*Store, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, oops.In("grant").Code(ErrCodeInvalidFile).With("path", path).Wrap(err)
	}
	s, err := Parse(data, cfg)
	if err != nil {
		return nil, oops.In("grant").With("path", path).Wrap(err)
	}
	return s, nil
}

// Parse validates a grant document against its JSON Schema, checks its
// version, and builds a Store with every subject assignment applied. Grant
// patterns are compiled for cfg.Separator and the built-in guest role
// covers cfg.DefaultModule.
func Parse(data []byte, cfg acl.Config) (*Store, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, oops.In("grant").Code(ErrCodeInvalidFile).Wrap(err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, oops.In("grant").Code(ErrCodeInvalidFile).Wrap(err)
	}
	if err := checkVersion(doc.Version); err != nil {
		return nil, err
	}

	roles := DefaultRoles(cfg.Separator, cfg.DefaultModule)
	maps.Copy(roles, doc.Roles)
	s, err := NewStore(roles, cfg.Separator)
	if err != nil {
		return nil, err
	}

	subjects := make([]string, 0, len(doc.Subjects))
	for subject := range doc.Subjects {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	for _, subject := range subjects {
		for _, role := range doc.Subjects[subject] {
			if err := s.AssignRole(subject, role); err != nil {
				return nil, oops.In("grant").
					Code(ErrCodeInvalidFile).
					With("subject", subject).
					Wrap(err)
			}
		}
	}
	return s, nil
}

func checkVersion(v string) error {
	version, err := semver.NewVersion(v)
	if err != nil {
		return oops.In("grant").
			Code(ErrCodeInvalidFile).
			With("version", v).
			Wrap(err)
	}
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return oops.In("grant").Wrap(err)
	}
	if !constraint.Check(version) {
		return oops.In("grant").
			Code(ErrCodeInvalidFile).
			With("version", v).
			With("supported", SupportedVersions).
			Errorf("unsupported grant document version")
	}
	return nil
}
