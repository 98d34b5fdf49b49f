/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package config defines the recognized analysis options and loads them
// from deadwood config files or the "deadwood" key in package.json.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"

	"bennypowers.dev/deadwood/fs"
	"bennypowers.dev/deadwood/packagejson"
)

// IssueKind names a report section that can be filtered with
// include/exclude.
type IssueKind string

const (
	KindFiles        IssueKind = "files"
	KindDependencies IssueKind = "dependencies"
	KindUnlisted     IssueKind = "unlisted"
	KindUnresolved   IssueKind = "unresolved"
	KindBinaries     IssueKind = "binaries"
	KindExports      IssueKind = "exports"
	KindTypes        IssueKind = "types"
	KindClassMembers IssueKind = "classMembers"
	KindEnumMembers  IssueKind = "enumMembers"
)

// AllKinds lists every reportable issue kind in output order.
var AllKinds = []IssueKind{
	KindFiles,
	KindDependencies,
	KindUnlisted,
	KindUnresolved,
	KindBinaries,
	KindExports,
	KindTypes,
	KindClassMembers,
	KindEnumMembers,
}

// ErrUnknownOption is wrapped by configuration diagnostics about
// unrecognized keys.
var ErrUnknownOption = errors.New("unknown option")

// WorkspaceConfig holds per-workspace overrides, keyed in Config by a
// workspace directory glob relative to the root.
type WorkspaceConfig struct {
	Entry              []string `json:"entry,omitempty" toml:"entry"`
	Project            []string `json:"project,omitempty" toml:"project"`
	Ignore             []string `json:"ignore,omitempty" toml:"ignore"`
	IgnoreDependencies []string `json:"ignoreDependencies,omitempty" toml:"ignoreDependencies"`
	IgnoreBinaries     []string `json:"ignoreBinaries,omitempty" toml:"ignoreBinaries"`
}

// Config is the full recognized option surface.
type Config struct {
	Entry   []string `json:"entry,omitempty" toml:"entry"`
	Project []string `json:"project,omitempty" toml:"project"`
	Ignore  []string `json:"ignore,omitempty" toml:"ignore"`

	IgnoreDependencies []string `json:"ignoreDependencies,omitempty" toml:"ignoreDependencies"`
	IgnoreBinaries     []string `json:"ignoreBinaries,omitempty" toml:"ignoreBinaries"`
	IgnoreExportTags   []string `json:"ignoreExportTags,omitempty" toml:"ignoreExportTags"`

	IgnoreExportsUsedInFile    bool `json:"ignoreExportsUsedInFile,omitempty" toml:"ignoreExportsUsedInFile"`
	IncludeEntryExports        bool `json:"includeEntryExports,omitempty" toml:"includeEntryExports"`
	IncludeClassMembers        bool `json:"includeClassMembers,omitempty" toml:"includeClassMembers"`
	IncludeEnumMembers         bool `json:"includeEnumMembers,omitempty" toml:"includeEnumMembers"`
	IgnoreTypeOnlyDependencies bool `json:"ignoreTypeOnlyDependencies,omitempty" toml:"ignoreTypeOnlyDependencies"`

	Include []IssueKind `json:"include,omitempty" toml:"include"`
	Exclude []IssueKind `json:"exclude,omitempty" toml:"exclude"`

	// Paths maps tsconfig-style alias patterns to target path lists,
	// merged under every workspace's own tsconfig paths.
	Paths map[string][]string `json:"paths,omitempty" toml:"paths"`

	// Workspaces maps workspace directory globs to overrides.
	Workspaces map[string]WorkspaceConfig `json:"workspaces,omitempty" toml:"workspaces"`

	// Plugins toggles plugin detection by name. Absent names use
	// automatic detection; explicit true forces a plugin on, false off.
	Plugins map[string]bool `json:"plugins,omitempty" toml:"plugins"`
}

// Default entry and project patterns, applied when a workspace has no
// explicit configuration.
var (
	DefaultEntry = []string{
		"index.{js,mjs,cjs,jsx,ts,mts,cts,tsx}",
		"src/index.{js,mjs,cjs,jsx,ts,mts,cts,tsx}",
	}
	DefaultProject = []string{"**/*.{js,mjs,cjs,jsx,ts,mts,cts,tsx}"}
)

// fileNames are the config file names probed in order.
var fileNames = []string{
	"deadwood.json",
	".deadwoodrc",
	"deadwood.toml",
}

// Load reads configuration from the root directory. Missing config is
// not an error: defaults apply. Returns the config and any non-fatal
// warnings (unknown options).
func Load(fsys fs.FileSystem, rootDir string) (*Config, []string, error) {
	for _, name := range fileNames {
		path := filepath.Join(rootDir, name)
		if !fsys.Exists(path) {
			continue
		}
		data, err := fsys.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if strings.HasSuffix(name, ".toml") {
			return parseTOML(path, data)
		}
		return parseJSON(path, data)
	}

	// Fall back to the "deadwood" key in package.json.
	manifestPath := filepath.Join(rootDir, "package.json")
	if fsys.Exists(manifestPath) {
		pkg, err := packagejson.ParseFile(fsys, manifestPath)
		if err == nil && len(pkg.Deadwood) > 0 {
			return parseJSON(manifestPath, pkg.Deadwood)
		}
	}

	return &Config{}, nil, nil
}

func parseJSON(path string, data []byte) (*Config, []string, error) {
	warnings, err := validateJSON(data)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.check(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return &cfg, warnings, nil
}

func parseTOML(path string, data []byte) (*Config, []string, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.check(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return &cfg, nil, nil
}

// check validates values the schema cannot express.
func (c *Config) check() error {
	for _, kind := range append(append([]IssueKind{}, c.Include...), c.Exclude...) {
		if !validKind(kind) {
			return fmt.Errorf("unknown issue kind %q", kind)
		}
	}
	for _, set := range [][]string{c.Entry, c.Project, c.Ignore} {
		for _, pattern := range set {
			if !doublestar.ValidatePattern(strings.TrimPrefix(pattern, "!")) {
				return fmt.Errorf("invalid glob pattern %q", pattern)
			}
		}
	}
	return nil
}

func validKind(kind IssueKind) bool {
	for _, k := range AllKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Enabled reports whether issues of the given kind should appear in
// the report after include/exclude filtering. Class and enum member
// kinds additionally require their mode flags.
func (c *Config) Enabled(kind IssueKind) bool {
	switch kind {
	case KindClassMembers:
		if !c.IncludeClassMembers {
			return false
		}
	case KindEnumMembers:
		if !c.IncludeEnumMembers {
			return false
		}
	}
	for _, k := range c.Exclude {
		if k == kind {
			return false
		}
	}
	if len(c.Include) == 0 {
		return true
	}
	for _, k := range c.Include {
		if k == kind {
			return true
		}
	}
	return false
}

// Resolved is the effective pattern set for one workspace after
// applying overrides over root defaults.
type Resolved struct {
	Entry              []string
	Project            []string
	Ignore             []string
	IgnoreDependencies []string
	IgnoreBinaries     []string
}

// ForWorkspace computes the effective configuration for a workspace at
// relDir (relative to the analysis root, "." for the root workspace).
// For entry/project/ignore the most specific matching workspaces key
// wins; root-level entry/project/ignore apply to the root workspace
// only. ignoreDependencies and ignoreBinaries accumulate: root-level
// lists apply everywhere and every matching key adds to them.
func (c *Config) ForWorkspace(relDir string) Resolved {
	resolved := Resolved{
		IgnoreDependencies: append([]string(nil), c.IgnoreDependencies...),
		IgnoreBinaries:     append([]string(nil), c.IgnoreBinaries...),
	}
	if relDir == "." {
		resolved.Entry = append([]string(nil), c.Entry...)
		resolved.Project = append([]string(nil), c.Project...)
		resolved.Ignore = append([]string(nil), c.Ignore...)
	}

	// Sort keys so "most specific wins" is deterministic: longer
	// patterns are applied later and override.
	keys := make([]string, 0, len(c.Workspaces))
	for key := range c.Workspaces {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})

	for _, key := range keys {
		matched, err := doublestar.Match(key, relDir)
		if err != nil || !matched {
			continue
		}
		override := c.Workspaces[key]
		if len(override.Entry) > 0 {
			resolved.Entry = append([]string(nil), override.Entry...)
		}
		if len(override.Project) > 0 {
			resolved.Project = append([]string(nil), override.Project...)
		}
		if len(override.Ignore) > 0 {
			resolved.Ignore = append([]string(nil), override.Ignore...)
		}
		resolved.IgnoreDependencies = append(resolved.IgnoreDependencies, override.IgnoreDependencies...)
		resolved.IgnoreBinaries = append(resolved.IgnoreBinaries, override.IgnoreBinaries...)
	}

	if len(resolved.Entry) == 0 {
		resolved.Entry = append([]string(nil), DefaultEntry...)
	}
	if len(resolved.Project) == 0 {
		resolved.Project = append([]string(nil), DefaultProject...)
	}

	return resolved
}

// PluginEnabled reports the explicit toggle for a plugin name.
// The second return is false when no toggle is present and automatic
// detection should decide.
func (c *Config) PluginEnabled(name string) (enabled, explicit bool) {
	if c.Plugins == nil {
		return false, false
	}
	enabled, explicit = c.Plugins[name]
	return enabled, explicit
}
