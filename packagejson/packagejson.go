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
// Package packagejson provides parsing, dependency bucket and export
// resolution for package.json manifests.
package packagejson

import (
	"encoding/json"
	"errors"
	"path"
	"sort"
	"strings"

	"bennypowers.dev/deadwood/fs"
)

// workspacesObjectFormat represents the object format for workspaces field.
// Used by yarn classic with nohoist: {"packages": [...], "nohoist": [...]}
type workspacesObjectFormat struct {
	Packages []string `json:"packages"`
}

// ErrNotExported is returned when a subpath is not exported by the package.
var ErrNotExported = errors.New("not exported by package.json")

// DefaultConditions is the default export condition priority for
// runtime (value) imports.
var DefaultConditions = []string{"import", "require", "default"}

// TypeConditions is the condition priority used when resolving a
// type-only import.
var TypeConditions = []string{"types", "import", "require", "default"}

// Bucket identifies the manifest section a dependency is declared in.
type Bucket string

const (
	Dependencies         Bucket = "dependencies"
	DevDependencies      Bucket = "devDependencies"
	PeerDependencies     Bucket = "peerDependencies"
	OptionalDependencies Bucket = "optionalDependencies"
)

// ResolveOptions configures how conditional exports are resolved.
type ResolveOptions struct {
	// Conditions is the ordered list of conditions to try when resolving exports.
	// If nil, defaults to DefaultConditions.
	Conditions []string
}

// PackageJSON represents the subset of package.json relevant for analysis.
type PackageJSON struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Main                 string            `json:"main,omitempty"`
	Module               string            `json:"module,omitempty"`
	Types                string            `json:"types,omitempty"`
	Exports              any               `json:"exports,omitempty"`
	Imports              any               `json:"imports,omitempty"`
	Scripts              map[string]string `json:"scripts,omitempty"`
	Dependencies         map[string]string `json:"dependencies,omitempty"`
	DevDependencies      map[string]string `json:"devDependencies,omitempty"`
	PeerDependencies     map[string]string `json:"peerDependencies,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`
	RawBin               json.RawMessage   `json:"bin,omitempty"`
	RawWorkspaces        json.RawMessage   `json:"workspaces,omitempty"`
	Deadwood             json.RawMessage   `json:"deadwood,omitempty"`
}

// WorkspacePatterns returns the workspace glob patterns from the workspaces field.
// Handles both array format ["packages/*"] and object format {"packages": ["libs/*"]}.
func (pkg *PackageJSON) WorkspacePatterns() []string {
	if len(pkg.RawWorkspaces) == 0 {
		return nil
	}

	// Try array format first (most common)
	var patterns []string
	if err := json.Unmarshal(pkg.RawWorkspaces, &patterns); err == nil {
		return patterns
	}

	// Try object format with "packages" key (yarn classic with nohoist)
	var obj workspacesObjectFormat
	if err := json.Unmarshal(pkg.RawWorkspaces, &obj); err == nil {
		return obj.Packages
	}

	return nil
}

// HasWorkspaces returns true if the package has workspace patterns defined.
func (pkg *PackageJSON) HasWorkspaces() bool {
	return len(pkg.WorkspacePatterns()) > 0
}

// DeclaredDeps returns every declared dependency mapped to its bucket.
// A name declared in several buckets lands in the most production-like
// one so downstream accounting sees each dependency exactly once.
func (pkg *PackageJSON) DeclaredDeps() map[string]Bucket {
	deps := make(map[string]Bucket)
	buckets := []struct {
		names map[string]string
		b     Bucket
	}{
		{pkg.OptionalDependencies, OptionalDependencies},
		{pkg.PeerDependencies, PeerDependencies},
		{pkg.DevDependencies, DevDependencies},
		{pkg.Dependencies, Dependencies},
	}
	for _, bucket := range buckets {
		for name := range bucket.names {
			deps[name] = bucket.b
		}
	}
	return deps
}

// DeclaredDepNames returns declared dependency names in sorted order.
func (pkg *PackageJSON) DeclaredDepNames() []string {
	deps := pkg.DeclaredDeps()
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BinEntries returns the binary names this package contributes, mapped
// to their script paths. A string-valued bin field contributes a single
// binary named after the last segment of the package name.
func (pkg *PackageJSON) BinEntries() map[string]string {
	if len(pkg.RawBin) == 0 {
		return nil
	}

	var binPath string
	if err := json.Unmarshal(pkg.RawBin, &binPath); err == nil {
		name := pkg.Name
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		if name == "" {
			return nil
		}
		return map[string]string{name: binPath}
	}

	var bins map[string]string
	if err := json.Unmarshal(pkg.RawBin, &bins); err == nil {
		return bins
	}

	return nil
}

// EntryFields returns manifest fields that name entry files (main,
// module, types, bin targets and non-wildcard export targets), relative
// to the package directory.
func (pkg *PackageJSON) EntryFields(opts *ResolveOptions) []string {
	seen := make(map[string]struct{})
	var fields []string
	add := func(p string) {
		p = trimDotSlash(p)
		if p == "" || strings.Contains(p, "*") {
			return
		}
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		fields = append(fields, p)
	}

	add(pkg.Main)
	add(pkg.Module)
	add(pkg.Types)
	for _, target := range pkg.BinEntries() {
		add(target)
	}
	for _, entry := range pkg.ExportEntries(opts) {
		add(entry.Target)
	}

	sort.Strings(fields)
	return fields
}

// ExportEntry represents a single export from a package.
type ExportEntry struct {
	Subpath string // The export subpath (e.g., ".", "./button")
	Target  string // The resolved target path (e.g., "index.js")
}

// WildcardExport represents a wildcard export pattern.
type WildcardExport struct {
	Pattern string // The pattern (e.g., "./*")
	Target  string // The target with its wildcard (e.g., "dist/*.js")
}

// Parse parses package.json data.
func Parse(data []byte) (*PackageJSON, error) {
	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ParseFile parses a package.json file.
func ParseFile(fs fs.FileSystem, path string) (*PackageJSON, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// ResolveExport resolves a subpath export to its target file path.
// The subpath should be "." for the main export or "./subpath" for subpath exports.
// Returns the resolved path without leading "./".
// Pass nil for opts to use DefaultConditions.
func (pkg *PackageJSON) ResolveExport(subpath string, opts *ResolveOptions) (string, error) {
	if pkg.Exports == nil {
		// Fall back to main field
		if pkg.Main != "" {
			if subpath == "." {
				return trimDotSlash(pkg.Main), nil
			}
			return "", ErrNotExported
		}
		return "", ErrNotExported
	}

	// Handle string export (simple case)
	if exportStr, ok := pkg.Exports.(string); ok {
		if subpath == "." {
			return trimDotSlash(exportStr), nil
		}
		return "", ErrNotExported
	}

	// Handle exports map
	exportsMap, ok := pkg.Exports.(map[string]any)
	if !ok {
		return "", ErrNotExported
	}

	// Check if this is a condition-only export (no subpaths)
	hasSubpaths := false
	for key := range exportsMap {
		if strings.HasPrefix(key, ".") {
			hasSubpaths = true
			break
		}
	}

	if !hasSubpaths {
		// This is a condition-only export for the main entry
		if subpath == "." {
			return resolveConditionsWithOpts(exportsMap, opts)
		}
		return "", ErrNotExported
	}

	// Look up the subpath
	if exportValue, ok := exportsMap[subpath]; ok {
		return resolveExportValueWithOpts(exportValue, opts)
	}

	// Fall back to wildcard patterns
	return pkg.resolveWildcardSubpath(subpath, opts)
}

// resolveWildcardSubpath matches subpath against wildcard export
// patterns, preferring the longest matching pattern prefix.
func (pkg *PackageJSON) resolveWildcardSubpath(subpath string, opts *ResolveOptions) (string, error) {
	wildcards := pkg.WildcardExports(opts)

	best := -1
	bestPrefixLen := -1
	for i, wc := range wildcards {
		starIdx := strings.Index(wc.Pattern, "*")
		if starIdx < 0 {
			continue
		}
		prefix := wc.Pattern[:starIdx]
		suffix := wc.Pattern[starIdx+1:]
		if !strings.HasPrefix(subpath, prefix) || !strings.HasSuffix(subpath, suffix) {
			continue
		}
		if len(subpath) < len(prefix)+len(suffix) {
			continue
		}
		if len(prefix) > bestPrefixLen {
			best = i
			bestPrefixLen = len(prefix)
		}
	}

	if best < 0 {
		return "", ErrNotExported
	}

	wc := wildcards[best]
	starIdx := strings.Index(wc.Pattern, "*")
	prefix := wc.Pattern[:starIdx]
	suffix := wc.Pattern[starIdx+1:]
	captured := subpath[len(prefix) : len(subpath)-len(suffix)]

	return strings.Replace(wc.Target, "*", captured, 1), nil
}

// ExportEntries returns all non-wildcard export entries from the package.
// Pass nil for opts to use DefaultConditions.
func (pkg *PackageJSON) ExportEntries(opts *ResolveOptions) []ExportEntry {
	var entries []ExportEntry

	if pkg.Exports == nil {
		// No exports field - check main
		if pkg.Main != "" {
			entries = append(entries, ExportEntry{
				Subpath: ".",
				Target:  trimDotSlash(pkg.Main),
			})
		}
		return entries
	}

	// Handle string export
	if exportStr, ok := pkg.Exports.(string); ok {
		entries = append(entries, ExportEntry{
			Subpath: ".",
			Target:  trimDotSlash(exportStr),
		})
		return entries
	}

	// Handle exports map
	exportsMap, ok := pkg.Exports.(map[string]any)
	if !ok {
		return entries
	}

	// Check if this is a condition-only export
	hasSubpaths := false
	for key := range exportsMap {
		if strings.HasPrefix(key, ".") {
			hasSubpaths = true
			break
		}
	}

	if !hasSubpaths {
		// Condition-only export for main entry
		if resolved, err := resolveConditionsWithOpts(exportsMap, opts); err == nil {
			entries = append(entries, ExportEntry{
				Subpath: ".",
				Target:  resolved,
			})
		}
		return entries
	}

	// Process each subpath
	for subpath, exportValue := range exportsMap {
		// Skip wildcards
		if strings.Contains(subpath, "*") {
			continue
		}

		resolved, err := resolveExportValueWithOpts(exportValue, opts)
		if err != nil {
			continue
		}

		entries = append(entries, ExportEntry{
			Subpath: subpath,
			Target:  resolved,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Subpath < entries[j].Subpath })
	return entries
}

// WildcardExports returns all wildcard export patterns from the package.
// Pass nil for opts to use DefaultConditions.
func (pkg *PackageJSON) WildcardExports(opts *ResolveOptions) []WildcardExport {
	var wildcards []WildcardExport

	exportsMap, ok := pkg.Exports.(map[string]any)
	if !ok {
		return wildcards
	}

	for pattern, targetValue := range exportsMap {
		if !strings.Contains(pattern, "*") {
			continue
		}

		// Resolve the target value (handles strings, conditions, and arrays)
		targetStr := resolveWildcardTargetWithOpts(targetValue, opts)
		if targetStr == "" || !strings.Contains(targetStr, "*") {
			continue
		}

		wildcards = append(wildcards, WildcardExport{
			Pattern: pattern,
			Target:  trimDotSlash(targetStr),
		})
	}

	sort.Slice(wildcards, func(i, j int) bool { return wildcards[i].Pattern < wildcards[j].Pattern })
	return wildcards
}

// resolveWildcardTargetWithOpts resolves a wildcard export value with custom conditions.
// Handles plain strings, conditional exports (maps), and fallback arrays.
func resolveWildcardTargetWithOpts(value any, opts *ResolveOptions) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		// Conditional export - try to resolve using configured conditions
		if result, err := resolveConditionsWithOpts(v, opts); err == nil {
			return result
		}
	case []any:
		// Fallback array - return first valid wildcard target
		for _, item := range v {
			if result := resolveWildcardTargetWithOpts(item, opts); result != "" {
				return result
			}
		}
	}
	return ""
}

// resolveExportValueWithOpts resolves an export value with custom conditions.
func resolveExportValueWithOpts(value any, opts *ResolveOptions) (string, error) {
	switch v := value.(type) {
	case string:
		return trimDotSlash(v), nil
	case map[string]any:
		return resolveConditionsWithOpts(v, opts)
	case []any:
		for _, item := range v {
			if result, err := resolveExportValueWithOpts(item, opts); err == nil {
				return result, nil
			}
		}
	}
	return "", ErrNotExported
}

// resolveConditionsWithOpts resolves a conditional export map to a path.
// Tries each condition in opts.Conditions order, recursing into nested maps.
func resolveConditionsWithOpts(conditions map[string]any, opts *ResolveOptions) (string, error) {
	conditionList := DefaultConditions
	if opts != nil && len(opts.Conditions) > 0 {
		conditionList = opts.Conditions
	}

	for _, cond := range conditionList {
		if value, ok := conditions[cond]; ok {
			if valueMap, ok := value.(map[string]any); ok {
				if result, err := resolveConditionsWithOpts(valueMap, opts); err == nil {
					return result, nil
				}
			} else if valueStr, ok := value.(string); ok {
				return trimDotSlash(valueStr), nil
			}
		}
	}

	return "", ErrNotExported
}

// PackageName extracts the package name from a bare specifier.
// e.g. "@scope/pkg/sub" -> "@scope/pkg", "lodash/fp" -> "lodash".
func PackageName(specifier string) string {
	specifier = strings.TrimPrefix(specifier, "node:")
	if strings.HasPrefix(specifier, "@") {
		parts := strings.SplitN(specifier, "/", 3)
		if len(parts) >= 2 {
			return path.Join(parts[0], parts[1])
		}
		return specifier
	}
	parts := strings.SplitN(specifier, "/", 2)
	return parts[0]
}

// Subpath returns the export subpath of a bare specifier relative to
// its package name: "." for the bare name, "./x" for "pkg/x".
func Subpath(specifier string) string {
	name := PackageName(specifier)
	rest := strings.TrimPrefix(strings.TrimPrefix(specifier, "node:"), name)
	if rest == "" {
		return "."
	}
	return "." + rest
}

// trimDotSlash removes a leading "./" from a path.
func trimDotSlash(path string) string {
	return strings.TrimPrefix(path, "./")
}
