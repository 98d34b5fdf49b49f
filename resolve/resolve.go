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

// Package resolve maps import specifiers to files, external packages,
// or an unresolved marker.
package resolve

import (
	"path/filepath"
	"strings"
	"sync"

	"bennypowers.dev/deadwood/fs"
	"bennypowers.dev/deadwood/packagejson"
	"bennypowers.dev/deadwood/workspace"
)

// Kind classifies a resolution result.
type Kind int

const (
	// Unresolved means no resolution step produced a hit.
	Unresolved Kind = iota
	// Internal resolved to a file inside the analyzed tree.
	Internal
	// External resolved to an installed or declared package.
	External
	// Builtin is a node built-in module.
	Builtin
)

// Result is the outcome of resolving one specifier.
type Result struct {
	Kind Kind
	// Path is the absolute file path for Internal results.
	Path string
	// Package and Subpath describe External results.
	Package string
	Subpath string
}

// extensions probed in order when a specifier has none.
var extensions = []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs", ".d.ts", ".json"}

// tsVariants maps emitted JS extensions back to their likely sources.
var tsVariants = map[string][]string{
	".js":  {".ts", ".tsx", ".d.ts"},
	".jsx": {".tsx"},
	".mjs": {".mts", ".d.mts"},
	".cjs": {".cts", ".d.cts"},
}

// Resolver resolves specifiers against a workspace tree. Safe for
// concurrent use; the cache is a write-once shared map.
type Resolver struct {
	fsys     fs.FileSystem
	tree     *workspace.Tree
	pkgCache packagejson.Cache

	// aliases holds per-workspace path maps (tsconfig paths merged
	// with configured aliases), keyed by workspace dir.
	aliases map[string]*PathMap

	cache sync.Map // key string -> Result
}

// New creates a Resolver. extraPaths are configuration-level alias
// patterns merged under every workspace's own tsconfig paths.
func New(fsys fs.FileSystem, tree *workspace.Tree, extraPaths map[string][]string) *Resolver {
	r := &Resolver{
		fsys:     fsys,
		tree:     tree,
		pkgCache: packagejson.NewMemoryCache(),
		aliases:  make(map[string]*PathMap),
	}
	for _, ws := range tree.All {
		pm := LoadPathMap(fsys, ws.Dir)
		pm.Merge(extraPaths, tree.Root.Dir)
		r.aliases[ws.Dir] = pm
	}
	return r
}

// Resolve maps a specifier appearing in fromFile to a Result.
// Resolution never raises on misses; only I/O errors from the
// filesystem layer would propagate, and those surface from ReadFile
// in the parser facade instead.
func (r *Resolver) Resolve(specifier, fromFile string, typeOnly bool) Result {
	fromDir := filepath.Dir(fromFile)
	key := fromDir + "\x00" + specifier
	if typeOnly {
		key += "\x00t"
	}
	if cached, ok := r.cache.Load(key); ok {
		return cached.(Result)
	}
	result := r.resolve(specifier, fromDir, typeOnly)
	actual, _ := r.cache.LoadOrStore(key, result)
	return actual.(Result)
}

func (r *Resolver) resolve(specifier, fromDir string, typeOnly bool) Result {
	if specifier == "" {
		return Result{Kind: Unresolved}
	}

	owner := r.tree.Owner(fromDir)

	// 1. Exact relative or absolute path with extension probing.
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		if path, ok := r.probe(filepath.Join(fromDir, specifier), typeOnly); ok {
			return Result{Kind: Internal, Path: path}
		}
		return Result{Kind: Unresolved}
	}
	if strings.HasPrefix(specifier, "/") {
		if path, ok := r.probe(filepath.Clean(specifier), typeOnly); ok {
			return Result{Kind: Internal, Path: path}
		}
		return Result{Kind: Unresolved}
	}

	// Manifest #imports aliases.
	if strings.HasPrefix(specifier, "#") {
		if result, ok := r.resolveHashImport(specifier, owner, typeOnly); ok {
			return result
		}
		return Result{Kind: Unresolved}
	}

	// 2. Path-mapping aliases from the workspace's TS project configuration.
	if owner != nil {
		if pm := r.aliases[owner.Dir]; pm != nil {
			for _, candidate := range pm.Candidates(specifier) {
				if path, ok := r.probe(candidate, typeOnly); ok {
					return Result{Kind: Internal, Path: path}
				}
			}
		}
	}

	if strings.Contains(specifier, "://") {
		return Result{Kind: Unresolved}
	}

	pkgName := packagejson.PackageName(specifier)
	subpath := packagejson.Subpath(specifier)

	// 3. Workspace-local package name lookup (monorepo sibling).
	if sibling := r.tree.ByName(pkgName); sibling != nil {
		if path, ok := r.resolveInPackage(sibling.Manifest, sibling.Dir, subpath, typeOnly); ok {
			return Result{Kind: Internal, Path: path}
		}
	}

	// 5. Built-in module list. Checked before the node_modules ascent
	// for the node: prefix, after it for unprefixed names shadowed by
	// an installed polyfill.
	if strings.HasPrefix(specifier, "node:") {
		return Result{Kind: Builtin, Package: pkgName}
	}

	// 4. Node-style node_modules ascent from the referring directory.
	for dir := fromDir; ; dir = filepath.Dir(dir) {
		pkgDir := filepath.Join(dir, "node_modules", pkgName)
		if fs.IsDir(r.fsys, pkgDir) {
			return Result{Kind: External, Package: pkgName, Subpath: subpath}
		}
		if dir == filepath.Dir(dir) || (r.tree.Root != nil && dir == r.tree.Root.Dir) {
			break
		}
	}

	if isBuiltin(pkgName) {
		return Result{Kind: Builtin, Package: pkgName}
	}

	// 6. Leading segment matching a declared dep in the ancestor
	// chain; prefer the longest declared-dep name prefix.
	if owner != nil {
		best := ""
		for ws := owner; ws != nil; ws = ws.Parent {
			for dep := range ws.Deps {
				if (specifier == dep || strings.HasPrefix(specifier, dep+"/")) && len(dep) > len(best) {
					best = dep
				}
			}
		}
		if best != "" {
			sub := strings.TrimPrefix(specifier, best)
			if sub == "" {
				sub = "."
			} else {
				sub = "." + sub
			}
			return Result{Kind: External, Package: best, Subpath: sub}
		}
	}

	return Result{Kind: Unresolved}
}

// resolveHashImport resolves "#alias" specifiers through the owning
// workspace manifest's imports field.
func (r *Resolver) resolveHashImport(specifier string, owner *workspace.Workspace, typeOnly bool) (Result, bool) {
	if owner == nil || owner.Manifest.Imports == nil {
		return Result{}, false
	}
	imports, ok := owner.Manifest.Imports.(map[string]any)
	if !ok {
		return Result{}, false
	}

	target := lookupImportsTarget(imports, specifier, conditionsFor(typeOnly))
	if target == "" {
		return Result{}, false
	}

	if strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../") {
		if path, ok := r.probe(filepath.Join(owner.Dir, target), typeOnly); ok {
			return Result{Kind: Internal, Path: path}, true
		}
		return Result{}, false
	}
	// Hash imports may remap to an external package.
	return Result{
		Kind:    External,
		Package: packagejson.PackageName(target),
		Subpath: packagejson.Subpath(target),
	}, true
}

// lookupImportsTarget finds the target for a hash specifier, handling
// exact keys, one-star wildcards, and conditional values.
func lookupImportsTarget(imports map[string]any, specifier string, conditions []string) string {
	resolveValue := func(value any) string {
		switch v := value.(type) {
		case string:
			return v
		case map[string]any:
			for _, cond := range conditions {
				if nested, ok := v[cond]; ok {
					if s, ok := nested.(string); ok {
						return s
					}
				}
			}
		}
		return ""
	}

	if value, ok := imports[specifier]; ok {
		return resolveValue(value)
	}

	bestLen := -1
	bestTarget := ""
	for pattern, value := range imports {
		starIdx := strings.Index(pattern, "*")
		if starIdx < 0 {
			continue
		}
		prefix, suffix := pattern[:starIdx], pattern[starIdx+1:]
		if !strings.HasPrefix(specifier, prefix) || !strings.HasSuffix(specifier, suffix) {
			continue
		}
		if len(specifier) < len(prefix)+len(suffix) || len(prefix) <= bestLen {
			continue
		}
		target := resolveValue(value)
		if target == "" {
			continue
		}
		captured := specifier[len(prefix) : len(specifier)-len(suffix)]
		bestLen = len(prefix)
		bestTarget = strings.Replace(target, "*", captured, 1)
	}
	return bestTarget
}

// resolveInPackage resolves a subpath within a sibling workspace
// directory, consulting its exports map first.
func (r *Resolver) resolveInPackage(pkg *packagejson.PackageJSON, pkgDir, subpath string, typeOnly bool) (string, bool) {
	opts := &packagejson.ResolveOptions{Conditions: conditionsFor(typeOnly)}
	if resolved, err := pkg.ResolveExport(subpath, opts); err == nil {
		if path, ok := r.probe(filepath.Join(pkgDir, resolved), typeOnly); ok {
			return path, true
		}
	}

	// An exports field restricts subpaths; without one, probe directly.
	if pkg.Exports != nil {
		return "", false
	}
	if subpath == "." {
		if pkg.Main != "" {
			return r.probe(filepath.Join(pkgDir, pkg.Main), typeOnly)
		}
		return r.probe(filepath.Join(pkgDir, "index"), typeOnly)
	}
	return r.probe(filepath.Join(pkgDir, subpath), typeOnly)
}

// conditionsFor returns the export condition priority for the import
// channel; type-only imports prefer the types condition.
func conditionsFor(typeOnly bool) []string {
	if typeOnly {
		return packagejson.TypeConditions
	}
	return packagejson.DefaultConditions
}

// probe maps a path without a guaranteed extension to an existing
// file: exact hit, TS variants of emitted JS extensions, extension
// appending, then index fallback for directories.
func (r *Resolver) probe(path string, typeOnly bool) (string, bool) {
	if fs.IsFile(r.fsys, path) {
		real, err := r.fsys.Realpath(path)
		if err != nil {
			return "", false
		}
		return real, true
	}

	ext := filepath.Ext(path)
	if variants, ok := tsVariants[ext]; ok {
		stem := strings.TrimSuffix(path, ext)
		for _, v := range variants {
			if fs.IsFile(r.fsys, stem+v) {
				return r.realpath(stem + v)
			}
		}
	}

	if ext == "" || !knownExtension(ext) {
		for _, e := range extensions {
			if fs.IsFile(r.fsys, path+e) {
				return r.realpath(path + e)
			}
		}
	}

	if fs.IsDir(r.fsys, path) {
		for _, e := range extensions {
			index := filepath.Join(path, "index"+e)
			if fs.IsFile(r.fsys, index) {
				return r.realpath(index)
			}
		}
	}

	return "", false
}

func (r *Resolver) realpath(path string) (string, bool) {
	real, err := r.fsys.Realpath(path)
	if err != nil {
		return "", false
	}
	return real, true
}

func knownExtension(ext string) bool {
	for _, e := range extensions {
		if e == ext {
			return true
		}
	}
	return false
}
