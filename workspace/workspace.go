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

// Package workspace models the manifest tree of a (possibly nested)
// monorepo and attributes declared dependencies to workspaces.
package workspace

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"bennypowers.dev/deadwood/fs"
	"bennypowers.dev/deadwood/packagejson"
)

// ErrManifestParse wraps package.json parse failures; these are fatal.
var ErrManifestParse = errors.New("manifest parse error")

// ErrCyclicWorkspace indicates the workspace graph contains a cycle.
var ErrCyclicWorkspace = errors.New("cyclic workspace graph")

// Workspace is a directory containing a package manifest.
type Workspace struct {
	// Dir is the absolute workspace directory.
	Dir string
	// Name is the manifest name; falls back to the directory base.
	Name string
	// Manifest is the parsed package.json.
	Manifest *packagejson.PackageJSON
	// Parent is the nearest enclosing workspace, nil for the root.
	Parent *Workspace
	// Children are directly nested workspaces, sorted by Dir.
	Children []*Workspace
	// Depth is 0 for the root, parent depth+1 otherwise.
	Depth int
	// Deps maps every declared dependency to its manifest bucket.
	Deps map[string]packagejson.Bucket
}

// RelDir returns the workspace directory relative to root, "." for the
// root itself.
func (w *Workspace) RelDir(rootDir string) string {
	rel, err := filepath.Rel(rootDir, w.Dir)
	if err != nil {
		return w.Dir
	}
	return rel
}

// Declares reports whether the workspace itself declares the dependency.
func (w *Workspace) Declares(dep string) bool {
	_, ok := w.Deps[dep]
	return ok
}

// Visible reports whether the dependency is declared by the workspace
// or any ancestor; a dep listed in an ancestor counts as available.
func (w *Workspace) Visible(dep string) bool {
	for ws := w; ws != nil; ws = ws.Parent {
		if ws.Declares(dep) {
			return true
		}
	}
	return false
}

// DeclaringAncestor returns the nearest workspace in the ancestor chain
// (including w itself) that declares the dependency, or nil.
func (w *Workspace) DeclaringAncestor(dep string) *Workspace {
	for ws := w; ws != nil; ws = ws.Parent {
		if ws.Declares(dep) {
			return ws
		}
	}
	return nil
}

// Tree is the loaded workspace graph.
type Tree struct {
	Root *Workspace
	// All lists workspaces deepest-first, ties broken by Dir, so
	// iteration visits descendants before their ancestors.
	All []*Workspace

	byDir  map[string]*Workspace
	byName map[string]*Workspace
}

// Load reads the workspace manifests reachable from rootDir.
// The root manifest's workspaces field is expanded with doublestar
// patterns; nested workspaces may declare workspaces of their own.
func Load(fsys fs.FileSystem, rootDir string) (*Tree, error) {
	rootDir, err := fsys.Realpath(rootDir)
	if err != nil {
		return nil, err
	}

	root, err := load(fsys, rootDir)
	if err != nil {
		return nil, err
	}

	tree := &Tree{
		Root:   root,
		byDir:  make(map[string]*Workspace),
		byName: make(map[string]*Workspace),
	}

	visited := make(map[string]bool)
	if err := tree.descend(fsys, root, visited); err != nil {
		return nil, err
	}

	sort.Slice(tree.All, func(i, j int) bool {
		a, b := tree.All[i], tree.All[j]
		if a.Depth != b.Depth {
			return a.Depth > b.Depth
		}
		return a.Dir < b.Dir
	})

	return tree, nil
}

// descend registers ws and recursively loads its declared workspaces.
func (t *Tree) descend(fsys fs.FileSystem, ws *Workspace, visited map[string]bool) error {
	if visited[ws.Dir] {
		return fmt.Errorf("%w: %s appears twice in the workspace tree", ErrCyclicWorkspace, ws.Dir)
	}
	visited[ws.Dir] = true

	t.All = append(t.All, ws)
	t.byDir[ws.Dir] = ws
	t.byName[ws.Name] = ws

	dirs, err := expandWorkspacePatterns(fsys, ws.Dir, ws.Manifest.WorkspacePatterns())
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		child, err := load(fsys, dir)
		if err != nil {
			// Directories matched by a workspace pattern without a
			// readable manifest are skipped, matching installer behavior.
			if errors.Is(err, ErrManifestParse) {
				return err
			}
			continue
		}
		child.Parent = ws
		child.Depth = ws.Depth + 1
		ws.Children = append(ws.Children, child)
		if err := t.descend(fsys, child, visited); err != nil {
			return err
		}
	}

	sort.Slice(ws.Children, func(i, j int) bool { return ws.Children[i].Dir < ws.Children[j].Dir })
	return nil
}

// load reads a single workspace manifest.
func load(fsys fs.FileSystem, dir string) (*Workspace, error) {
	manifestPath := filepath.Join(dir, "package.json")
	data, err := fsys.ReadFile(manifestPath)
	if err != nil {
		return nil, err
	}
	pkg, err := packagejson.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestParse, manifestPath, err)
	}

	name := pkg.Name
	if name == "" {
		name = filepath.Base(dir)
	}

	return &Workspace{
		Dir:      dir,
		Name:     name,
		Manifest: pkg,
		Deps:     pkg.DeclaredDeps(),
	}, nil
}

// expandWorkspacePatterns expands workspace globs to directories that
// contain a package.json.
func expandWorkspacePatterns(fsys fs.FileSystem, rootDir string, patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var dirs []string

	for _, pattern := range patterns {
		pattern = strings.TrimSuffix(pattern, "/")
		matches, err := globDirs(fsys, rootDir, pattern)
		if err != nil {
			continue // skip patterns that can't be expanded
		}
		for _, dir := range matches {
			if !fs.IsFile(fsys, filepath.Join(dir, "package.json")) {
				continue
			}
			if _, dup := seen[dir]; dup {
				continue
			}
			seen[dir] = struct{}{}
			dirs = append(dirs, dir)
		}
	}

	sort.Strings(dirs)
	return dirs, nil
}

// globDirs matches directories under rootDir against a doublestar
// pattern. node_modules never matches.
func globDirs(fsys fs.FileSystem, rootDir, pattern string) ([]string, error) {
	if !strings.Contains(pattern, "*") {
		full := filepath.Join(rootDir, pattern)
		if fs.IsDir(fsys, full) {
			return []string{full}, nil
		}
		return nil, nil
	}

	var dirs []string
	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name := entry.Name()
			if name == "node_modules" || strings.HasPrefix(name, ".") {
				continue
			}
			childRel := name
			if rel != "" {
				childRel = rel + "/" + name
			}
			matched, err := doublestar.Match(pattern, childRel)
			if err != nil {
				return err
			}
			if matched {
				dirs = append(dirs, filepath.Join(dir, name))
			}
			// Only descend while the pattern could still match deeper.
			if strings.Contains(pattern, "**") || strings.Count(pattern, "/") > strings.Count(childRel, "/") {
				if err := walk(filepath.Join(dir, name), childRel); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(rootDir, ""); err != nil {
		return nil, err
	}
	return dirs, nil
}

// ByDir returns the workspace rooted exactly at dir.
func (t *Tree) ByDir(dir string) *Workspace {
	return t.byDir[dir]
}

// ByName returns the workspace with the given manifest name.
func (t *Tree) ByName(name string) *Workspace {
	return t.byName[name]
}

// Owner returns the nearest workspace whose directory encloses path.
func (t *Tree) Owner(path string) *Workspace {
	var best *Workspace
	for _, ws := range t.All {
		if path == ws.Dir || strings.HasPrefix(path, ws.Dir+string(filepath.Separator)) {
			if best == nil || len(ws.Dir) > len(best.Dir) {
				best = ws
			}
		}
	}
	return best
}

// InstalledBins returns the union of binary names available to the
// workspace, gathered from node_modules/.bin directories along its
// ancestor chain.
func (t *Tree) InstalledBins(fsys fs.FileSystem, ws *Workspace) map[string]struct{} {
	bins := make(map[string]struct{})
	for w := ws; w != nil; w = w.Parent {
		entries, err := fsys.ReadDir(filepath.Join(w.Dir, "node_modules", ".bin"))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			// Windows shims appear alongside the plain name.
			name = strings.TrimSuffix(strings.TrimSuffix(name, ".cmd"), ".ps1")
			bins[name] = struct{}{}
		}
	}
	return bins
}
