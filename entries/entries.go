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

// Package entries expands entry, project and ignore glob patterns per
// workspace into concrete file sets.
package entries

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"bennypowers.dev/deadwood/config"
	"bennypowers.dev/deadwood/fs"
	"bennypowers.dev/deadwood/workspace"
)

// FileSet is the expanded file universe of one workspace.
type FileSet struct {
	Ws *workspace.Workspace

	// Project is the universe of files owned by this workspace.
	Project map[string]struct{}
	// Entry is the seed set for reachability; Entry is a subset of Project.
	Entry map[string]struct{}
	// Ignored holds files excluded from reporting; they may still be
	// reachable.
	Ignored map[string]struct{}
}

// EntryList returns the entry files sorted for deterministic seeding.
func (s *FileSet) EntryList() []string {
	list := make([]string, 0, len(s.Entry))
	for f := range s.Entry {
		list = append(list, f)
	}
	sort.Strings(list)
	return list
}

// Resolver expands patterns against the filesystem.
type Resolver struct {
	fsys fs.FileSystem
}

// NewResolver creates a pattern resolver.
func NewResolver(fsys fs.FileSystem) *Resolver {
	return &Resolver{fsys: fsys}
}

// Resolve expands the workspace's resolved configuration into file
// sets. extraEntries are plugin- or manifest-contributed entry
// patterns; they are unioned with configured entries. Rules: negated
// patterns subtract, later patterns override earlier, ignore is
// applied last. Files named as entry but outside project are added to
// project.
func (r *Resolver) Resolve(ws *workspace.Workspace, cfg config.Resolved, extraEntries []string) (*FileSet, error) {
	files, err := r.walk(ws)
	if err != nil {
		return nil, err
	}

	project, err := matchSet(files, cfg.Project)
	if err != nil {
		return nil, fmt.Errorf("project patterns for %s: %w", ws.Name, err)
	}

	entryPatterns := append(append([]string(nil), cfg.Entry...), extraEntries...)
	entry, err := matchSet(files, entryPatterns)
	if err != nil {
		return nil, fmt.Errorf("entry patterns for %s: %w", ws.Name, err)
	}

	// Literal entry patterns may name files outside the walked set
	// (e.g. manifest "main" pointing at generated output).
	for _, pattern := range entryPatterns {
		if strings.ContainsAny(pattern, "*?[{!") {
			continue
		}
		full := filepath.Join(ws.Dir, pattern)
		if fs.IsFile(r.fsys, full) {
			rel, err := filepath.Rel(ws.Dir, full)
			if err == nil {
				entry[filepath.ToSlash(rel)] = struct{}{}
			}
		}
	}

	ignored, err := matchSet(files, cfg.Ignore)
	if err != nil {
		return nil, fmt.Errorf("ignore patterns for %s: %w", ws.Name, err)
	}
	for _, pattern := range cfg.Ignore {
		// Ignore patterns may also name whole directories.
		if !strings.ContainsAny(pattern, "*?[{") {
			prefix := strings.TrimSuffix(pattern, "/") + "/"
			for f := range project {
				if strings.HasPrefix(f, prefix) {
					ignored[f] = struct{}{}
				}
			}
		}
	}

	set := &FileSet{
		Ws:      ws,
		Project: make(map[string]struct{}),
		Entry:   make(map[string]struct{}),
		Ignored: make(map[string]struct{}),
	}
	for f := range project {
		set.Project[filepath.Join(ws.Dir, f)] = struct{}{}
	}
	for f := range entry {
		abs := filepath.Join(ws.Dir, f)
		set.Entry[abs] = struct{}{}
		// Entry must be a subset of project after expansion.
		set.Project[abs] = struct{}{}
	}
	for f := range ignored {
		set.Ignored[filepath.Join(ws.Dir, f)] = struct{}{}
	}

	return set, nil
}

// walk lists candidate files under the workspace directory, relative
// with forward slashes. node_modules, nested workspace directories and
// git-ignored files are excluded; dot directories are walked, and
// matchSet admits their files only for patterns naming a dot segment.
func (r *Resolver) walk(ws *workspace.Workspace) ([]string, error) {
	return WalkFiles(r.fsys, ws, true, r.gitignoreFor(ws))
}

// WalkFiles lists files under the workspace directory, relative with
// forward slashes. node_modules, .git and nested workspace directories
// are always excluded; other dot directories only when includeDot is
// false. matcher may be nil.
func WalkFiles(fsys fs.FileSystem, ws *workspace.Workspace, includeDot bool, matcher *ignore.GitIgnore) ([]string, error) {
	childDirs := make(map[string]bool)
	for _, child := range ws.Children {
		childDirs[child.Dir] = true
	}

	var files []string
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			name := entry.Name()
			full := filepath.Join(dir, name)
			rel, err := filepath.Rel(ws.Dir, full)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			if entry.IsDir() {
				if name == "node_modules" || name == ".git" || childDirs[full] {
					continue
				}
				if !includeDot && strings.HasPrefix(name, ".") {
					continue
				}
				if matcher != nil && matcher.MatchesPath(rel+"/") {
					continue
				}
				if err := walk(full); err != nil {
					return err
				}
				continue
			}
			if name == ".keep" {
				continue // mapfs directory markers
			}
			if matcher != nil && matcher.MatchesPath(rel) {
				continue
			}
			files = append(files, rel)
		}
		return nil
	}

	if err := walk(ws.Dir); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// gitignoreFor compiles .gitignore lines from the workspace and its
// ancestors, nearest last so it wins.
func (r *Resolver) gitignoreFor(ws *workspace.Workspace) *ignore.GitIgnore {
	var chain []*workspace.Workspace
	for w := ws; w != nil; w = w.Parent {
		chain = append([]*workspace.Workspace{w}, chain...)
	}

	var lines []string
	for _, w := range chain {
		data, err := r.fsys.ReadFile(filepath.Join(w.Dir, ".gitignore"))
		if err != nil {
			continue
		}
		lines = append(lines, strings.Split(string(data), "\n")...)
	}
	if len(lines) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(lines...)
}

// matchSet applies an ordered pattern list to the candidate files.
// Plain patterns add matches, "!" patterns subtract; later patterns
// override earlier ones. Files under dot directories only match
// patterns that name a dot segment themselves.
func matchSet(files []string, patterns []string) (map[string]struct{}, error) {
	matched := make(map[string]struct{})
	for _, pattern := range patterns {
		negated := strings.HasPrefix(pattern, "!")
		pattern = strings.TrimPrefix(pattern, "!")
		allowsDot := patternAllowsDot(pattern)
		for _, f := range files {
			if hasDotSegment(f) && !allowsDot {
				continue
			}
			ok, err := doublestar.Match(pattern, f)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", pattern, err)
			}
			if !ok {
				continue
			}
			if negated {
				delete(matched, f)
			} else {
				matched[f] = struct{}{}
			}
		}
	}
	return matched, nil
}

// hasDotSegment reports whether any directory segment of the relative
// path starts with a dot.
func hasDotSegment(file string) bool {
	segments := strings.Split(file, "/")
	for _, segment := range segments[:len(segments)-1] {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

// patternAllowsDot reports whether the pattern explicitly reaches into
// dot directories.
func patternAllowsDot(pattern string) bool {
	return strings.HasPrefix(pattern, ".") || strings.Contains(pattern, "/.")
}
