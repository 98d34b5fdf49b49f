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
package resolve

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"bennypowers.dev/deadwood/fs"
)

// aliasPattern is one tsconfig paths entry.
type aliasPattern struct {
	// pattern is the alias, possibly containing a single "*".
	pattern string
	// targets are substitution paths relative to baseDir, in order.
	targets []string
}

// PathMap holds the compiled path-mapping aliases of one workspace.
type PathMap struct {
	baseDir  string
	patterns []aliasPattern
}

// LoadPathMap reads compilerOptions.baseUrl and compilerOptions.paths
// from the workspace's tsconfig.json, following relative extends
// chains. Missing or unparsable tsconfigs yield an empty map.
func LoadPathMap(fsys fs.FileSystem, wsDir string) *PathMap {
	pm := &PathMap{baseDir: wsDir}

	baseURL, paths := readTsconfig(fsys, filepath.Join(wsDir, "tsconfig.json"), 0)
	if baseURL != "" {
		pm.baseDir = filepath.Join(wsDir, baseURL)
	}
	for _, pattern := range sortedKeys(paths) {
		pm.patterns = append(pm.patterns, aliasPattern{pattern: pattern, targets: paths[pattern]})
	}
	return pm
}

// readTsconfig extracts baseUrl and paths, recursing into a relative
// extends chain. Nearer values win over extended ones.
func readTsconfig(fsys fs.FileSystem, path string, depth int) (string, map[string][]string) {
	if depth > 8 { // extends cycle guard
		return "", nil
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return "", nil
	}
	doc := stripJSONComments(string(data))
	if !gjson.Valid(doc) {
		return "", nil
	}

	baseURL := ""
	paths := make(map[string][]string)

	if extends := gjson.Get(doc, "extends"); extends.Exists() {
		ref := extends.String()
		if strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "../") {
			if filepath.Ext(ref) == "" {
				ref += ".json"
			}
			parentURL, parentPaths := readTsconfig(fsys, filepath.Join(filepath.Dir(path), ref), depth+1)
			baseURL = parentURL
			for k, v := range parentPaths {
				paths[k] = v
			}
		}
	}

	if v := gjson.Get(doc, "compilerOptions.baseUrl"); v.Exists() {
		baseURL = v.String()
	}
	if v := gjson.Get(doc, "compilerOptions.paths"); v.IsObject() {
		v.ForEach(func(key, value gjson.Result) bool {
			var targets []string
			for _, t := range value.Array() {
				targets = append(targets, t.String())
			}
			paths[key.String()] = targets
			return true
		})
	}

	return baseURL, paths
}

// Merge layers configuration-level alias patterns under the tsconfig
// ones; tsconfig patterns keep priority.
func (pm *PathMap) Merge(extra map[string][]string, rootDir string) {
	for _, pattern := range sortedKeys(extra) {
		found := false
		for _, existing := range pm.patterns {
			if existing.pattern == pattern {
				found = true
				break
			}
		}
		if found {
			continue
		}
		var targets []string
		for _, t := range extra[pattern] {
			if !filepath.IsAbs(t) {
				t = filepath.Join(rootDir, t)
			}
			targets = append(targets, t)
		}
		pm.patterns = append(pm.patterns, aliasPattern{pattern: pattern, targets: targets})
	}
}

// Candidates returns candidate absolute paths for a specifier, most
// specific alias first. TS semantics: exact patterns beat wildcard
// ones, longer wildcard prefixes beat shorter.
func (pm *PathMap) Candidates(specifier string) []string {
	var candidates []string

	type match struct {
		prefixLen int
		exact     bool
		targets   []string
		captured  string
	}
	var matches []match

	for _, alias := range pm.patterns {
		starIdx := strings.Index(alias.pattern, "*")
		if starIdx < 0 {
			if alias.pattern == specifier {
				matches = append(matches, match{prefixLen: len(alias.pattern), exact: true, targets: alias.targets})
			}
			continue
		}
		prefix, suffix := alias.pattern[:starIdx], alias.pattern[starIdx+1:]
		if !strings.HasPrefix(specifier, prefix) || !strings.HasSuffix(specifier, suffix) {
			continue
		}
		if len(specifier) < len(prefix)+len(suffix) {
			continue
		}
		matches = append(matches, match{
			prefixLen: len(prefix),
			targets:   alias.targets,
			captured:  specifier[len(prefix) : len(specifier)-len(suffix)],
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].exact != matches[j].exact {
			return matches[i].exact
		}
		return matches[i].prefixLen > matches[j].prefixLen
	})

	for _, m := range matches {
		for _, target := range m.targets {
			resolved := strings.Replace(target, "*", m.captured, 1)
			if !filepath.IsAbs(resolved) {
				resolved = filepath.Join(pm.baseDir, resolved)
			}
			candidates = append(candidates, resolved)
		}
	}
	return candidates
}

// stripJSONComments removes // and /* */ comments so tsconfig's JSONC
// dialect parses. String contents are preserved.
func stripJSONComments(doc string) string {
	var out strings.Builder
	out.Grow(len(doc))

	inString := false
	inLine := false
	inBlock := false
	for i := 0; i < len(doc); i++ {
		c := doc[i]
		switch {
		case inLine:
			if c == '\n' {
				inLine = false
				out.WriteByte(c)
			}
		case inBlock:
			if c == '*' && i+1 < len(doc) && doc[i+1] == '/' {
				inBlock = false
				i++
			}
		case inString:
			out.WriteByte(c)
			if c == '\\' && i+1 < len(doc) {
				out.WriteByte(doc[i+1])
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
			out.WriteByte(c)
		case c == '/' && i+1 < len(doc) && doc[i+1] == '/':
			inLine = true
			i++
		case c == '/' && i+1 < len(doc) && doc[i+1] == '*':
			inBlock = true
			i++
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
