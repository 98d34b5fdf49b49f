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
package issues

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"bennypowers.dev/deadwood/config"
	"bennypowers.dev/deadwood/entries"
	"bennypowers.dev/deadwood/extract"
	"bennypowers.dev/deadwood/packagejson"
	"bennypowers.dev/deadwood/traverse"
	"bennypowers.dev/deadwood/workspace"
)

// binaryAllowlist holds OS-provided and package-manager binaries that
// are never reported unlisted.
var binaryAllowlist = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "env": true, "cd": true,
	"echo": true, "exit": true, "true": true, "false": true,
	"test": true, "rm": true, "cp": true, "mv": true, "mkdir": true,
	"touch": true, "cat": true, "grep": true, "find": true,
	"git": true, "node": true, "npm": true, "npx": true, "yarn": true,
	"pnpm": true, "bun": true, "corepack": true, "deno": true,
	"dotenv": true, "cross-env": true,
}

// Context gathers everything the classifier queries.
type Context struct {
	RootDir string
	Tree    *workspace.Tree
	Graph   *traverse.Graph
	Outcome *traverse.Outcome
	Tables  *workspace.Tables
	Config  *config.Config
	// FileSets by workspace dir.
	FileSets map[string]*entries.FileSet
	// Binaries referenced from scripts per workspace dir.
	Binaries map[string][]string
	// InstalledBins per workspace dir.
	InstalledBins map[string]map[string]struct{}
	// IgnoreBinaries/IgnoreDependencies per workspace dir (resolved
	// config).
	Resolved map[string]config.Resolved
}

// Classify derives the report from the traversal output.
func Classify(ctx Context) *Report {
	c := &classifier{Context: ctx, report: &Report{}}

	c.unusedFiles()
	c.dependencies()
	c.unlisted()
	c.unresolved()
	c.binaries()
	c.exports()

	c.report.Diagnostics = append(c.report.Diagnostics, ctx.Outcome.Diagnostics...)

	// Dynamic specifiers contribute no edges and no suppression; the
	// report still explains why a matching file may appear unused.
	var dynamicFiles []string
	for file := range ctx.Outcome.DynamicSpecifiers {
		dynamicFiles = append(dynamicFiles, file)
	}
	sort.Strings(dynamicFiles)
	for _, file := range dynamicFiles {
		for _, specifier := range ctx.Outcome.DynamicSpecifiers[file] {
			c.report.Diagnostics = append(c.report.Diagnostics,
				fmt.Sprintf("dynamic import with non-literal specifier %s in %s", specifier, c.rel(file)))
		}
	}

	c.report.finish()
	return c.report
}

type classifier struct {
	Context
	report *Report
}

func (c *classifier) add(issue Issue) {
	if !c.Config.Enabled(issue.Kind) {
		return
	}
	c.report.Issues = append(c.report.Issues, issue)
}

func (c *classifier) rel(path string) string {
	rel, err := filepath.Rel(c.RootDir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// wsOrder iterates workspaces ancestors-first for stable output.
func (c *classifier) wsOrder() []*workspace.Workspace {
	ordered := append([]*workspace.Workspace(nil), c.Tree.All...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Depth != ordered[j].Depth {
			return ordered[i].Depth < ordered[j].Depth
		}
		return ordered[i].Dir < ordered[j].Dir
	})
	return ordered
}

// unusedFiles reports project files outside the reachable set.
// Ignored files are excluded from reporting; entry files are never
// unused by definition.
func (c *classifier) unusedFiles() {
	for _, ws := range c.wsOrder() {
		set := c.FileSets[ws.Dir]
		if set == nil {
			continue
		}
		var paths []string
		for path := range set.Project {
			paths = append(paths, path)
		}
		sort.Strings(paths)

		for _, path := range paths {
			if _, ignored := set.Ignored[path]; ignored {
				continue
			}
			if _, entry := set.Entry[path]; entry {
				continue
			}
			node := c.Graph.Node(path)
			if node != nil && node.Reachable() {
				continue
			}
			c.add(Issue{
				Workspace: ws.Name,
				File:      c.rel(path),
				Kind:      config.KindFiles,
				Severity:  SeverityError,
			})
		}
	}
}

// dependencies reports declared deps with empty attribution.
func (c *classifier) dependencies() {
	typeOnlyCounts := !c.Config.IgnoreTypeOnlyDependencies

	for _, ws := range c.wsOrder() {
		table := c.Tables.For(ws)
		for _, dep := range c.Tables.Unused(ws, typeOnlyCounts) {
			if c.depIgnored(ws, dep) {
				continue
			}
			if c.typesPackageCovered(table, dep) {
				continue
			}
			// A dependency naming a sibling workspace is an internal
			// link, not an installable package.
			if c.Tree.ByName(dep) != nil {
				continue
			}
			c.add(Issue{
				Workspace: ws.Name,
				File:      c.rel(filepath.Join(ws.Dir, "package.json")),
				Symbol:    dep,
				Kind:      config.KindDependencies,
				Severity:  SeverityError,
			})
		}
	}
}

// typesPackageCovered suppresses @types/x when x itself is used.
func (c *classifier) typesPackageCovered(table *workspace.Table, dep string) bool {
	if !strings.HasPrefix(dep, "@types/") {
		return false
	}
	base := strings.TrimPrefix(dep, "@types/")
	if base == "node" {
		return true
	}
	// Scoped packages encode as @types/scope__name.
	if strings.Contains(base, "__") {
		base = "@" + strings.Replace(base, "__", "/", 1)
	}
	if rec, ok := table.Records[base]; ok && rec.Used() {
		return true
	}
	return false
}

func (c *classifier) depIgnored(ws *workspace.Workspace, dep string) bool {
	resolved, ok := c.Resolved[ws.Dir]
	if !ok {
		return false
	}
	for _, pattern := range resolved.IgnoreDependencies {
		if ok, _ := doublestar.Match(pattern, dep); ok {
			return true
		}
	}
	return false
}

// unlisted reports external packages referenced without a visible
// declaration: attributed-but-undeclared table records plus bare
// specifiers that resolved nowhere.
func (c *classifier) unlisted() {
	type key struct{ wsDir, dep string }
	seen := make(map[key]bool)

	for _, ws := range c.wsOrder() {
		undeclared := c.Tables.Undeclared(ws)
		deps := make([]string, 0, len(undeclared))
		for dep := range undeclared {
			deps = append(deps, dep)
		}
		sort.Strings(deps)

		for _, dep := range deps {
			if c.depIgnored(ws, dep) || c.Tree.ByName(dep) != nil {
				continue
			}
			seen[key{ws.Dir, dep}] = true
			file := c.rel(filepath.Join(ws.Dir, "package.json"))
			if refs := undeclared[dep]; len(refs) > 0 {
				file = c.rel(refs[0])
			}
			c.add(Issue{
				Workspace: ws.Name,
				File:      file,
				Symbol:    dep,
				Kind:      config.KindUnlisted,
				Severity:  SeverityError,
			})
		}
	}

	for _, unresolved := range c.Outcome.Unresolved {
		if !unresolved.Bare {
			continue
		}
		ws := c.Tree.Owner(unresolved.File)
		if ws == nil {
			ws = c.Tree.Root
		}
		dep := packagejson.PackageName(unresolved.Specifier)
		if seen[key{ws.Dir, dep}] || c.depIgnored(ws, dep) || c.Tree.ByName(dep) != nil {
			continue
		}
		seen[key{ws.Dir, dep}] = true
		c.add(Issue{
			Workspace: ws.Name,
			File:      c.rel(unresolved.File),
			Symbol:    dep,
			Kind:      config.KindUnlisted,
			Severity:  SeverityError,
			Line:      unresolved.Line,
		})
	}
}

// unresolved reports broken relative imports.
func (c *classifier) unresolved() {
	type key struct{ file, specifier string }
	seen := make(map[key]bool)

	for _, unresolved := range c.Outcome.Unresolved {
		if unresolved.Bare {
			continue
		}
		if seen[key{unresolved.File, unresolved.Specifier}] {
			continue
		}
		seen[key{unresolved.File, unresolved.Specifier}] = true
		ws := c.Tree.Owner(unresolved.File)
		name := ""
		if ws != nil {
			name = ws.Name
		}
		c.add(Issue{
			Workspace: name,
			File:      c.rel(unresolved.File),
			Symbol:    unresolved.Specifier,
			Kind:      config.KindUnresolved,
			Severity:  SeverityError,
			Line:      unresolved.Line,
		})
	}
}

// binaries reports script binaries that no installed package provides.
func (c *classifier) binaries() {
	for _, ws := range c.wsOrder() {
		installed := c.InstalledBins[ws.Dir]
		referenced := append([]string(nil), c.Binaries[ws.Dir]...)
		sort.Strings(referenced)

		seen := make(map[string]bool)
		for _, binary := range referenced {
			if seen[binary] || binaryAllowlist[binary] {
				continue
			}
			seen[binary] = true
			if _, ok := installed[binary]; ok {
				continue
			}
			if c.binaryIgnored(ws, binary) {
				continue
			}
			c.add(Issue{
				Workspace: ws.Name,
				File:      c.rel(filepath.Join(ws.Dir, "package.json")),
				Symbol:    binary,
				Kind:      config.KindBinaries,
				Severity:  SeverityError,
			})
		}
	}
}

func (c *classifier) binaryIgnored(ws *workspace.Workspace, binary string) bool {
	resolved, ok := c.Resolved[ws.Dir]
	if !ok {
		return false
	}
	for _, pattern := range resolved.IgnoreBinaries {
		if ok, _ := doublestar.Match(pattern, binary); ok {
			return true
		}
	}
	return false
}

// exports reports unused exports, exported types, and class/enum
// members of reachable project files.
func (c *classifier) exports() {
	for _, ws := range c.wsOrder() {
		set := c.FileSets[ws.Dir]
		if set == nil {
			continue
		}
		var paths []string
		for path := range set.Project {
			paths = append(paths, path)
		}
		sort.Strings(paths)

		for _, path := range paths {
			if _, ignored := set.Ignored[path]; ignored {
				continue
			}
			node := c.Graph.Node(path)
			if node == nil || !node.Reachable() || node.Record == nil {
				continue
			}
			_, isEntry := set.Entry[path]
			if isEntry && !c.Config.IncludeEntryExports {
				continue
			}
			c.fileExports(ws, node)
		}
	}
}

func (c *classifier) fileExports(ws *workspace.Workspace, node *traverse.FileNode) {
	for _, export := range node.Record.Exports {
		if c.exportSuppressed(export) {
			continue
		}

		switch export.Kind {
		case extract.KindClassMember:
			if !c.Config.IncludeClassMembers {
				continue
			}
			if c.Graph.PropertyReferenced(export.Name) {
				continue
			}
			c.add(Issue{
				Workspace: ws.Name,
				File:      c.rel(node.Path),
				Symbol:    export.Name,
				Parent:    export.Parent,
				Kind:      config.KindClassMembers,
				Severity:  SeverityWarn,
				Line:      export.Line,
			})

		case extract.KindEnumMember:
			if !c.Config.IncludeEnumMembers {
				continue
			}
			if c.Graph.PropertyReferenced(export.Name) {
				continue
			}
			c.add(Issue{
				Workspace: ws.Name,
				File:      c.rel(node.Path),
				Symbol:    export.Name,
				Parent:    export.Parent,
				Kind:      config.KindEnumMembers,
				Severity:  SeverityWarn,
				Line:      export.Line,
			})

		default:
			if c.Graph.Referenced(node.ID, export.Name) {
				continue
			}
			if c.Config.IgnoreExportsUsedInFile && c.Graph.SelfReferenced(node.ID, export.Name) {
				continue
			}
			kind := config.KindExports
			if export.Kind == extract.KindType {
				kind = config.KindTypes
			}
			c.add(Issue{
				Workspace: ws.Name,
				File:      c.rel(node.Path),
				Symbol:    export.Name,
				Kind:      kind,
				Severity:  SeverityWarn,
				Line:      export.Line,
			})
		}
	}
}

// exportSuppressed applies JSDoc tag suppression: @public and any
// configured ignore tags keep an export out of the report.
func (c *classifier) exportSuppressed(export extract.Export) bool {
	if export.HasTag("public") || export.HasTag("alias") {
		return true
	}
	for _, tag := range c.Config.IgnoreExportTags {
		if export.HasTag(strings.TrimPrefix(tag, "@")) {
			return true
		}
	}
	return false
}
