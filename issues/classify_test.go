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
package issues_test

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"bennypowers.dev/deadwood/config"
	"bennypowers.dev/deadwood/entries"
	"bennypowers.dev/deadwood/extract"
	"bennypowers.dev/deadwood/internal/mapfs"
	"bennypowers.dev/deadwood/issues"
	"bennypowers.dev/deadwood/parse"
	"bennypowers.dev/deadwood/plugins"
	"bennypowers.dev/deadwood/resolve"
	"bennypowers.dev/deadwood/testutil"
	"bennypowers.dev/deadwood/traverse"
	"bennypowers.dev/deadwood/workspace"
)

// analyze runs the full pipeline over an in-memory tree rooted at
// /app, mirroring the scan command's wiring.
func analyze(t *testing.T, mfs *mapfs.MapFileSystem, cfg *config.Config) *issues.Report {
	t.Helper()

	tree, err := workspace.Load(mfs, "/app")
	if err != nil {
		t.Fatal(err)
	}
	tables := workspace.NewTables(tree)
	resolver := resolve.New(mfs, tree, cfg.Paths)
	parser := parse.NewParser(mfs)
	entryResolver := entries.NewResolver(mfs)

	fileSets := make(map[string]*entries.FileSet)
	resolved := make(map[string]config.Resolved)
	for _, ws := range tree.All {
		wsCfg := cfg.ForWorkspace(ws.RelDir("/app"))
		resolved[ws.Dir] = wsCfg
		for dep := range ws.Deps {
			for _, pattern := range wsCfg.IgnoreDependencies {
				if pattern == dep {
					tables.MarkIgnored(ws, dep)
				}
			}
		}
		set, err := entryResolver.Resolve(ws, wsCfg, ws.Manifest.EntryFields(nil))
		if err != nil {
			t.Fatal(err)
		}
		fileSets[ws.Dir] = set
	}

	engine := traverse.New(tree, resolver, parser, tables, traverse.Options{
		Extract: extract.Options{
			ClassMembers: cfg.IncludeClassMembers,
			EnumMembers:  cfg.IncludeEnumMembers,
		},
	})
	sets := make([]*entries.FileSet, 0, len(fileSets))
	for _, set := range fileSets {
		sets = append(sets, set)
	}
	graph, outcome, err := engine.Run(context.Background(), sets)
	if err != nil {
		t.Fatal(err)
	}

	return issues.Classify(issues.Context{
		RootDir:       "/app",
		Tree:          tree,
		Graph:         graph,
		Outcome:       outcome,
		Tables:        tables,
		Config:        cfg,
		FileSets:      fileSets,
		Binaries:      map[string][]string{},
		InstalledBins: map[string]map[string]struct{}{},
		Resolved:      resolved,
	})
}

func kindIssues(report *issues.Report, kind config.IssueKind) []issues.Issue {
	var filtered []issues.Issue
	for _, issue := range report.Issues {
		if issue.Kind == kind {
			filtered = append(filtered, issue)
		}
	}
	return filtered
}

func hasIssue(report *issues.Report, kind config.IssueKind, symbol string) bool {
	for _, issue := range kindIssues(report, kind) {
		if issue.Symbol == symbol {
			return true
		}
	}
	return false
}

// Transitively installed packages that are imported must be reported
// unlisted, while the unreferenced declared dep is unused.
func TestTransitiveUnlisted(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app", "dependencies": {"a": "^1.0.0"}}`, 0644)
	mfs.AddFile("/app/node_modules/a/package.json", `{"name": "a"}`, 0644)
	mfs.AddFile("/app/node_modules/b/package.json", `{"name": "b"}`, 0644)
	mfs.AddFile("/app/src/index.ts", `import 'b';`, 0644)

	report := analyze(t, mfs, &config.Config{Entry: []string{"src/index.ts"}})

	if !hasIssue(report, config.KindUnlisted, "b") {
		t.Errorf("expected unlisted b, got %+v", report.Issues)
	}
	if !hasIssue(report, config.KindDependencies, "a") {
		t.Errorf("expected unused a, got %+v", report.Issues)
	}
}

// Whole-namespace iteration suppresses all unused-export reports for
// the module.
func TestNamespaceIteration(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	mfs.AddFile("/app/index.ts", `
import * as F from './fruits.js';
Object.values(F);
`, 0644)
	mfs.AddFile("/app/fruits.ts", `
export const apple = 1;
export const orange = 2;
`, 0644)

	report := analyze(t, mfs, &config.Config{Entry: []string{"index.ts"}})

	if got := kindIssues(report, config.KindExports); len(got) != 0 {
		t.Errorf("expected no unused exports, got %+v", got)
	}
}

// A dynamic specifier built from string concatenation resolves to
// nothing and must not suppress the unused-file report.
func TestDynamicSpecifierDoesNotSuppress(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	mfs.AddFile("/app/index.ts", `
const name = 'a';
const p = import('./entry-' + name + '.ts');
`, 0644)
	mfs.AddFile("/app/entry-a.ts", `export const a = 1;`, 0644)

	report := analyze(t, mfs, &config.Config{Entry: []string{"index.ts"}})

	found := false
	for _, issue := range kindIssues(report, config.KindFiles) {
		if issue.File == "entry-a.ts" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected entry-a.ts reported unused, got %+v", report.Issues)
	}
}

func TestUnusedFiles(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	mfs.AddFile("/app/index.ts", `import './used.js';`, 0644)
	mfs.AddFile("/app/used.ts", `export {};`, 0644)
	mfs.AddFile("/app/dead.ts", `export const d = 1;`, 0644)
	mfs.AddFile("/app/ignored.ts", `export const i = 1;`, 0644)

	report := analyze(t, mfs, &config.Config{
		Entry:  []string{"index.ts"},
		Ignore: []string{"ignored.ts"},
	})

	files := kindIssues(report, config.KindFiles)
	if len(files) != 1 || files[0].File != "dead.ts" {
		t.Errorf("unused files = %+v, want only dead.ts", files)
	}
}

func TestUnusedExports(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	mfs.AddFile("/app/index.ts", `import { used } from './lib.js'; used();`, 0644)
	mfs.AddFile("/app/lib.ts", `
export const used = () => {};
export const unused = () => {};
/** @public */
export const api = () => {};
`, 0644)

	report := analyze(t, mfs, &config.Config{Entry: []string{"index.ts"}})

	exports := kindIssues(report, config.KindExports)
	if len(exports) != 1 || exports[0].Symbol != "unused" {
		t.Errorf("unused exports = %+v, want only unused", exports)
	}
}

func TestIgnoreExportsUsedInFile(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	mfs.AddFile("/app/index.ts", `import './lib.js';`, 0644)
	mfs.AddFile("/app/lib.ts", `
export const helper = () => {};
export const runner = () => helper();
runner();
`, 0644)

	report := analyze(t, mfs, &config.Config{Entry: []string{"index.ts"}})
	if !hasIssue(report, config.KindExports, "helper") {
		t.Errorf("helper should be reported without the option, got %+v", report.Issues)
	}

	report = analyze(t, mfs, &config.Config{
		Entry:                   []string{"index.ts"},
		IgnoreExportsUsedInFile: true,
	})
	if hasIssue(report, config.KindExports, "helper") {
		t.Errorf("in-file use should suppress helper, got %+v", report.Issues)
	}
}

func TestEntryExportsSuppressed(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	mfs.AddFile("/app/index.ts", `export const publicAPI = 1;`, 0644)

	report := analyze(t, mfs, &config.Config{Entry: []string{"index.ts"}})
	if got := kindIssues(report, config.KindExports); len(got) != 0 {
		t.Errorf("entry exports must be suppressed by default, got %+v", got)
	}

	report = analyze(t, mfs, &config.Config{Entry: []string{"index.ts"}, IncludeEntryExports: true})
	if !hasIssue(report, config.KindExports, "publicAPI") {
		t.Errorf("includeEntryExports should report publicAPI, got %+v", report.Issues)
	}
}

func TestClassMembersGated(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	mfs.AddFile("/app/index.ts", `
import { C } from './c.js';
const c = new C();
c.used();
`, 0644)
	mfs.AddFile("/app/c.ts", `
export class C {
	used() {}
	unused() {}
}
`, 0644)

	report := analyze(t, mfs, &config.Config{Entry: []string{"index.ts"}})
	if got := kindIssues(report, config.KindClassMembers); len(got) != 0 {
		t.Errorf("members reported without the mode flag: %+v", got)
	}

	report = analyze(t, mfs, &config.Config{Entry: []string{"index.ts"}, IncludeClassMembers: true})
	members := kindIssues(report, config.KindClassMembers)
	if len(members) != 1 || members[0].Symbol != "unused" || members[0].Parent != "C" {
		t.Errorf("class members = %+v, want C.unused", members)
	}
}

func TestIgnoreDependencies(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app", "dependencies": {"never-used": "^1.0.0"}}`, 0644)
	mfs.AddFile("/app/index.ts", `export {};`, 0644)

	report := analyze(t, mfs, &config.Config{
		Entry:              []string{"index.ts"},
		IgnoreDependencies: []string{"never-used"},
	})
	if got := kindIssues(report, config.KindDependencies); len(got) != 0 {
		t.Errorf("ignored dependency reported: %+v", got)
	}
}

func TestUnresolvedImports(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	mfs.AddFile("/app/index.ts", `import './nope.js';`, 0644)

	report := analyze(t, mfs, &config.Config{Entry: []string{"index.ts"}})
	if !hasIssue(report, config.KindUnresolved, "./nope.js") {
		t.Errorf("expected unresolved ./nope.js, got %+v", report.Issues)
	}
}

// Determinism: identical inputs produce byte-identical reports.
func TestReportDeterministic(t *testing.T) {
	build := func() []byte {
		mfs := mapfs.New()
		mfs.AddFile("/app/package.json", `{"name": "app", "dependencies": {"x": "1", "y": "1"}}`, 0644)
		mfs.AddFile("/app/index.ts", `import './a.js'; import './b.js';`, 0644)
		mfs.AddFile("/app/a.ts", `export const a = 1;`, 0644)
		mfs.AddFile("/app/b.ts", `export const b = 1;`, 0644)
		mfs.AddFile("/app/dead1.ts", ``, 0644)
		mfs.AddFile("/app/dead2.ts", ``, 0644)

		report := analyze(t, mfs, &config.Config{Entry: []string{"index.ts"}})
		data, err := json.Marshal(report)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	first := build()
	for i := 0; i < 3; i++ {
		if string(build()) != string(first) {
			t.Fatal("report not byte-identical across runs")
		}
	}
}

// Monotonicity: adding an entry pattern never increases unused files
// or unused dependencies.
func TestMonotonicity(t *testing.T) {
	build := func(entry ...string) *issues.Report {
		mfs := mapfs.New()
		mfs.AddFile("/app/package.json", `{"name": "app", "dependencies": {"lit": "1"}}`, 0644)
		mfs.AddFile("/app/node_modules/lit/package.json", `{"name": "lit"}`, 0644)
		mfs.AddFile("/app/index.ts", `export {};`, 0644)
		mfs.AddFile("/app/extra.ts", `import 'lit';`, 0644)
		return analyze(t, mfs, &config.Config{Entry: entry})
	}

	base := build("index.ts")
	wider := build("index.ts", "extra.ts")

	if len(kindIssues(wider, config.KindFiles)) > len(kindIssues(base, config.KindFiles)) {
		t.Error("unused files grew after adding an entry")
	}
	if len(kindIssues(wider, config.KindDependencies)) > len(kindIssues(base, config.KindDependencies)) {
		t.Error("unused dependencies grew after adding an entry")
	}
}

// Scenario: root declares eslint in devDependencies and a child
// workspace carries the eslint config. The plugin attribution must
// keep eslint out of the root's unused dependencies.
func TestMonorepoEslintAttribution(t *testing.T) {
	mfs := testutil.NewFixtureFS(t, "monorepo", "/app")

	tree, err := workspace.Load(mfs, "/app")
	if err != nil {
		t.Fatal(err)
	}
	tables := workspace.NewTables(tree)
	resolver := resolve.New(mfs, tree, nil)
	parser := parse.NewParser(mfs)
	entryResolver := entries.NewResolver(mfs)
	registry := plugins.Default()
	cfg := &config.Config{}

	fileSets := make(map[string]*entries.FileSet)
	resolved := make(map[string]config.Resolved)
	for _, ws := range tree.All {
		wsCfg := cfg.ForWorkspace(ws.RelDir("/app"))
		resolved[ws.Dir] = wsCfg

		detections, err := registry.Detect(mfs, ws, nil, cfg)
		if err != nil {
			t.Fatal(err)
		}
		_, attributions, err := registry.Run(mfs, ws, detections)
		if err != nil {
			t.Fatal(err)
		}
		deps := make([]string, 0, len(attributions))
		for dep := range attributions {
			deps = append(deps, dep)
		}
		sort.Strings(deps)
		for _, dep := range deps {
			for _, pluginName := range attributions[dep] {
				tables.AddPluginRef(ws, dep, pluginName)
			}
		}

		set, err := entryResolver.Resolve(ws, wsCfg, ws.Manifest.EntryFields(nil))
		if err != nil {
			t.Fatal(err)
		}
		fileSets[ws.Dir] = set
	}

	engine := traverse.New(tree, resolver, parser, tables, traverse.Options{})
	sets := make([]*entries.FileSet, 0, len(fileSets))
	for _, set := range fileSets {
		sets = append(sets, set)
	}
	graph, outcome, err := engine.Run(context.Background(), sets)
	if err != nil {
		t.Fatal(err)
	}

	report := issues.Classify(issues.Context{
		RootDir:       "/app",
		Tree:          tree,
		Graph:         graph,
		Outcome:       outcome,
		Tables:        tables,
		Config:        cfg,
		FileSets:      fileSets,
		Binaries:      map[string][]string{},
		InstalledBins: map[string]map[string]struct{}{},
		Resolved:      resolved,
	})

	if hasIssue(report, config.KindDependencies, "eslint") {
		t.Errorf("eslint must not be unused in root, got %+v", report.Issues)
	}
}

func TestSummaryCountsEveryKind(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	mfs.AddFile("/app/index.ts", `export {};`, 0644)

	report := analyze(t, mfs, &config.Config{Entry: []string{"index.ts"}})
	for _, kind := range config.AllKinds {
		if _, ok := report.Summary[kind]; !ok {
			t.Errorf("summary missing kind %s", kind)
		}
	}
}
