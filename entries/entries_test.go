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
package entries_test

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"bennypowers.dev/deadwood/config"
	"bennypowers.dev/deadwood/entries"
	"bennypowers.dev/deadwood/internal/mapfs"
	"bennypowers.dev/deadwood/workspace"
)

func projectFS() *mapfs.MapFileSystem {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	mfs.AddFile("/app/src/index.ts", "", 0644)
	mfs.AddFile("/app/src/util.ts", "", 0644)
	mfs.AddFile("/app/src/legacy.ts", "", 0644)
	mfs.AddFile("/app/scripts/build.ts", "", 0644)
	mfs.AddFile("/app/dist/index.js", "", 0644)
	mfs.AddFile("/app/.storybook/main.ts", "", 0644)
	mfs.AddFile("/app/node_modules/lit/index.js", "", 0644)
	return mfs
}

func loadWs(t *testing.T, mfs *mapfs.MapFileSystem) *workspace.Workspace {
	t.Helper()
	tree, err := workspace.Load(mfs, "/app")
	if err != nil {
		t.Fatal(err)
	}
	return tree.Root
}

func sorted(set map[string]struct{}) []string {
	var list []string
	for f := range set {
		list = append(list, f)
	}
	sort.Strings(list)
	return list
}

func TestResolveProjectAndEntry(t *testing.T) {
	mfs := projectFS()
	ws := loadWs(t, mfs)

	resolver := entries.NewResolver(mfs)
	set, err := resolver.Resolve(ws, config.Resolved{
		Entry:   []string{"src/index.ts"},
		Project: []string{"src/**/*.ts"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{
		"/app/src/index.ts",
		"/app/src/legacy.ts",
		"/app/src/util.ts",
	}, sorted(set.Project)); diff != "" {
		t.Errorf("project mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/app/src/index.ts"}, set.EntryList()); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveNegatedPatterns(t *testing.T) {
	mfs := projectFS()
	ws := loadWs(t, mfs)

	resolver := entries.NewResolver(mfs)
	set, err := resolver.Resolve(ws, config.Resolved{
		Entry:   []string{"src/index.ts"},
		Project: []string{"src/**/*.ts", "!src/legacy.ts"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := set.Project["/app/src/legacy.ts"]; ok {
		t.Error("negated pattern should subtract legacy.ts")
	}
}

func TestResolveEntryOutsideProjectIsAdded(t *testing.T) {
	mfs := projectFS()
	ws := loadWs(t, mfs)

	resolver := entries.NewResolver(mfs)
	set, err := resolver.Resolve(ws, config.Resolved{
		Entry:   []string{"scripts/build.ts"},
		Project: []string{"src/**/*.ts"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := set.Project["/app/scripts/build.ts"]; !ok {
		t.Error("entry outside project must be added to project")
	}
}

func TestResolveIgnoreAppliedLast(t *testing.T) {
	mfs := projectFS()
	ws := loadWs(t, mfs)

	resolver := entries.NewResolver(mfs)
	set, err := resolver.Resolve(ws, config.Resolved{
		Entry:   []string{"src/index.ts"},
		Project: []string{"src/**/*.ts"},
		Ignore:  []string{"src/legacy.ts"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Ignored files stay in the project set but are flagged.
	if _, ok := set.Project["/app/src/legacy.ts"]; !ok {
		t.Error("ignored file should remain a project file")
	}
	if _, ok := set.Ignored["/app/src/legacy.ts"]; !ok {
		t.Error("legacy.ts should be marked ignored")
	}
}

func TestResolveDotDirsNeedExplicitPatterns(t *testing.T) {
	mfs := projectFS()
	ws := loadWs(t, mfs)

	resolver := entries.NewResolver(mfs)
	set, err := resolver.Resolve(ws, config.Resolved{
		Entry:   []string{"src/index.ts"},
		Project: []string{"**/*.ts"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := set.Project["/app/.storybook/main.ts"]; ok {
		t.Error("default patterns should not reach into dot directories")
	}

	set, err = resolver.Resolve(ws, config.Resolved{
		Entry:   []string{"src/index.ts"},
		Project: []string{"**/*.ts", ".storybook/**/*.ts"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := set.Project["/app/.storybook/main.ts"]; !ok {
		t.Error("explicit dot pattern should match")
	}
}

func TestResolveExtraEntriesUnion(t *testing.T) {
	mfs := projectFS()
	ws := loadWs(t, mfs)

	resolver := entries.NewResolver(mfs)
	set, err := resolver.Resolve(ws, config.Resolved{
		Entry:   []string{"src/index.ts"},
		Project: []string{"src/**/*.ts"},
	}, []string{"dist/index.js"})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := set.Entry["/app/dist/index.js"]; !ok {
		t.Error("manifest entry field should seed the entry set")
	}
	if _, ok := set.Project["/app/dist/index.js"]; !ok {
		t.Error("entry file must also join the project set")
	}
}

func TestGitignoreFiltersWalk(t *testing.T) {
	mfs := projectFS()
	mfs.AddFile("/app/.gitignore", "dist/\n", 0644)
	ws := loadWs(t, mfs)

	resolver := entries.NewResolver(mfs)
	set, err := resolver.Resolve(ws, config.Resolved{
		Entry:   []string{"src/index.ts"},
		Project: []string{"**/*.{ts,js}"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := set.Project["/app/dist/index.js"]; ok {
		t.Error("gitignored build output should not be a project file")
	}
}
