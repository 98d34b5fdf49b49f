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
package workspace_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"bennypowers.dev/deadwood/internal/mapfs"
	"bennypowers.dev/deadwood/workspace"
)

func monorepoFS() *mapfs.MapFileSystem {
	mfs := mapfs.New()
	mfs.AddFile("/repo/package.json", `{
		"name": "root",
		"workspaces": ["packages/*"],
		"devDependencies": {"eslint": "^9.0.0", "typescript": "^5.0.0"}
	}`, 0644)
	mfs.AddFile("/repo/packages/a/package.json", `{
		"name": "pkg-a",
		"dependencies": {"lit": "^3.0.0"}
	}`, 0644)
	mfs.AddFile("/repo/packages/b/package.json", `{
		"name": "pkg-b",
		"dependencies": {"pkg-a": "workspace:*"}
	}`, 0644)
	return mfs
}

func TestLoad(t *testing.T) {
	tree, err := workspace.Load(monorepoFS(), "/repo")
	if err != nil {
		t.Fatal(err)
	}

	if tree.Root.Name != "root" {
		t.Errorf("root name = %q", tree.Root.Name)
	}
	if len(tree.Root.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(tree.Root.Children))
	}

	// Deepest-first iteration order, ties broken by dir.
	var names []string
	for _, ws := range tree.All {
		names = append(names, ws.Name)
	}
	if diff := cmp.Diff([]string{"pkg-a", "pkg-b", "root"}, names); diff != "" {
		t.Errorf("iteration order mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadManifestParseError(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/repo/package.json", `{not json`, 0644)

	_, err := workspace.Load(mfs, "/repo")
	if !errors.Is(err, workspace.ErrManifestParse) {
		t.Errorf("expected ErrManifestParse, got %v", err)
	}
}

func TestOwner(t *testing.T) {
	tree, err := workspace.Load(monorepoFS(), "/repo")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path     string
		expected string
	}{
		{"/repo/src/index.ts", "root"},
		{"/repo/packages/a/src/main.ts", "pkg-a"},
		{"/repo/packages/b/index.ts", "pkg-b"},
	}
	for _, tt := range tests {
		owner := tree.Owner(tt.path)
		if owner == nil || owner.Name != tt.expected {
			t.Errorf("Owner(%q) = %v, want %s", tt.path, owner, tt.expected)
		}
	}

	if owner := tree.Owner("/elsewhere/x.ts"); owner != nil {
		t.Errorf("Owner outside tree = %v, want nil", owner)
	}
}

func TestVisibility(t *testing.T) {
	tree, err := workspace.Load(monorepoFS(), "/repo")
	if err != nil {
		t.Fatal(err)
	}
	a := tree.ByName("pkg-a")

	// Own dep and ancestor dep are visible; undeclared is not.
	if !a.Visible("lit") || !a.Visible("eslint") {
		t.Error("expected lit and eslint visible from pkg-a")
	}
	if a.Visible("react") {
		t.Error("react should not be visible")
	}
	if a.Declares("eslint") {
		t.Error("pkg-a does not declare eslint itself")
	}
	if got := a.DeclaringAncestor("eslint"); got == nil || got.Name != "root" {
		t.Errorf("DeclaringAncestor(eslint) = %v, want root", got)
	}
}

func TestTablesAttribution(t *testing.T) {
	tree, err := workspace.Load(monorepoFS(), "/repo")
	if err != nil {
		t.Fatal(err)
	}
	tables := workspace.NewTables(tree)
	a := tree.ByName("pkg-a")
	root := tree.Root

	// A descendant reference lands on the declaring ancestor: eslint
	// is declared in root, referenced from pkg-a.
	tables.AddFileRef(a, "eslint", "/repo/packages/a/x.ts", false)

	unusedRoot := tables.Unused(root, true)
	if diff := cmp.Diff([]string{"typescript"}, unusedRoot); diff != "" {
		t.Errorf("root unused mismatch (-want +got):\n%s", diff)
	}

	// lit declared in pkg-a, never referenced.
	if diff := cmp.Diff([]string{"lit"}, tables.Unused(a, true)); diff != "" {
		t.Errorf("pkg-a unused mismatch (-want +got):\n%s", diff)
	}
}

// A plugin firing in a child workspace keeps the dependency alive in
// the ancestor that declares it: root-declared eslint with an eslint
// config in pkg-a is not unused in root.
func TestTablesPluginAttributionReachesAncestor(t *testing.T) {
	tree, err := workspace.Load(monorepoFS(), "/repo")
	if err != nil {
		t.Fatal(err)
	}
	tables := workspace.NewTables(tree)

	tables.AddPluginRef(tree.ByName("pkg-a"), "eslint", "eslint")

	unused := tables.Unused(tree.Root, true)
	for _, dep := range unused {
		if dep == "eslint" {
			t.Errorf("eslint reported unused in root despite plugin attribution: %v", unused)
		}
	}
}

func TestTablesUndeclared(t *testing.T) {
	tree, err := workspace.Load(monorepoFS(), "/repo")
	if err != nil {
		t.Fatal(err)
	}
	tables := workspace.NewTables(tree)
	a := tree.ByName("pkg-a")

	tables.AddFileRef(a, "lodash", "/repo/packages/a/x.ts", false)

	undeclared := tables.Undeclared(a)
	if refs, ok := undeclared["lodash"]; !ok || len(refs) != 1 {
		t.Errorf("expected lodash undeclared with one ref, got %v", undeclared)
	}
	if len(tables.Undeclared(tree.Root)) != 0 {
		t.Errorf("root should have no undeclared refs")
	}
}

func TestTablesIgnoredAndTypeOnly(t *testing.T) {
	tree, err := workspace.Load(monorepoFS(), "/repo")
	if err != nil {
		t.Fatal(err)
	}
	tables := workspace.NewTables(tree)
	root := tree.Root

	tables.MarkIgnored(root, "typescript")
	// eslint referenced only through a type-only import.
	tables.AddFileRef(root, "eslint", "/repo/types.ts", true)

	// Type-only references count by default.
	if unused := tables.Unused(root, true); len(unused) != 0 {
		t.Errorf("unused with typeOnlyCounts = %v, want none", unused)
	}
	// With type-only references discounted, eslint is unused again.
	if diff := cmp.Diff([]string{"eslint"}, tables.Unused(root, false)); diff != "" {
		t.Errorf("unused without typeOnlyCounts mismatch (-want +got):\n%s", diff)
	}
}

func TestInstalledBins(t *testing.T) {
	mfs := monorepoFS()
	mfs.AddFile("/repo/node_modules/.bin/eslint", "", 0755)
	mfs.AddFile("/repo/node_modules/.bin/tsc", "", 0755)
	mfs.AddFile("/repo/packages/a/node_modules/.bin/lit-cli", "", 0755)

	tree, err := workspace.Load(mfs, "/repo")
	if err != nil {
		t.Fatal(err)
	}

	bins := tree.InstalledBins(mfs, tree.ByName("pkg-a"))
	for _, name := range []string{"eslint", "tsc", "lit-cli"} {
		if _, ok := bins[name]; !ok {
			t.Errorf("expected %s in installed bins", name)
		}
	}
	rootBins := tree.InstalledBins(mfs, tree.Root)
	if _, ok := rootBins["lit-cli"]; ok {
		t.Error("lit-cli should not be visible from the root workspace")
	}
}
