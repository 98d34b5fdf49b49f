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
package resolve_test

import (
	"testing"

	"bennypowers.dev/deadwood/internal/mapfs"
	"bennypowers.dev/deadwood/resolve"
	"bennypowers.dev/deadwood/workspace"
)

func resolverFS() *mapfs.MapFileSystem {
	mfs := mapfs.New()
	mfs.AddFile("/repo/package.json", `{
		"name": "root",
		"workspaces": ["packages/*"],
		"dependencies": {"declared-only": "^1.0.0"}
	}`, 0644)
	mfs.AddFile("/repo/src/index.ts", "", 0644)
	mfs.AddFile("/repo/src/util.ts", "", 0644)
	mfs.AddFile("/repo/src/emitted.ts", "", 0644)
	mfs.AddFile("/repo/src/lib/index.ts", "", 0644)
	mfs.AddFile("/repo/node_modules/lit/package.json", `{"name": "lit", "main": "index.js"}`, 0644)
	mfs.AddFile("/repo/node_modules/lit/index.js", "", 0644)
	mfs.AddFile("/repo/packages/ui/package.json", `{
		"name": "@repo/ui",
		"exports": {".": "./src/index.ts", "./*": "./src/*.ts"}
	}`, 0644)
	mfs.AddFile("/repo/packages/ui/src/index.ts", "", 0644)
	mfs.AddFile("/repo/packages/ui/src/button.ts", "", 0644)
	return mfs
}

func newResolver(t *testing.T, mfs *mapfs.MapFileSystem, paths map[string][]string) *resolve.Resolver {
	t.Helper()
	tree, err := workspace.Load(mfs, "/repo")
	if err != nil {
		t.Fatal(err)
	}
	return resolve.New(mfs, tree, paths)
}

func TestResolveRelative(t *testing.T) {
	r := newResolver(t, resolverFS(), nil)

	tests := []struct {
		name      string
		specifier string
		expected  string
	}{
		{"extensionless sibling", "./util", "/repo/src/util.ts"},
		{"explicit extension", "./util.ts", "/repo/src/util.ts"},
		{"emitted js maps back to ts", "./emitted.js", "/repo/src/emitted.ts"},
		{"directory index", "./lib", "/repo/src/lib/index.ts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.Resolve(tt.specifier, "/repo/src/index.ts", false)
			if result.Kind != resolve.Internal || result.Path != tt.expected {
				t.Errorf("Resolve(%q) = %+v, want internal %s", tt.specifier, result, tt.expected)
			}
		})
	}
}

func TestResolveRelativeMiss(t *testing.T) {
	r := newResolver(t, resolverFS(), nil)
	result := r.Resolve("./missing", "/repo/src/index.ts", false)
	if result.Kind != resolve.Unresolved {
		t.Errorf("Resolve(./missing) = %+v, want unresolved", result)
	}
}

func TestResolveWorkspaceSibling(t *testing.T) {
	r := newResolver(t, resolverFS(), nil)

	result := r.Resolve("@repo/ui", "/repo/src/index.ts", false)
	if result.Kind != resolve.Internal || result.Path != "/repo/packages/ui/src/index.ts" {
		t.Errorf("Resolve(@repo/ui) = %+v", result)
	}

	result = r.Resolve("@repo/ui/button", "/repo/src/index.ts", false)
	if result.Kind != resolve.Internal || result.Path != "/repo/packages/ui/src/button.ts" {
		t.Errorf("Resolve(@repo/ui/button) = %+v", result)
	}
}

func TestResolveNodeModules(t *testing.T) {
	r := newResolver(t, resolverFS(), nil)
	result := r.Resolve("lit", "/repo/src/index.ts", false)
	if result.Kind != resolve.External || result.Package != "lit" || result.Subpath != "." {
		t.Errorf("Resolve(lit) = %+v, want external lit", result)
	}

	result = r.Resolve("lit/decorators.js", "/repo/src/index.ts", false)
	if result.Kind != resolve.External || result.Package != "lit" || result.Subpath != "./decorators.js" {
		t.Errorf("Resolve(lit/decorators.js) = %+v", result)
	}
}

func TestResolveBuiltin(t *testing.T) {
	r := newResolver(t, resolverFS(), nil)
	for _, specifier := range []string{"node:fs", "fs", "fs/promises", "node:path"} {
		result := r.Resolve(specifier, "/repo/src/index.ts", false)
		if result.Kind != resolve.Builtin {
			t.Errorf("Resolve(%q) = %+v, want builtin", specifier, result)
		}
	}
}

func TestResolveDeclaredDepWithoutInstall(t *testing.T) {
	// declared-only appears in the root manifest but has no
	// node_modules directory; the declaration is still authoritative.
	r := newResolver(t, resolverFS(), nil)
	result := r.Resolve("declared-only/sub", "/repo/src/index.ts", false)
	if result.Kind != resolve.External || result.Package != "declared-only" || result.Subpath != "./sub" {
		t.Errorf("Resolve(declared-only/sub) = %+v", result)
	}
}

func TestResolveUnknownBare(t *testing.T) {
	r := newResolver(t, resolverFS(), nil)
	result := r.Resolve("never-heard-of-it", "/repo/src/index.ts", false)
	if result.Kind != resolve.Unresolved {
		t.Errorf("Resolve(never-heard-of-it) = %+v, want unresolved", result)
	}
}

func TestResolveConfiguredPaths(t *testing.T) {
	r := newResolver(t, resolverFS(), map[string][]string{
		"~/*": {"src/*"},
	})
	result := r.Resolve("~/util", "/repo/src/index.ts", false)
	if result.Kind != resolve.Internal || result.Path != "/repo/src/util.ts" {
		t.Errorf("Resolve(~/util) = %+v", result)
	}
}

func TestResolveTsconfigPaths(t *testing.T) {
	mfs := resolverFS()
	mfs.AddFile("/repo/tsconfig.json", `{
		// JSONC comments are tolerated
		"compilerOptions": {
			"baseUrl": ".",
			"paths": {"@lib/*": ["src/lib/*"]}
		}
	}`, 0644)

	r := newResolver(t, mfs, nil)
	result := r.Resolve("@lib/index", "/repo/src/index.ts", false)
	if result.Kind != resolve.Internal || result.Path != "/repo/src/lib/index.ts" {
		t.Errorf("Resolve(@lib/index) = %+v", result)
	}
}

func TestResolveHashImports(t *testing.T) {
	mfs := resolverFS()
	mfs.AddFile("/repo/packages/ui/src/deps.ts", "", 0644)
	// Rewrite the ui manifest with an imports map.
	mfs.AddFile("/repo/packages/ui/package.json", `{
		"name": "@repo/ui",
		"exports": {".": "./src/index.ts"},
		"imports": {"#deps": "./src/deps.ts", "#lib/*": "./src/*.ts"}
	}`, 0644)

	r := newResolver(t, mfs, nil)

	result := r.Resolve("#deps", "/repo/packages/ui/src/index.ts", false)
	if result.Kind != resolve.Internal || result.Path != "/repo/packages/ui/src/deps.ts" {
		t.Errorf("Resolve(#deps) = %+v", result)
	}

	result = r.Resolve("#lib/button", "/repo/packages/ui/src/index.ts", false)
	if result.Kind != resolve.Internal || result.Path != "/repo/packages/ui/src/button.ts" {
		t.Errorf("Resolve(#lib/button) = %+v", result)
	}
}

func TestResolveSymlinkedFileCanonicalizes(t *testing.T) {
	mfs := resolverFS()
	mfs.AddSymlink("/repo/src/alias.ts", "/repo/src/util.ts")

	r := newResolver(t, mfs, nil)
	result := r.Resolve("./alias.ts", "/repo/src/index.ts", false)
	if result.Kind != resolve.Internal || result.Path != "/repo/src/util.ts" {
		t.Errorf("Resolve(./alias.ts) = %+v, want canonical /repo/src/util.ts", result)
	}
}
