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
package plugins_test

import (
	"testing"

	"bennypowers.dev/deadwood/config"
	"bennypowers.dev/deadwood/internal/mapfs"
	"bennypowers.dev/deadwood/plugins"
	"bennypowers.dev/deadwood/workspace"
)

func loadTree(t *testing.T, mfs *mapfs.MapFileSystem) *workspace.Tree {
	t.Helper()
	tree, err := workspace.Load(mfs, "/app")
	if err != nil {
		t.Fatal(err)
	}
	return tree
}

func detectionNames(detections []plugins.Detection) []string {
	var names []string
	for _, d := range detections {
		names = append(names, d.Plugin.Name)
	}
	return names
}

func TestDetectByConfigFile(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	mfs.AddFile("/app/.eslintrc.json", `{}`, 0644)
	tree := loadTree(t, mfs)

	detections, err := plugins.Default().Detect(mfs, tree.Root, nil, &config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	names := detectionNames(detections)
	if len(names) != 1 || names[0] != "eslint" {
		t.Errorf("detections = %v, want [eslint]", names)
	}
}

func TestDetectByDependency(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app", "devDependencies": {"vitest": "^2.0.0"}}`, 0644)
	tree := loadTree(t, mfs)

	detections, err := plugins.Default().Detect(mfs, tree.Root, nil, &config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	names := detectionNames(detections)
	if len(names) != 1 || names[0] != "vitest" {
		t.Errorf("detections = %v, want [vitest]", names)
	}
}

func TestDetectByScriptBinary(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	tree := loadTree(t, mfs)

	detections, err := plugins.Default().Detect(mfs, tree.Root, []string{"jest"}, &config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	names := detectionNames(detections)
	if len(names) != 1 || names[0] != "jest" {
		t.Errorf("detections = %v, want [jest]", names)
	}
}

func TestExplicitDisableSuppresses(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	mfs.AddFile("/app/.eslintrc.json", `{}`, 0644)
	tree := loadTree(t, mfs)

	cfg := &config.Config{Plugins: map[string]bool{"eslint": false}}
	detections, err := plugins.Default().Detect(mfs, tree.Root, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(detections) != 0 {
		t.Errorf("disabled plugin still fired: %v", detectionNames(detections))
	}
}

func TestEslintAttributesConfiguredPackages(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	mfs.AddFile("/app/.eslintrc.json", `{
		"extends": ["airbnb", "plugin:react/recommended"],
		"plugins": ["import"],
		"parser": "@typescript-eslint/parser"
	}`, 0644)
	tree := loadTree(t, mfs)

	registry := plugins.Default()
	detections, err := registry.Detect(mfs, tree.Root, nil, &config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	_, attributions, err := registry.Run(mfs, tree.Root, detections)
	if err != nil {
		t.Fatal(err)
	}

	for _, dep := range []string{
		"eslint",
		"eslint-config-airbnb",
		"eslint-plugin-react",
		"eslint-plugin-import",
		"@typescript-eslint/parser",
	} {
		if _, ok := attributions[dep]; !ok {
			t.Errorf("expected %s attributed, got %v", dep, attributions)
		}
	}
}

// The manifest main field pointing into a package is attributed as a
// production dependency even without any source-level import.
func TestExpoAttributesMainPackage(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{
		"name": "app",
		"main": "expo-router/entry",
		"dependencies": {"expo": "^50.0.0"}
	}`, 0644)
	tree := loadTree(t, mfs)

	registry := plugins.Default()
	detections, err := registry.Detect(mfs, tree.Root, nil, &config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	result, attributions, err := registry.Run(mfs, tree.Root, detections)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := attributions["expo-router"]; !ok {
		t.Errorf("expected expo-router attributed, got %v", attributions)
	}
	production := false
	for _, dep := range result.Deps {
		if dep.Name == "expo-router" && dep.Production {
			production = true
		}
	}
	if !production {
		t.Error("expo-router must be classified as a production dep")
	}
}

func TestTypescriptAttributesTypes(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	mfs.AddFile("/app/tsconfig.json", `{
		"extends": "@tsconfig/strictest/tsconfig.json",
		"compilerOptions": {
			// node types are required for scripts
			"types": ["node", "vitest/globals"]
		}
	}`, 0644)
	tree := loadTree(t, mfs)

	registry := plugins.Default()
	detections, err := registry.Detect(mfs, tree.Root, nil, &config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	_, attributions, err := registry.Run(mfs, tree.Root, detections)
	if err != nil {
		t.Fatal(err)
	}

	for _, dep := range []string{"typescript", "@tsconfig/strictest", "@types/node", "vitest"} {
		if _, ok := attributions[dep]; !ok {
			t.Errorf("expected %s attributed, got %v", dep, attributions)
		}
	}
}

func TestGithubActionsCollectsBinariesAndEntries(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name": "app"}`, 0644)
	mfs.AddFile("/app/.github/workflows/ci.yml", `
name: CI
jobs:
  test:
    steps:
      - run: npx playwright install
      - run: node ./scripts/smoke.js
`, 0644)
	tree := loadTree(t, mfs)

	registry := plugins.Default()
	detections, err := registry.Detect(mfs, tree.Root, nil, &config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	result, _, err := registry.Run(mfs, tree.Root, detections)
	if err != nil {
		t.Fatal(err)
	}

	foundBinary := false
	for _, binary := range result.Binaries {
		if binary == "playwright" {
			foundBinary = true
		}
	}
	if !foundBinary {
		t.Errorf("binaries = %v, want playwright", result.Binaries)
	}

	foundEntry := false
	for _, entry := range result.Entry {
		if entry == "scripts/smoke.js" {
			foundEntry = true
		}
	}
	if !foundEntry {
		t.Errorf("entries = %v, want scripts/smoke.js", result.Entry)
	}
}
