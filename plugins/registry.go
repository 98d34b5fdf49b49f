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

// Package plugins hosts per-tool adapters that contribute entry
// patterns and dependency attributions based on tool configuration.
package plugins

import (
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"bennypowers.dev/deadwood/config"
	"bennypowers.dev/deadwood/entries"
	"bennypowers.dev/deadwood/fs"
	"bennypowers.dev/deadwood/workspace"
)

// Input is the detection context a plugin resolves against. Plugins
// must be pure over this input: no side effects, idempotent results.
type Input struct {
	FS fs.FileSystem
	Ws *workspace.Workspace
	// ConfigFiles are absolute paths of the plugin's matched config
	// files within the workspace.
	ConfigFiles []string
}

// AttributedDep is a package a plugin guarantees is used.
type AttributedDep struct {
	Name string
	// Production classifies the dependency; false means dev.
	Production bool
}

// Result is a plugin's contribution for one workspace.
type Result struct {
	// Entry patterns (globs relative to the workspace).
	Entry []string
	// Project patterns.
	Project []string
	// Deps the plugin marks used regardless of source references.
	Deps []AttributedDep
	// Binaries referenced from tool configuration (e.g. CI scripts).
	Binaries []string
}

// merge unions another result into r.
func (r *Result) merge(other Result) {
	r.Entry = append(r.Entry, other.Entry...)
	r.Project = append(r.Project, other.Project...)
	r.Deps = append(r.Deps, other.Deps...)
	r.Binaries = append(r.Binaries, other.Binaries...)
}

// Plugin is the structural contract for one tool adapter.
type Plugin struct {
	Name string
	// ConfigFiles are doublestar globs (relative to the workspace)
	// whose presence detects the tool.
	ConfigFiles []string
	// Packages are manifest dependency names (globs allowed) whose
	// presence detects the tool.
	Packages []string
	// Binaries are script binaries whose use detects the tool.
	Binaries []string
	// Resolve computes the plugin's contribution.
	Resolve func(in Input) (Result, error)
}

// Detection is one fired plugin with its matched config files.
type Detection struct {
	Plugin      *Plugin
	ConfigFiles []string
}

// Registry holds the known plugins.
type Registry struct {
	plugins []Plugin
}

// NewRegistry creates a registry over the given plugins.
func NewRegistry(plugins []Plugin) *Registry {
	return &Registry{plugins: plugins}
}

// Default returns the registry of built-in plugins.
func Default() *Registry {
	return NewRegistry([]Plugin{
		eslintPlugin,
		prettierPlugin,
		jestPlugin,
		vitestPlugin,
		storybookPlugin,
		expoPlugin,
		nextPlugin,
		githubActionsPlugin,
		typescriptPlugin,
	})
}

// Names returns plugin names in registry order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.plugins))
	for i := range r.plugins {
		names = append(names, r.plugins[i].Name)
	}
	return names
}

// Detect evaluates detection rules for one workspace: config file
// presence, matching manifest dep, matching script binary, or explicit
// enable. Each plugin fires at most once per workspace; an explicit
// disable suppresses it entirely.
func (r *Registry) Detect(fsys fs.FileSystem, ws *workspace.Workspace, scriptBinaries []string, cfg *config.Config) ([]Detection, error) {
	files, err := entries.WalkFiles(fsys, ws, true, nil)
	if err != nil {
		return nil, err
	}

	binaries := make(map[string]bool, len(scriptBinaries))
	for _, b := range scriptBinaries {
		binaries[b] = true
	}

	var detections []Detection
	for i := range r.plugins {
		plugin := &r.plugins[i]

		enabled, explicit := cfg.PluginEnabled(plugin.Name)
		if explicit && !enabled {
			continue
		}

		var configFiles []string
		for _, pattern := range plugin.ConfigFiles {
			for _, f := range files {
				if ok, _ := doublestar.Match(pattern, f); ok {
					configFiles = append(configFiles, filepath.Join(ws.Dir, f))
				}
			}
		}
		sort.Strings(configFiles)

		fired := len(configFiles) > 0
		if !fired {
			for _, pattern := range plugin.Packages {
				for dep := range ws.Deps {
					if ok, _ := doublestar.Match(pattern, dep); ok {
						fired = true
						break
					}
				}
				if fired {
					break
				}
			}
		}
		if !fired {
			for _, b := range plugin.Binaries {
				if binaries[b] {
					fired = true
					break
				}
			}
		}
		if !fired && explicit && enabled {
			fired = true
		}

		if fired {
			detections = append(detections, Detection{Plugin: plugin, ConfigFiles: configFiles})
		}
	}

	return detections, nil
}

// Run resolves the fired plugins and unions their results.
func (r *Registry) Run(fsys fs.FileSystem, ws *workspace.Workspace, detections []Detection) (Result, map[string][]string, error) {
	var union Result
	attributions := make(map[string][]string) // dep -> plugin names

	for _, detection := range detections {
		result, err := detection.Plugin.Resolve(Input{
			FS:          fsys,
			Ws:          ws,
			ConfigFiles: detection.ConfigFiles,
		})
		if err != nil {
			return Result{}, nil, err
		}
		union.merge(result)
		for _, dep := range result.Deps {
			attributions[dep.Name] = append(attributions[dep.Name], detection.Plugin.Name)
		}
	}

	return union, attributions, nil
}
