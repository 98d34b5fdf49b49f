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
package plugins

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// eslintrc is the subset of ESLint configuration that names packages.
type eslintrc struct {
	Extends any      `json:"extends" yaml:"extends"`
	Plugins []string `json:"plugins" yaml:"plugins"`
	Parser  string   `json:"parser" yaml:"parser"`
}

var eslintPlugin = Plugin{
	Name: "eslint",
	ConfigFiles: []string{
		".eslintrc",
		".eslintrc.{js,cjs,json,yml,yaml}",
		"eslint.config.{js,mjs,cjs,ts,mts,cts}",
	},
	Packages: []string{"eslint"},
	Binaries: []string{"eslint"},
	Resolve: func(in Input) (Result, error) {
		result := Result{Deps: []AttributedDep{{Name: "eslint"}}}

		for _, configFile := range in.ConfigFiles {
			result.Entry = append(result.Entry, relPattern(in, configFile))

			rc, ok := readEslintrc(in, configFile)
			if !ok {
				continue
			}
			for _, ref := range extendsList(rc.Extends) {
				if dep := eslintExtendToPackage(ref); dep != "" {
					result.Deps = append(result.Deps, AttributedDep{Name: dep})
				}
			}
			for _, plugin := range rc.Plugins {
				result.Deps = append(result.Deps, AttributedDep{Name: eslintPluginToPackage(plugin)})
			}
			if rc.Parser != "" {
				result.Deps = append(result.Deps, AttributedDep{Name: rc.Parser})
			}
		}

		return result, nil
	},
}

// readEslintrc parses JSON and YAML config flavors; JS configs are
// detected but not evaluated.
func readEslintrc(in Input, path string) (eslintrc, bool) {
	var rc eslintrc
	ext := filepath.Ext(path)
	base := filepath.Base(path)

	data, err := in.FS.ReadFile(path)
	if err != nil {
		return rc, false
	}

	switch {
	case ext == ".json" || base == ".eslintrc":
		return rc, json.Unmarshal(data, &rc) == nil
	case ext == ".yml" || ext == ".yaml":
		return rc, yaml.Unmarshal(data, &rc) == nil
	}
	return rc, false
}

func extendsList(extends any) []string {
	switch v := extends.(type) {
	case string:
		return []string{v}
	case []any:
		var list []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				list = append(list, s)
			}
		}
		return list
	case []string:
		return v
	}
	return nil
}

// eslintExtendToPackage maps an extends reference to its package name:
// "airbnb" -> eslint-config-airbnb, "plugin:react/recommended" ->
// eslint-plugin-react, "@scope" -> @scope/eslint-config.
func eslintExtendToPackage(ref string) string {
	switch {
	case strings.HasPrefix(ref, "eslint:"):
		return ""
	case strings.HasPrefix(ref, "plugin:"):
		name := strings.TrimPrefix(ref, "plugin:")
		if idx := strings.Index(name, "/"); idx >= 0 {
			name = name[:idx]
		}
		return eslintPluginToPackage(name)
	case strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "../"):
		return ""
	case strings.HasPrefix(ref, "@"):
		if strings.Contains(ref, "/eslint-config") || strings.Count(ref, "/") == 0 {
			if !strings.Contains(ref, "/") {
				return ref + "/eslint-config"
			}
			return ref
		}
		parts := strings.SplitN(ref, "/", 3)
		return parts[0] + "/" + parts[1]
	case strings.HasPrefix(ref, "eslint-config-"):
		return ref
	default:
		if idx := strings.Index(ref, "/"); idx >= 0 {
			ref = ref[:idx]
		}
		return "eslint-config-" + ref
	}
}

// eslintPluginToPackage maps a plugin shorthand to its package name.
func eslintPluginToPackage(name string) string {
	if strings.HasPrefix(name, "@") {
		if strings.Contains(name, "/") {
			return name
		}
		return name + "/eslint-plugin"
	}
	if strings.HasPrefix(name, "eslint-plugin-") {
		return name
	}
	return "eslint-plugin-" + name
}

// prettierrc is the subset of Prettier configuration naming packages.
type prettierrc struct {
	Plugins []string `json:"plugins" yaml:"plugins"`
}

var prettierPlugin = Plugin{
	Name: "prettier",
	ConfigFiles: []string{
		".prettierrc",
		".prettierrc.{js,cjs,mjs,json,yml,yaml}",
		"prettier.config.{js,cjs,mjs}",
	},
	Packages: []string{"prettier"},
	Binaries: []string{"prettier"},
	Resolve: func(in Input) (Result, error) {
		result := Result{Deps: []AttributedDep{{Name: "prettier"}}}

		for _, configFile := range in.ConfigFiles {
			result.Entry = append(result.Entry, relPattern(in, configFile))

			data, err := in.FS.ReadFile(configFile)
			if err != nil {
				continue
			}
			var rc prettierrc
			ext := filepath.Ext(configFile)
			switch {
			case ext == ".json" || filepath.Base(configFile) == ".prettierrc":
				if json.Unmarshal(data, &rc) != nil {
					continue
				}
			case ext == ".yml" || ext == ".yaml":
				if yaml.Unmarshal(data, &rc) != nil {
					continue
				}
			default:
				continue
			}
			for _, plugin := range rc.Plugins {
				if !strings.HasPrefix(plugin, ".") {
					result.Deps = append(result.Deps, AttributedDep{Name: plugin})
				}
			}
		}

		return result, nil
	},
}

// relPattern converts an absolute config path to a workspace-relative
// entry pattern.
func relPattern(in Input, path string) string {
	rel, err := filepath.Rel(in.Ws.Dir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
