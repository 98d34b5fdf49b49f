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

import "encoding/json"

var jestPlugin = Plugin{
	Name: "jest",
	ConfigFiles: []string{
		"jest.config.{js,ts,mjs,cjs,json}",
		"jest.setup.{js,ts,mjs,cjs}",
	},
	Packages: []string{"jest"},
	Binaries: []string{"jest"},
	Resolve: func(in Input) (Result, error) {
		result := Result{Deps: []AttributedDep{{Name: "jest"}}}
		for _, configFile := range in.ConfigFiles {
			result.Entry = append(result.Entry, relPattern(in, configFile))
		}
		result.Entry = append(result.Entry,
			"**/*.{test,spec}.{js,jsx,ts,tsx,mjs,cjs}",
			"**/__tests__/**/*.{js,jsx,ts,tsx,mjs,cjs}",
			"**/__mocks__/**/*.{js,jsx,ts,tsx,mjs,cjs}",
		)

		// jest.config.json may name preset and environment packages.
		for _, configFile := range in.ConfigFiles {
			data, err := in.FS.ReadFile(configFile)
			if err != nil {
				continue
			}
			var cfg struct {
				Preset          string `json:"preset"`
				TestEnvironment string `json:"testEnvironment"`
			}
			if json.Unmarshal(data, &cfg) != nil {
				continue
			}
			for _, dep := range []string{cfg.Preset, cfg.TestEnvironment} {
				if dep != "" && dep != "node" && dep != "jsdom" && dep[0] != '.' {
					result.Deps = append(result.Deps, AttributedDep{Name: dep})
				}
			}
		}
		return result, nil
	},
}

var vitestPlugin = Plugin{
	Name: "vitest",
	ConfigFiles: []string{
		"vitest.config.{js,ts,mjs,mts}",
		"vitest.workspace.{js,ts,mjs,mts}",
	},
	Packages: []string{"vitest"},
	Binaries: []string{"vitest"},
	Resolve: func(in Input) (Result, error) {
		result := Result{Deps: []AttributedDep{{Name: "vitest"}}}
		for _, configFile := range in.ConfigFiles {
			result.Entry = append(result.Entry, relPattern(in, configFile))
		}
		result.Entry = append(result.Entry,
			"**/*.{test,spec}.{js,jsx,ts,tsx,mjs,mts}",
			"**/*.bench.{js,ts}",
		)
		return result, nil
	},
}

var storybookPlugin = Plugin{
	Name: "storybook",
	ConfigFiles: []string{
		".storybook/main.{js,ts,cjs,mjs}",
	},
	Packages: []string{"storybook", "@storybook/*"},
	Binaries: []string{"storybook"},
	Resolve: func(in Input) (Result, error) {
		result := Result{}
		for dep := range in.Ws.Deps {
			if dep == "storybook" || len(dep) > 11 && dep[:11] == "@storybook/" {
				result.Deps = append(result.Deps, AttributedDep{Name: dep})
			}
		}
		result.Entry = append(result.Entry,
			".storybook/main.{js,ts,cjs,mjs}",
			".storybook/preview.{js,jsx,ts,tsx}",
			"**/*.stories.{js,jsx,ts,tsx,mdx}",
		)
		result.Project = append(result.Project, ".storybook/**/*.{js,jsx,ts,tsx}")
		return result, nil
	},
}
