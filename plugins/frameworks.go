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
	"strings"

	"bennypowers.dev/deadwood/packagejson"
)

// expoPlugin attributes the package named by the manifest main field:
// expo apps commonly point main at "expo-router/entry", which never
// appears as a source-level import.
var expoPlugin = Plugin{
	Name:     "expo",
	Packages: []string{"expo"},
	ConfigFiles: []string{
		"app.json",
		"app.config.{js,ts}",
	},
	Resolve: func(in Input) (Result, error) {
		result := Result{Deps: []AttributedDep{{Name: "expo", Production: true}}}

		if main := in.Ws.Manifest.Main; main != "" &&
			!strings.HasPrefix(main, ".") && !strings.HasPrefix(main, "/") {
			result.Deps = append(result.Deps, AttributedDep{
				Name:       packagejson.PackageName(main),
				Production: true,
			})
		}

		result.Entry = append(result.Entry,
			"App.{js,jsx,ts,tsx}",
			"app/**/*.{js,jsx,ts,tsx}",
		)
		return result, nil
	},
}

var nextPlugin = Plugin{
	Name: "next",
	ConfigFiles: []string{
		"next.config.{js,mjs,ts}",
	},
	Packages: []string{"next"},
	Binaries: []string{"next"},
	Resolve: func(in Input) (Result, error) {
		result := Result{Deps: []AttributedDep{{Name: "next", Production: true}}}
		for _, configFile := range in.ConfigFiles {
			result.Entry = append(result.Entry, relPattern(in, configFile))
		}
		result.Entry = append(result.Entry,
			"pages/**/*.{js,jsx,ts,tsx}",
			"app/**/*.{js,jsx,ts,tsx}",
			"src/pages/**/*.{js,jsx,ts,tsx}",
			"src/app/**/*.{js,jsx,ts,tsx}",
			"middleware.{js,ts}",
		)
		return result, nil
	},
}
