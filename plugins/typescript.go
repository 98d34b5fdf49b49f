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

	"github.com/tidwall/gjson"

	"bennypowers.dev/deadwood/packagejson"
)

// typescriptPlugin attributes packages referenced from tsconfig:
// non-relative extends bases, compilerOptions.types entries, and
// language-service plugins.
var typescriptPlugin = Plugin{
	Name: "typescript",
	ConfigFiles: []string{
		"tsconfig.json",
		"tsconfig.*.json",
	},
	Packages: []string{"typescript"},
	Binaries: []string{"tsc"},
	Resolve: func(in Input) (Result, error) {
		result := Result{Deps: []AttributedDep{{Name: "typescript"}}}

		for _, configFile := range in.ConfigFiles {
			data, err := in.FS.ReadFile(configFile)
			if err != nil {
				continue
			}
			doc := stripComments(string(data))
			if !gjson.Valid(doc) {
				continue
			}

			if extends := gjson.Get(doc, "extends"); extends.Exists() {
				ref := extends.String()
				if ref != "" && !strings.HasPrefix(ref, ".") && !strings.HasPrefix(ref, "/") {
					result.Deps = append(result.Deps, AttributedDep{Name: packagejson.PackageName(ref)})
				}
			}
			for _, t := range gjson.Get(doc, "compilerOptions.types").Array() {
				name := t.String()
				if name == "" || strings.HasPrefix(name, ".") {
					continue
				}
				if !strings.HasPrefix(name, "@") && !strings.Contains(name, "/") {
					name = "@types/" + name
				} else {
					name = packagejson.PackageName(name)
				}
				result.Deps = append(result.Deps, AttributedDep{Name: name})
			}
			for _, p := range gjson.Get(doc, "compilerOptions.plugins.#.name").Array() {
				if name := p.String(); name != "" {
					result.Deps = append(result.Deps, AttributedDep{Name: name})
				}
			}
		}

		return result, nil
	},
}

// stripComments removes // and /* */ comments from JSONC text,
// preserving string contents.
func stripComments(doc string) string {
	var out strings.Builder
	out.Grow(len(doc))

	inString, inLine, inBlock := false, false, false
	for i := 0; i < len(doc); i++ {
		c := doc[i]
		switch {
		case inLine:
			if c == '\n' {
				inLine = false
				out.WriteByte(c)
			}
		case inBlock:
			if c == '*' && i+1 < len(doc) && doc[i+1] == '/' {
				inBlock = false
				i++
			}
		case inString:
			out.WriteByte(c)
			if c == '\\' && i+1 < len(doc) {
				out.WriteByte(doc[i+1])
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
			out.WriteByte(c)
		case c == '/' && i+1 < len(doc) && doc[i+1] == '/':
			inLine = true
			i++
		case c == '/' && i+1 < len(doc) && doc[i+1] == '*':
			inBlock = true
			i++
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}
