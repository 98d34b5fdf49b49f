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

	"gopkg.in/yaml.v3"

	"bennypowers.dev/deadwood/shell"
)

// workflow is the subset of a GitHub Actions workflow that runs
// commands.
type workflow struct {
	Jobs map[string]struct {
		Steps []struct {
			Run string `yaml:"run"`
		} `yaml:"steps"`
	} `yaml:"jobs"`
}

// githubActionsPlugin feeds workflow run commands through the script
// parser so CI-only binaries and entry files are accounted for.
var githubActionsPlugin = Plugin{
	Name: "github-actions",
	ConfigFiles: []string{
		".github/workflows/*.{yml,yaml}",
	},
	Resolve: func(in Input) (Result, error) {
		var result Result

		for _, configFile := range in.ConfigFiles {
			data, err := in.FS.ReadFile(configFile)
			if err != nil {
				continue
			}
			var wf workflow
			if yaml.Unmarshal(data, &wf) != nil {
				continue
			}
			for _, job := range wf.Jobs {
				for _, step := range job.Steps {
					if step.Run == "" {
						continue
					}
					for _, line := range strings.Split(step.Run, "\n") {
						invocations := shell.Parse(line)
						result.Binaries = append(result.Binaries, shell.Binaries(invocations)...)
						for _, f := range shell.Files(invocations) {
							result.Entry = append(result.Entry, strings.TrimPrefix(f, "./"))
						}
					}
				}
			}
		}

		return result, nil
	},
}
