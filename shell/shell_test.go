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
package shell_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"bennypowers.dev/deadwood/shell"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		binaries []string
		files    []string
	}{
		{
			name:     "plain binary",
			command:  "eslint .",
			binaries: []string{"eslint"},
		},
		{
			name:     "npx runner",
			command:  "npx -y playwright test",
			binaries: []string{"playwright"},
		},
		{
			name:     "npm run references a script not a binary",
			command:  "npm run build",
			binaries: nil,
		},
		{
			name:     "yarn executes a binary",
			command:  "yarn vitest run",
			binaries: []string{"vitest"},
		},
		{
			name:     "chained commands",
			command:  "tsc --noEmit && eslint . || echo failed",
			binaries: []string{"tsc", "eslint", "echo"},
		},
		{
			name:     "env assignments are stripped",
			command:  "NODE_ENV=production webpack --mode production",
			binaries: []string{"webpack"},
		},
		{
			name:     "cross-env unwraps",
			command:  "cross-env NODE_ENV=test jest",
			binaries: []string{"jest"},
		},
		{
			name:     "node references a file",
			command:  "node ./scripts/build.js",
			binaries: nil,
			files:    []string{"./scripts/build.js"},
		},
		{
			name:     "tsx is a binary and a file reference",
			command:  "tsx src/main.ts",
			binaries: []string{"tsx"},
			files:    []string{"src/main.ts"},
		},
		{
			name:     "unparsable line yields nothing",
			command:  `echo "unterminated`,
			binaries: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invocations := shell.Parse(tt.command)
			if diff := cmp.Diff(tt.binaries, shell.Binaries(invocations)); diff != "" {
				t.Errorf("Binaries mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.files, shell.Files(invocations)); diff != "" {
				t.Errorf("Files mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
