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

// Package output provides shared report output utilities for deadwood
// CLI commands.
package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"bennypowers.dev/deadwood/config"
	"bennypowers.dev/deadwood/fs"
	"bennypowers.dev/deadwood/issues"
)

// Report formats a report and writes it to stdout or, when viper's
// "output" flag is set, to that file.
func Report(osfs fs.FileSystem, report *issues.Report, format string) error {
	var rendered string
	switch format {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		rendered = string(data)
	case "text":
		rendered = renderText(report)
	default:
		return fmt.Errorf("unknown reporter format: %s", format)
	}

	if outputPath := viper.GetString("output"); outputPath != "" {
		return osfs.WriteFile(outputPath, []byte(rendered+"\n"), 0644)
	}
	fmt.Println(rendered)
	return nil
}

// headings per issue kind for the text reporter.
var headings = map[config.IssueKind]string{
	config.KindFiles:        "Unused files",
	config.KindDependencies: "Unused dependencies",
	config.KindUnlisted:     "Unlisted dependencies",
	config.KindUnresolved:   "Unresolved imports",
	config.KindBinaries:     "Unlisted binaries",
	config.KindExports:      "Unused exports",
	config.KindTypes:        "Unused exported types",
	config.KindClassMembers: "Unused class members",
	config.KindEnumMembers:  "Unused enum members",
}

func renderText(report *issues.Report) string {
	if !report.HasIssues() && len(report.Diagnostics) == 0 {
		return "No issues found."
	}

	var b strings.Builder
	for _, kind := range config.AllKinds {
		if report.Summary[kind] == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s (%d)\n", headings[kind], report.Summary[kind])
		for _, issue := range report.Issues {
			if issue.Kind != kind {
				continue
			}
			b.WriteString("  ")
			b.WriteString(issue.File)
			if issue.Line > 0 {
				fmt.Fprintf(&b, ":%d", issue.Line)
			}
			if issue.Symbol != "" {
				b.WriteString("  ")
				if issue.Parent != "" {
					b.WriteString(issue.Parent)
					b.WriteString(".")
				}
				b.WriteString(issue.Symbol)
			}
			b.WriteString("\n")
		}
	}

	for _, diagnostic := range report.Diagnostics {
		fmt.Fprintf(&b, "note: %s\n", diagnostic)
	}

	return strings.TrimRight(b.String(), "\n")
}
