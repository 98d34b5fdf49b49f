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

// Package issues derives the final report from the reference graph
// and attribution tables.
package issues

import (
	"sort"

	"bennypowers.dev/deadwood/config"
)

// Severity grades an issue.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Issue is one reported finding. Field names are part of the stable
// JSON schema consumed by reporters.
type Issue struct {
	// Workspace is the owning workspace name.
	Workspace string `json:"workspace"`
	// File is the path relative to the analysis root.
	File string `json:"file"`
	// Symbol is the affected export, dependency or binary name.
	Symbol string `json:"symbol,omitempty"`
	// Parent is the owning class or enum for member issues.
	Parent string `json:"parent,omitempty"`
	// Kind is the issue category.
	Kind config.IssueKind `json:"kind"`
	// Severity grades the finding.
	Severity Severity `json:"severity"`
	// Line is 1-based where known.
	Line int `json:"line,omitempty"`
}

// Report is the analysis result.
type Report struct {
	Issues []Issue `json:"issues"`
	// Summary counts issues per kind; kinds with zero issues are
	// present so consumers need no existence checks.
	Summary map[config.IssueKind]int `json:"summary"`
	// Diagnostics are demoted errors attached to the report; the core
	// never swallows them silently.
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// kindRank orders issue kinds for output.
var kindRank = func() map[config.IssueKind]int {
	rank := make(map[config.IssueKind]int, len(config.AllKinds))
	for i, kind := range config.AllKinds {
		rank[kind] = i
	}
	return rank
}()

// finish sorts issues and fills the summary.
func (r *Report) finish() {
	sort.SliceStable(r.Issues, func(i, j int) bool {
		a, b := r.Issues[i], r.Issues[j]
		if kindRank[a.Kind] != kindRank[b.Kind] {
			return kindRank[a.Kind] < kindRank[b.Kind]
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Parent != b.Parent {
			return a.Parent < b.Parent
		}
		return a.Symbol < b.Symbol
	})

	r.Summary = make(map[config.IssueKind]int, len(config.AllKinds))
	for _, kind := range config.AllKinds {
		r.Summary[kind] = 0
	}
	for _, issue := range r.Issues {
		r.Summary[issue.Kind]++
	}
}

// HasIssues reports whether any issue survived filtering.
func (r *Report) HasIssues() bool {
	return len(r.Issues) > 0
}
