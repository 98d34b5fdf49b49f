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
package workspace

import (
	"sort"

	"bennypowers.dev/deadwood/packagejson"
)

// DepRecord tracks how one declared or referenced dependency is used
// within a workspace.
type DepRecord struct {
	// Bucket is the declaring manifest section; empty when the
	// dependency is referenced but undeclared.
	Bucket packagejson.Bucket
	// ReferencedFrom lists source files whose imports resolved to the
	// package, sorted and deduplicated.
	ReferencedFrom []string
	// Plugins lists plugin names that attributed the dependency.
	Plugins []string
	// Ignored is set from ignoreDependencies configuration.
	Ignored bool
	// TypeOnly is true while every reference so far is type-only.
	TypeOnly bool
}

// Used reports whether anything references the dependency.
// A package is unused iff referenced-from-files and referenced-by-plugin
// are both empty and it is not marked ignore.
func (r *DepRecord) Used() bool {
	return len(r.ReferencedFrom) > 0 || len(r.Plugins) > 0 || r.Ignored
}

// Table is the per-workspace dependency attribution table.
// Mutation happens under the engine's single-writer discipline.
type Table struct {
	Ws      *Workspace
	Records map[string]*DepRecord
}

// Tables holds one attribution table per workspace.
type Tables struct {
	byDir map[string]*Table
}

// NewTables seeds a table per workspace with its declared dependencies.
func NewTables(tree *Tree) *Tables {
	tables := &Tables{byDir: make(map[string]*Table)}
	for _, ws := range tree.All {
		table := &Table{Ws: ws, Records: make(map[string]*DepRecord)}
		for dep, bucket := range ws.Deps {
			table.Records[dep] = &DepRecord{Bucket: bucket, TypeOnly: true}
		}
		tables.byDir[ws.Dir] = table
	}
	return tables
}

// For returns the table of the given workspace.
func (t *Tables) For(ws *Workspace) *Table {
	return t.byDir[ws.Dir]
}

// record returns the dep record in the workspace that should carry the
// reference: the nearest declaring ancestor of ws, or ws itself when
// nobody declares the package. This implements both the ancestor
// visibility rule and the nearest-ancestor attribution tie-break.
func (t *Tables) record(ws *Workspace, dep string) *DepRecord {
	target := ws.DeclaringAncestor(dep)
	if target == nil {
		target = ws
	}
	table := t.byDir[target.Dir]
	rec, ok := table.Records[dep]
	if !ok {
		rec = &DepRecord{TypeOnly: true}
		table.Records[dep] = rec
	}
	return rec
}

// AddFileRef records that file (in workspace ws) references dep.
func (t *Tables) AddFileRef(ws *Workspace, dep, file string, typeOnly bool) {
	rec := t.record(ws, dep)
	for _, existing := range rec.ReferencedFrom {
		if existing == file {
			if !typeOnly {
				rec.TypeOnly = false
			}
			return
		}
	}
	rec.ReferencedFrom = append(rec.ReferencedFrom, file)
	sort.Strings(rec.ReferencedFrom)
	if !typeOnly {
		rec.TypeOnly = false
	}
}

// AddPluginRef records that a plugin attributed dep within ws.
func (t *Tables) AddPluginRef(ws *Workspace, dep, plugin string) {
	rec := t.record(ws, dep)
	for _, existing := range rec.Plugins {
		if existing == plugin {
			return
		}
	}
	rec.Plugins = append(rec.Plugins, plugin)
	sort.Strings(rec.Plugins)
	rec.TypeOnly = false
}

// MarkIgnored flags deps matching the ignore list in ws's table.
func (t *Tables) MarkIgnored(ws *Workspace, dep string) {
	table := t.byDir[ws.Dir]
	if rec, ok := table.Records[dep]; ok {
		rec.Ignored = true
	}
}

// Unused returns the declared dependencies of ws with empty attribution,
// sorted. typeOnlyCounts controls whether purely type-level references
// keep a dependency alive.
func (t *Tables) Unused(ws *Workspace, typeOnlyCounts bool) []string {
	table := t.byDir[ws.Dir]
	var unused []string
	for dep, rec := range table.Records {
		if rec.Bucket == "" {
			continue // referenced but undeclared; handled as unlisted
		}
		if rec.Ignored {
			continue
		}
		referenced := len(rec.ReferencedFrom) > 0 || len(rec.Plugins) > 0
		if referenced && (typeOnlyCounts || !rec.TypeOnly) {
			continue
		}
		unused = append(unused, dep)
	}
	sort.Strings(unused)
	return unused
}

// Undeclared returns package names referenced from ws that no workspace
// in its ancestor chain declares, with the referencing files.
func (t *Tables) Undeclared(ws *Workspace) map[string][]string {
	table := t.byDir[ws.Dir]
	undeclared := make(map[string][]string)
	for dep, rec := range table.Records {
		if rec.Bucket != "" || rec.Ignored {
			continue
		}
		if len(rec.ReferencedFrom) == 0 && len(rec.Plugins) == 0 {
			continue
		}
		undeclared[dep] = rec.ReferencedFrom
	}
	return undeclared
}
