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
package extract

// ImportBinding is one name bound by an import or re-export.
type ImportBinding struct {
	// Name is the exported name on the target module: an identifier,
	// "default", or "*" for a namespace binding.
	Name string
	// Local is the binding name in the importing file; empty for
	// re-exports, which bind nothing locally.
	Local string
	// TypeOnly marks `import type` / `import { type X }` bindings.
	TypeOnly bool
}

// Import is one module reference found in a file.
type Import struct {
	Specifier string
	Bindings  []ImportBinding
	// SideEffect is true for bare `import "x"`.
	SideEffect bool
	// Dynamic is true for `import("x")` with a literal argument.
	Dynamic bool
	// Require is true for `require("x")`.
	Require bool
	// URL is true for `new URL("x", import.meta.url)`.
	URL bool
	// Reexport is true for `export ... from "x"`.
	Reexport bool
	// Star is true for `export * from "x"`.
	Star bool
	// TypeOnly marks a statement-level type-only import.
	TypeOnly bool
	Line     int
}

// ExportKind classifies an export.
type ExportKind string

const (
	KindValue       ExportKind = "value"
	KindType        ExportKind = "type"
	KindDefault     ExportKind = "default"
	KindNamespace   ExportKind = "namespace"
	KindEnum        ExportKind = "enum"
	KindEnumMember  ExportKind = "enum-member"
	KindClassMember ExportKind = "class-member"
)

// Export is one exported symbol of a file. Within one file, export
// names are unique per kind-class; members are namespaced by Parent.
type Export struct {
	// Name is the public export name.
	Name string
	// LocalName is the local binding backing the export; empty for
	// re-exports and anonymous defaults.
	LocalName string
	Kind      ExportKind
	// Parent is the owning enum or class name for member kinds.
	Parent string
	// Tags holds JSDoc tags attached to the export ("public", ...).
	Tags []string
	Line int
}

// HasTag reports whether the export carries the given JSDoc tag
// (without the leading @).
func (e *Export) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// FileRecord is the immutable per-file extraction result the engine
// applies to the shared graph.
type FileRecord struct {
	Path    string
	Imports []Import
	Exports []Export

	// DynamicSpecifiers holds the raw text of non-literal dynamic
	// import arguments; they contribute no edges.
	DynamicSpecifiers []string

	// Uses counts reference-position occurrences per local binding.
	Uses map[string]int
	// BareUses marks bindings that appear outside member accesses:
	// spread, call arguments, iteration, export clauses. For a
	// namespace binding this is a whole-namespace use.
	BareUses map[string]bool
	// NamespaceMembers maps a local binding to the member names
	// accessed on it (ns.foo, ns["foo"], destructuring).
	NamespaceMembers map[string]map[string]bool
	// PropertyUses counts property accesses by name across the file,
	// feeding class- and enum-member reference checks.
	PropertyUses map[string]int

	Diagnostics []string
}

// Options gates optional extraction work.
type Options struct {
	// ClassMembers extracts exported class members.
	ClassMembers bool
	// EnumMembers extracts enum members.
	EnumMembers bool
	// Tags lists additional JSDoc tags that suppress reporting, in
	// addition to the built-in public handling.
	Tags []string
}
