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
package traverse

import (
	"sort"

	"bennypowers.dev/deadwood/extract"
	"bennypowers.dev/deadwood/workspace"
)

// FileNode is one interned file in the reference graph. Files are
// created lazily on first reference and identified by integer ids so
// import cycles need no special handling.
type FileNode struct {
	ID   int
	Path string
	// Ws is the owning workspace (nearest enclosing), nil for files
	// outside every workspace.
	Ws *workspace.Workspace
	// Record is the extraction result once the file was processed.
	Record *extract.FileRecord
	// ReachValue and ReachType track the reachability channels.
	ReachValue bool
	ReachType  bool
	// IsEntry marks seed files.
	IsEntry bool
}

// Reachable reports reachability in any channel.
func (n *FileNode) Reachable() bool {
	return n.ReachValue || n.ReachType
}

// Graph is the shared reference graph. It is mutated only by the
// engine under single-writer discipline.
type Graph struct {
	nodes  []*FileNode
	byPath map[string]int

	// edges is the import adjacency, keyed by file id.
	edges map[int][]int

	// refs tracks referenced export names per file id.
	refs map[int]map[string]bool
	// allRefs marks files with a whole-namespace use somewhere; all
	// their exports count as referenced.
	allRefs map[int]bool
	// selfRefs tracks export names referenced within their own file.
	selfRefs map[int]map[string]bool

	// propertyUses aggregates property access counts across all
	// processed files, feeding member-level classification.
	propertyUses map[string]int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		byPath:       make(map[string]int),
		edges:        make(map[int][]int),
		refs:         make(map[int]map[string]bool),
		allRefs:      make(map[int]bool),
		selfRefs:     make(map[int]map[string]bool),
		propertyUses: make(map[string]int),
	}
}

// Intern returns the node for path, creating it on first reference.
func (g *Graph) Intern(path string, ws *workspace.Workspace) *FileNode {
	if id, ok := g.byPath[path]; ok {
		return g.nodes[id]
	}
	node := &FileNode{ID: len(g.nodes), Path: path, Ws: ws}
	g.nodes = append(g.nodes, node)
	g.byPath[path] = node.ID
	return node
}

// Node returns the node for path, nil if never referenced.
func (g *Graph) Node(path string) *FileNode {
	if id, ok := g.byPath[path]; ok {
		return g.nodes[id]
	}
	return nil
}

// Files returns all nodes sorted by path.
func (g *Graph) Files() []*FileNode {
	files := append([]*FileNode(nil), g.nodes...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// AddEdge records an import edge between file ids.
func (g *Graph) AddEdge(from, to int) {
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// Edges returns the import targets of a file id, sorted.
func (g *Graph) Edges(id int) []int {
	targets := append([]int(nil), g.edges[id]...)
	sort.Ints(targets)
	return targets
}

// MarkRef records that the named export of file id is referenced.
func (g *Graph) MarkRef(id int, name string) {
	refs, ok := g.refs[id]
	if !ok {
		refs = make(map[string]bool)
		g.refs[id] = refs
	}
	refs[name] = true
}

// MarkAllRefs records a whole-namespace use of file id.
func (g *Graph) MarkAllRefs(id int) {
	g.allRefs[id] = true
}

// MarkSelfRef records an in-file reference to one of the file's own
// exports.
func (g *Graph) MarkSelfRef(id int, name string) {
	refs, ok := g.selfRefs[id]
	if !ok {
		refs = make(map[string]bool)
		g.selfRefs[id] = refs
	}
	refs[name] = true
}

// AddPropertyUses merges a file's property access counts.
func (g *Graph) AddPropertyUses(uses map[string]int) {
	for name, count := range uses {
		g.propertyUses[name] += count
	}
}

// Referenced reports whether the named export of file id has an
// incoming reference edge.
func (g *Graph) Referenced(id int, name string) bool {
	if g.allRefs[id] {
		return true
	}
	return g.refs[id][name]
}

// SelfReferenced reports whether the export is referenced within its
// own file.
func (g *Graph) SelfReferenced(id int, name string) bool {
	return g.selfRefs[id][name]
}

// PropertyReferenced reports whether any file accesses a property with
// the given name.
func (g *Graph) PropertyReferenced(name string) bool {
	return g.propertyUses[name] > 0
}
