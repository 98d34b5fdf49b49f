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

// Package traverse drives the reachability fixpoint: entries are
// parsed and extracted, their imports resolved, and newly discovered
// files enqueued until the worklist drains.
package traverse

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"bennypowers.dev/deadwood/entries"
	"bennypowers.dev/deadwood/extract"
	"bennypowers.dev/deadwood/parse"
	"bennypowers.dev/deadwood/resolve"
	"bennypowers.dev/deadwood/workspace"
)

// Unresolved records a specifier no resolution step could place.
type Unresolved struct {
	File      string
	Specifier string
	// Bare distinguishes package-shaped specifiers (candidate
	// unlisted dependencies) from broken relative paths.
	Bare bool
	Line int
}

// Outcome carries traversal byproducts alongside the graph.
type Outcome struct {
	Unresolved []Unresolved
	// DynamicSpecifiers maps file paths to their non-literal dynamic
	// import texts.
	DynamicSpecifiers map[string][]string
	// Diagnostics are demoted per-file failures.
	Diagnostics []string
}

// Options configures a traversal.
type Options struct {
	// Jobs bounds parallel parse/extract workers; 0 means GOMAXPROCS.
	Jobs int
	// Extract configures the per-file extractor.
	Extract extract.Options
}

// Engine owns the traversal state. The graph is mutated only on the
// coordinating goroutine; parsing and extraction fan out per wave.
type Engine struct {
	tree     *workspace.Tree
	resolver *resolve.Resolver
	parser   *parse.Parser
	tables   *workspace.Tables
	opts     Options
}

// New creates an engine.
func New(tree *workspace.Tree, resolver *resolve.Resolver, parser *parse.Parser, tables *workspace.Tables, opts Options) *Engine {
	return &Engine{
		tree:     tree,
		resolver: resolver,
		parser:   parser,
		tables:   tables,
		opts:     opts,
	}
}

// task is one worklist item: a file to apply in a channel.
type task struct {
	node     *FileNode
	typeOnly bool
}

// Run executes the fixpoint over the given entry sets. Entry sets are
// seeded ancestors-first, then lexicographically, so the worklist
// order and therefore the report are reproducible. Cancellation is
// checked between waves; no file is abandoned mid-parse.
func (e *Engine) Run(ctx context.Context, sets []*entries.FileSet) (*Graph, *Outcome, error) {
	graph := NewGraph()
	outcome := &Outcome{DynamicSpecifiers: make(map[string][]string)}

	ordered := append([]*entries.FileSet(nil), sets...)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i].Ws, ordered[j].Ws
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		return a.Dir < b.Dir
	})

	var queue []task
	for _, set := range ordered {
		for _, path := range set.EntryList() {
			node := graph.Intern(path, e.tree.Owner(path))
			node.IsEntry = true
			queue = append(queue, task{node: node})
		}
	}

	// processed tracks per-file channel application: bit 0 value,
	// bit 1 type.
	processed := make(map[int]uint8)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		batch := dedupe(queue, processed)
		queue = nil
		if len(batch) == 0 {
			break
		}

		if err := e.loadRecords(ctx, batch, graph, outcome); err != nil {
			return nil, nil, err
		}

		for _, item := range batch {
			queue = append(queue, e.apply(graph, outcome, item)...)
		}
	}

	return graph, outcome, nil
}

// dedupe drops tasks whose channel was already applied, marking the
// rest as applied. First occurrence order is preserved.
func dedupe(queue []task, processed map[int]uint8) []task {
	var batch []task
	for _, item := range queue {
		bit := uint8(1)
		if item.typeOnly {
			bit = 2
		}
		if processed[item.node.ID]&bit != 0 {
			continue
		}
		// A value-channel application subsumes the type channel.
		if !item.typeOnly {
			bit |= 2
		} else if processed[item.node.ID]&1 != 0 {
			continue
		}
		processed[item.node.ID] |= bit
		batch = append(batch, item)
	}
	return batch
}

// loadRecords parses and extracts every batch file lacking a record.
// Extraction is pure and records are immutable, so this fans out; the
// caller applies results in deterministic batch order afterwards.
func (e *Engine) loadRecords(ctx context.Context, batch []task, graph *Graph, outcome *Outcome) error {
	jobs := e.opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	var pending []*FileNode
	seen := make(map[int]bool)
	for _, item := range batch {
		if item.node.Record != nil || seen[item.node.ID] {
			continue
		}
		seen[item.node.ID] = true
		pending = append(pending, item.node)
	}

	records := make([]*extract.FileRecord, len(pending))
	errs := make([]error, len(pending))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(jobs)
	for i, node := range pending {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			parsed, err := e.parser.Parse(node.Path)
			if err != nil {
				errs[i] = err
				return nil
			}
			defer parsed.Close()
			records[i] = extract.Extract(parsed, e.opts.Extract)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for i, node := range pending {
		if errs[i] != nil {
			// I/O failures on explicitly named entries are fatal;
			// anything else demotes to a diagnostic and the file is
			// admitted empty.
			if node.IsEntry {
				return fmt.Errorf("reading entry %s: %w", node.Path, errs[i])
			}
			outcome.Diagnostics = append(outcome.Diagnostics,
				fmt.Sprintf("reading %s: %v", node.Path, errs[i]))
			records[i] = &extract.FileRecord{Path: node.Path}
		}
		node.Record = records[i]
		outcome.Diagnostics = append(outcome.Diagnostics, records[i].Diagnostics...)
		graph.AddPropertyUses(records[i].PropertyUses)
		if specs := records[i].DynamicSpecifiers; len(specs) > 0 {
			outcome.DynamicSpecifiers[node.Path] = specs
		}
	}

	return nil
}

// apply walks one file's record in the given channel, resolving
// imports, marking reachability and reference edges, and returning
// follow-up tasks.
func (e *Engine) apply(graph *Graph, outcome *Outcome, item task) []task {
	node := item.node
	record := node.Record
	if record == nil {
		return nil
	}

	if item.typeOnly {
		node.ReachType = true
	} else {
		node.ReachValue = true
	}

	var next []task
	for _, imp := range record.Imports {
		edgeTypeOnly := item.typeOnly || importTypeOnly(imp)
		result := e.resolver.Resolve(imp.Specifier, node.Path, edgeTypeOnly)

		switch result.Kind {
		case resolve.Internal:
			target := graph.Intern(result.Path, e.tree.Owner(result.Path))
			graph.AddEdge(node.ID, target.ID)
			e.markRefs(graph, record, imp, target)
			next = append(next, task{node: target, typeOnly: edgeTypeOnly})

		case resolve.External:
			ws := node.Ws
			if ws == nil {
				ws = e.tree.Root
			}
			e.tables.AddFileRef(ws, result.Package, node.Path, edgeTypeOnly)

		case resolve.Builtin:
			// Built-ins need no declaration.

		case resolve.Unresolved:
			outcome.Unresolved = append(outcome.Unresolved, Unresolved{
				File:      node.Path,
				Specifier: imp.Specifier,
				Bare:      isBare(imp.Specifier),
				Line:      imp.Line,
			})
		}
	}

	// In-file references to the file's own exports.
	for _, export := range record.Exports {
		if export.LocalName == "" {
			continue
		}
		if record.Uses[export.LocalName] > 0 {
			graph.MarkSelfRef(node.ID, export.Name)
		}
	}

	return next
}

// markRefs translates an import's bindings into reference edges on the
// resolved target.
func (e *Engine) markRefs(graph *Graph, record *extract.FileRecord, imp extract.Import, target *FileNode) {
	for _, binding := range imp.Bindings {
		if binding.Name != "*" {
			graph.MarkRef(target.ID, binding.Name)
			continue
		}

		if binding.Local == "" {
			// Star re-exports, dynamic imports and require bind the
			// whole module object: conservatively reference everything.
			graph.MarkAllRefs(target.ID)
			continue
		}

		// Namespace binding: member accesses reference individual
		// exports; any bare use of the binding references all of them.
		if record.BareUses[binding.Local] {
			graph.MarkAllRefs(target.ID)
			continue
		}
		members := make([]string, 0, len(record.NamespaceMembers[binding.Local]))
		for member := range record.NamespaceMembers[binding.Local] {
			members = append(members, member)
		}
		sort.Strings(members)
		for _, member := range members {
			graph.MarkRef(target.ID, member)
		}
	}
}

// importTypeOnly reports whether every binding of the import is
// type-level.
func importTypeOnly(imp extract.Import) bool {
	if imp.TypeOnly {
		return true
	}
	if len(imp.Bindings) == 0 {
		return false
	}
	for _, binding := range imp.Bindings {
		if !binding.TypeOnly {
			return false
		}
	}
	return true
}

// isBare reports package-shaped specifiers.
func isBare(specifier string) bool {
	if specifier == "" {
		return false
	}
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") ||
		strings.HasPrefix(specifier, "/") || strings.HasPrefix(specifier, "#") {
		return false
	}
	if strings.Contains(specifier, "://") {
		return false
	}
	return true
}
