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

// Package extract walks one parsed file and yields its imports,
// exports and reference edges.
package extract

import (
	"regexp"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"bennypowers.dev/deadwood/parse"
)

// Extract walks the parsed file and returns its record. Files without
// a tree (parse failures, opaque assets) yield an empty record.
func Extract(parsed *parse.Parsed, opts Options) *FileRecord {
	record := &FileRecord{
		Path:             parsed.Path,
		Uses:             make(map[string]int),
		BareUses:         make(map[string]bool),
		NamespaceMembers: make(map[string]map[string]bool),
		PropertyUses:     make(map[string]int),
		Diagnostics:      append([]string(nil), parsed.Diagnostics...),
	}
	if parsed.Tree == nil {
		return record
	}

	x := &extractor{
		source: parsed.Source,
		record: record,
		opts:   opts,
	}
	x.walk(parsed.Tree.RootNode())
	return record
}

type extractor struct {
	source []byte
	record *FileRecord
	opts   Options
}

func (x *extractor) text(node *ts.Node) string {
	return node.Utf8Text(x.source)
}

func (x *extractor) line(node *ts.Node) int {
	return int(node.StartPosition().Row) + 1
}

// stringValue returns the literal value of a string or substitution-free
// template node; ok is false for anything dynamic.
func (x *extractor) stringValue(node *ts.Node) (string, bool) {
	switch node.Kind() {
	case "string":
		return strings.Trim(x.text(node), `"'`), true
	case "template_string":
		for i := uint(0); i < node.NamedChildCount(); i++ {
			if node.NamedChild(i).Kind() == "template_substitution" {
				return "", false
			}
		}
		return strings.Trim(x.text(node), "`"), true
	}
	return "", false
}

// walk dispatches on node kind. Identifier counting is context aware:
// declaration positions never count, member accesses record per-member
// references, anything else is a bare use.
func (x *extractor) walk(node *ts.Node) {
	switch node.Kind() {
	case "comment":
		return

	case "import_statement":
		x.importStatement(node)
		return

	case "export_statement":
		x.exportStatement(node)
		return

	case "lexical_declaration", "variable_declaration":
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child.Kind() == "variable_declarator" {
				x.declarator(child)
			}
		}
		return

	case "member_expression":
		x.member(node)
		return

	case "subscript_expression":
		x.subscript(node)
		return

	case "call_expression":
		x.call(node)
		return

	case "new_expression":
		x.newExpression(node)
		return

	case "assignment_expression":
		if x.commonJSExport(node) {
			if right := node.ChildByFieldName("right"); right != nil {
				x.walk(right)
			}
			return
		}

	case "nested_type_identifier":
		// Qualified type reference: ns.Foo
		if module := node.ChildByFieldName("module"); module != nil && module.Kind() == "identifier" {
			name := x.text(module)
			x.record.Uses[name]++
			if member := node.ChildByFieldName("name"); member != nil {
				x.addMember(name, x.text(member))
			}
		}
		return

	case "identifier":
		x.bareUse(x.text(node))
		return

	case "type_identifier", "shorthand_property_identifier":
		x.record.Uses[x.text(node)]++
		return

	case "property_identifier", "private_property_identifier",
		"statement_identifier", "shorthand_property_identifier_pattern":
		return

	case "function_declaration", "generator_function_declaration",
		"function_expression", "arrow_function", "method_definition",
		"class_declaration", "class", "enum_declaration",
		"interface_declaration", "type_alias_declaration":
		x.walkSkippingFields(node, "name")
		return

	case "formal_parameters", "required_parameter", "optional_parameter":
		// Parameter patterns declare bindings; only defaults, types and
		// decorators inside them are uses.
		x.walkSkippingFields(node, "pattern")
		return

	case "pair":
		if key := node.ChildByFieldName("key"); key != nil && key.Kind() == "computed_property_name" {
			x.walk(key)
		}
		if value := node.ChildByFieldName("value"); value != nil {
			x.walk(value)
		}
		return

	case "object_pattern", "array_pattern", "pair_pattern":
		// Destructuring declares bindings; defaults are uses.
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			switch child.Kind() {
			case "object_assignment_pattern", "assignment_pattern":
				if right := child.ChildByFieldName("right"); right != nil {
					x.walk(right)
				}
			case "pair_pattern":
				if value := child.ChildByFieldName("value"); value != nil {
					x.walk(value)
				}
			}
		}
		return
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		x.walk(node.NamedChild(i))
	}
}

func (x *extractor) walkSkippingFields(node *ts.Node, skip string) {
	skipNode := node.ChildByFieldName(skip)
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if skipNode != nil && child.Id() == skipNode.Id() {
			continue
		}
		x.walk(child)
	}
}

func (x *extractor) bareUse(name string) {
	x.record.Uses[name]++
	x.record.BareUses[name] = true
}

func (x *extractor) addMember(binding, member string) {
	members, ok := x.record.NamespaceMembers[binding]
	if !ok {
		members = make(map[string]bool)
		x.record.NamespaceMembers[binding] = members
	}
	members[member] = true
}

// member handles ns.foo shaped accesses, recording per-member
// references without promoting the object to a whole use.
func (x *extractor) member(node *ts.Node) {
	object := node.ChildByFieldName("object")
	property := node.ChildByFieldName("property")

	propName := ""
	if property != nil && property.Kind() == "property_identifier" {
		propName = x.text(property)
		x.record.PropertyUses[propName]++
	}

	if object == nil {
		return
	}
	if object.Kind() == "identifier" {
		name := x.text(object)
		x.record.Uses[name]++
		if propName != "" {
			x.addMember(name, propName)
		}
		return
	}
	x.walk(object)
}

func (x *extractor) subscript(node *ts.Node) {
	object := node.ChildByFieldName("object")
	index := node.ChildByFieldName("index")

	if object != nil && object.Kind() == "identifier" {
		name := x.text(object)
		x.record.Uses[name]++
		if index != nil {
			if value, ok := x.stringValue(index); ok {
				x.addMember(name, value)
				x.record.PropertyUses[value]++
				return
			}
			// Computed access with an unknown key reads any member.
			x.record.BareUses[name] = true
			x.walk(index)
		}
		return
	}
	if object != nil {
		x.walk(object)
	}
	if index != nil {
		x.walk(index)
	}
}

// call handles dynamic import() and require() plus ordinary calls.
func (x *extractor) call(node *ts.Node) {
	fn := node.ChildByFieldName("function")
	args := node.ChildByFieldName("arguments")

	if fn != nil {
		switch {
		case fn.Kind() == "import":
			x.dynamicImport(node, args)
			return
		case fn.Kind() == "identifier" && x.text(fn) == "require":
			if x.requireCall(node, args) {
				return
			}
		case fn.Kind() == "member_expression" && x.text(fn) == "require.resolve":
			if x.requireCall(node, args) {
				return
			}
		}
		x.walk(fn)
	}
	if args != nil {
		x.walk(args)
	}
}

func (x *extractor) dynamicImport(node, args *ts.Node) {
	if args != nil && args.NamedChildCount() > 0 {
		arg := args.NamedChild(0)
		if value, ok := x.stringValue(arg); ok {
			x.record.Imports = append(x.record.Imports, Import{
				Specifier: value,
				Dynamic:   true,
				Bindings:  []ImportBinding{{Name: "*"}},
				Line:      x.line(node),
			})
			return
		}
		x.record.DynamicSpecifiers = append(x.record.DynamicSpecifiers, x.text(arg))
		x.walk(arg)
	}
}

func (x *extractor) requireCall(node, args *ts.Node) bool {
	if args == nil || args.NamedChildCount() == 0 {
		return false
	}
	value, ok := x.stringValue(args.NamedChild(0))
	if !ok {
		return false
	}
	x.record.Imports = append(x.record.Imports, Import{
		Specifier: value,
		Require:   true,
		Bindings:  []ImportBinding{{Name: "*"}},
		Line:      x.line(node),
	})
	return true
}

// newExpression recognizes new URL("./asset", import.meta.url).
func (x *extractor) newExpression(node *ts.Node) {
	constructor := node.ChildByFieldName("constructor")
	args := node.ChildByFieldName("arguments")

	if constructor != nil && constructor.Kind() == "identifier" &&
		x.text(constructor) == "URL" && args != nil && args.NamedChildCount() >= 2 {
		base := args.NamedChild(1)
		if base.Kind() == "member_expression" && x.text(base) == "import.meta.url" {
			if value, ok := x.stringValue(args.NamedChild(0)); ok {
				x.record.Imports = append(x.record.Imports, Import{
					Specifier: value,
					URL:       true,
					Line:      x.line(node),
				})
				return
			}
		}
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		x.walk(node.NamedChild(i))
	}
}

// declarator handles one variable_declarator, tracking namespace
// destructuring: const { a, b } = ns.
func (x *extractor) declarator(node *ts.Node) {
	name := node.ChildByFieldName("name")
	value := node.ChildByFieldName("value")

	if name != nil && name.Kind() == "object_pattern" && value != nil && value.Kind() == "identifier" {
		binding := x.text(value)
		x.record.Uses[binding]++
		for i := uint(0); i < name.NamedChildCount(); i++ {
			child := name.NamedChild(i)
			switch child.Kind() {
			case "shorthand_property_identifier_pattern":
				x.addMember(binding, x.text(child))
			case "pair_pattern":
				if key := child.ChildByFieldName("key"); key != nil && key.Kind() == "property_identifier" {
					x.addMember(binding, x.text(key))
				}
			case "rest_pattern":
				// Rest captures the remaining members.
				x.record.BareUses[binding] = true
			}
		}
		return
	}

	if name != nil && name.Kind() != "identifier" {
		x.walk(name)
	}
	for _, field := range []string{"type", "value"} {
		if child := node.ChildByFieldName(field); child != nil {
			x.walk(child)
		}
	}
}

// hasKeywordChild reports whether an unnamed child token of the given
// kind exists directly under node.
func hasKeywordChild(node *ts.Node, keyword string) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if !child.IsNamed() && child.Kind() == keyword {
			return true
		}
	}
	return false
}

func (x *extractor) importStatement(node *ts.Node) {
	source := node.ChildByFieldName("source")
	if source == nil {
		return
	}
	specifier, ok := x.stringValue(source)
	if !ok {
		return
	}

	imp := Import{
		Specifier: specifier,
		TypeOnly:  hasKeywordChild(node, "type"),
		Line:      x.line(node),
	}

	var clause *ts.Node
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if node.NamedChild(i).Kind() == "import_clause" {
			clause = node.NamedChild(i)
			break
		}
	}

	if clause == nil {
		imp.SideEffect = true
		x.record.Imports = append(x.record.Imports, imp)
		return
	}

	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		switch child.Kind() {
		case "identifier":
			imp.Bindings = append(imp.Bindings, ImportBinding{
				Name:     "default",
				Local:    x.text(child),
				TypeOnly: imp.TypeOnly,
			})
		case "namespace_import":
			for j := uint(0); j < child.NamedChildCount(); j++ {
				if child.NamedChild(j).Kind() == "identifier" {
					imp.Bindings = append(imp.Bindings, ImportBinding{
						Name:     "*",
						Local:    x.text(child.NamedChild(j)),
						TypeOnly: imp.TypeOnly,
					})
				}
			}
		case "named_imports":
			for j := uint(0); j < child.NamedChildCount(); j++ {
				spec := child.NamedChild(j)
				if spec.Kind() != "import_specifier" {
					continue
				}
				nameNode := spec.ChildByFieldName("name")
				if nameNode == nil {
					continue
				}
				name := x.text(nameNode)
				if nameNode.Kind() == "string" {
					name = strings.Trim(name, `"'`)
				}
				local := name
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					local = x.text(alias)
				}
				imp.Bindings = append(imp.Bindings, ImportBinding{
					Name:     name,
					Local:    local,
					TypeOnly: imp.TypeOnly || hasKeywordChild(spec, "type"),
				})
			}
		}
	}

	x.record.Imports = append(x.record.Imports, imp)
}

func (x *extractor) exportStatement(node *ts.Node) {
	tags := x.jsdocTags(node)
	typeOnly := hasKeywordChild(node, "type")

	if source := node.ChildByFieldName("source"); source != nil {
		x.reexport(node, source, typeOnly, tags)
		return
	}

	if hasKeywordChild(node, "default") {
		x.defaultExport(node, tags)
		return
	}

	if declaration := node.ChildByFieldName("declaration"); declaration != nil {
		x.declarationExport(declaration, tags)
		x.walk(declaration)
		return
	}

	// export { a, b as c }
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() != "export_clause" {
			continue
		}
		for j := uint(0); j < child.NamedChildCount(); j++ {
			spec := child.NamedChild(j)
			if spec.Kind() != "export_specifier" {
				continue
			}
			nameNode := spec.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			local := x.text(nameNode)
			exported := local
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = x.text(alias)
				if alias.Kind() == "string" {
					exported = strings.Trim(exported, `"'`)
				}
			}
			kind := KindValue
			if typeOnly || hasKeywordChild(spec, "type") {
				kind = KindType
			}
			x.record.Exports = append(x.record.Exports, Export{
				Name:      exported,
				LocalName: local,
				Kind:      kind,
				Tags:      tags,
				Line:      x.line(spec),
			})
			// The clause is a whole use of a namespace binding, but
			// not a self-reference of the export.
			x.record.BareUses[local] = true
		}
	}
}

// reexport handles export ... from "x" forms.
func (x *extractor) reexport(node, source *ts.Node, typeOnly bool, tags []string) {
	specifier, ok := x.stringValue(source)
	if !ok {
		return
	}

	imp := Import{
		Specifier: specifier,
		Reexport:  true,
		TypeOnly:  typeOnly,
		Line:      x.line(node),
	}

	handled := false
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "export_clause":
			handled = true
			for j := uint(0); j < child.NamedChildCount(); j++ {
				spec := child.NamedChild(j)
				if spec.Kind() != "export_specifier" {
					continue
				}
				nameNode := spec.ChildByFieldName("name")
				if nameNode == nil {
					continue
				}
				name := x.text(nameNode)
				exported := name
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					exported = x.text(alias)
				}
				specTypeOnly := typeOnly || hasKeywordChild(spec, "type")
				imp.Bindings = append(imp.Bindings, ImportBinding{Name: name, TypeOnly: specTypeOnly})
				kind := KindValue
				if specTypeOnly {
					kind = KindType
				}
				x.record.Exports = append(x.record.Exports, Export{
					Name: exported,
					Kind: kind,
					Tags: tags,
					Line: x.line(spec),
				})
			}
		case "namespace_export":
			handled = true
			for j := uint(0); j < child.NamedChildCount(); j++ {
				if child.NamedChild(j).Kind() == "identifier" {
					nsName := x.text(child.NamedChild(j))
					imp.Bindings = append(imp.Bindings, ImportBinding{Name: "*", TypeOnly: typeOnly})
					x.record.Exports = append(x.record.Exports, Export{
						Name: nsName,
						Kind: KindNamespace,
						Tags: tags,
						Line: x.line(child),
					})
				}
			}
		}
	}

	if !handled {
		// export * from "x": flattened namespace re-export.
		imp.Star = true
		imp.Bindings = append(imp.Bindings, ImportBinding{Name: "*", TypeOnly: typeOnly})
	}

	x.record.Imports = append(x.record.Imports, imp)
}

func (x *extractor) defaultExport(node *ts.Node, tags []string) {
	export := Export{Name: "default", Kind: KindDefault, Tags: tags, Line: x.line(node)}

	if declaration := node.ChildByFieldName("declaration"); declaration != nil {
		if name := declaration.ChildByFieldName("name"); name != nil {
			export.LocalName = x.text(name)
		}
		x.record.Exports = append(x.record.Exports, export)
		x.memberExports(declaration, export.LocalName, tags)
		x.walk(declaration)
		return
	}

	x.record.Exports = append(x.record.Exports, export)
	if value := node.ChildByFieldName("value"); value != nil {
		x.walk(value)
	}
}

// declarationExport records exports for `export <declaration>` forms.
func (x *extractor) declarationExport(declaration *ts.Node, tags []string) {
	line := x.line(declaration)
	named := func(kind ExportKind) {
		if name := declaration.ChildByFieldName("name"); name != nil {
			x.record.Exports = append(x.record.Exports, Export{
				Name:      x.text(name),
				LocalName: x.text(name),
				Kind:      kind,
				Tags:      tags,
				Line:      line,
			})
		}
	}

	switch declaration.Kind() {
	case "function_declaration", "generator_function_declaration":
		named(KindValue)
	case "class_declaration", "abstract_class_declaration":
		named(KindValue)
		if name := declaration.ChildByFieldName("name"); name != nil {
			x.memberExports(declaration, x.text(name), tags)
		}
	case "interface_declaration", "type_alias_declaration":
		named(KindType)
	case "enum_declaration":
		named(KindEnum)
		if name := declaration.ChildByFieldName("name"); name != nil {
			x.enumMemberExports(declaration, x.text(name), tags)
		}
	case "lexical_declaration", "variable_declaration":
		for i := uint(0); i < declaration.NamedChildCount(); i++ {
			child := declaration.NamedChild(i)
			if child.Kind() != "variable_declarator" {
				continue
			}
			name := child.ChildByFieldName("name")
			if name == nil {
				continue
			}
			switch name.Kind() {
			case "identifier":
				x.record.Exports = append(x.record.Exports, Export{
					Name:      x.text(name),
					LocalName: x.text(name),
					Kind:      KindValue,
					Tags:      tags,
					Line:      x.line(child),
				})
			case "object_pattern", "array_pattern":
				x.patternExports(name, tags)
			}
		}
	}
}

// patternExports records every binding declared by a destructuring
// export pattern.
func (x *extractor) patternExports(pattern *ts.Node, tags []string) {
	var visit func(node *ts.Node)
	visit = func(node *ts.Node) {
		switch node.Kind() {
		case "shorthand_property_identifier_pattern", "identifier":
			x.record.Exports = append(x.record.Exports, Export{
				Name:      x.text(node),
				LocalName: x.text(node),
				Kind:      KindValue,
				Tags:      tags,
				Line:      x.line(node),
			})
			return
		case "pair_pattern":
			if value := node.ChildByFieldName("value"); value != nil {
				visit(value)
			}
			return
		case "assignment_pattern", "object_assignment_pattern":
			if left := node.ChildByFieldName("left"); left != nil {
				visit(left)
			}
			return
		}
		for i := uint(0); i < node.NamedChildCount(); i++ {
			visit(node.NamedChild(i))
		}
	}
	visit(pattern)
}

// memberExports records class member exports when the mode is enabled.
func (x *extractor) memberExports(class *ts.Node, className string, tags []string) {
	if !x.opts.ClassMembers || className == "" {
		return
	}
	body := class.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := uint(0); i < body.NamedChildCount(); i++ {
		member := body.NamedChild(i)
		switch member.Kind() {
		case "method_definition", "public_field_definition":
		default:
			continue
		}
		if isPrivateMember(x, member) {
			continue
		}
		name := member.ChildByFieldName("name")
		if name == nil || name.Kind() != "property_identifier" {
			continue
		}
		text := x.text(name)
		if text == "constructor" {
			continue
		}
		memberTags := append(append([]string(nil), tags...), x.jsdocTags(member)...)
		x.record.Exports = append(x.record.Exports, Export{
			Name:   text,
			Kind:   KindClassMember,
			Parent: className,
			Tags:   memberTags,
			Line:   x.line(member),
		})
	}
}

// isPrivateMember reports private/protected accessibility.
func isPrivateMember(x *extractor, member *ts.Node) bool {
	for i := uint(0); i < member.NamedChildCount(); i++ {
		child := member.NamedChild(i)
		if child.Kind() == "accessibility_modifier" {
			text := x.text(child)
			return text == "private" || text == "protected"
		}
	}
	return false
}

// enumMemberExports records enum member exports when enabled.
func (x *extractor) enumMemberExports(enum *ts.Node, enumName string, tags []string) {
	if !x.opts.EnumMembers {
		return
	}
	body := enum.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := uint(0); i < body.NamedChildCount(); i++ {
		member := body.NamedChild(i)
		var nameNode *ts.Node
		switch member.Kind() {
		case "enum_assignment":
			nameNode = member.ChildByFieldName("name")
		case "property_identifier":
			nameNode = member
		default:
			continue
		}
		if nameNode == nil {
			continue
		}
		name := x.text(nameNode)
		if nameNode.Kind() == "string" {
			name = strings.Trim(name, `"'`)
		}
		x.record.Exports = append(x.record.Exports, Export{
			Name:   name,
			Kind:   KindEnumMember,
			Parent: enumName,
			Tags:   tags,
			Line:   x.line(member),
		})
	}
}

// commonJSExport recognizes module.exports and exports.name assignments.
func (x *extractor) commonJSExport(node *ts.Node) bool {
	left := node.ChildByFieldName("left")
	if left == nil || left.Kind() != "member_expression" {
		return false
	}
	text := x.text(left)

	if text == "module.exports" {
		x.record.Exports = append(x.record.Exports, Export{
			Name: "default",
			Kind: KindDefault,
			Line: x.line(node),
		})
		return true
	}

	object := left.ChildByFieldName("object")
	property := left.ChildByFieldName("property")
	if object == nil || property == nil || property.Kind() != "property_identifier" {
		return false
	}
	objText := x.text(object)
	if objText != "exports" && objText != "module.exports" {
		return false
	}
	x.record.Exports = append(x.record.Exports, Export{
		Name:      x.text(property),
		LocalName: "",
		Kind:      KindValue,
		Line:      x.line(node),
	})
	return true
}

var tagPattern = regexp.MustCompile(`@([A-Za-z][A-Za-z0-9_-]*)`)

// jsdocTags collects tags from a comment directly above the node.
func (x *extractor) jsdocTags(node *ts.Node) []string {
	prev := node.PrevNamedSibling()
	if prev == nil || prev.Kind() != "comment" {
		return nil
	}
	if int(node.StartPosition().Row)-int(prev.EndPosition().Row) > 1 {
		return nil
	}
	text := x.text(prev)
	if !strings.HasPrefix(text, "/**") {
		return nil
	}
	var tags []string
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		tags = append(tags, m[1])
	}
	return tags
}
