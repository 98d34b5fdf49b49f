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

// Package parse is the source parser facade: it turns one file into a
// syntax tree, delegating non-standard extensions to registered
// compilers.
package parse

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsTypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"bennypowers.dev/deadwood/fs"
)

// Languages holds pre-initialized tree-sitter language grammars.
var languages = struct {
	typescript *ts.Language
	tsx        *ts.Language
}{
	ts.NewLanguage(tsTypescript.LanguageTypescript()),
	ts.NewLanguage(tsTypescript.LanguageTSX()),
}

// Parser pools for reuse.
var (
	tsParserPool = sync.Pool{
		New: func() any {
			parser := ts.NewParser()
			if err := parser.SetLanguage(languages.typescript); err != nil {
				panic("failed to set TypeScript language: " + err.Error())
			}
			return parser
		},
	}

	tsxParserPool = sync.Pool{
		New: func() any {
			parser := ts.NewParser()
			if err := parser.SetLanguage(languages.tsx); err != nil {
				panic("failed to set TSX language: " + err.Error())
			}
			return parser
		},
	}
)

func getParser(tsx bool) (*ts.Parser, *sync.Pool) {
	if tsx {
		return tsxParserPool.Get().(*ts.Parser), &tsxParserPool
	}
	return tsParserPool.Get().(*ts.Parser), &tsParserPool
}

func putParser(p *ts.Parser, pool *sync.Pool) {
	p.Reset()
	pool.Put(p)
}

// CompileFunc preprocesses a non-standard source (e.g. .vue, .svelte)
// into plain JS/TS. Registered per extension by collaborators.
type CompileFunc func(path string, source []byte) ([]byte, error)

// Parsed is the result of parsing one file. Close must be called when
// the tree is no longer needed.
type Parsed struct {
	Path string
	// Source is the (possibly compiled) text the tree indexes into.
	Source []byte
	Tree   *ts.Tree
	// Diagnostics carries per-file parse problems; a file with
	// diagnostics is still admitted, without a tree, so it contributes
	// no imports or exports.
	Diagnostics []string
}

// Close releases the underlying tree.
func (p *Parsed) Close() {
	if p.Tree != nil {
		p.Tree.Close()
		p.Tree = nil
	}
}

// Parser is the facade over tree-sitter plus registered compilers.
// Safe for concurrent use.
type Parser struct {
	fsys      fs.FileSystem
	mu        sync.RWMutex
	compilers map[string]CompileFunc
}

// NewParser creates a parser facade reading through fsys.
func NewParser(fsys fs.FileSystem) *Parser {
	return &Parser{
		fsys:      fsys,
		compilers: make(map[string]CompileFunc),
	}
}

// RegisterCompiler installs a compiler for an extension (".vue").
func (p *Parser) RegisterCompiler(ext string, compile CompileFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.compilers[strings.ToLower(ext)] = compile
}

// compilerFor returns the registered compiler for a path, if any.
func (p *Parser) compilerFor(path string) (CompileFunc, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	compile, ok := p.compilers[strings.ToLower(filepath.Ext(path))]
	return compile, ok
}

// standardExtensions parse without a compiler.
var standardExtensions = map[string]bool{
	".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".ts": true, ".tsx": true, ".mts": true, ".cts": true,
}

// Parseable reports whether the facade can produce a tree for path,
// either natively or through a registered compiler.
func (p *Parser) Parseable(path string) bool {
	if standardExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	_, ok := p.compilerFor(path)
	return ok
}

// Parse reads and parses one file. I/O errors propagate; syntax
// problems demote to diagnostics on the returned value.
func (p *Parser) Parse(path string) (*Parsed, error) {
	source, err := p.fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return p.ParseSource(path, source)
}

// ParseSource parses in-memory content under the given path.
func (p *Parser) ParseSource(path string, source []byte) (*Parsed, error) {
	parsed := &Parsed{Path: path, Source: source}

	if compile, ok := p.compilerFor(path); ok {
		compiled, err := compile(path, source)
		if err != nil {
			parsed.Diagnostics = append(parsed.Diagnostics,
				fmt.Sprintf("compiling %s: %v", path, err))
			return parsed, nil
		}
		parsed.Source = compiled
	} else if !standardExtensions[strings.ToLower(filepath.Ext(path))] {
		// Unknown extension: admit with zero edges.
		return parsed, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	tsx := ext == ".tsx" || ext == ".jsx"

	parser, pool := getParser(tsx)
	defer putParser(parser, pool)

	tree := parser.Parse(parsed.Source, nil)
	if tree == nil {
		parsed.Diagnostics = append(parsed.Diagnostics,
			fmt.Sprintf("failed to parse %s", path))
		return parsed, nil
	}

	if tree.RootNode().HasError() {
		tree.Close()
		parsed.Diagnostics = append(parsed.Diagnostics,
			fmt.Sprintf("syntax errors in %s", path))
		return parsed, nil
	}

	parsed.Tree = tree
	return parsed, nil
}
