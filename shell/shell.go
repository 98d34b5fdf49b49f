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

// Package shell extracts binaries and referenced files from manifest
// script command lines.
package shell

import (
	"regexp"
	"strings"

	"github.com/google/shlex"
)

// Invocation is one command within a script line.
type Invocation struct {
	// Binary is the executed program name, empty for pure shell
	// constructs and package-manager script references.
	Binary string
	// Argv holds the remaining arguments.
	Argv []string
	// Files lists arguments that look like local source files.
	Files []string
}

// separators split a command line into individual invocations.
var separators = map[string]bool{
	"&&": true, "||": true, ";": true, "|": true, "&": true,
}

// runners wrap another command; their first non-flag argument is the
// real binary.
var runners = map[string]bool{
	"npx": true, "dotenv": true,
}

// packageManagers run scripts or binaries depending on their first
// argument.
var packageManagers = map[string]bool{
	"npm": true, "yarn": true, "pnpm": true, "bun": true,
}

// lifecycleSubcommands of package managers that reference scripts, not
// binaries.
var lifecycleSubcommands = map[string]bool{
	"run": true, "test": true, "start": true, "stop": true,
	"install": true, "ci": true, "publish": true, "version": true,
	"pack": true, "link": true, "add": true, "remove": true,
	"init": true, "audit": true, "outdated": true, "update": true,
	"dedupe": true, "why": true, "config": true, "cache": true,
	"workspaces": true, "workspace": true, "dlx": true,
}

var fileArg = regexp.MustCompile(`\.(?:[mc]?[jt]sx?|json)$`)

// envAssignment matches leading VAR=value tokens.
var envAssignment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

// Parse tokenizes a script command line and returns its invocations.
// Unparsable lines yield nil rather than an error; scripts routinely
// contain shell syntax that shlex cannot fully model.
func Parse(commandLine string) []Invocation {
	tokens, err := shlex.Split(commandLine)
	if err != nil {
		return nil
	}

	var invocations []Invocation
	var current []string
	flush := func() {
		if inv, ok := invocation(current); ok {
			invocations = append(invocations, inv)
		}
		current = nil
	}

	for _, token := range tokens {
		if separators[token] {
			flush()
			continue
		}
		current = append(current, token)
	}
	flush()

	return invocations
}

// invocation interprets one token run.
func invocation(tokens []string) (Invocation, bool) {
	// Strip leading environment assignments.
	for len(tokens) > 0 && envAssignment.MatchString(tokens[0]) {
		tokens = tokens[1:]
	}
	if len(tokens) == 0 {
		return Invocation{}, false
	}

	binary := tokens[0]
	rest := tokens[1:]

	switch {
	case binary == "node" || binary == "tsx" || binary == "ts-node":
		// Interpreter invocations reference files, and tsx/ts-node are
		// binaries in their own right.
		inv := Invocation{Binary: binary, Argv: rest, Files: fileArgs(rest)}
		if binary == "node" {
			inv.Binary = ""
		}
		return inv, true

	case runners[binary]:
		// Skip runner flags ("npx -y eslint ." -> eslint).
		for len(rest) > 0 && (strings.HasPrefix(rest[0], "-") || envAssignment.MatchString(rest[0])) {
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return Invocation{}, false
		}
		return Invocation{Binary: rest[0], Argv: rest[1:], Files: fileArgs(rest[1:])}, true

	case binary == "cross-env":
		for len(rest) > 0 && envAssignment.MatchString(rest[0]) {
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return Invocation{}, false
		}
		return invocation(rest)

	case packageManagers[binary]:
		if len(rest) == 0 {
			return Invocation{}, false
		}
		sub := rest[0]
		if sub == "exec" {
			// "npm exec eslint ." runs a binary, like npx.
			return invocation(append([]string{"npx"}, rest[1:]...))
		}
		if lifecycleSubcommands[sub] || strings.HasPrefix(sub, "-") {
			// Script reference or manager operation; no foreign binary.
			return Invocation{Files: fileArgs(rest)}, true
		}
		// "yarn eslint ." executes the eslint binary.
		return Invocation{Binary: sub, Argv: rest[1:], Files: fileArgs(rest[1:])}, true
	}

	return Invocation{Binary: binary, Argv: rest, Files: fileArgs(rest)}, true
}

// fileArgs filters arguments that name local source files.
func fileArgs(args []string) []string {
	var files []string
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		if strings.HasPrefix(arg, "./") || strings.HasPrefix(arg, "../") || fileArg.MatchString(arg) {
			if !strings.Contains(arg, "*") {
				files = append(files, arg)
			}
		}
	}
	return files
}

// Binaries returns the distinct binary names across invocations.
func Binaries(invocations []Invocation) []string {
	seen := make(map[string]bool)
	var binaries []string
	for _, inv := range invocations {
		if inv.Binary == "" || seen[inv.Binary] {
			continue
		}
		seen[inv.Binary] = true
		binaries = append(binaries, inv.Binary)
	}
	return binaries
}

// Files returns the distinct file references across invocations.
func Files(invocations []Invocation) []string {
	seen := make(map[string]bool)
	var files []string
	for _, inv := range invocations {
		for _, f := range inv.Files {
			if seen[f] {
				continue
			}
			seen[f] = true
			files = append(files, f)
		}
	}
	return files
}
