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

// Package scan provides the scan command for deadwood.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/deadwood/config"
	"bennypowers.dev/deadwood/entries"
	"bennypowers.dev/deadwood/extract"
	"bennypowers.dev/deadwood/fs"
	"bennypowers.dev/deadwood/internal/output"
	"bennypowers.dev/deadwood/issues"
	"bennypowers.dev/deadwood/parse"
	"bennypowers.dev/deadwood/plugins"
	"bennypowers.dev/deadwood/resolve"
	"bennypowers.dev/deadwood/shell"
	"bennypowers.dev/deadwood/traverse"
	"bennypowers.dev/deadwood/workspace"
)

// Cmd is the scan cobra command: it analyzes the project and reports
// unused files, dependencies, exports and binaries.
var Cmd = &cobra.Command{
	Use:   "scan",
	Short: "Report unused files, dependencies and exports",
	Long: `Scan analyzes the project from its entry files and reports unused
files, unused and unlisted dependencies, unlisted binaries, unused
exports, and unused class and enum members.`,
	Example: `  # Scan the current directory
  deadwood scan

  # Scan a monorepo root with the JSON reporter
  deadwood scan -p ../app --reporter json

  # Include class member analysis
  deadwood scan --class-members

  # Only report dependency issues
  deadwood scan --include dependencies,unlisted`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("reporter", "r", "text", "Report format (text, json)")
	Cmd.Flags().IntP("jobs", "j", 0, "Number of parallel workers (default: number of CPUs)")
	Cmd.Flags().String("include", "", "Comma-separated issue kinds to report")
	Cmd.Flags().String("exclude", "", "Comma-separated issue kinds to omit")
	Cmd.Flags().Bool("include-entry-exports", false, "Report unused exports of entry files too")
	Cmd.Flags().Bool("class-members", false, "Report unused class members")
	Cmd.Flags().Bool("enum-members", false, "Report unused enum members")
	Cmd.Flags().Bool("no-exit-code", false, "Exit zero even when issues are found")
}

func run(cmd *cobra.Command, args []string) error {
	osfs := fs.NewOSFileSystem()

	rootDir, err := filepath.Abs(viper.GetString("package"))
	if err != nil {
		return fmt.Errorf("invalid package directory: %w", err)
	}
	// Issue paths are reported relative to the canonical root, which
	// must match the realpathed workspace tree.
	rootDir, err = osfs.Realpath(rootDir)
	if err != nil {
		return fmt.Errorf("resolving package directory: %w", err)
	}

	cfg, warnings, err := config.Load(osfs, rootDir)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	tree, err := workspace.Load(osfs, rootDir)
	if err != nil {
		return err
	}

	tables := workspace.NewTables(tree)
	registry := plugins.Default()
	resolver := resolve.New(osfs, tree, cfg.Paths)
	parser := parse.NewParser(osfs)
	entryResolver := entries.NewResolver(osfs)

	fileSets := make(map[string]*entries.FileSet)
	binariesPerWs := make(map[string][]string)
	installedBins := make(map[string]map[string]struct{})
	resolved := make(map[string]config.Resolved)

	for _, ws := range tree.All {
		wsCfg := cfg.ForWorkspace(filepath.ToSlash(ws.RelDir(rootDir)))
		resolved[ws.Dir] = wsCfg

		for _, pattern := range wsCfg.IgnoreDependencies {
			for dep := range ws.Deps {
				if matched, _ := doublestar.Match(pattern, dep); matched {
					tables.MarkIgnored(ws, dep)
				}
			}
		}

		scriptEntries, scriptBinaries := analyzeScripts(ws)

		detections, err := registry.Detect(osfs, ws, scriptBinaries, cfg)
		if err != nil {
			return fmt.Errorf("plugin detection in %s: %w", ws.Name, err)
		}
		pluginResult, attributions, err := registry.Run(osfs, ws, detections)
		if err != nil {
			return fmt.Errorf("plugin resolution in %s: %w", ws.Name, err)
		}

		depNames := make([]string, 0, len(attributions))
		for dep := range attributions {
			depNames = append(depNames, dep)
		}
		sort.Strings(depNames)
		for _, dep := range depNames {
			for _, pluginName := range attributions[dep] {
				tables.AddPluginRef(ws, dep, pluginName)
			}
		}

		binariesPerWs[ws.Dir] = append(scriptBinaries, pluginResult.Binaries...)
		installedBins[ws.Dir] = tree.InstalledBins(osfs, ws)

		extraEntries := ws.Manifest.EntryFields(nil)
		extraEntries = append(extraEntries, pluginResult.Entry...)
		extraEntries = append(extraEntries, scriptEntries...)
		wsCfg.Project = append(wsCfg.Project, pluginResult.Project...)

		set, err := entryResolver.Resolve(ws, wsCfg, extraEntries)
		if err != nil {
			return err
		}
		fileSets[ws.Dir] = set
	}

	jobs, _ := cmd.Flags().GetInt("jobs")
	engine := traverse.New(tree, resolver, parser, tables, traverse.Options{
		Jobs: jobs,
		Extract: extract.Options{
			ClassMembers: cfg.IncludeClassMembers,
			EnumMembers:  cfg.IncludeEnumMembers,
			Tags:         cfg.IgnoreExportTags,
		},
	})

	sets := make([]*entries.FileSet, 0, len(fileSets))
	for _, set := range fileSets {
		sets = append(sets, set)
	}

	graph, outcome, err := engine.Run(cmd.Context(), sets)
	if err != nil {
		return err
	}

	report := issues.Classify(issues.Context{
		RootDir:       rootDir,
		Tree:          tree,
		Graph:         graph,
		Outcome:       outcome,
		Tables:        tables,
		Config:        cfg,
		FileSets:      fileSets,
		Binaries:      binariesPerWs,
		InstalledBins: installedBins,
		Resolved:      resolved,
	})
	report.Diagnostics = append(warnings, report.Diagnostics...)

	format, _ := cmd.Flags().GetString("reporter")
	if err := output.Report(osfs, report, format); err != nil {
		return err
	}

	if noExit, _ := cmd.Flags().GetBool("no-exit-code"); !noExit && report.HasIssues() {
		cmd.SilenceUsage = true
		os.Exit(1)
	}
	return nil
}

// applyFlags layers command-line overrides onto the loaded config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("include-entry-exports") {
		cfg.IncludeEntryExports, _ = cmd.Flags().GetBool("include-entry-exports")
	}
	if cmd.Flags().Changed("class-members") {
		cfg.IncludeClassMembers, _ = cmd.Flags().GetBool("class-members")
	}
	if cmd.Flags().Changed("enum-members") {
		cfg.IncludeEnumMembers, _ = cmd.Flags().GetBool("enum-members")
	}
	if include, _ := cmd.Flags().GetString("include"); include != "" {
		cfg.Include = parseKinds(include)
	}
	if exclude, _ := cmd.Flags().GetString("exclude"); exclude != "" {
		cfg.Exclude = parseKinds(exclude)
	}
}

func parseKinds(list string) []config.IssueKind {
	var kinds []config.IssueKind
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			kinds = append(kinds, config.IssueKind(part))
		}
	}
	return kinds
}

// analyzeScripts feeds every manifest script through the shell parser,
// collecting entry file references and executed binaries.
func analyzeScripts(ws *workspace.Workspace) (entryFiles, binaries []string) {
	names := make([]string, 0, len(ws.Manifest.Scripts))
	for name := range ws.Manifest.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		invocations := shell.Parse(ws.Manifest.Scripts[name])
		binaries = append(binaries, shell.Binaries(invocations)...)
		for _, file := range shell.Files(invocations) {
			entryFiles = append(entryFiles, strings.TrimPrefix(file, "./"))
		}
	}
	return entryFiles, binaries
}
