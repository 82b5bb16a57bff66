package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/topdeps"
)

var flagLimit int

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the dependency index",
	Long:  "Run queries against an indexed codebase. Units are addressed by file and 0-based index. All line numbers are 0-based.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 0, "maximum results to print (0 for all)")

	queryCmd.AddCommand(filesCmd)
	queryCmd.AddCommand(unitsCmd)
	queryCmd.AddCommand(depsCmd)
	queryCmd.AddCommand(dependentsCmd)
	queryCmd.AddCommand(affectedCmd)
	queryCmd.AddCommand(identifiersCmd)
	queryCmd.AddCommand(declarationsCmd)
}

// --- Helpers ---

// openEngine opens the indexed database for the current repository.
func openEngine() (*topdeps.Engine, error) {
	env, err := loadEnvCwd()
	if err != nil {
		return nil, err
	}
	dbPath := env.dbPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'topdeps index' first)", dbPath)
	}
	return topdeps.New(dbPath, env.options()...)
}

// resolveFilePath converts a file argument to an absolute path.
// If the path is already absolute, it's returned as-is.
// Otherwise, it's resolved relative to the current working directory.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a non-negative integer argument.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// unitArgs parses the <file> <index> argument pair.
func unitArgs(args []string) (string, int, error) {
	path, err := resolveFilePath(args[0])
	if err != nil {
		return "", 0, err
	}
	index, err := parseIntArg(args[1], "index")
	if err != nil {
		return "", 0, err
	}
	return path, index, nil
}

// outputError writes an error result and marks it handled.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	if flagFormat == "yaml" {
		_ = outputResult(os.Stdout, "yaml", result)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// storedUnitsToCLI converts stored units, looking up each one's file path.
func storedUnitsToCLI(q *topdeps.QueryBuilder, units []*topdeps.StoredUnit) ([]CLIUnit, error) {
	paths := map[int64]string{}
	out := make([]CLIUnit, 0, len(units))
	for _, u := range units {
		path, ok := paths[u.FileID]
		if !ok {
			files, err := q.Files()
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				paths[f.ID] = f.Path
			}
			path = paths[u.FileID]
		}
		out = append(out, CLIUnit{
			Index:     u.Ordinal,
			Kind:      u.Kind,
			File:      path,
			StartLine: u.StartLine,
			EndLine:   u.EndLine,
			Text:      u.Text,
		})
	}
	return out, nil
}

// limitResult truncates results to --limit and records the full count.
func limitResult(command string, units []CLIUnit) CLIResult {
	total := len(units)
	if flagLimit > 0 && len(units) > flagLimit {
		units = units[:flagLimit]
	}
	return CLIResult{Command: command, Results: units, TotalCount: &total}
}

// unitQuery builds a <file> <index> command backed by a QueryBuilder call
// returning units.
func unitQuery(name, short string, fetch func(q *topdeps.QueryBuilder, path string, index int) ([]*topdeps.StoredUnit, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <file> <index>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, index, err := unitArgs(args)
			if err != nil {
				return outputError(name, err)
			}
			engine, err := openEngine()
			if err != nil {
				return outputError(name, err)
			}
			defer engine.Close()

			q := engine.Query()
			unit, err := q.Unit(path, index)
			if err != nil {
				return outputError(name, err)
			}
			if unit == nil {
				return outputError(name, fmt.Errorf("no unit %d in %s", index, path))
			}
			units, err := fetch(q, path, index)
			if err != nil {
				return outputError(name, err)
			}
			cli, err := storedUnitsToCLI(q, units)
			if err != nil {
				return outputError(name, err)
			}
			return outputResult(cmd.OutOrStdout(), flagFormat, limitResult(name, cli))
		},
	}
}

// --- Commands ---

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List indexed files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return outputError("files", err)
		}
		defer engine.Close()

		var files []*topdeps.File
		if flagFileLanguage != "" {
			files, err = engine.Query().FilesByLanguage(flagFileLanguage)
		} else {
			files, err = engine.Query().Files()
		}
		if err != nil {
			return outputError("files", err)
		}
		cli := make([]CLIFile, len(files))
		for i, f := range files {
			cli[i] = CLIFile{ID: f.ID, Path: f.Path, Language: f.Language, UnitCount: f.UnitCount}
		}
		total := len(cli)
		if flagLimit > 0 && len(cli) > flagLimit {
			cli = cli[:flagLimit]
		}
		return outputResult(cmd.OutOrStdout(), flagFormat, CLIResult{Command: "files", Results: cli, TotalCount: &total})
	},
}

var flagFileLanguage string

func init() {
	filesCmd.Flags().StringVar(&flagFileLanguage, "language", "", "only files of this language")
}

var unitsCmd = &cobra.Command{
	Use:   "units <file>",
	Short: "List a file's stored units",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveFilePath(args[0])
		if err != nil {
			return outputError("units", err)
		}
		engine, err := openEngine()
		if err != nil {
			return outputError("units", err)
		}
		defer engine.Close()

		q := engine.Query()
		f, err := q.File(path)
		if err != nil {
			return outputError("units", err)
		}
		if f == nil {
			return outputError("units", fmt.Errorf("file not indexed: %s", path))
		}
		units, err := q.Units(path)
		if err != nil {
			return outputError("units", err)
		}
		targets, err := q.Targets(path)
		if err != nil {
			return outputError("units", err)
		}
		cli := make([]CLIUnit, len(units))
		for i, u := range units {
			cli[i] = CLIUnit{
				Index:     u.Ordinal,
				Kind:      u.Kind,
				StartLine: u.StartLine,
				EndLine:   u.EndLine,
				Text:      u.Text,
			}
			if u.Ordinal < len(targets) {
				cli[i].Dependencies = targets[u.Ordinal]
			}
		}
		return outputResult(cmd.OutOrStdout(), flagFormat, limitResult("units", cli))
	},
}

var depsCmd = unitQuery("deps", "Units a unit depends on",
	func(q *topdeps.QueryBuilder, path string, index int) ([]*topdeps.StoredUnit, error) {
		return q.DependenciesOf(path, index)
	})

var dependentsCmd = unitQuery("dependents", "Units that depend on a unit",
	func(q *topdeps.QueryBuilder, path string, index int) ([]*topdeps.StoredUnit, error) {
		return q.DependentsOf(path, index)
	})

var affectedCmd = unitQuery("affected", "Units transitively affected by a change to a unit",
	func(q *topdeps.QueryBuilder, path string, index int) ([]*topdeps.StoredUnit, error) {
		return q.Affected(path, index)
	})

var flagOuter bool

var identifiersCmd = &cobra.Command{
	Use:   "identifiers <file> <index>",
	Short: "Identifiers collected for a unit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, index, err := unitArgs(args)
		if err != nil {
			return outputError("identifiers", err)
		}
		engine, err := openEngine()
		if err != nil {
			return outputError("identifiers", err)
		}
		defer engine.Close()

		names, err := engine.Query().Identifiers(path, index, flagOuter)
		if err != nil {
			return outputError("identifiers", err)
		}
		if names == nil {
			names = []string{}
		}
		return outputResult(cmd.OutOrStdout(), flagFormat, CLIResult{Command: "identifiers", Results: names})
	},
}

func init() {
	identifiersCmd.Flags().BoolVar(&flagOuter, "outer", false, "only identifiers that declare the unit's names")
}

var declarationsCmd = &cobra.Command{
	Use:   "declarations <name>",
	Short: "Units whose outer identifiers include a name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return outputError("declarations", err)
		}
		defer engine.Close()

		q := engine.Query()
		units, err := q.Declarations(args[0])
		if err != nil {
			return outputError("declarations", err)
		}
		cli, err := storedUnitsToCLI(q, units)
		if err != nil {
			return outputError("declarations", err)
		}
		return outputResult(cmd.OutOrStdout(), flagFormat, limitResult("declarations", cli))
	},
}
