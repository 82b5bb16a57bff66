package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/topdeps"
	"github.com/jward/topdeps/internal/config"
	"github.com/jward/topdeps/internal/slogutil"
)

var (
	flagDB      string
	flagFormat  string
	flagConfig  string
	flagVerbose int
	flagQuiet   bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "topdeps",
	Short:         "Dependency analysis between the top-level units of a source file",
	Long:          "Topdeps parses source files with tree-sitter and infers which top-level declarations depend on which, so files can be processed unit by unit in dependency order.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .topdeps/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text|yaml")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .topdeps/config.yaml relative to repo root)")
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "suppress all logging")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(chunksCmd)
	rootCmd.AddCommand(languagesCmd)
	rootCmd.AddCommand(scriptCmd)
}

// runEnv is the per-invocation setup shared by every command.
type runEnv struct {
	repoRoot string
	cfg      *config.Config
	logger   *slog.Logger
}

// loadEnv loads configuration for the repository containing dir and builds
// the logger. Verbosity flags win over the configured log level.
func loadEnv(dir string) (*runEnv, error) {
	repoRoot := findRepoRoot(dir)

	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load(repoRoot)
	}
	if err != nil {
		return nil, err
	}

	level := slogutil.LevelFromString(cfg.LogLevel)
	if flagVerbose > 0 || flagQuiet {
		level = slogutil.LevelFromVerbosity(flagVerbose, flagQuiet)
	}
	return &runEnv{
		repoRoot: repoRoot,
		cfg:      cfg,
		logger:   slogutil.NewLogger(os.Stderr, level),
	}, nil
}

// loadEnvCwd is loadEnv for the current directory.
func loadEnvCwd() (*runEnv, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	return loadEnv(cwd)
}

// options converts the environment into engine options.
func (e *runEnv) options() []topdeps.Option {
	return []topdeps.Option{
		topdeps.WithConfig(e.cfg),
		topdeps.WithLogger(e.logger),
	}
}

// dbPath returns the database path from the --db flag or the config.
func (e *runEnv) dbPath() string {
	p := e.cfg.Database
	if flagDB != "" {
		p = flagDB
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.repoRoot, p)
}

var (
	flagForce     bool
	flagLanguages string
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a directory's top-level units and their dependencies",
	Long:  "Parses source files with tree-sitter, infers unit dependencies and writes them to the SQLite database. Unchanged files are skipped.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
	indexCmd.Flags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (e.g. go,python)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("index", err)
	}
	env, err := loadEnv(targetDir)
	if err != nil {
		return outputError("index", err)
	}
	dbPath := env.dbPath()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return outputError("index", fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err))
	}

	// Handle --force: delete the DB file entirely.
	if flagForce {
		if err := removeDatabase(dbPath); err != nil {
			return outputError("index", fmt.Errorf("removing database for --force: %w", err))
		}
		env.logger.Info("cleared database", "path", dbPath)
	}

	opts := env.options()
	if langs := splitList(flagLanguages); len(langs) > 0 {
		opts = append(opts, topdeps.WithLanguages(langs...))
	}

	engine, err := topdeps.New(dbPath, opts...)
	if err != nil {
		return outputError("index", fmt.Errorf("creating engine: %w", err))
	}
	defer engine.Close()

	indexErr := engine.IndexDirectory(context.Background(), targetDir)

	run, err := engine.Query().LatestRun()
	if err != nil {
		return outputError("index", err)
	}
	summary := CLIRun{
		Root:     targetDir,
		Duration: time.Since(start).Round(time.Millisecond).String(),
		Database: dbPath,
	}
	if run != nil {
		summary.ID = run.ID
		summary.FileCount = run.FileCount
		summary.ErrorCount = run.ErrorCount
	}

	if flagFormat == "text" {
		formatRunText(os.Stderr, summary)
	} else if err := outputResult(cmd.OutOrStdout(), flagFormat, CLIResult{Command: "index", Results: summary}); err != nil {
		return err
	}
	if indexErr != nil {
		return fmt.Errorf("indexing: %w", indexErr)
	}
	return nil
}

// removeDatabase deletes a SQLite database and its WAL sidecar files.
// Missing files are not an error.
func removeDatabase(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		langs := topdeps.NewAnalyzer().Registry().Languages()
		return outputResult(cmd.OutOrStdout(), flagFormat, CLIResult{Command: "languages", Results: langs})
	},
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}
