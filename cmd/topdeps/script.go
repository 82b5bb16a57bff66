package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/topdeps"
	"github.com/jward/topdeps/internal/runtime"
	"github.com/jward/topdeps/scripts"
)

var scriptCmd = &cobra.Command{
	Use:   "script [file.risor] [target]",
	Short: "Run a Risor script against the analysis and the index",
	Long: `Runs a Risor script with analyze, topo_order, closure, chunks and friends as globals.
When the index database exists, the files, units, dependents and db_query globals are available too.
Without a script file the built-in report runs on target. The target argument is passed to the
script as the "target" global, resolved to an absolute path.`,
	Args: cobra.RangeArgs(0, 2),
	RunE: runScript,
}

func runScript(cmd *cobra.Command, args []string) error {
	script := runtime.ReportScript
	embedded := true
	if len(args) > 0 && strings.HasSuffix(args[0], ".risor") {
		script, args = args[0], args[1:]
		embedded = false
	}
	if len(args) > 1 {
		return outputError("script", fmt.Errorf("unexpected argument %q", args[1]))
	}

	extra := map[string]any{}
	if len(args) == 1 {
		target, err := resolveFilePath(args[0])
		if err != nil {
			return outputError("script", err)
		}
		extra["target"] = target
	} else if embedded {
		return outputError("script", fmt.Errorf("the built-in report needs a target file"))
	}

	env, err := loadEnvCwd()
	if err != nil {
		return outputError("script", err)
	}
	scriptsDir := ""
	opts := append(env.options(), topdeps.WithScriptOutput(cmd.OutOrStdout()))
	if embedded {
		opts = append(opts, topdeps.WithScriptsFS(scripts.FS))
	} else {
		abs, err := resolveFilePath(script)
		if err != nil {
			return outputError("script", err)
		}
		scriptsDir, script = filepath.Dir(abs), filepath.Base(abs)
		opts = append(opts, topdeps.WithScriptsDir(scriptsDir))
	}

	dbPath := env.dbPath()
	if _, err := os.Stat(dbPath); err == nil {
		engine, err := topdeps.New(dbPath, opts...)
		if err != nil {
			return outputError("script", err)
		}
		defer engine.Close()
		if err := engine.RunScript(cmd.Context(), script, extra); err != nil {
			return outputError("script", err)
		}
		return nil
	}

	// No index: analysis globals only.
	rtOpts := []runtime.RuntimeOption{
		runtime.WithAnalyzer(topdeps.NewAnalyzer(env.options()...)),
		runtime.WithLogger(env.logger),
		runtime.WithOutput(cmd.OutOrStdout()),
	}
	if embedded {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(scripts.FS))
	}
	rt := runtime.NewRuntime(nil, scriptsDir, rtOpts...)
	if err := rt.RunScript(cmd.Context(), script, extra); err != nil {
		return outputError("script", err)
	}
	return nil
}
