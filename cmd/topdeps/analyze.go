package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/topdeps"
	"github.com/jward/topdeps/internal/order"
)

// analyzeArg loads config for the cwd and analyzes one file without touching
// the database.
func analyzeArg(ctx context.Context, file string) (*topdeps.FileAnalysis, error) {
	path, err := resolveFilePath(file)
	if err != nil {
		return nil, err
	}
	env, err := loadEnvCwd()
	if err != nil {
		return nil, err
	}
	return topdeps.NewAnalyzer(env.options()...).AnalyzeFile(ctx, path)
}

// analysisUnitToCLI converts the i-th unit of an analysis.
func analysisUnitToCLI(fa *topdeps.FileAnalysis, i int) CLIUnit {
	u := fa.Units[i]
	cli := CLIUnit{
		Index: i,
		Text:  u.Text(),
	}
	if u.Node != nil {
		cli.Kind = u.Node.Kind
		cli.StartLine = u.Node.Start.Line
		cli.EndLine = u.Node.End.Line
	}
	if i < len(fa.Records) {
		cli.Dependencies = fa.Records[i].Targets
	}
	return cli
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze one file and print its units with their dependencies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fa, err := analyzeArg(cmd.Context(), args[0])
		if err != nil {
			return outputError("analyze", err)
		}
		units := make([]CLIUnit, len(fa.Units))
		for i := range fa.Units {
			units[i] = analysisUnitToCLI(fa, i)
		}
		return outputResult(cmd.OutOrStdout(), flagFormat, CLIResult{
			Command: "analyze",
			Results: CLIAnalysis{Path: fa.Path, Language: fa.Language, Hash: fa.Hash, Units: units},
		})
	},
}

var orderCmd = &cobra.Command{
	Use:   "order <file>",
	Short: "Print unit indices so that every unit follows its dependencies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fa, err := analyzeArg(cmd.Context(), args[0])
		if err != nil {
			return outputError("order", err)
		}
		return outputResult(cmd.OutOrStdout(), flagFormat, CLIResult{
			Command: "order",
			Results: order.Topological(fa.Records),
		})
	},
}

var contextCmd = &cobra.Command{
	Use:   "context <file> <index>",
	Short: "Print a unit and every unit it transitively depends on",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIntArg(args[1], "index")
		if err != nil {
			return outputError("context", err)
		}
		fa, err := analyzeArg(cmd.Context(), args[0])
		if err != nil {
			return outputError("context", err)
		}
		if index >= len(fa.Units) {
			return outputError("context", fmt.Errorf("unit %d out of range: %s has %d units", index, fa.Path, len(fa.Units)))
		}

		result := CLIContext{Unit: analysisUnitToCLI(fa, index), Context: []CLIUnit{}}
		for _, j := range order.Closure(fa.Records, index) {
			result.Context = append(result.Context, analysisUnitToCLI(fa, j))
		}
		return outputResult(cmd.OutOrStdout(), flagFormat, CLIResult{Command: "context", Results: result})
	},
}

var flagMaxBytes int

var chunksCmd = &cobra.Command{
	Use:   "chunks <file>",
	Short: "Group units into size-bounded chunks in dependency order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagMaxBytes <= 0 {
			return outputError("chunks", fmt.Errorf("--max-bytes must be positive, got %d", flagMaxBytes))
		}
		fa, err := analyzeArg(cmd.Context(), args[0])
		if err != nil {
			return outputError("chunks", err)
		}
		texts := fa.Texts()
		groups := order.Chunks(texts, fa.Records, flagMaxBytes)
		chunks := make([]CLIChunk, len(groups))
		for i, g := range groups {
			size := 0
			for _, u := range g {
				size += len(texts[u])
			}
			chunks[i] = CLIChunk{Index: i, Units: g, Bytes: size}
		}
		return outputResult(cmd.OutOrStdout(), flagFormat, CLIResult{Command: "chunks", Results: chunks})
	},
}

func init() {
	chunksCmd.Flags().IntVar(&flagMaxBytes, "max-bytes", 4096, "soft size limit per chunk")
}
