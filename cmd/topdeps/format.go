package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// firstLine trims a unit's text to its first line for tabular output.
func firstLine(text string) string {
	line, _, cut := strings.Cut(text, "\n")
	if cut {
		return line + " ..."
	}
	return line
}

func intsText(ns []int) string {
	if len(ns) == 0 {
		return "-"
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}

// formatUnitsText formats CLIUnit results as aligned columns.
func formatUnitsText(w io.Writer, units []CLIUnit) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tKIND\tLINES\tDEPS\tTEXT")
	for _, u := range units {
		lines := fmt.Sprintf("%d-%d", u.StartLine, u.EndLine)
		if u.File != "" {
			lines = fmt.Sprintf("%s:%s", u.File, lines)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			u.Index, u.Kind, lines, intsText(u.Dependencies), firstLine(u.Text))
	}
	tw.Flush()
}

// formatAnalysisText prints a file header followed by its units.
func formatAnalysisText(w io.Writer, a CLIAnalysis) {
	fmt.Fprintf(w, "%s (%s): %d units\n\n", a.Path, a.Language, len(a.Units))
	formatUnitsText(w, a.Units)
}

// formatContextText prints a unit and the units it needs.
func formatContextText(w io.Writer, c CLIContext) {
	fmt.Fprintf(w, "Unit %d: %s\n", c.Unit.Index, firstLine(c.Unit.Text))
	if len(c.Context) == 0 {
		fmt.Fprintln(w, "No dependencies.")
		return
	}
	fmt.Fprintln(w)
	formatUnitsText(w, c.Context)
}

// formatChunksText prints one line per chunk.
func formatChunksText(w io.Writer, chunks []CLIChunk) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHUNK\tBYTES\tUNITS")
	for _, c := range chunks {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", c.Index, c.Bytes, intsText(c.Units))
	}
	tw.Flush()
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tLANGUAGE\tUNITS")
	for _, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", f.ID, f.Path, f.Language, f.UnitCount)
	}
	tw.Flush()
}

// formatRunText prints an index summary.
func formatRunText(w io.Writer, r CLIRun) {
	fmt.Fprintf(w, "Indexed %s in %s (%d changed, %d errors)\n", r.Root, r.Duration, r.FileCount, r.ErrorCount)
	fmt.Fprintf(w, "Database: %s\n", r.Database)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIAnalysis:
		formatAnalysisText(w, v)
	case []CLIUnit:
		formatUnitsText(w, v)
	case CLIContext:
		formatContextText(w, v)
	case []CLIChunk:
		formatChunksText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case CLIRun:
		formatRunText(w, v)
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case []int:
		fmt.Fprintln(w, intsText(v))
	case nil:
		// No output for nil results (e.g., unit lookups with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if result.TotalCount != nil {
		count := *result.TotalCount
		if shown := resultLen(result.Results); shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIUnit:
		return len(r)
	case []CLIChunk:
		return len(r)
	case []CLIFile:
		return len(r)
	case []string:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// outputResult writes a CLIResult to w in the selected format.
func outputResult(w io.Writer, format string, result CLIResult) error {
	switch format {
	case "text":
		return outputResultText(w, result)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text", "yaml"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, ", "))
}
