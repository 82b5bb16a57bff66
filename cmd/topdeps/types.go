package main

// CLIResult is the top-level envelope for all commands that print results.
type CLIResult struct {
	Command    string `json:"command" yaml:"command"`
	Results    any    `json:"results" yaml:"results"`
	TotalCount *int   `json:"total_count,omitempty" yaml:"total_count,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// CLIUnit is a serializable top-level unit. Lines are 0-based.
type CLIUnit struct {
	Index        int    `json:"index" yaml:"index"`
	Kind         string `json:"kind" yaml:"kind"`
	File         string `json:"file,omitempty" yaml:"file,omitempty"`
	StartLine    int    `json:"start_line" yaml:"start_line"`
	EndLine      int    `json:"end_line" yaml:"end_line"`
	Text         string `json:"text" yaml:"text"`
	Dependencies []int  `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// CLIAnalysis is one analyzed file.
type CLIAnalysis struct {
	Path     string    `json:"path" yaml:"path"`
	Language string    `json:"language" yaml:"language"`
	Hash     string    `json:"hash" yaml:"hash"`
	Units    []CLIUnit `json:"units" yaml:"units"`
}

// CLIContext is a unit together with everything it transitively needs.
type CLIContext struct {
	Unit    CLIUnit   `json:"unit" yaml:"unit"`
	Context []CLIUnit `json:"context" yaml:"context"`
}

// CLIChunk is a group of unit indices processed together.
type CLIChunk struct {
	Index int   `json:"index" yaml:"index"`
	Units []int `json:"units" yaml:"units"`
	Bytes int   `json:"bytes" yaml:"bytes"`
}

// CLIFile is a serializable indexed file.
type CLIFile struct {
	ID        int64  `json:"id" yaml:"id"`
	Path      string `json:"path" yaml:"path"`
	Language  string `json:"language" yaml:"language"`
	UnitCount int    `json:"unit_count" yaml:"unit_count"`
}

// CLIRun summarizes an index run.
type CLIRun struct {
	ID         string `json:"id" yaml:"id"`
	Root       string `json:"root" yaml:"root"`
	FileCount  int    `json:"file_count" yaml:"file_count"`
	ErrorCount int    `json:"error_count" yaml:"error_count"`
	Duration   string `json:"duration" yaml:"duration"`
	Database   string `json:"database" yaml:"database"`
}
