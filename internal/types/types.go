// Package types defines common type-safe enums used across the codebase.
package types

import "strings"

// ToolKind represents an agent tool whose invocations are screened.
type ToolKind string

const (
	// ToolRead reads a file by path.
	ToolRead ToolKind = "Read"
	// ToolEdit applies a single edit to a file.
	ToolEdit ToolKind = "Edit"
	// ToolMultiEdit applies a batch of edits to a file.
	ToolMultiEdit ToolKind = "MultiEdit"
	// ToolWrite creates or overwrites a file.
	ToolWrite ToolKind = "Write"
	// ToolBash executes a shell command.
	ToolBash ToolKind = "Bash"
)

// Valid returns true if the ToolKind is a known screened tool.
func (t ToolKind) Valid() bool {
	switch t {
	case ToolRead, ToolEdit, ToolMultiEdit, ToolWrite, ToolBash:
		return true
	}
	return false
}

// IsFileTool returns true for tools that address a single file_path.
func (t ToolKind) IsFileTool() bool {
	switch t {
	case ToolRead, ToolEdit, ToolMultiEdit, ToolWrite:
		return true
	}
	return false
}

// IsCommandTool returns true for tools that carry a shell command.
func (t ToolKind) IsCommandTool() bool {
	return t == ToolBash
}

// Decision represents the verdict for a tool invocation.
type Decision string

const (
	// DecisionAllow lets the tool call proceed.
	DecisionAllow Decision = "allow"
	// DecisionDeny blocks the tool call before it runs.
	DecisionDeny Decision = "deny"
	// DecisionAsk requests interactive approval. Reserved: emitting it
	// stalls agents that run unattended, so the guard never produces it.
	DecisionAsk Decision = "ask"
)

// Valid returns true if the Decision is a known valid value.
func (d Decision) Valid() bool {
	return d == DecisionAllow || d == DecisionDeny || d == DecisionAsk
}

// IsAllow returns true if the tool call may proceed.
func (d Decision) IsAllow() bool {
	return d == DecisionAllow
}

// IsDeny returns true if the tool call is blocked.
func (d Decision) IsDeny() bool {
	return d == DecisionDeny
}

// ScanMode represents how deeply a shell command was analyzed.
type ScanMode string

const (
	// ScanFast means the command matched an obviously safe shape and was
	// allowed without extraction.
	ScanFast ScanMode = "fast"
	// ScanLightweight means only a regex scrape for path-looking substrings
	// ran, because the command carried no risk signals.
	ScanLightweight ScanMode = "lightweight"
	// ScanComprehensive means the full tokenize/substitute/extract/expand
	// pipeline ran.
	ScanComprehensive ScanMode = "comprehensive"
)

// Valid returns true if the ScanMode is a known valid value.
func (m ScanMode) Valid() bool {
	return m == ScanFast || m == ScanLightweight || m == ScanComprehensive
}

// LogLevel is a config-facing log level name.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Valid returns true if the LogLevel is recognized. The empty string is
// valid and means the default (info).
func (l LogLevel) Valid() bool {
	switch LogLevel(strings.ToLower(string(l))) {
	case "", LogLevelTrace, LogLevelDebug, LogLevelInfo, "warning", LogLevelWarn, LogLevelError:
		return true
	}
	return false
}
