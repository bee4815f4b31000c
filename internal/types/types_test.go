package types

import "testing"

func TestToolKindValid(t *testing.T) {
	tests := []struct {
		tool  ToolKind
		valid bool
	}{
		{ToolRead, true},
		{ToolEdit, true},
		{ToolMultiEdit, true},
		{ToolWrite, true},
		{ToolBash, true},
		{ToolKind("Grep"), false},
		{ToolKind("bash"), false}, // case-sensitive on purpose
		{ToolKind(""), false},
	}
	for _, tt := range tests {
		if got := tt.tool.Valid(); got != tt.valid {
			t.Errorf("ToolKind(%q).Valid() = %v, want %v", tt.tool, got, tt.valid)
		}
	}
}

func TestToolKindClassification(t *testing.T) {
	fileTools := []ToolKind{ToolRead, ToolEdit, ToolMultiEdit, ToolWrite}
	for _, tool := range fileTools {
		if !tool.IsFileTool() {
			t.Errorf("%s should be a file tool", tool)
		}
		if tool.IsCommandTool() {
			t.Errorf("%s should not be a command tool", tool)
		}
	}
	if !ToolBash.IsCommandTool() {
		t.Error("Bash should be a command tool")
	}
	if ToolBash.IsFileTool() {
		t.Error("Bash should not be a file tool")
	}
}

func TestDecisionValid(t *testing.T) {
	tests := []struct {
		d     Decision
		valid bool
	}{
		{DecisionAllow, true},
		{DecisionDeny, true},
		{DecisionAsk, true},
		{Decision("block"), false},
		{Decision(""), false},
	}
	for _, tt := range tests {
		if got := tt.d.Valid(); got != tt.valid {
			t.Errorf("Decision(%q).Valid() = %v, want %v", tt.d, got, tt.valid)
		}
	}
	if !DecisionAllow.IsAllow() || DecisionAllow.IsDeny() {
		t.Error("allow classified wrong")
	}
	if !DecisionDeny.IsDeny() || DecisionDeny.IsAllow() {
		t.Error("deny classified wrong")
	}
}

func TestScanModeValid(t *testing.T) {
	for _, m := range []ScanMode{ScanFast, ScanLightweight, ScanComprehensive} {
		if !m.Valid() {
			t.Errorf("ScanMode(%q) should be valid", m)
		}
	}
	if ScanMode("deep").Valid() {
		t.Error("unknown scan mode should be invalid")
	}
}

func TestLogLevelValid(t *testing.T) {
	tests := []struct {
		l     LogLevel
		valid bool
	}{
		{LogLevelTrace, true},
		{LogLevelDebug, true},
		{LogLevelInfo, true},
		{LogLevelWarn, true},
		{LogLevelError, true},
		{LogLevel("WARN"), true},
		{LogLevel("warning"), true},
		{LogLevel(""), true}, // empty defaults to info
		{LogLevel("verbose"), false},
	}
	for _, tt := range tests {
		if got := tt.l.Valid(); got != tt.valid {
			t.Errorf("LogLevel(%q).Valid() = %v, want %v", tt.l, got, tt.valid)
		}
	}
}
