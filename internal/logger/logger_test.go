package logger

import (
	"io"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"Warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", 0, true},
		{"fatal", 0, true},
		{"3", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLevel(%q): expected error", tt.input)
			} else if !strings.Contains(err.Error(), tt.input) {
				t.Errorf("ParseLevel(%q) error %q does not name the input", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestSetGlobalLevelFromString(t *testing.T) {
	defer SetGlobalLevel(LevelInfo)

	SetGlobalLevelFromString("error")
	globalMu.RLock()
	got := globalLevel
	globalMu.RUnlock()
	if got != LevelError {
		t.Errorf("level = %d, want %d", got, LevelError)
	}

	// Unrecognized strings leave the level untouched
	SetGlobalLevelFromString("bogus")
	globalMu.RLock()
	got = globalLevel
	globalMu.RUnlock()
	if got != LevelError {
		t.Errorf("bogus level changed global level to %d", got)
	}
}

// captureStderr runs fn with stderr redirected to a pipe and returns what
// was written.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stderr = w
	defer func() { os.Stderr = orig }()

	fn()

	w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading pipe: %v", err)
	}
	return string(out)
}

func TestPlainOutputFormat(t *testing.T) {
	defer SetGlobalLevel(LevelInfo)
	SetColored(false)

	out := captureStderr(t, func() {
		New("guard").Info("checked %d paths", 3)
	})

	if !strings.Contains(out, "[INFO] [guard] checked 3 paths") {
		t.Errorf("unexpected log line: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("plain output contains ANSI escapes: %q", out)
	}
}

func TestLevelSuppressesBelow(t *testing.T) {
	defer SetGlobalLevel(LevelInfo)
	SetGlobalLevel(LevelWarn)
	SetColored(false)

	out := captureStderr(t, func() {
		log := New("hook")
		log.Debug("not shown")
		log.Info("not shown either")
		log.Warn("shown")
		log.Error("also shown")
	})

	if strings.Contains(out, "not shown") {
		t.Errorf("suppressed levels leaked: %q", out)
	}
	if !strings.Contains(out, "[WARN] [hook] shown") || !strings.Contains(out, "[ERROR] [hook] also shown") {
		t.Errorf("expected warn and error lines, got %q", out)
	}
}
