// Package hook implements the agent hook protocol: one JSON tool call
// arrives on stdin, one JSON decision leaves on stdout. The process exit
// code is always zero; a non-zero exit would make the agent treat every
// malformed payload as a block.
package hook

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/carlrannaberg/claudekit-sub009/internal/guard"
	"github.com/carlrannaberg/claudekit-sub009/internal/logger"
	"github.com/carlrannaberg/claudekit-sub009/internal/types"
)

var log = logger.New("hook")

// EventPreToolUse is the hook event this binary answers.
const EventPreToolUse = "PreToolUse"

// maxInputSize bounds how much of stdin is read. A payload past this is
// truncated, fails to parse, and falls open.
const maxInputSize = 1 << 20

// Input is the hook payload delivered on stdin.
type Input struct {
	SessionID     string    `json:"session_id"`
	HookEventName string    `json:"hook_event_name"`
	ToolName      string    `json:"tool_name"`
	ToolInput     ToolInput `json:"tool_input"`
	CWD           string    `json:"cwd"`
}

// ToolInput carries the union of fields the screened tools use: file
// tools send file_path, Bash sends command.
type ToolInput struct {
	FilePath string `json:"file_path,omitempty"`
	Command  string `json:"command,omitempty"`
}

// Output is the decision envelope written to stdout. Field casing is the
// agent's, not ours.
type Output struct {
	HookSpecificOutput Specific `json:"hookSpecificOutput"`
}

// Specific is the PreToolUse-specific part of the envelope.
type Specific struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
}

// Recorder receives every decision for the audit trail. A nil Recorder
// disables auditing; Record failures must not affect the decision.
type Recorder interface {
	Record(in Input, res guard.Result, elapsed time.Duration)
}

// Runner ties stdin parsing, the guard, and the audit recorder together.
type Runner struct {
	guard    *guard.Guard
	recorder Recorder
}

// NewRunner creates a Runner. rec may be nil.
func NewRunner(g *guard.Guard, rec Recorder) *Runner {
	return &Runner{guard: g, recorder: rec}
}

// Run reads one hook payload from stdin and writes one decision to
// stdout. Failures on our side never block the agent: unreadable or
// unparsable input produces an allow.
func (r *Runner) Run(stdin io.Reader, stdout io.Writer) error {
	start := time.Now()
	res, in := r.decide(stdin)
	if r.recorder != nil {
		r.recorder.Record(in, res, time.Since(start))
	}
	if res.Decision.IsDeny() {
		log.Info("denied %s: %s", in.ToolName, res.Reason)
	}
	return WriteDecision(stdout, res)
}

func (r *Runner) decide(stdin io.Reader) (guard.Result, Input) {
	var in Input
	data, err := io.ReadAll(io.LimitReader(stdin, maxInputSize))
	if err != nil {
		log.Warn("reading hook input: %v", err)
		return failOpen("hook input could not be read"), in
	}
	if err := json.Unmarshal(data, &in); err != nil {
		log.Warn("parsing hook input: %v", err)
		return failOpen("hook input could not be parsed"), in
	}
	return r.guard.Check(in.CWD, types.ToolKind(in.ToolName), in.ToolInput.FilePath, in.ToolInput.Command), in
}

func failOpen(reason string) guard.Result {
	return guard.Result{Decision: types.DecisionAllow, Mode: types.ScanFast, Reason: reason}
}

// WriteDecision emits the decision envelope. The caller logs any error
// and still exits zero.
func WriteDecision(w io.Writer, res guard.Result) error {
	out := Output{
		HookSpecificOutput: Specific{
			HookEventName:            EventPreToolUse,
			PermissionDecision:       string(res.Decision),
			PermissionDecisionReason: res.Reason,
		},
	}
	if err := json.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("writing hook decision: %w", err)
	}
	return nil
}
