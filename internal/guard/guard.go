// Package guard decides whether a tool invocation may touch protected
// files. File tools are checked directly against the ignore engine;
// shell commands go through heuristics, a safe-shape short circuit, and
// one of two extraction lanes before their path candidates are checked.
package guard

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/carlrannaberg/claudekit-sub009/internal/extract"
	"github.com/carlrannaberg/claudekit-sub009/internal/heuristics"
	"github.com/carlrannaberg/claudekit-sub009/internal/ignore"
	"github.com/carlrannaberg/claudekit-sub009/internal/logger"
	"github.com/carlrannaberg/claudekit-sub009/internal/shell"
	"github.com/carlrannaberg/claudekit-sub009/internal/types"
)

var log = logger.New("guard")

// safeCommands never open their arguments as files. A command line built
// only from these (plus inert arguments) is allowed without extraction.
var safeCommands = map[string]bool{
	"pwd":      true,
	"true":     true,
	"false":    true,
	"whoami":   true,
	"date":     true,
	"uptime":   true,
	"hostname": true,
	"clear":    true,
	"sleep":    true,
	"which":    true,
	"type":     true,
	"id":       true,
	"uname":    true,
	"echo":     true,
	"printf":   true,
}

// riskChars disqualify an unquoted argument from the safe-shape short
// circuit: path syntax, glob syntax, expansion, and upload markers all
// mean the deeper lanes must look at the command.
const riskChars = "~/.*?[]{}!@$`"

// riskKeywords force the comprehensive lane when they appear anywhere in
// the raw command. Substring matching over-triggers (key in keyboard)
// but only costs the cheaper lane, never a wrong decision.
var riskKeywords = []string{
	"secret", "token", "credential", "passwd", "password",
	"wallet", "key", "env", "id_rsa", "pem",
}

// lightPathRe grabs whitespace-delimited words containing a slash or a
// dot, the only shapes that can name a file in a command that carries no
// metacharacters, no assignments, and no expansion.
var lightPathRe = regexp.MustCompile(`\S*[/.]\S*`)

// Result is the verdict for one tool invocation.
type Result struct {
	Decision types.Decision
	Mode     types.ScanMode
	Reason   string

	// Set on denials: the offending path (empty for heuristic hits), the
	// pattern or name that matched, and where that pattern came from.
	Path    string
	Pattern string
	Source  string
}

// Options configures a Guard.
type Options struct {
	// ExtraIgnoreFiles are probed in each project root after the built-in
	// ignore file names.
	ExtraIgnoreFiles []string
	// DisableHeuristics turns off the raw-string pipeline checks. Ignore
	// rules still apply.
	DisableHeuristics bool
}

// Guard owns one ignore engine per project root and applies the decision
// policy. Engines are built lazily and cached; Invalidate drops a cached
// engine when its ignore files change on disk.
type Guard struct {
	opts Options

	mu      sync.RWMutex
	engines map[string]*ignore.Engine
}

// New creates a Guard with an empty engine cache.
func New(opts Options) *Guard {
	return &Guard{
		opts:    opts,
		engines: make(map[string]*ignore.Engine),
	}
}

// Engine returns the cached ignore engine for root, building it on first
// use.
func (g *Guard) Engine(root string) *ignore.Engine {
	root = resolveRoot(root)

	g.mu.RLock()
	eng := g.engines[root]
	g.mu.RUnlock()
	if eng != nil {
		return eng
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if eng := g.engines[root]; eng != nil {
		return eng
	}
	eng = ignore.New(root, g.opts.ExtraIgnoreFiles...)
	g.engines[root] = eng
	return eng
}

// Invalidate drops the cached engine for root so the next decision
// rebuilds it from disk. Ignore file watchers call this on change.
func (g *Guard) Invalidate(root string) {
	root = resolveRoot(root)
	g.mu.Lock()
	delete(g.engines, root)
	g.mu.Unlock()
	log.Debug("invalidated ignore engine for %s", root)
}

// Check dispatches on the tool kind. Tools that neither carry a command
// nor address a file are allowed untouched.
func (g *Guard) Check(root string, tool types.ToolKind, filePath, command string) Result {
	switch {
	case tool.IsCommandTool():
		return g.CheckCommand(root, command)
	case tool.IsFileTool():
		return g.CheckFile(root, filePath)
	default:
		return allowResult(types.ScanFast, "Tool does not touch files")
	}
}

// CheckFile decides a direct file access by path.
func (g *Guard) CheckFile(root, filePath string) Result {
	if strings.TrimSpace(filePath) == "" {
		return allowResult(types.ScanFast, "No file path in tool input")
	}
	if ok, pat := g.Engine(root).IsProtected(filePath); ok {
		return denyMatch(filePath, pat, types.ScanFast)
	}
	return allowResult(types.ScanFast, "File is not protected")
}

// CheckCommand decides a shell command.
func (g *Guard) CheckCommand(root, command string) Result {
	command = strings.TrimSpace(command)
	if command == "" {
		return allowResult(types.ScanFast, "Empty command")
	}

	// Step 1: laundering idioms are checked on the raw string before
	// anything else, because pipeline shape disappears once the command
	// is cut into segments.
	if !g.opts.DisableHeuristics {
		if m := heuristics.Default().Check(command); m != nil {
			log.Debug("heuristic %s denied command: %s", m.Check, m.Matched)
			return Result{
				Decision: types.DecisionDeny,
				Mode:     types.ScanComprehensive,
				Reason:   fmt.Sprintf("Command denied: %s (%q)", m.Reason, m.Matched),
				Pattern:  m.Matched,
				Source:   "heuristic:" + m.Check,
			}
		}
	}

	segments := shell.Split(command)
	tokenized := make([][]shell.Token, len(segments))
	for i, seg := range segments {
		tokenized[i] = shell.Tokenize(seg.Raw)
	}

	// Step 2: commands built only from known-safe shapes skip extraction.
	if safeShape(tokenized) {
		return allowResult(types.ScanFast, "Command shape is known-safe")
	}

	// Step 3: pick a lane and collect path candidates.
	root = resolveRoot(root)
	var candidates []string
	mode := types.ScanLightweight
	if needsComprehensive(command) {
		mode = types.ScanComprehensive
		candidates = extract.FromSegments(tokenized, shell.CollectVars(tokenized))
		candidates = extract.ExpandGlobs(root, candidates)
	} else {
		candidates = lightPathRe.FindAllString(command, -1)
	}

	// Step 4: the first protected candidate decides.
	eng := g.Engine(root)
	for _, cand := range candidates {
		if ok, pat := eng.IsProtected(cand); ok {
			log.Debug("candidate %q matched %q from %s", cand, pat.Raw, pat.Source)
			return denyMatch(cand, pat, mode)
		}
	}
	return allowResult(mode, "No protected paths referenced")
}

// safeShape reports whether every segment starts with a safe command and
// carries only inert arguments. Single-quoted arguments are literal text
// and always inert; anything else is inert only without risk characters.
func safeShape(segments [][]shell.Token) bool {
	for _, tokens := range segments {
		i := 0
		for i < len(tokens) && (tokens[i].Text == "export" || shell.IsAssignment(tokens[i].Text)) {
			i++
		}
		if i >= len(tokens) {
			// A segment of bare assignments runs no command.
			continue
		}
		if !safeCommands[basename(tokens[i].Text)] {
			return false
		}
		for _, tok := range tokens[i+1:] {
			if tok.Quote == shell.QuoteSingle {
				continue
			}
			if strings.ContainsAny(tok.Text, riskChars) {
				return false
			}
		}
	}
	return true
}

// needsComprehensive reports whether the raw command shows any signal
// that the cheap path scrape could miss: pipeline metacharacters,
// assignments, expansion, upload markers, glob syntax, or a sensitive
// keyword.
func needsComprehensive(command string) bool {
	if strings.ContainsAny(command, "|;&=$@`") {
		return true
	}
	if strings.ContainsAny(command, "*?[]{}!") {
		return true
	}
	lower := strings.ToLower(command)
	for _, kw := range riskKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// resolveRoot falls back to the process working directory when the hook
// input carried no cwd.
func resolveRoot(root string) string {
	if root != "" {
		return root
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "/"
}

func basename(name string) string {
	if idx := strings.LastIndexByte(name, '/'); idx != -1 {
		return name[idx+1:]
	}
	return name
}

func allowResult(mode types.ScanMode, reason string) Result {
	return Result{Decision: types.DecisionAllow, Mode: mode, Reason: reason}
}

func denyMatch(path string, pat ignore.Pattern, mode types.ScanMode) Result {
	return Result{
		Decision: types.DecisionDeny,
		Mode:     mode,
		Reason:   fmt.Sprintf("Access to %q denied: matches pattern %q from %s", path, pat.Raw, pat.Source),
		Path:     path,
		Pattern:  pat.Raw,
		Source:   pat.Source,
	}
}
