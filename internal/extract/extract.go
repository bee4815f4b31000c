// Package extract pulls filesystem path candidates out of shell commands.
// It is deliberately over-inclusive: a junk candidate costs one ignore
// lookup, a missed candidate is a bypass.
package extract

import (
	"strings"

	"github.com/carlrannaberg/claudekit-sub009/internal/shell"
)

// skipStrategy selects how much of a command's argument list is eligible
// for path collection.
type skipStrategy int

const (
	// skipNone collects every non-option argument.
	skipNone skipStrategy = iota
	// skipFirstPositional drops the first non-option argument, which is a
	// regex or inline script rather than a file.
	skipFirstPositional
	// skipAll collects nothing from the segment.
	skipAll
)

// commandStrategies maps a command basename to its skip strategy.
// Commands absent from the table use skipNone.
var commandStrategies = map[string]skipStrategy{
	// pattern-first commands
	"grep":  skipFirstPositional,
	"egrep": skipFirstPositional,
	"fgrep": skipFirstPositional,
	"rg":    skipFirstPositional,
	"sed":   skipFirstPositional,
	"awk":   skipFirstPositional,

	// pure output commands print their arguments instead of opening them
	"echo":   skipAll,
	"printf": skipAll,
}

// wrapperCommands run another command; extraction resolves through them to
// the command they wrap. xargs is NOT a wrapper: its targets arrive on
// stdin, so the trailing command name just degrades to a harmless candidate.
var wrapperCommands = map[string]bool{
	"sudo":    true,
	"env":     true,
	"command": true,
	"nohup":   true,
	"nice":    true,
	"time":    true,
}

// FromCommand runs the full pipeline for one raw command line: segment,
// tokenize, collect assignments, extract, deduplicate.
func FromCommand(command string) []string {
	segs := shell.Split(command)
	tokenized := make([][]shell.Token, len(segs))
	for i, seg := range segs {
		tokenized[i] = shell.Tokenize(seg.Raw)
	}
	return FromSegments(tokenized, shell.CollectVars(tokenized))
}

// FromSegments extracts candidates from every tokenized segment of one
// command, expanding variable references and deduplicating across segments
// in first-seen order.
func FromSegments(segments [][]shell.Token, vars *shell.VariableTable) []string {
	var out []string
	for _, tokens := range segments {
		out = append(out, fromSegment(tokens, vars)...)
	}
	return dedupe(out)
}

func fromSegment(tokens []shell.Token, vars *shell.VariableTable) []string {
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if vars != nil {
			tok = vars.ExpandToken(tok)
		}
		if tok.Text != "" {
			words = append(words, tok.Text)
		}
	}

	// Leading assignments prefix the command without being arguments.
	for len(words) > 0 && (words[0] == "export" || shell.IsAssignment(words[0])) {
		words = words[1:]
	}
	if len(words) == 0 {
		return nil
	}

	name, args := resolveWrappers(words[0], words[1:])
	strategy := commandStrategies[name]
	if strategy == skipAll {
		return nil
	}

	var out []string
	skippedPositional := strategy != skipFirstPositional
	for _, word := range args {
		if strings.HasPrefix(word, "-") {
			// --flag=value carries its value inline
			if eq := strings.IndexByte(word, '='); eq != -1 && eq+1 < len(word) {
				out = append(out, word[eq+1:])
			}
			out = append(out, uploadRefs(word)...)
			continue
		}
		if !skippedPositional {
			skippedPositional = true
			out = append(out, uploadRefs(word)...)
			continue
		}
		out = append(out, word)
		out = append(out, uploadRefs(word)...)
	}
	return out
}

// resolveWrappers walks through prefix commands like sudo and env until it
// reaches the command they run. env's NAME=VALUE arguments and the values
// of -u, -g, and -n are consumed along the way.
func resolveWrappers(name string, args []string) (string, []string) {
	name = basename(name)
	for wrapperCommands[name] {
		i := 0
		for i < len(args) {
			arg := args[i]
			if name == "env" && shell.IsAssignment(arg) {
				i++
				continue
			}
			if !strings.HasPrefix(arg, "-") {
				break
			}
			if (arg == "-u" || arg == "-g" || arg == "-n") && i+1 < len(args) {
				i++
			}
			i++
		}
		if i >= len(args) {
			return name, nil
		}
		name = basename(args[i])
		args = args[i+1:]
	}
	return name, args
}

// uploadRefs returns the @path references embedded in a token, following
// the curl convention where @file and name=@file denote uploads. Each
// reference is cut at the next ';' or ',' (form-field modifiers), and
// http-prefixed values are ignored because they name remote resources.
func uploadRefs(word string) []string {
	if !strings.ContainsRune(word, '@') {
		return nil
	}
	var refs []string
	for i := 0; i < len(word); i++ {
		if word[i] != '@' {
			continue
		}
		ref := word[i+1:]
		if end := strings.IndexAny(ref, ";,"); end != -1 {
			ref = ref[:end]
		}
		if ref == "" || strings.HasPrefix(ref, "http") {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

func basename(name string) string {
	if idx := strings.LastIndexByte(name, '/'); idx != -1 {
		return name[idx+1:]
	}
	return name
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(items []string) []string {
	if len(items) <= 1 {
		return items
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
