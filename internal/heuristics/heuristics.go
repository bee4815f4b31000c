// Package heuristics flags shell pipelines that launder protected file
// contents through intermediate commands, where per-path checks cannot see
// the access. The checks run over the raw command string because pipeline
// shape spans segment boundaries.
package heuristics

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// sensitiveGlobs are basename shapes that almost always hold credentials.
// They compile into one case-insensitive union pattern.
var sensitiveGlobs = []string{
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*.keystore",
	"id_rsa*",
	"id_dsa*",
	"id_ecdsa*",
	"id_ed25519*",
	".env*",
	"*_token.*",
	"*_secret.*",
	"wallet.*",
	"secring.*",
	".netrc",
	".npmrc",
	".pgpass",
	".git-credentials",
	".bash_history",
	".zsh_history",
	".histfile",
	"credentials.json",
	".boto",
}

// regexKeywords are tested against find -regex/-iregex arguments, which are
// too free-form for the glob union.
var regexKeywords = []string{
	"env", "pem", "key", "token", "secret", "credential", "wallet", "id_rsa",
}

var (
	echoSpanRe = regexp.MustCompile(`\b(?:echo|printf)\b([^|;&]*)`)
	findSpanRe = regexp.MustCompile(`\bfind\b([^|;&]*)`)
	nameArgRe  = regexp.MustCompile(`-i?name\s+("[^"]*"|'[^']*'|\S+)`)
	regexArgRe = regexp.MustCompile(`-i?regex\s+("[^"]*"|'[^']*'|\S+)`)
	execCatRe  = regexp.MustCompile(`-exec(?:dir)?\s+cat\b`)
	xargsRe    = regexp.MustCompile(`\bxargs\b`)
	catRe      = regexp.MustCompile(`\bcat\b`)
)

// Match describes a heuristic hit.
type Match struct {
	Check   string // which idiom fired
	Matched string // the sensitive name or expression that triggered it
	Reason  string
}

// Engine holds the compiled sensitive-name union.
type Engine struct {
	sensitive *regexp.Regexp
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

// Default returns the process-wide engine, compiling the union on first use.
func Default() *Engine {
	defaultOnce.Do(func() {
		defaultEngine = New()
	})
	return defaultEngine
}

// New builds an engine from the built-in sensitive basename globs.
func New() *Engine {
	fragments := make([]string, len(sensitiveGlobs))
	for i, g := range sensitiveGlobs {
		fragments[i] = globRegexp(g)
	}
	return &Engine{
		sensitive: regexp.MustCompile(`(?i)^(?:` + strings.Join(fragments, "|") + `)$`),
	}
}

// Check scans a raw command for content-laundering idioms and returns the
// first hit, or nil when the command looks clean.
func (e *Engine) Check(command string) *Match {
	if m := e.checkEchoPipe(command); m != nil {
		return m
	}
	return e.checkFindPipe(command)
}

// SensitiveBasename reports whether a name matches the sensitive union.
func (e *Engine) SensitiveBasename(name string) bool {
	return e.sensitive.MatchString(name)
}

// checkEchoPipe catches `echo .env | xargs cat` and friends: a sensitive
// name printed as text, then turned back into a file access downstream.
// Every word of the echoed span is tested, not just the first, so flag
// words and format strings cannot shield the name.
func (e *Engine) checkEchoPipe(command string) *Match {
	for _, m := range echoSpanRe.FindAllStringSubmatchIndex(command, -1) {
		span := command[m[2]:m[3]]
		rest := command[m[3]:]
		for _, word := range strings.Fields(span) {
			name := filepath.Base(trimQuotes(word))
			if e.SensitiveBasename(name) && xargsThenCat(rest) {
				return &Match{
					Check:   "echo-pipe",
					Matched: name,
					Reason:  "sensitive file name piped into xargs cat",
				}
			}
		}
	}
	return nil
}

// checkFindPipe catches `find -name '*.pem' | xargs cat` and the -exec cat
// variant. -name/-iname arguments go through the glob union; -regex
// arguments are matched against a keyword list instead.
func (e *Engine) checkFindPipe(command string) *Match {
	for _, m := range findSpanRe.FindAllStringSubmatchIndex(command, -1) {
		span := command[m[2]:m[3]]
		rest := command[m[0]:]

		matched := ""
		for _, arg := range nameArgRe.FindAllStringSubmatch(span, -1) {
			if name := trimQuotes(arg[1]); e.SensitiveBasename(name) {
				matched = name
				break
			}
		}
		if matched == "" {
			for _, arg := range regexArgRe.FindAllStringSubmatch(span, -1) {
				expr := strings.ToLower(trimQuotes(arg[1]))
				for _, kw := range regexKeywords {
					if strings.Contains(expr, kw) {
						matched = expr
						break
					}
				}
				if matched != "" {
					break
				}
			}
		}
		if matched == "" {
			continue
		}

		if execCatRe.MatchString(rest) || xargsThenCat(rest) {
			return &Match{
				Check:   "find-pipe",
				Matched: matched,
				Reason:  "find for sensitive files piped into cat",
			}
		}
	}
	return nil
}

// xargsThenCat reports whether rest contains xargs with cat anywhere after
// it. The gap tolerates flags like -0 or -I{}.
func xargsThenCat(rest string) bool {
	loc := xargsRe.FindStringIndex(rest)
	if loc == nil {
		return false
	}
	return catRe.MatchString(rest[loc[1]:])
}

// trimQuotes strips matched surrounding quote pairs.
func trimQuotes(s string) string {
	for len(s) >= 2 {
		c := s[0]
		if (c == '\'' || c == '"') && s[len(s)-1] == c {
			s = s[1 : len(s)-1]
			continue
		}
		break
	}
	return s
}

// globRegexp converts one basename glob to a regexp fragment. Only * and ?
// act as wildcards; everything else is literal.
func globRegexp(glob string) string {
	var sb strings.Builder
	for i := 0; i < len(glob); i++ {
		switch c := glob[i]; c {
		case '*':
			sb.WriteString(`[^/]*`)
		case '?':
			sb.WriteString(`[^/]`)
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return sb.String()
}
