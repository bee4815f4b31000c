// Package ignore builds the file-protection rule set for a project root
// from gitignore-style ignore files and answers whether a path is covered.
// An engine is immutable once built; long-lived callers pair it with a
// Watcher and rebuild on change.
package ignore

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/carlrannaberg/claudekit-sub009/internal/logger"
)

var log = logger.New("ignore")

// Pattern is one parsed ignore rule.
type Pattern struct {
	Raw     string // the line as written, including ! and trailing /
	Glob    string // normalized glob body
	Negated bool
	Source  string // basename of the file it came from, or DefaultSource
}

// Engine holds the merged, compiled rule set for one project root.
type Engine struct {
	root     string
	patterns []Pattern
	sources  []string
	fallback bool
	matcher  *matcher
}

// New builds the engine for a project root. extra basenames are probed
// after the standard list. Construction never fails: unreadable files are
// skipped, and when no ignore file exists at all the built-in defaults
// take over.
func New(root string, extra ...string) *Engine {
	e := &Engine{root: root}
	names := make([]string, 0, len(ProbeFiles)+len(extra))
	names = append(names, ProbeFiles...)
	names = append(names, extra...)
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			continue
		}
		pats := Parse(string(content), name)
		e.patterns = append(e.patterns, pats...)
		e.sources = append(e.sources, name)
		log.Debug("loaded %d patterns from %s", len(pats), name)
	}
	if len(e.sources) == 0 {
		e.fallback = true
		e.patterns = defaultPatterns()
		log.Debug("no ignore files under %s, using default patterns", root)
	}
	e.patterns = dedupePatterns(e.patterns)
	e.matcher = newMatcher(e.patterns)
	return e
}

// Parse reads gitignore-style lines: blank lines and # comments are
// skipped, a leading ! negates, a trailing / marks a directory whose whole
// subtree is covered.
func Parse(content, source string) []Pattern {
	var out []Pattern
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p := Pattern{Raw: line, Source: source}
		body := line
		if strings.HasPrefix(body, "!") {
			p.Negated = true
			body = body[1:]
		}
		body = strings.TrimSuffix(body, "/")
		if body == "" {
			continue
		}
		p.Glob = body
		out = append(out, p)
	}
	return out
}

// IsProtected reports whether path falls under a protection pattern, and
// which one. Paths outside the project root are never protected here: the
// root is the boundary of this tool's authority.
func (e *Engine) IsProtected(path string) (bool, Pattern) {
	for _, rel := range e.relForms(path) {
		if ok, pat := e.matcher.match(rel); ok {
			return true, pat
		}
	}
	return false, Pattern{}
}

// Root returns the project root the engine was built for.
func (e *Engine) Root() string { return e.root }

// Patterns returns the merged rule set in evaluation order.
func (e *Engine) Patterns() []Pattern { return e.patterns }

// Sources returns the ignore files that were actually found.
func (e *Engine) Sources() []string { return e.sources }

// Fallback reports whether the engine runs on the built-in defaults.
func (e *Engine) Fallback() bool { return e.fallback }

// relForms returns the root-relative shapes of a path that should be
// checked: the path as given and, when it resolves differently, its
// symlink target. Device paths and paths outside the root return nothing.
func (e *Engine) relForms(p string) []string {
	p = normalizePath(p)
	if p == "" {
		return nil
	}
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(e.root, abs)
	}
	abs = filepath.Clean(abs)
	if isDevicePath(abs) {
		return nil
	}
	forms := []string{abs}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil && resolved != abs {
		forms = append(forms, resolved)
	}
	var rels []string
	for _, f := range forms {
		rel, err := filepath.Rel(e.root, f)
		if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
			continue
		}
		rels = append(rels, filepath.ToSlash(rel))
	}
	return rels
}

func isDevicePath(p string) bool {
	return p == "/dev" || strings.HasPrefix(p, "/dev/")
}

// normalizePath brings a raw tool-argument path into matchable shape:
// whitespace and NUL stripped, NFKC-normalized so fullwidth and decomposed
// spellings cannot sneak past the globs, invisible joiners removed, and a
// leading tilde expanded.
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\x00", "")
	if p == "" {
		return ""
	}
	p = filepath.ToSlash(p)
	p = strings.ToValidUTF8(p, "�")
	p = norm.NFKC.String(p)
	p = stripInvisible(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = home + strings.TrimPrefix(p, "~")
		}
	}
	return p
}

// stripInvisible drops zero-width characters that render as nothing but
// break glob matching, e.g. ".e‍nv" posing as ".env".
func stripInvisible(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '​', '‌', '‍', '⁠', '\uFEFF', '­':
			return -1
		}
		return r
	}, s)
}

func dedupePatterns(pats []Pattern) []Pattern {
	if len(pats) <= 1 {
		return pats
	}
	seen := make(map[string]bool, len(pats))
	out := make([]Pattern, 0, len(pats))
	for _, p := range pats {
		if !seen[p.Raw] {
			seen[p.Raw] = true
			out = append(out, p)
		}
	}
	return out
}
