package ignore

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
)

// compiledPattern is one ignore pattern expanded to its matchable forms.
// A pattern without a slash matches basenames at any depth, so it expands
// to four forms; a slash anchors it to the root and leaves two.
type compiledPattern struct {
	pat   Pattern
	forms []string
	globs []glob.Glob // index-aligned with forms; nil falls back to doublestar
}

// matcher evaluates gitignore-style patterns against root-relative paths
// with last-match-wins negation.
type matcher struct {
	compiled []compiledPattern
}

func newMatcher(patterns []Pattern) *matcher {
	m := &matcher{compiled: make([]compiledPattern, 0, len(patterns))}
	for _, p := range patterns {
		cp := compiledPattern{pat: p, forms: patternForms(p.Glob)}
		cp.globs = make([]glob.Glob, len(cp.forms))
		for i, form := range cp.forms {
			g, err := glob.Compile(form, '/')
			if err != nil {
				log.Warn("pattern %q from %s did not compile: %v", form, p.Source, err)
				continue
			}
			cp.globs[i] = g
		}
		m.compiled = append(m.compiled, cp)
	}
	return m
}

func patternForms(body string) []string {
	anchored := strings.Contains(body, "/")
	body = strings.TrimPrefix(body, "/")
	if anchored {
		return []string{body, body + "/**"}
	}
	return []string{body, body + "/**", "**/" + body, "**/" + body + "/**"}
}

// match reports whether rel is covered, and by which pattern. Every pattern
// is consulted in order so a later negation can release an earlier match.
func (m *matcher) match(rel string) (bool, Pattern) {
	matched := false
	var last Pattern
	for i := range m.compiled {
		cp := &m.compiled[i]
		if cp.matches(rel) {
			matched = !cp.pat.Negated
			last = cp.pat
		}
	}
	if matched {
		return true, last
	}
	return m.reverseMatch(rel)
}

func (cp *compiledPattern) matches(rel string) bool {
	for i, form := range cp.forms {
		if cp.globs[i] != nil {
			if cp.globs[i].Match(rel) {
				return true
			}
			continue
		}
		if ok, err := doublestar.Match(form, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// reverseMatch handles paths that still carry glob characters after
// expansion, e.g. "cat .e*" in a project with no .env on disk. The path's
// own glob may cover a protected name even though no concrete file matched,
// so the direction of the test is flipped: the path's basename becomes the
// pattern and the rule's basename the candidate.
func (m *matcher) reverseMatch(rel string) (bool, Pattern) {
	relFile := path.Base(rel)
	if !strings.ContainsAny(relFile, "*?[") {
		return false, Pattern{}
	}
	relDir := path.Dir(rel)
	for i := range m.compiled {
		cp := &m.compiled[i]
		if cp.pat.Negated {
			continue
		}
		ruleFile := path.Base(cp.pat.Glob)
		if ruleFile == "" || ruleFile == "." || strings.ContainsAny(ruleFile, "*?[{") {
			continue
		}
		ok, err := path.Match(relFile, ruleFile)
		if err != nil || !ok {
			continue
		}
		// the rule must also hold at this directory
		if cp.matches(path.Join(relDir, ruleFile)) {
			return true, cp.pat
		}
	}
	return false, Pattern{}
}
