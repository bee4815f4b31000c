package extract

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// globChars mark a candidate as glob-like. A plain '/' is included so that
// relative multi-level candidates get resolved against the root.
const globChars = "*?[]{}!/"

// ExpandGlobs replaces glob-like candidates with their matches under root.
// Matching is case-sensitive and includes dotfiles; matches come back
// absolute. A candidate that fails to expand, or expands to nothing, stays
// in the list as-is: expansion failure must never hide a path from the
// protection check.
func ExpandGlobs(root string, candidates []string) []string {
	out := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		if !strings.ContainsAny(cand, globChars) {
			out = append(out, cand)
			continue
		}
		pattern := cand
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(root, pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil || len(matches) == 0 {
			out = append(out, cand)
			continue
		}
		out = append(out, matches...)
	}
	return dedupe(out)
}
