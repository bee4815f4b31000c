package shell

import "strings"

// maxExpandRounds bounds chained substitution (A=$B where B is itself a
// recorded variable). Deeper chains stay partially literal.
const maxExpandRounds = 5

// VariableTable records NAME=VALUE assignments scanned from a command,
// later assignments winning. Values are stored raw; Expand resolves chains
// up to maxExpandRounds deep and leaves undefined references literal, so a
// reference to a variable the command never set cannot vanish into an
// empty path.
type VariableTable struct {
	vals map[string]string
}

// CollectVars scans every token of every segment for assignments of the
// form NAME=VALUE and records them in order. The export keyword needs no
// special handling: the assignment is its own token either way. Tokens
// like --flag=value never qualify because the name must be a shell
// identifier.
func CollectVars(segments [][]Token) *VariableTable {
	t := &VariableTable{vals: make(map[string]string)}
	for _, toks := range segments {
		for _, tok := range toks {
			if name, value, ok := splitAssignment(tok.Text); ok {
				t.vals[name] = value
			}
		}
	}
	return t
}

// IsAssignment reports whether a token has the NAME=VALUE shape that the
// shell treats as a variable assignment.
func IsAssignment(s string) bool {
	_, _, ok := splitAssignment(s)
	return ok
}

// splitAssignment parses NAME=VALUE where NAME is a shell identifier.
func splitAssignment(s string) (name, value string, ok bool) {
	eq := strings.IndexByte(s, '=')
	if eq <= 0 {
		return "", "", false
	}
	name = s[:eq]
	if !isIdentifier(name) {
		return "", "", false
	}
	return name, s[eq+1:], true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Len returns the number of recorded variables.
func (t *VariableTable) Len() int {
	return len(t.vals)
}

// Lookup returns the recorded value for name.
func (t *VariableTable) Lookup(name string) (string, bool) {
	v, ok := t.vals[name]
	return v, ok
}

// Expand substitutes $NAME and ${NAME} references recorded in the table.
// Unknown names stay literal.
func (t *VariableTable) Expand(s string) string {
	if len(t.vals) == 0 || !strings.Contains(s, "$") {
		return s
	}
	for round := 0; round < maxExpandRounds; round++ {
		next := t.expandOnce(s)
		if next == s {
			break
		}
		s = next
		if !strings.Contains(s, "$") {
			break
		}
	}
	return s
}

// ExpandToken applies substitution honoring the token's quote kind: single
// quotes suppress it.
func (t *VariableTable) ExpandToken(tok Token) Token {
	if tok.Quote == QuoteSingle {
		return tok
	}
	tok.Text = t.Expand(tok.Text)
	return tok
}

func (t *VariableTable) expandOnce(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '$' {
			out.WriteByte(c)
			i++
			continue
		}
		name, end := parseVarRef(s, i+1)
		if name == "" {
			out.WriteByte(c)
			i++
			continue
		}
		if v, ok := t.vals[name]; ok {
			out.WriteString(v)
		} else {
			out.WriteString(s[i:end])
		}
		i = end
	}
	return out.String()
}

// parseVarRef reads a variable reference starting just past the dollar
// sign, in either the $NAME or ${NAME} form. Returns the name and the
// index past the reference; an empty name means no valid reference starts
// here and the dollar sign is literal.
func parseVarRef(s string, i int) (string, int) {
	if i < len(s) && s[i] == '{' {
		j := strings.IndexByte(s[i+1:], '}')
		if j == -1 {
			return "", i
		}
		name := s[i+1 : i+1+j]
		if !isIdentifier(name) {
			return "", i
		}
		return name, i + j + 2
	}
	j := i
	for j < len(s) {
		c := s[j]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (j > i && c >= '0' && c <= '9') {
			j++
			continue
		}
		break
	}
	if j == i {
		return "", i
	}
	return s[i:j], j
}
