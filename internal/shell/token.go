// Package shell provides a minimal quote-aware scanner for the subset of
// POSIX shell syntax that matters for path extraction. It is not a shell
// interpreter: a single forward pass over the input, no backtracking, and
// malformed input degrades to best-effort tokens instead of errors. Running
// time is linear in the input length for any input.
package shell

import "strings"

// Quote identifies the quoting context a token was scanned in. A token
// assembled from mixed runs (ab"cd"'ef') records the strongest quote seen:
// double wins over single, single over none. Double and none both permit
// variable substitution, so the ordering keeps substitution decisions
// conservative.
type Quote int

const (
	// QuoteNone marks an unquoted token.
	QuoteNone Quote = iota
	// QuoteSingle marks a token from single quotes: no escapes, no
	// substitution.
	QuoteSingle
	// QuoteDouble marks a token from double quotes: backslash escapes and
	// variable substitution apply.
	QuoteDouble
)

// Token is one shell word with the quoting that produced it.
type Token struct {
	Text  string
	Quote Quote
}

// isSeparator reports whether c ends a token outside quotes. Control
// operators are separators here because Split has already cut the command
// at the ones that delimit pipeline segments; whatever remains (redirects,
// grouping) only needs to stop word assembly.
func isSeparator(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '|', ';', '&', '<', '>', '(', ')', '{', '}':
		return true
	}
	return false
}

// Tokenize splits one pipeline segment into words. Quotes group characters
// and are stripped from the output; a quote left open runs to the end of the
// input. The scan never fails.
func Tokenize(raw string) []Token {
	var tokens []Token
	var cur strings.Builder
	inSingle, inDouble := false, false
	sawSingle, sawDouble := false, false

	flush := func() {
		if cur.Len() > 0 {
			q := QuoteNone
			if sawDouble {
				q = QuoteDouble
			} else if sawSingle {
				q = QuoteSingle
			}
			tokens = append(tokens, Token{Text: cur.String(), Quote: q})
			cur.Reset()
		}
		sawSingle, sawDouble = false, false
	}

	for i := 0; i < len(raw); {
		c := raw[i]

		if inSingle {
			if c == '\'' {
				inSingle = false
			} else {
				cur.WriteByte(c)
			}
			i++
			continue
		}

		if inDouble {
			switch {
			case c == '\\' && i+1 < len(raw):
				cur.WriteByte(raw[i+1])
				i += 2
			case c == '"':
				inDouble = false
				i++
			default:
				cur.WriteByte(c)
				i++
			}
			continue
		}

		switch {
		case c == '\'':
			inSingle = true
			sawSingle = true
			i++
		case c == '"':
			inDouble = true
			sawDouble = true
			i++
		case c == '\\' && i+1 < len(raw):
			cur.WriteByte(raw[i+1])
			i += 2
		case isSeparator(c):
			flush()
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	flush()

	return tokens
}
