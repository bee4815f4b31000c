package shell

import "strings"

// Segment is one command's worth of text between control operators.
type Segment struct {
	Raw       string
	Synthetic bool // body of a process substitution <(...) or >(...)
}

// Split cuts a command into pipeline segments at unquoted control operators
// (| ; & && ||) and newlines. Process-substitution bodies become synthetic
// segments placed after the segment that contained them; the body stays one
// segment even when it holds its own operators. Here-doc bodies and
// here-string words are dropped entirely: they are inline data, not paths
// the command will open. Like Tokenize, this is a single forward pass that
// never fails.
func Split(command string) []Segment {
	var segs []Segment
	var cur strings.Builder
	var pendingSynthetic []Segment
	var pendingHeredocs []string
	inSingle, inDouble := false, false

	flush := func() {
		if text := strings.TrimSpace(cur.String()); text != "" {
			segs = append(segs, Segment{Raw: text})
		}
		cur.Reset()
		segs = append(segs, pendingSynthetic...)
		pendingSynthetic = nil
	}

	captureSubst := func(start int) int {
		body, next := balancedBody(command, start)
		if body = strings.TrimSpace(body); body != "" {
			pendingSynthetic = append(pendingSynthetic, Segment{Raw: body, Synthetic: true})
		}
		cur.WriteByte(' ')
		return next
	}

	i := 0
	for i < len(command) {
		c := command[i]

		if inSingle {
			cur.WriteByte(c)
			if c == '\'' {
				inSingle = false
			}
			i++
			continue
		}
		if inDouble {
			if c == '\\' && i+1 < len(command) {
				cur.WriteByte(c)
				cur.WriteByte(command[i+1])
				i += 2
				continue
			}
			cur.WriteByte(c)
			if c == '"' {
				inDouble = false
			}
			i++
			continue
		}

		switch c {
		case '\'':
			inSingle = true
			cur.WriteByte(c)
			i++
		case '"':
			inDouble = true
			cur.WriteByte(c)
			i++
		case '\\':
			cur.WriteByte(c)
			if i+1 < len(command) {
				cur.WriteByte(command[i+1])
				i += 2
			} else {
				i++
			}
		case ';', '&', '|':
			flush()
			for i < len(command) && (command[i] == ';' || command[i] == '&' || command[i] == '|') {
				i++
			}
		case '\n':
			flush()
			i++
			for len(pendingHeredocs) > 0 {
				delim := pendingHeredocs[0]
				pendingHeredocs = pendingHeredocs[1:]
				i = skipHeredocBody(command, i, delim)
			}
		case '<':
			switch {
			case i+1 < len(command) && command[i+1] == '(':
				i = captureSubst(i + 2)
			case strings.HasPrefix(command[i:], "<<<"):
				i = skipWord(command, i+3)
				cur.WriteByte(' ')
			case strings.HasPrefix(command[i:], "<<"):
				delim, next := heredocDelimiter(command, i+2)
				if delim != "" {
					pendingHeredocs = append(pendingHeredocs, delim)
				}
				cur.WriteByte(' ')
				i = next
			default:
				cur.WriteByte(c)
				i++
			}
		case '>':
			if i+1 < len(command) && command[i+1] == '(' {
				i = captureSubst(i + 2)
			} else {
				cur.WriteByte(c)
				i++
			}
		default:
			cur.WriteByte(c)
			i++
		}
	}
	flush()

	return segs
}

// balancedBody scans a process-substitution body from start (just past the
// opening paren) to its matching close paren, honoring quotes. An
// unbalanced body runs to the end of the input.
func balancedBody(s string, start int) (string, int) {
	depth := 1
	inSingle, inDouble := false, false
	i := start
	for ; i < len(s); i++ {
		c := s[i]
		if inSingle {
			if c == '\'' {
				inSingle = false
			}
			continue
		}
		if inDouble {
			if c == '\\' {
				i++
				continue
			}
			if c == '"' {
				inDouble = false
			}
			continue
		}
		switch c {
		case '\'':
			inSingle = true
		case '"':
			inDouble = true
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[start:i], i + 1
			}
		}
	}
	return s[start:], i
}

// skipWord advances past leading blanks and one quote-aware word.
func skipWord(s string, start int) int {
	i := start
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	inSingle, inDouble := false, false
	for i < len(s) {
		c := s[i]
		switch {
		case inSingle:
			inSingle = c != '\''
			i++
		case inDouble:
			if c == '\\' && i+1 < len(s) {
				i += 2
				continue
			}
			inDouble = c != '"'
			i++
		case c == '\'':
			inSingle = true
			i++
		case c == '"':
			inDouble = true
			i++
		case c == '\\' && i+1 < len(s):
			i += 2
		case isSeparator(c):
			return i
		default:
			i++
		}
	}
	return i
}

// heredocDelimiter reads the delimiter word after <<, allowing the <<- form
// and a quoted delimiter.
func heredocDelimiter(s string, start int) (string, int) {
	i := start
	if i < len(s) && s[i] == '-' {
		i++
	}
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	var quote byte
	if i < len(s) && (s[i] == '\'' || s[i] == '"') {
		quote = s[i]
		i++
	}
	begin := i
	for i < len(s) {
		c := s[i]
		if quote != 0 {
			if c == quote {
				break
			}
		} else if isSeparator(c) {
			break
		}
		i++
	}
	delim := s[begin:i]
	if quote != 0 && i < len(s) {
		i++
	}
	return delim, i
}

// skipHeredocBody advances past here-doc lines up to and including the
// delimiter line. A missing delimiter consumes the rest of the input.
func skipHeredocBody(s string, start int, delim string) int {
	i := start
	for i < len(s) {
		end := strings.IndexByte(s[i:], '\n')
		var line string
		var next int
		if end == -1 {
			line = s[i:]
			next = len(s)
		} else {
			line = s[i : i+end]
			next = i + end + 1
		}
		if strings.TrimLeft(line, " \t") == delim {
			return next
		}
		i = next
	}
	return i
}
