package params

// Small lexical helpers for Python literals. They understand quotes, escapes,
// comments and bracket nesting, which is all dictionary splitting needs.

// matchBrace returns the index of the bracket closing the one at open, or -1.
func matchBrace(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '#':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits s on sep where sep is outside quotes, comments and
// brackets. It returns [start, end) spans, skipping blank pieces.
func splitTopLevel(s string, sep byte) [][2]int {
	var spans [][2]int
	start, depth := 0, 0
	var quote byte
	flush := func(end int) {
		for i := start; i < end; i++ {
			if !isSpace(s[i]) {
				spans = append(spans, [2]int{start, end})
				return
			}
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			quote = c
		case c == '#':
			for i+1 < len(s) && s[i+1] != '\n' {
				i++
			}
		case c == '{' || c == '[' || c == '(':
			depth++
		case c == '}' || c == ']' || c == ')':
			depth--
		case c == sep && depth == 0:
			flush(i)
			start = i + 1
		}
	}
	flush(len(s))
	return spans
}

// indexTopLevel returns the first index of c outside quotes and brackets.
func indexTopLevel(s string, c byte) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == '\\' {
				i++
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch {
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '{' || ch == '[' || ch == '(':
			depth++
		case ch == '}' || ch == ']' || ch == ')':
			depth--
		case ch == c && depth == 0:
			return i
		}
	}
	return -1
}

// stripComment drops every # comment that sits outside a string literal.
func stripComment(s string) string {
	out := make([]byte, 0, len(s))
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			out = append(out, c)
			if c == '\\' && i+1 < len(s) {
				i++
				out = append(out, s[i])
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '#' {
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				out = append(out, '\n')
			}
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
		}
		out = append(out, c)
	}
	return string(out)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
