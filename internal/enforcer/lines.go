package enforcer

import (
	"regexp"
	"strings"
)

var (
	defLineRe   = regexp.MustCompile(`^([ \t]*)(?:async[ \t]+)?def[ \t]+(\w+)[ \t]*\(`)
	classLineRe = regexp.MustCompile(`^class[ \t]+(\w+)[^:]*:[ \t]*(#.*)?$`)
	mainGuardRe = regexp.MustCompile(`^if[ \t]+__name__[ \t]*==[ \t]*['"]__main__['"]`)
)

// splitLines turns code into lines without a trailing empty element.
func splitLines(code string) []string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	code = strings.TrimRight(code, "\n")
	if code == "" {
		return nil
	}
	return strings.Split(code, "\n")
}

// tidy joins lines, dropping leading and trailing blank lines, emptying
// whitespace-only lines and collapsing blank runs to two. Lines inside
// triple-quoted strings are left alone.
func tidy(lines []string) string {
	inStr := stringState(lines)
	out := make([]string, 0, len(lines))
	blanks := 0
	for i, l := range lines {
		if !inStr[i] && strings.TrimSpace(l) == "" {
			if len(out) == 0 {
				continue
			}
			blanks++
			if blanks > 2 {
				continue
			}
			out = append(out, "")
			continue
		}
		blanks = 0
		out = append(out, l)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n") + "\n"
}

// stringState reports, per line, whether the line starts inside a
// triple-quoted string.
func stringState(lines []string) []bool {
	out := make([]bool, len(lines))
	open := ""
	for i, l := range lines {
		out[i] = open != ""
		open = scanTriple(l, open)
	}
	return out
}

// scanTriple returns the triple-quote delimiter still open at the end of line,
// given the one open at its start.
func scanTriple(line, open string) string {
	i := 0
	for i < len(line) {
		if open != "" {
			j := strings.Index(line[i:], open)
			if j < 0 {
				return open
			}
			i += j + 3
			open = ""
			continue
		}
		rest := line[i:]
		switch {
		case rest[0] == '#':
			return ""
		case strings.HasPrefix(rest, `"""`), strings.HasPrefix(rest, `'''`):
			open = rest[:3]
			i += 3
		case rest[0] == '"' || rest[0] == '\'':
			q := rest[0]
			k := i + 1
			for k < len(line) && line[k] != q {
				if line[k] == '\\' {
					k++
				}
				k++
			}
			i = k + 1
		default:
			i++
		}
	}
	return open
}

func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func width(line string) int {
	return len(indentOf(line))
}

// structural reports whether line i carries code that defines block shape.
func structural(lines []string, inStr []bool, i int) bool {
	if inStr[i] {
		return false
	}
	t := strings.TrimSpace(lines[i])
	return t != "" && !strings.HasPrefix(t, "#")
}

// blockEnd returns the index just past the last line belonging to the block
// opened at start, whose header sits at the given indent width.
func blockEnd(lines []string, inStr []bool, start, indent int) int {
	last := start
	for i := start + 1; i < len(lines); i++ {
		if inStr[i] {
			last = i
			continue
		}
		t := strings.TrimSpace(lines[i])
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "#") {
			if width(lines[i]) > indent {
				last = i
			}
			continue
		}
		if width(lines[i]) <= indent {
			break
		}
		last = i
	}
	return last + 1
}

// span is a half-open line range [start, end).
type span struct {
	name  string
	start int // first decorator line, or the def line
	end   int
}

// findDefs lists function definitions whose def line sits at exactly indent,
// within [from, to).
func findDefs(lines []string, inStr []bool, from, to, indent int) []span {
	var out []span
	for i := from; i < to && i < len(lines); i++ {
		if inStr[i] {
			continue
		}
		m := defLineRe.FindStringSubmatch(lines[i])
		if m == nil || len(m[1]) != indent {
			continue
		}
		start := i
		for start > from && strings.HasPrefix(strings.TrimSpace(lines[start-1]), "@") && width(lines[start-1]) == indent {
			start--
		}
		out = append(out, span{name: m[2], start: start, end: blockEnd(lines, inStr, i, indent)})
	}
	return out
}

// class is a top-level class block.
type class struct {
	name   string
	start  int
	end    int
	member string // indentation of the class body
}

// findClasses lists top-level classes with a multi-line body.
func findClasses(lines []string, inStr []bool) []class {
	var out []class
	for i := 0; i < len(lines); i++ {
		if inStr[i] {
			continue
		}
		m := classLineRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		c := class{name: m[1], start: i, end: blockEnd(lines, inStr, i, 0), member: "    "}
		for j := i + 1; j < c.end; j++ {
			if structural(lines, inStr, j) {
				c.member = indentOf(lines[j])
				break
			}
		}
		out = append(out, c)
	}
	return out
}

// mainGuard returns the line index of the module's main guard, or -1.
func mainGuard(lines []string, inStr []bool) int {
	for i, l := range lines {
		if !inStr[i] && mainGuardRe.MatchString(l) {
			return i
		}
	}
	return -1
}

// splice replaces lines[from:to] with repl and returns a new slice.
func splice(lines []string, from, to int, repl []string) []string {
	out := make([]string, 0, len(lines)-(to-from)+len(repl))
	out = append(out, lines[:from]...)
	out = append(out, repl...)
	return append(out, lines[to:]...)
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
