package enforcer

import (
	"fmt"

	"github.com/yangwenmai/scanforge/internal/contract"
	"github.com/yangwenmai/scanforge/internal/model"
)

// removeDeprecated deletes every definition of a deprecated method, at any
// nesting level.
func removeDeprecated(lines []string) ([]string, []string) {
	var notes []string
	for {
		inStr := stringState(lines)
		found := false
		for i := range lines {
			if inStr[i] {
				continue
			}
			m := defLineRe.FindStringSubmatch(lines[i])
			if m == nil || !contract.IsDeprecated(m[2]) {
				continue
			}
			defs := findDefs(lines, inStr, i, i+1, len(m[1]))
			start := i
			for start > 0 && width(lines[start-1]) == len(m[1]) && isDecorator(lines[start-1]) {
				start--
			}
			lines = splice(lines, start, defs[0].end, nil)
			notes = append(notes, fmt.Sprintf("Removed deprecated %s()", m[2]))
			found = true
			break
		}
		if !found {
			return lines, notes
		}
	}
}

// targetClass returns the first top-level class that is not a configuration
// holder.
func targetClass(lines []string, inStr []bool) (class, bool) {
	for _, c := range findClasses(lines, inStr) {
		if !contract.IsConfigClassName(c.name) {
			return c, true
		}
	}
	return class{}, false
}

// guaranteeMethods makes every canonical method present with its canonical
// body: inside the target class when there is one, as module-level functions
// otherwise.
func guaranteeMethods(lines []string) ([]string, []string) {
	inStr := stringState(lines)
	if _, ok := targetClass(lines, inStr); !ok {
		lines, notes := guaranteeFunctions(lines)
		note := fmt.Sprintf("%v; emitted module-level functions", model.ErrComplianceRepair)
		return lines, append([]string{note}, notes...)
	}

	var notes []string
	for _, name := range contract.CanonicalMethods {
		inStr = stringState(lines)
		cls, _ := targetClass(lines, inStr)
		defs := findDefs(lines, inStr, cls.start+1, cls.end, len(cls.member))
		body := renderMethod(name, cls.member, 1)

		var note string
		lines, note = placeCanonical(lines, defs, name, body, func(defs []span) ([]string, int) {
			at := cls.end
			if len(defs) > 0 {
				at = defs[len(defs)-1].end
			}
			return []string{""}, at
		})
		if note != "" {
			notes = append(notes, note)
		}
	}
	return lines, notes
}

func guaranteeFunctions(lines []string) ([]string, []string) {
	var notes []string
	for _, name := range contract.CanonicalMethods {
		inStr := stringState(lines)
		defs := findDefs(lines, inStr, 0, len(lines), 0)

		var note string
		lines, note = placeCanonical(lines, defs, name, renderFunction(name), func([]span) ([]string, int) {
			if g := mainGuard(lines, inStr); g >= 0 {
				return []string{"", ""}, g
			}
			return []string{"", ""}, len(lines)
		})
		if note != "" {
			notes = append(notes, note)
		}
	}
	return lines, notes
}

// placeCanonical replaces the first definition of name with body and drops
// later duplicates. When name is not defined, body is inserted where insertAt
// says, preceded by its separator lines.
func placeCanonical(lines []string, defs []span, name string, body []string, insertAt func([]span) ([]string, int)) ([]string, string) {
	var matches []span
	for _, d := range defs {
		if d.name == name {
			matches = append(matches, d)
		}
	}

	if len(matches) == 0 {
		sep, at := insertAt(defs)
		block := append(append([]string{}, sep...), body...)
		if at < len(lines) {
			block = append(block, sep...)
		}
		return splice(lines, at, at, block), fmt.Sprintf("Inserted %s()", name)
	}

	for i := len(matches) - 1; i > 0; i-- {
		lines = splice(lines, matches[i].start, matches[i].end, nil)
	}
	first := matches[0]
	if equalLines(lines[first.start:first.end], body) && len(matches) == 1 {
		return lines, ""
	}
	return splice(lines, first.start, first.end, body), fmt.Sprintf("Replaced body of %s()", name)
}

func isDecorator(line string) bool {
	t := line[len(indentOf(line)):]
	return len(t) > 0 && t[0] == '@'
}
