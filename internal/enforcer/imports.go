package enforcer

import (
	"fmt"
	"strings"

	"github.com/yangwenmai/scanforge/internal/contract"
)

// normalizeImports rebuilds the module head: shebang and coding lines, then a
// leading docstring, then the required imports once each in canonical order,
// then the rest of the body. Every other top-level import is dropped.
func normalizeImports(lines []string) ([]string, []string) {
	inStr := stringState(lines)

	i := 0
	var head []string
	for i < len(lines) && contract.IsHeaderComment(lines[i]) {
		head = append(head, lines[i])
		i++
	}
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}

	var doc []string
	if i < len(lines) && isDocstringStart(lines[i]) {
		j := i
		open := scanTriple(lines[j], "")
		for open != "" && j+1 < len(lines) {
			j++
			open = scanTriple(lines[j], open)
		}
		doc = lines[i : j+1]
		i = j + 1
	}

	seen := make([]bool, len(contract.RequiredImports))
	dropped := 0
	var order []int
	var body []string
	for k := i; k < len(lines); k++ {
		if inStr[k] || !isImportLine(lines[k]) {
			body = append(body, lines[k])
			continue
		}
		end := importEnd(lines, k)
		stmt, _, _ := strings.Cut(lines[k], "#")
		if idx, ok := contract.RequiredImportIndex(stmt); ok && end == k && !seen[idx] {
			seen[idx] = true
			order = append(order, idx)
		} else {
			dropped++
		}
		k = end
	}
	for len(body) > 0 && strings.TrimSpace(body[0]) == "" {
		body = body[1:]
	}

	out := make([]string, 0, len(head)+len(doc)+len(contract.RequiredImports)+len(body)+4)
	out = append(out, head...)
	if len(doc) > 0 {
		out = append(out, doc...)
		out = append(out, "")
	}
	out = append(out, contract.RequiredImports...)
	if len(body) > 0 {
		out = append(out, "", "")
		out = append(out, body...)
	}

	var notes []string
	if added := len(contract.RequiredImports) - len(order); added > 0 {
		notes = append(notes, fmt.Sprintf("Added %d missing required imports", added))
	}
	if dropped > 0 {
		notes = append(notes, fmt.Sprintf("Removed %d duplicate or extraneous imports", dropped))
	}
	if len(notes) == 0 && !inCanonicalOrder(order) {
		notes = append(notes, "Reordered required imports")
	}
	return out, notes
}

func isDocstringStart(line string) bool {
	t := strings.TrimLeft(line, "rRuU")
	return line != "" && indentOf(line) == "" &&
		(strings.HasPrefix(t, `"""`) || strings.HasPrefix(t, `'''`))
}

// isImportLine matches a top-level import statement.
func isImportLine(line string) bool {
	if strings.HasPrefix(line, "import ") {
		return true
	}
	return strings.HasPrefix(line, "from ") && strings.Contains(line, " import")
}

// importEnd returns the last line of the import statement starting at i,
// following parenthesized lists and backslash continuations.
func importEnd(lines []string, i int) int {
	stmt, _, _ := strings.Cut(lines[i], "#")
	depth := strings.Count(stmt, "(") - strings.Count(stmt, ")")
	cont := strings.HasSuffix(strings.TrimRight(stmt, " \t"), `\`)
	for (depth > 0 || cont) && i+1 < len(lines) {
		i++
		stmt, _, _ = strings.Cut(lines[i], "#")
		depth += strings.Count(stmt, "(") - strings.Count(stmt, ")")
		cont = strings.HasSuffix(strings.TrimRight(stmt, " \t"), `\`)
	}
	return i
}

func inCanonicalOrder(order []int) bool {
	for i := 1; i < len(order); i++ {
		if order[i] < order[i-1] {
			return false
		}
	}
	return true
}
