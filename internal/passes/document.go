package passes

import (
	"fmt"
	"strings"

	"github.com/yangwenmai/scanforge/internal/contract"
	"github.com/yangwenmai/scanforge/internal/model"
)

// DocInfo is what the documentation pass writes into the module docstring.
type DocInfo struct {
	Template   *model.TemplateMatch
	Parameters *model.ParameterSet
	Checklist  string
}

// Document prepends a module docstring when the code has none. It reports
// whether it changed the code.
func Document(code string, info DocInfo) (string, bool) {
	lines := strings.Split(code, "\n")
	i := 0
	for i < len(lines) && contract.IsHeaderComment(lines[i]) {
		i++
	}
	for j := i; j < len(lines); j++ {
		t := strings.TrimSpace(lines[j])
		if t == "" {
			continue
		}
		if strings.HasPrefix(strings.TrimLeft(t, "rRuU"), `"""`) || strings.HasPrefix(strings.TrimLeft(t, "rRuU"), `'''`) {
			return code, false
		}
		break
	}

	doc := docstring(info)
	out := append([]string{}, lines[:i]...)
	out = append(out, doc...)
	out = append(out, "")
	out = append(out, lines[i:]...)
	return strings.Join(out, "\n"), true
}

func docstring(info DocInfo) []string {
	title := "Scanner"
	if info.Template != nil && !info.Template.IsGeneric() {
		title = fmt.Sprintf("%s scanner", info.Template.Template)
	}
	doc := []string{
		fmt.Sprintf(`"""%s, standardized to the %s architecture.`, title, contract.Name),
		"",
		"Entry point: run_scan(d0_start_user, d0_end_user)",
	}
	if info.Template != nil {
		doc = append(doc, fmt.Sprintf("Template: %s (confidence %.2f)", info.Template.Template, info.Template.Confidence))
	}
	if info.Parameters.Len() > 0 {
		doc = append(doc, "Parameters: "+strings.Join(info.Parameters.Names(), ", "))
	}
	if info.Checklist != "" {
		doc = append(doc, "Checklist: "+info.Checklist)
	}
	return append(doc, `"""`)
}
