// Package passes holds the optional deterministic passes that run between
// compliance enforcement and validation. Each pass takes code and returns new
// code plus a description of what it did; none of them fail.
package passes

import (
	"strconv"
	"strings"

	"github.com/yangwenmai/scanforge/internal/model"
	"github.com/yangwenmai/scanforge/internal/params"
)

// Preservation reports which source parameters survived the rewrite.
type Preservation struct {
	Preserved []string `json:"preserved"`
	Missing   []string `json:"missing"`
	Restored  []string `json:"restored"`
}

// PreserveParameters re-extracts parameters from code and compares them with
// want. Missing names are written back into the first configuration
// dictionary when the code has one.
func PreserveParameters(code string, want *model.ParameterSet) (string, Preservation) {
	res := Preservation{Preserved: []string{}, Missing: []string{}, Restored: []string{}}
	if want.Len() == 0 {
		return code, res
	}

	missing := missingFrom(code, want)
	if len(missing) > 0 {
		if blocks := params.Blocks(code); len(blocks) > 0 {
			code = inject(code, blocks[0][0], blocks[0][1], missing)
			for _, p := range missing {
				res.Restored = append(res.Restored, p.Name)
			}
			missing = missingFrom(code, want)
		}
	}

	gone := map[string]bool{}
	for _, p := range missing {
		gone[p.Name] = true
		res.Missing = append(res.Missing, p.Name)
	}
	for _, name := range want.Names() {
		if !gone[name] {
			res.Preserved = append(res.Preserved, name)
		}
	}
	return code, res
}

func missingFrom(code string, want *model.ParameterSet) []model.Parameter {
	got := params.New().Extract(model.NewSourceArtifact(code, ""), nil)
	var out []model.Parameter
	for _, p := range want.All() {
		if _, ok := got.Get(p.Name); !ok {
			out = append(out, p)
		}
	}
	return out
}

// inject writes entries for ps right after the opening brace at open. The
// closing brace is at end.
func inject(code string, open, end int, ps []model.Parameter) string {
	body := code[open+1 : end]

	if strings.Contains(body, "\n") {
		indent := ""
		for _, l := range strings.Split(body, "\n") {
			if strings.TrimSpace(l) != "" {
				indent = l[:len(l)-len(strings.TrimLeft(l, " \t"))]
				break
			}
		}
		if indent == "" {
			lineStart := strings.LastIndexByte(code[:end], '\n') + 1
			indent = code[lineStart:end] + "    "
		}
		var b strings.Builder
		for _, p := range ps {
			b.WriteString("\n" + indent + entry(p) + ",")
		}
		return code[:open+1] + b.String() + code[open+1:]
	}

	entries := make([]string, len(ps))
	for i, p := range ps {
		entries[i] = entry(p)
	}
	joined := strings.Join(entries, ", ")
	if strings.TrimSpace(body) != "" {
		joined += ", " + strings.TrimLeft(body, " \t")
	}
	return code[:open+1] + joined + code[end:]
}

func entry(p model.Parameter) string {
	literal := p.Raw
	if literal == "" {
		literal = p.Value.Python()
	}
	return strconv.Quote(p.Name) + ": " + literal
}
