package passes

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yangwenmai/scanforge/internal/contract"
)

// Optimization reports the rewrites and findings of the optimization pass.
type Optimization struct {
	Applied int      `json:"applied"`
	Notes   []string `json:"notes"`
}

type rewrite struct {
	desc string
	re   *regexp.Regexp
	repl string
}

var rewrites = []rewrite{
	{
		desc: "Renamed legacy " + contract.LegacyVolumeIdent + " identifier to " + contract.VolumeIdentifier,
		re:   regexp.MustCompile(regexp.QuoteMeta(contract.LegacyVolumeIdent) + `\b`),
		repl: contract.VolumeIdentifier,
	},
	{
		desc: "Replaced removed pd.np alias with np",
		re:   regexp.MustCompile(`\bpd\.np\.`),
		repl: "np.",
	},
	{
		desc: "Replaced removed .ix indexer with .loc",
		re:   regexp.MustCompile(`\.ix\[`),
		repl: ".loc[",
	},
	{
		desc: "Replaced fillna(method=...) with ffill()/bfill()",
		re:   regexp.MustCompile(`\.fillna\(\s*method\s*=\s*['"]([fb])fill['"]\s*\)`),
		repl: ".${1}fill()",
	},
}

var frameAppendRe = regexp.MustCompile(`(\w+)[ \t]*=[ \t]*(\w+)\.append\(`)

// findings are patterns reported but not rewritten.
var findings = []struct {
	found func(code string) bool
	note  string
}{
	{
		found: func(code string) bool { return strings.Contains(code, ".iterrows()") },
		note:  "Row iteration with iterrows() found; prefer vectorized masks",
	},
	{
		found: func(code string) bool { return strings.Contains(code, ".itertuples(") },
		note:  "Row iteration with itertuples() found; prefer vectorized masks",
	},
	{
		found: reassignedAppend,
		note:  "DataFrame grown with append() found; collect frames and pd.concat once",
	},
}

// reassignedAppend matches `df = df.append(...)`. List append returns None, so
// a self-assignment only makes sense for DataFrames.
func reassignedAppend(code string) bool {
	for _, m := range frameAppendRe.FindAllStringSubmatch(code, -1) {
		if m[1] == m[2] {
			return true
		}
	}
	return false
}

// Optimize applies the deterministic rewrites. The rewrites only rename
// identifiers and API calls, so a compliant artifact stays compliant.
func Optimize(code string) (string, Optimization) {
	res := Optimization{Notes: []string{}}
	for _, r := range rewrites {
		n := len(r.re.FindAllStringIndex(code, -1))
		if n == 0 {
			continue
		}
		code = r.re.ReplaceAllString(code, r.repl)
		res.Applied++
		res.Notes = append(res.Notes, fmt.Sprintf("%s (%d)", r.desc, n))
	}
	for _, f := range findings {
		if f.found(code) {
			res.Notes = append(res.Notes, f.note)
		}
	}
	return code, res
}
