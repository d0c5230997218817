// Package params pulls a scanner's strategy parameters out of its source.
package params

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/yangwenmai/scanforge/internal/contract"
	"github.com/yangwenmai/scanforge/internal/model"
)

// Strategy names recorded on every extracted parameter.
const (
	StrategyConfigDict   = "config_dict"
	StrategyInstanceDict = "instance_dict"
	StrategyGeneric      = "generic"
)

var (
	identRe      = regexp.MustCompile(`^[A-Za-z_]\w*$`)
	genericRe    = regexp.MustCompile(`(?m)^[ \t]*(?:['"]([A-Za-z_]\w*)['"][ \t]*:|([A-Za-z_]\w*)[ \t]*=)[ \t]*([^,#\n]+?)[ \t]*,?[ \t]*(?:#.*)?$`)
	digitUnderRe = regexp.MustCompile(`(\d)_(\d)`)
)

// pythonKeywords never name a parameter in the generic scan.
var pythonKeywords = map[string]bool{
	"self": true, "return": true, "if": true, "else": true, "elif": true,
	"for": true, "while": true, "import": true, "from": true, "class": true,
	"def": true, "lambda": true, "with": true, "try": true, "except": true,
	"P": true,
}

// Extractor runs the three extraction strategies. It is stateless.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor { return &Extractor{} }

// Extract returns the parameters found in src. The report is accepted for
// context only. Extraction never fails; a scanner with no recognisable
// configuration yields an empty set.
//
// Strategies run in priority order and merge first-match-wins: the P = {...}
// configuration dictionary, then self.*params = {...} instance dictionaries,
// then, only when both found nothing, a generic key/value scan of the whole
// text.
func (e *Extractor) Extract(src model.SourceArtifact, _ *model.AnalysisReport) *model.ParameterSet {
	set := model.NewParameterSet()
	code := src.Code

	for _, loc := range contract.ConfigDictRe.FindAllStringIndex(code, -1) {
		addDictBlock(set, code, loc[1]-1, StrategyConfigDict)
	}
	for _, loc := range contract.InstanceParamsDictRe.FindAllStringIndex(code, -1) {
		addDictBlock(set, code, loc[1]-1, StrategyInstanceDict)
	}
	if set.Len() > 0 {
		return set
	}

	for _, m := range genericRe.FindAllStringSubmatchIndex(code, -1) {
		name := group(code, m, 1)
		if name == "" {
			name = group(code, m, 2)
		}
		if pythonKeywords[name] {
			continue
		}
		raw := strings.TrimSpace(group(code, m, 3))
		if !isLiteral(raw) {
			continue
		}
		v, ok := Coerce(raw)
		if !ok {
			continue
		}
		set.Add(model.Parameter{
			Name:   name,
			Value:  v,
			Raw:    raw,
			Line:   lineAt(code, m[0]),
			Source: StrategyGeneric,
		})
	}
	return set
}

// Blocks returns the byte spans of every configuration dictionary in code,
// opening brace to closing brace inclusive, strategy (a) blocks first.
func Blocks(code string) [][2]int {
	var spans [][2]int
	for _, re := range []*regexp.Regexp{contract.ConfigDictRe, contract.InstanceParamsDictRe} {
		for _, loc := range re.FindAllStringIndex(code, -1) {
			open := loc[1] - 1
			if end := matchBrace(code, open); end > open {
				spans = append(spans, [2]int{open, end})
			}
		}
	}
	return spans
}

func group(s string, m []int, i int) string {
	if m[2*i] < 0 {
		return ""
	}
	return s[m[2*i]:m[2*i+1]]
}

// addDictBlock parses the dictionary literal whose opening brace is at open.
func addDictBlock(set *model.ParameterSet, code string, open int, strategy string) {
	end := matchBrace(code, open)
	if end < 0 {
		return
	}
	body := code[open+1 : end]
	base := open + 1
	for _, entry := range splitTopLevel(body, ',') {
		text := stripComment(body[entry[0]:entry[1]])
		colon := indexTopLevel(text, ':')
		if colon < 0 {
			continue
		}
		name := unquote(strings.TrimSpace(text[:colon]))
		if !identRe.MatchString(name) {
			continue
		}
		raw := strings.TrimSpace(text[colon+1:])
		v, ok := Coerce(raw)
		if !ok {
			continue
		}
		lead := text[:len(text)-len(strings.TrimLeft(text, " \t\r\n"))]
		set.Add(model.Parameter{
			Name:   name,
			Value:  v,
			Raw:    raw,
			Line:   lineAt(code, base+entry[0]) + strings.Count(lead, "\n"),
			Source: strategy,
		})
	}
}

// Coerce types a raw literal: True/False become booleans, finite numbers become
// numbers, quoted literals become strings without their quotes, and anything
// else is kept verbatim as a string. None, null and empty values report false.
func Coerce(raw string) (model.Value, bool) {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "", "None", "null":
		return model.Value{}, false
	case "True", "true":
		return model.BoolValue(true), true
	case "False", "false":
		return model.BoolValue(false), true
	}
	if s, ok := quoted(raw); ok {
		return model.StringValue(s), true
	}
	if f, err := strconv.ParseFloat(digitUnderRe.ReplaceAllString(raw, "$1$2"), 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return model.NumberValue(f), true
	}
	return model.StringValue(raw), true
}

func isLiteral(raw string) bool {
	switch raw {
	case "True", "False", "true", "false":
		return true
	}
	if _, ok := quoted(raw); ok {
		return true
	}
	v, ok := Coerce(raw)
	return ok && v.Kind == model.KindNumber
}

func quoted(raw string) (string, bool) {
	if len(raw) < 2 {
		return "", false
	}
	q := raw[0]
	if (q != '"' && q != '\'') || raw[len(raw)-1] != q {
		return "", false
	}
	inner := raw[1 : len(raw)-1]
	if strings.ContainsRune(inner, rune(q)) && !strings.Contains(inner, `\`+string(q)) {
		return "", false
	}
	return inner, true
}

func unquote(s string) string {
	if v, ok := quoted(s); ok {
		return v
	}
	return s
}

func lineAt(code string, offset int) int {
	if offset > len(code) {
		offset = len(code)
	}
	return strings.Count(code[:offset], "\n") + 1
}
