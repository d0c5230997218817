// Package analyzer reads raw scanner source and reports its structure.
//
// The analyzer works on text with regular expressions rather than a parsed
// syntax tree. It never fails: anything it cannot recognise simply leaves the
// corresponding flag false. Downstream stages depend only on the
// model.AnalysisReport shape, so a real parser can replace the matching here
// without touching them.
package analyzer

import (
	"regexp"
	"strings"

	"github.com/yangwenmai/scanforge/internal/contract"
	"github.com/yangwenmai/scanforge/internal/model"
)

// Signature identifies a custom scanner family. Every marker must appear in
// the source (case-insensitive) for the signature to match.
type Signature struct {
	Name    string
	Markers []string
}

// DefaultSignatures are checked in order before the generic heuristics.
var DefaultSignatures = []Signature{
	{Name: "backside_b", Markers: []string{"backside", contract.ConfigDictMarker}},
	{Name: "a_plus_para", Markers: []string{"a+ para", contract.ConfigDictMarker}},
	{Name: "lc_d2", Markers: []string{"lc_frontside_d2", "self.params = {"}},
	{Name: "half_a_plus", Markers: []string{"half a+", contract.ConfigDictMarker}},
}

var (
	classRe       = regexp.MustCompile(`(?m)^class[ \t]+(\w+)`)
	mainGuardRe   = regexp.MustCompile(`(?m)^if[ \t]+__name__[ \t]*==[ \t]*['"]__main__['"]`)
	maskRe        = regexp.MustCompile(`\)[ \t]*[&|][ \t]*\(`)
	appendRe      = regexp.MustCompile(`\w+[ \t]*=[ \t]*\w+\.append\(`)
	dataclassRe   = regexp.MustCompile(`(?m)^@dataclass`)
	configFieldRe = regexp.MustCompile(`^[ \t]+([A-Za-z]\w*)[ \t]*(?::[^=\n]+)?=([^=]|$)`)
)

// Analyzer produces AnalysisReports. It holds no per-request state and is safe
// for concurrent use.
type Analyzer struct {
	signatures []Signature
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithSignatures replaces the custom signature registry.
func WithSignatures(sigs []Signature) Option {
	return func(a *Analyzer) { a.signatures = sigs }
}

// New creates an Analyzer with the default signature registry.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{signatures: DefaultSignatures}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze inspects src and returns its report. Empty input yields a report
// with every flag false and a single issue.
func (a *Analyzer) Analyze(src model.SourceArtifact) model.AnalysisReport {
	report := model.NewAnalysisReport()
	code := src.Code
	if strings.TrimSpace(code) == "" {
		report.Issues = append(report.Issues, "Source is empty")
		report.Suggestions = append(report.Suggestions, "Provide the full scanner source")
		return report
	}

	a.detectStructure(code, &report)
	detectPatterns(code, &report)
	report.Metrics = measure(code)
	report.ScannerType = a.scannerType(code, report)
	collectIssues(report.Structure, report.Patterns, &report)
	return report
}

func (a *Analyzer) detectStructure(code string, r *model.AnalysisReport) {
	r.Structure[model.FlagHasRunScan] = contract.HasDef(code, contract.MethodRunScan)
	r.Structure[model.FlagHasFetchGroupedData] = contract.HasDef(code, contract.MethodFetchGroupedData)
	r.Structure[model.FlagHasSimpleFeatures] = contract.HasDef(code, contract.MethodSimpleFeatures)
	r.Structure[model.FlagHasApplySmartFilters] = contract.HasDef(code, contract.MethodApplyFilters)
	r.Structure[model.FlagHasFullFeatures] = contract.HasDef(code, contract.MethodFullFeatures)
	r.Structure[model.FlagHasDetectPatterns] = contract.HasDef(code, contract.MethodDetectPatterns)
	r.Structure[model.FlagHasConfigClass] = configClassIndex(code) >= 0
	r.Structure[model.FlagHasMainGuard] = mainGuardRe.MatchString(code)
	r.Structure[model.FlagHasD0RangeVariables] = strings.Contains(code, contract.D0StartVar) &&
		strings.Contains(code, contract.D0EndVar)
	r.Structure[model.FlagHasLegacyVolumeIdent] = strings.Contains(code, contract.LegacyVolumeIdent)
	r.Structure[model.FlagHasConfigDictionary] = contract.ConfigDictRe.MatchString(code)
	r.Structure[model.FlagHasInstanceParamsDict] = contract.InstanceParamsDictRe.MatchString(code)

	deprecated := false
	for _, name := range contract.DeprecatedMethods {
		if contract.HasDef(code, name) {
			deprecated = true
			break
		}
	}
	r.Structure[model.FlagHasDeprecatedMethods] = deprecated
}

func detectPatterns(code string, r *model.AnalysisReport) {
	r.Patterns[model.PatternGroupBy] = strings.Contains(code, ".groupby(")
	r.Patterns[model.PatternVectorizedMasks] = maskRe.MatchString(code)
	r.Patterns[model.PatternShiftLookback] = strings.Contains(code, ".shift(")
	r.Patterns[model.PatternMarketCalendar] = strings.Contains(code, contract.CalendarModule) ||
		strings.Contains(code, "mcal.")
	r.Patterns[model.PatternTypedConfig] = dataclassRe.MatchString(code) || configClassIndex(code) >= 0
	r.Patterns[model.PatternThreadPool] = strings.Contains(code, "ThreadPoolExecutor")
	r.Patterns[model.PatternRowIteration] = strings.Contains(code, ".iterrows()") ||
		strings.Contains(code, ".itertuples(")
	r.Patterns[model.PatternDataFrameAppend] = appendRe.MatchString(code)
	r.Patterns[model.PatternGroupedDailyFetch] = strings.Contains(code, "/aggs/grouped/")
}

func measure(code string) model.Metrics {
	methods := len(contract.DefRegexp().FindAllStringIndex(code, -1))
	return model.Metrics{
		LineCount:      model.CountLines(code),
		MethodCount:    methods,
		ParameterCount: countConfigFields(code),
		Complexity:     model.ComplexityFor(methods),
	}
}

// configClassIndex returns the line index of the first configuration class, or -1.
func configClassIndex(code string) int {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		m := classRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if contract.IsConfigClassName(m[1]) {
			return i
		}
		if i > 0 && strings.HasPrefix(strings.TrimSpace(lines[i-1]), "@dataclass") {
			return i
		}
	}
	return -1
}

// countConfigFields counts public assignments in the first configuration class.
// The block ends at the next top-level class, def or decorator; there is no
// indentation tracking, so nested assignments are counted too and the result
// is only a lower bound on what a real parser would see.
func countConfigFields(code string) int {
	start := configClassIndex(code)
	if start < 0 {
		return 0
	}
	lines := strings.Split(code, "\n")
	n := 0
	for _, line := range lines[start+1:] {
		if strings.HasPrefix(line, "class ") || strings.HasPrefix(line, "def ") || strings.HasPrefix(line, "@") {
			break
		}
		if strings.TrimSpace(line) == "pass" {
			continue
		}
		if configFieldRe.MatchString(line) {
			n++
		}
	}
	return n
}

func (a *Analyzer) scannerType(code string, r model.AnalysisReport) string {
	lower := strings.ToLower(code)
	for _, sig := range a.signatures {
		if matchesAll(lower, sig.Markers) {
			return sig.Name
		}
	}

	canonical := true
	for _, flag := range canonicalFlags {
		if !r.Structure[flag] {
			canonical = false
			break
		}
	}
	switch {
	case canonical && hasScannerClass(code):
		return model.ScannerV31Class
	case r.Structure[model.FlagHasRunScan] && hasScannerClass(code):
		return model.ScannerClassBased
	case r.Metrics.MethodCount > 0 && hasScannerClass(code):
		return model.ScannerClassBased
	case r.Metrics.MethodCount > 0:
		return model.ScannerFunctionBased
	}
	return model.ScannerUnknown
}

var canonicalFlags = []string{
	model.FlagHasRunScan,
	model.FlagHasFetchGroupedData,
	model.FlagHasSimpleFeatures,
	model.FlagHasApplySmartFilters,
	model.FlagHasFullFeatures,
	model.FlagHasDetectPatterns,
}

func matchesAll(lowerCode string, markers []string) bool {
	if len(markers) == 0 {
		return false
	}
	for _, m := range markers {
		if !strings.Contains(lowerCode, strings.ToLower(m)) {
			return false
		}
	}
	return true
}

// hasScannerClass reports whether any non-configuration class is defined.
func hasScannerClass(code string) bool {
	for _, m := range classRe.FindAllStringSubmatch(code, -1) {
		if !contract.IsConfigClassName(m[1]) {
			return true
		}
	}
	return false
}
