package model

// Complexity is the size bucket derived from a scanner's method count.
type Complexity string

// Complexity buckets
const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// ComplexityFor maps a method count onto its bucket: more than 10 methods is
// complex, more than 5 is moderate, anything else is simple.
func ComplexityFor(methodCount int) Complexity {
	switch {
	case methodCount > 10:
		return ComplexityComplex
	case methodCount > 5:
		return ComplexityModerate
	default:
		return ComplexitySimple
	}
}

// Level returns the high/medium/low judgement used by the template classifier.
func (c Complexity) Level() string {
	switch c {
	case ComplexityComplex:
		return "high"
	case ComplexityModerate:
		return "medium"
	default:
		return "low"
	}
}

// Structural flag names
const (
	FlagHasRunScan            = "has_run_scan"
	FlagHasFetchGroupedData   = "has_fetch_grouped_data"
	FlagHasSimpleFeatures     = "has_compute_simple_features"
	FlagHasApplySmartFilters  = "has_apply_smart_filters"
	FlagHasFullFeatures       = "has_compute_full_features"
	FlagHasDetectPatterns     = "has_detect_patterns"
	FlagHasConfigClass        = "has_config_class"
	FlagHasMainGuard          = "has_main_guard"
	FlagHasDeprecatedMethods  = "has_deprecated_methods"
	FlagHasD0RangeVariables   = "has_d0_range_variables"
	FlagHasLegacyVolumeIdent  = "has_legacy_volume_identifier"
	FlagHasConfigDictionary   = "has_config_dictionary"
	FlagHasInstanceParamsDict = "has_instance_params_dictionary"
)

// Pattern flag names
const (
	PatternGroupBy           = "uses_groupby"
	PatternVectorizedMasks   = "uses_vectorized_masks"
	PatternShiftLookback     = "uses_shift_lookback"
	PatternMarketCalendar    = "uses_market_calendar"
	PatternTypedConfig       = "uses_typed_config"
	PatternThreadPool        = "uses_thread_pool"
	PatternRowIteration      = "uses_row_iteration"
	PatternDataFrameAppend   = "uses_dataframe_append"
	PatternGroupedDailyFetch = "uses_grouped_daily_fetch"
)

// Scanner types reported by the analyzer when no custom signature matches.
const (
	ScannerV31Class      = "v31_class"
	ScannerClassBased    = "class_based"
	ScannerFunctionBased = "function_based"
	ScannerUnknown       = "unknown"
)

// Metrics holds size and complexity figures for a scanner.
type Metrics struct {
	LineCount      int        `json:"line_count"`
	MethodCount    int        `json:"method_count"`
	ParameterCount int        `json:"parameter_count"` // lower bound, see analyzer
	Complexity     Complexity `json:"complexity"`
}

// AnalysisReport is the structural analyzer's output. Downstream stages only
// read it.
type AnalysisReport struct {
	ScannerType string          `json:"scanner_type"`
	Structure   map[string]bool `json:"structure"`
	Patterns    map[string]bool `json:"patterns"`
	Metrics     Metrics         `json:"metrics"`
	Issues      []string        `json:"issues"`
	Suggestions []string        `json:"suggestions"`
}

// NewAnalysisReport returns a report with every map and slice allocated.
func NewAnalysisReport() AnalysisReport {
	return AnalysisReport{
		ScannerType: ScannerUnknown,
		Structure:   map[string]bool{},
		Patterns:    map[string]bool{},
		Metrics:     Metrics{Complexity: ComplexitySimple},
		Issues:      []string{},
		Suggestions: []string{},
	}
}

// Has returns the value of a structural flag; missing flags are false.
func (r AnalysisReport) Has(flag string) bool { return r.Structure[flag] }

// Uses returns the value of a pattern flag; missing flags are false.
func (r AnalysisReport) Uses(pattern string) bool { return r.Patterns[pattern] }

// Clone returns a deep copy so cached reports can be handed out safely.
func (r AnalysisReport) Clone() AnalysisReport {
	out := r
	out.Structure = make(map[string]bool, len(r.Structure))
	for k, v := range r.Structure {
		out.Structure[k] = v
	}
	out.Patterns = make(map[string]bool, len(r.Patterns))
	for k, v := range r.Patterns {
		out.Patterns[k] = v
	}
	out.Issues = append([]string{}, r.Issues...)
	out.Suggestions = append([]string{}, r.Suggestions...)
	return out
}
