package analyzer

import "github.com/yangwenmai/scanforge/internal/model"

// rule pairs a condition on the report with the issue and suggestion it raises.
type rule struct {
	when       func(structure, patterns map[string]bool) bool
	issue      string
	suggestion string
}

// rules are evaluated in order; the report keeps that order.
var rules = []rule{
	{
		when:       func(s, _ map[string]bool) bool { return !s[model.FlagHasRunScan] },
		issue:      "Missing run_scan() entry point",
		suggestion: "Add a run_scan() method that drives fetch, features, filters and pattern detection",
	},
	{
		when:       func(s, _ map[string]bool) bool { return !s[model.FlagHasFetchGroupedData] },
		issue:      "Missing fetch_grouped_data() batched fetch",
		suggestion: "Fetch every ticker for every date with one grouped-daily call per date",
	},
	{
		when:       func(s, _ map[string]bool) bool { return !s[model.FlagHasApplySmartFilters] },
		issue:      "Missing apply_smart_filters() filter stage",
		suggestion: "Filter only D0-range rows and keep historical rows for window computations",
	},
	{
		when: func(s, _ map[string]bool) bool {
			return !s[model.FlagHasSimpleFeatures] && !s[model.FlagHasFullFeatures]
		},
		issue:      "No feature computation method",
		suggestion: "Split feature work into compute_simple_features() and compute_full_features()",
	},
	{
		when:       func(s, _ map[string]bool) bool { return !s[model.FlagHasDetectPatterns] },
		issue:      "Missing detect_patterns() stage",
		suggestion: "Detect patterns only inside the D0 output range",
	},
	{
		when:       func(s, _ map[string]bool) bool { return s[model.FlagHasDeprecatedMethods] },
		issue:      "Defines deprecated methods (execute, run_and_save or fetch_all_grouped_data)",
		suggestion: "Remove deprecated methods; run_scan() is the only entry point",
	},
	{
		when:       func(s, _ map[string]bool) bool { return !s[model.FlagHasD0RangeVariables] },
		issue:      "Output range variables d0_start_user/d0_end_user not found",
		suggestion: "Name the output window d0_start_user and d0_end_user",
	},
	{
		when:       func(s, _ map[string]bool) bool { return s[model.FlagHasLegacyVolumeIdent] },
		issue:      "Uses legacy $vol identifier",
		suggestion: "Rename the traded-value column to dollar_volume",
	},
	{
		when:       func(_, p map[string]bool) bool { return !p[model.PatternMarketCalendar] },
		issue:      "No market calendar dependency",
		suggestion: "Use pandas_market_calendars to enumerate trading days",
	},
	{
		when:       func(_, p map[string]bool) bool { return p[model.PatternRowIteration] },
		issue:      "Iterates DataFrame rows",
		suggestion: "Replace iterrows()/itertuples() loops with vectorized boolean masks",
	},
	{
		when:       func(_, p map[string]bool) bool { return p[model.PatternDataFrameAppend] },
		issue:      "Grows DataFrames with append()",
		suggestion: "Collect frames in a list and pd.concat() once",
	},
}

func collectIssues(structure, patterns map[string]bool, r *model.AnalysisReport) {
	for _, rl := range rules {
		if rl.when(structure, patterns) {
			r.Issues = append(r.Issues, rl.issue)
			r.Suggestions = append(r.Suggestions, rl.suggestion)
		}
	}
}
