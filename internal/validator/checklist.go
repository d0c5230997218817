package validator

import (
	"regexp"
	"strings"

	"github.com/yangwenmai/scanforge/internal/contract"
)

// ChecklistVersion names the current checklist. Adding, removing or changing
// a check changes the score denominator and must bump it.
const ChecklistVersion = "v31-checklist/1"

// Check is one named predicate of the checklist.
type Check struct {
	Name           string
	Description    string
	Recommendation string
	Pass           func(code string) bool
}

var (
	d0StartRe = regexp.MustCompile(`\b` + contract.D0StartVar + `\b`)
	d0EndRe   = regexp.MustCompile(`\b` + contract.D0EndVar + `\b`)
	volumeRe  = regexp.MustCompile(`\b` + contract.VolumeIdentifier + `\b`)
)

var checklist = []Check{
	{
		Name:           "entry_point",
		Description:    "Defines the run_scan() entry point",
		Recommendation: "Add a run_scan(d0_start_user, d0_end_user) entry point",
		Pass: func(code string) bool {
			return contract.HasDef(code, contract.MethodRunScan)
		},
	},
	{
		Name:           "d0_range_naming",
		Description:    "Output range uses d0_start_user and d0_end_user",
		Recommendation: "Name the output date range d0_start_user / d0_end_user",
		Pass: func(code string) bool {
			return d0StartRe.MatchString(code) && d0EndRe.MatchString(code)
		},
	},
	{
		Name:           "batched_fetch",
		Description:    "Fetches grouped data in one batched pass",
		Recommendation: "Implement fetch_grouped_data() and drop fetch_all_grouped_data()",
		Pass: func(code string) bool {
			return contract.HasDef(code, contract.MethodFetchGroupedData) &&
				!contract.HasDef(code, contract.DeprecatedFetchAllGrouped)
		},
	},
	{
		Name:           "filter_application",
		Description:    "Applies filters in apply_smart_filters()",
		Recommendation: "Move validation filters into apply_smart_filters() and keep historical rows",
		Pass: func(code string) bool {
			return contract.HasDef(code, contract.MethodApplyFilters)
		},
	},
	{
		Name:           "feature_computation",
		Description:    "Computes features in a dedicated method",
		Recommendation: "Add compute_simple_features() and compute_full_features()",
		Pass: func(code string) bool {
			return contract.HasDef(code, contract.MethodSimpleFeatures) ||
				contract.HasDef(code, contract.MethodFullFeatures)
		},
	},
	{
		Name:           "volume_identifier",
		Description:    "Uses dollar_volume instead of $vol",
		Recommendation: "Rename the $vol column to dollar_volume",
		Pass: func(code string) bool {
			return volumeRe.MatchString(code) && !strings.Contains(code, contract.LegacyVolumeIdent)
		},
	},
	{
		Name:           "no_deprecated_methods",
		Description:    "No execute() or run_and_save() method remains",
		Recommendation: "Remove execute() / run_and_save() and call run_scan() instead",
		Pass: func(code string) bool {
			return !contract.HasDef(code, contract.DeprecatedExecute) &&
				!contract.HasDef(code, contract.DeprecatedRunAndSave)
		},
	},
	{
		Name:           "calendar_dependency",
		Description:    "Uses the market calendar for trading days",
		Recommendation: "Import pandas_market_calendars and derive trading days from it",
		Pass: func(code string) bool {
			return strings.Contains(code, contract.CalendarModule)
		},
	},
}

// Checklist returns the current checks in scoring order.
func Checklist() []Check {
	return append([]Check(nil), checklist...)
}
