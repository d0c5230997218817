package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yangwenmai/scanforge/internal/contract"
	"github.com/yangwenmai/scanforge/internal/model"
)

// SystemPrompt returns the fixed rule preamble for a transformation kind.
func SystemPrompt(kind model.TransformationKind) string {
	var b strings.Builder
	b.WriteString("You rewrite Python stock scanners into the " + contract.Name + " scanner architecture.\n\n")

	b.WriteString("Required imports, exactly once each, in this order:\n")
	for _, imp := range contract.RequiredImports {
		b.WriteString("    " + imp + "\n")
	}

	b.WriteString("\nThe scanner class must define these methods:\n")
	b.WriteString("    def run_scan(self, d0_start_user: str, d0_end_user: str) -> pd.DataFrame  (entry point)\n")
	b.WriteString("    def fetch_grouped_data(self, start_date: str, end_date: str) -> pd.DataFrame\n")
	b.WriteString("    def compute_simple_features(self, df: pd.DataFrame) -> pd.DataFrame\n")
	b.WriteString("    def apply_smart_filters(self, df: pd.DataFrame, d0_start_user: str, d0_end_user: str) -> pd.DataFrame\n")
	b.WriteString("    def compute_full_features(self, df: pd.DataFrame) -> pd.DataFrame\n")
	b.WriteString("    def detect_patterns(self, df: pd.DataFrame, d0_start_user: str, d0_end_user: str) -> pd.DataFrame\n")

	b.WriteString(`
Stage rules:
1. fetch_grouped_data fetches every ticker for every trading day in one batched grouped-daily pass over the market calendar.
2. compute_simple_features computes the minimal per-ticker feature set with groupby and shift, never looking ahead.
3. apply_smart_filters validates rows only inside the d0_start_user..d0_end_user range and keeps every other historical row unfiltered for later window computations.
4. compute_full_features computes the full feature set on the filtered frame.
5. detect_patterns reports matches only inside the d0_start_user..d0_end_user range.

Naming rules:
- the traded value column is dollar_volume; never use $vol
- do not define execute, run_and_save or fetch_all_grouped_data
`)

	switch kind {
	case model.TransformParameterOnly:
		b.WriteString("\nChange only the parameter block and the method names required above. Keep the strategy logic as written.\n")
	case model.TransformRefactor:
		b.WriteString("\nRefactor freely for readability and vectorized pandas operations, keeping the strategy semantics.\n")
	default:
		b.WriteString("\nRestructure the scanner into the architecture above, keeping the strategy semantics.\n")
	}

	b.WriteString("\nReturn the complete program in a single ```python fenced block and nothing else.\n")
	return b.String()
}

// BuildUserMessage renders the per-request part of the payload: analyzer
// issues, the template match, the parameters to keep and the source.
func BuildUserMessage(req model.TransformationRequest) (string, error) {
	var b strings.Builder

	if len(req.Analysis.Issues) > 0 {
		b.WriteString("Issues found in the scanner:\n")
		for _, issue := range req.Analysis.Issues {
			b.WriteString("- " + issue + "\n")
		}
		b.WriteString("\n")
	}

	if req.Template != nil && !req.Template.IsGeneric() {
		fmt.Fprintf(&b, "Template: %s (confidence %.2f, complexity %s)\n\n",
			req.Template.Template, req.Template.Confidence, req.Template.Complexity)
	}

	if req.Parameters.Len() > 0 {
		params, err := json.MarshalIndent(req.Parameters.Values(), "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal parameters: %w", err)
		}
		b.WriteString("Preserve these parameters verbatim, same names and values:\n")
		b.Write(params)
		b.WriteString("\n\n")
	}

	b.WriteString("Scanner source:\n```python\n")
	b.WriteString(req.Source.Code)
	if !strings.HasSuffix(req.Source.Code, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n")
	return b.String(), nil
}
