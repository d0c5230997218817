package enforcer

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/scanforge/internal/contract"
	"github.com/yangwenmai/scanforge/internal/model"
)

const classScanner = `import os
import pandas as pd
import pandas as pd

P = {"price_min": 8.0}


class Scanner:
    """Backside B scanner."""

    def execute(self):
        return self.run_scan("2024-01-02", "2024-01-31")

    def run_scan(self, start, end):
        rows = []
        for _, row in self.df.iterrows():
            rows.append(row)
        return rows

    def helper(self):
        return 1


if __name__ == "__main__":
    Scanner().run_scan("2024-01-02", "2024-01-31")
`

const freeScanner = `import numpy as np

def scan(df):
    return df[df["close"] > 5]

if __name__ == "__main__":
    print(scan(None))
`

func defOrder(code string) []string {
	var names []string
	for _, m := range contract.DefRegexp().FindAllStringSubmatch(code, -1) {
		names = append(names, m[1])
	}
	return names
}

func indexOfLine(lines []string, want string) int {
	for i, l := range lines {
		if l == want {
			return i
		}
	}
	return -1
}

func TestEnforce_ImportUniquenessAndOrder(t *testing.T) {
	inputs := map[string]string{
		"duplicated":    classScanner,
		"reversed":      "import pandas_market_calendars as mcal\nimport time\nimport requests\nimport numpy as np\nimport pandas as pd\nx = 1\n",
		"none":          "x = 1\n",
		"parenthesized": "from typing import (\n    Dict,\n    List,\n)\nfrom foo import \\\n    bar\nx = 1\n",
		"commented":     "import pandas as pd  # frames\nimport   numpy   as np\nx = 1\n",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			out, _ := New().EnforceCode(in)
			lines := strings.Split(out, "\n")

			require.GreaterOrEqual(t, len(lines), len(contract.RequiredImports))
			assert.Equal(t, contract.RequiredImports, lines[:len(contract.RequiredImports)])
			for _, imp := range contract.RequiredImports {
				assert.Equal(t, 1, strings.Count(out, imp+"\n"), imp)
			}
			assert.NotContains(t, out, "import os")
			assert.NotContains(t, out, "    Dict,")
			assert.NotContains(t, out, "    bar")
		})
	}
}

func TestEnforce_DocstringStaysFirst(t *testing.T) {
	in := "#!/usr/bin/env python\n\"\"\"Gap scanner.\n\nFinds gaps.\n\"\"\"\nimport os\nimport pandas as pd\n\nclass GapScanner:\n    pass\n"
	out, _ := New().EnforceCode(in)

	want := "#!/usr/bin/env python\n\"\"\"Gap scanner.\n\nFinds gaps.\n\"\"\"\n\nimport pandas as pd\n"
	assert.True(t, strings.HasPrefix(out, want), out)
}

func TestEnforce_NestedImportsKept(t *testing.T) {
	in := "class Scanner:\n    def helper(self):\n        import json\n        return json\n\nDOC = \"\"\"\nimport os\n\"\"\"\n"
	out, _ := New().EnforceCode(in)
	assert.Contains(t, out, "        import json\n")
	assert.Contains(t, out, "\nimport os\n\"\"\"")
}

func TestEnforce_ExecuteRemovedRunScanReplaced(t *testing.T) {
	out, notes := New().EnforceCode(classScanner)

	assert.NotContains(t, out, "def execute")
	assert.NotContains(t, out, "iterrows")
	assert.Contains(t, out, "    def run_scan(self, d0_start_user: str, d0_end_user: str) -> pd.DataFrame:\n")
	assert.Equal(t, 1, strings.Count(out, "def run_scan("))
	assert.Contains(t, out, "    def helper(self):\n        return 1\n")
	assert.Contains(t, notes, "Removed deprecated execute()")
	assert.Contains(t, notes, "Replaced body of run_scan()")
	assert.Contains(t, notes, "Inserted detect_patterns()")
}

func TestEnforce_CanonicalOrderInsideClass(t *testing.T) {
	out, _ := New().EnforceCode(classScanner)
	lines := strings.Split(out, "\n")

	classAt := indexOfLine(lines, "class Scanner:")
	guardAt := indexOfLine(lines, `if __name__ == "__main__":`)
	require.True(t, classAt >= 0 && guardAt > classAt)

	prev := classAt
	for _, name := range contract.CanonicalMethods[1:] {
		at := -1
		for i, l := range lines {
			if strings.HasPrefix(l, "    def "+name+"(self") {
				at = i
			}
		}
		require.NotEqual(t, -1, at, name)
		assert.Greater(t, at, prev, name)
		assert.Less(t, at, guardAt, name)
		prev = at
	}
	assert.Equal(t, []string{
		"run_scan", "helper", "fetch_grouped_data", "fetch_day", "compute_simple_features",
		"apply_smart_filters", "compute_full_features", "detect_patterns",
	}, defOrder(out))
}

func TestEnforce_ConfigClassSkipped(t *testing.T) {
	in := "class ScannerConfig:\n    price_min = 8.0\n\n\nclass Scanner:\n    def helper(self):\n        pass\n"
	out, _ := New().EnforceCode(in)

	cfg := out[strings.Index(out, "class ScannerConfig:"):strings.Index(out, "class Scanner:")]
	assert.NotContains(t, cfg, "def ")
	assert.Contains(t, out[strings.Index(out, "class Scanner:"):], "    def run_scan(self")
}

func TestEnforce_FreeFunctionMode(t *testing.T) {
	out, notes := New().EnforceCode(freeScanner)

	assert.Contains(t, out, "\ndef run_scan(state, d0_start_user: str, d0_end_user: str) -> pd.DataFrame:\n")
	assert.Contains(t, out, "    df = fetch_grouped_data(state, start, d0_end_user)\n")
	assert.Contains(t, out, `    api_key = getattr(state, "api_key", "")`)
	assert.False(t, regexp.MustCompile(`\bself\b`).MatchString(out))
	assert.Contains(t, out, "def scan(df):")
	assert.True(t, strings.Index(out, "def detect_patterns(") < strings.Index(out, "if __name__"))
	require.NotEmpty(t, notes)
	assert.Contains(t, notes[len(notes)-len(contract.CanonicalMethods)-1], "no target class")
}

func TestEnforce_IndentationFollowsClass(t *testing.T) {
	in := "class Scanner:\n  def helper(self):\n    return 1\n"
	out, _ := New().EnforceCode(in)

	assert.Contains(t, out, "\n  def fetch_grouped_data(self, start_date: str, end_date: str) -> pd.DataFrame:\n")
	assert.Contains(t, out, "\n    calendar = mcal.get_calendar(\"NYSE\")\n")
	assert.Contains(t, out, "\n    def fetch_day(day: str) -> Optional[pd.DataFrame]:\n")
}

func TestEnforce_DecoratedDuplicatesCollapsed(t *testing.T) {
	in := "class Scanner:\n    @staticmethod\n    def detect_patterns(df):\n        return df\n\n    def detect_patterns(self, df):\n        return df\n"
	out, _ := New().EnforceCode(in)

	assert.Equal(t, 1, strings.Count(out, "def detect_patterns("))
	assert.NotContains(t, out, "@staticmethod")
}

func TestEnforce_Idempotent(t *testing.T) {
	inputs := map[string]string{
		"class":      classScanner,
		"free":       freeScanner,
		"empty":      "",
		"docstring":  "'''Doc.'''\nclass A:\n    x = 1\n",
		"two spaces": "class Scanner:\n  def helper(self):\n    return 1\n",
		"trailing":   "class Scanner:\n    pass\n\n\n\n\n# end\n\n\n",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			e := New()
			once, _ := e.EnforceCode(in)
			twice, _ := e.EnforceCode(once)
			assert.Equal(t, once, twice)
		})
	}
}

func TestEnforce_OutputShape(t *testing.T) {
	out, _ := New().EnforceCode("class Scanner:\n    pass\n\n\n\n\n\nx = 1\n\n\n")

	assert.True(t, strings.HasSuffix(out, "x = 1\n"))
	assert.False(t, strings.HasSuffix(out, "\n\n"))
	assert.NotContains(t, out, "\n\n\n\n")
}

func TestEnforce_ArtifactNotModified(t *testing.T) {
	in := model.FormattedArtifact{Code: freeScanner, Transformations: []string{"Generated v31_standardize rewrite"}}
	out := New().Enforce(in)

	assert.Equal(t, freeScanner, in.Code)
	assert.Len(t, in.Transformations, 1)
	assert.Greater(t, len(out.Transformations), 1)
	assert.Equal(t, "Generated v31_standardize rewrite", out.Transformations[0])
}
