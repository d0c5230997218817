package model

import "math"

// CheckResult is the outcome of one checklist predicate.
type CheckResult struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Passed         bool   `json:"passed"`
	Recommendation string `json:"recommendation,omitempty"`
}

// ComplianceReport is the scored outcome of the full checklist. Passed and
// Failed keep checklist order.
type ComplianceReport struct {
	Version         string        `json:"version"`
	Checks          []CheckResult `json:"checks"`
	Score           int           `json:"score"`
	Passed          []string      `json:"passed"`
	Failed          []string      `json:"failed"`
	Recommendations []string      `json:"recommendations"`
}

// NewComplianceReport aggregates check results into a scored report.
func NewComplianceReport(version string, checks []CheckResult) ComplianceReport {
	r := ComplianceReport{
		Version:         version,
		Checks:          checks,
		Passed:          []string{},
		Failed:          []string{},
		Recommendations: []string{},
	}
	for _, c := range checks {
		if c.Passed {
			r.Passed = append(r.Passed, c.Name)
			continue
		}
		r.Failed = append(r.Failed, c.Name)
		if c.Recommendation != "" {
			r.Recommendations = append(r.Recommendations, c.Recommendation)
		}
	}
	r.Score = ComplianceScore(len(r.Passed), len(checks))
	return r
}

// ComplianceScore returns round(100 * passed / total), clamped to [0, 100].
// An empty checklist scores 0.
func ComplianceScore(passed, total int) int {
	if total <= 0 || passed <= 0 {
		return 0
	}
	if passed >= total {
		return 100
	}
	return int(math.Round(100 * float64(passed) / float64(total)))
}

// Total returns the size of the checklist the report was scored against.
func (r ComplianceReport) Total() int { return len(r.Checks) }
