// Package validator scores a compliant artifact against the versioned
// checklist.
package validator

import "github.com/yangwenmai/scanforge/internal/model"

// Validator runs a checklist. Failed checks lower the score; nothing is
// returned as an error.
type Validator struct {
	version string
	checks  []Check
}

// Option configures a Validator.
type Option func(*Validator)

// WithChecklist replaces the checklist and its version, mainly for tests.
func WithChecklist(version string, checks []Check) Option {
	return func(v *Validator) {
		v.version = version
		v.checks = checks
	}
}

// New returns a Validator for the current checklist.
func New(opts ...Option) *Validator {
	v := &Validator{version: ChecklistVersion, checks: Checklist()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Version returns the checklist version the validator scores against.
func (v *Validator) Version() string { return v.version }

// Validate scores the artifact's code.
func (v *Validator) Validate(a model.FormattedArtifact) model.ComplianceReport {
	return v.ValidateCode(a.Code)
}

// ValidateCode scores raw code.
func (v *Validator) ValidateCode(code string) model.ComplianceReport {
	results := make([]model.CheckResult, 0, len(v.checks))
	for _, c := range v.checks {
		r := model.CheckResult{
			Name:        c.Name,
			Description: c.Description,
			Passed:      c.Pass(code),
		}
		if !r.Passed {
			r.Recommendation = c.Recommendation
		}
		results = append(results, r)
	}
	return model.NewComplianceReport(v.version, results)
}
