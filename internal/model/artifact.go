package model

import "strings"

// TransformationKind selects how the generative stage rewrites a scanner.
type TransformationKind string

// Transformation kinds
const (
	TransformV31Standardize TransformationKind = "v31_standardize"
	TransformParameterOnly  TransformationKind = "parameter_only"
	TransformRefactor       TransformationKind = "refactor"
)

// ValidTransformationKind reports whether k is a known transformation kind.
func ValidTransformationKind(k TransformationKind) bool {
	switch k {
	case TransformV31Standardize, TransformParameterOnly, TransformRefactor:
		return true
	}
	return false
}

// SourceArtifact is the raw scanner program handed to the pipeline.
// Stages never modify it; each produces a new artifact instead.
type SourceArtifact struct {
	Code     string `json:"code"`
	Filename string `json:"filename,omitempty"`
}

// NewSourceArtifact creates a SourceArtifact with an optional filename hint.
func NewSourceArtifact(code, filename string) SourceArtifact {
	return SourceArtifact{Code: code, Filename: filename}
}

// LineCount returns the number of lines in the source text.
func (s SourceArtifact) LineCount() int {
	return CountLines(s.Code)
}

// CountLines counts lines the way an editor would: a trailing newline does not
// start a new line, and the empty string has zero lines.
func CountLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

// TransformationRequest is the immutable input of the generative stage.
type TransformationRequest struct {
	Source     SourceArtifact     `json:"source"`
	Kind       TransformationKind `json:"kind"`
	Analysis   AnalysisReport     `json:"analysis"`
	Template   *TemplateMatch     `json:"template,omitempty"`
	Parameters *ParameterSet      `json:"parameters,omitempty"`
}

// FormattedArtifact is produced by the generative stage (untrusted) and then
// refined by the compliance enforcer and the optional passes.
type FormattedArtifact struct {
	Code            string            `json:"code"`
	Transformations []string          `json:"transformations"`
	Compliance      *ComplianceReport `json:"compliance,omitempty"`
}

// WithCode returns a copy of a carrying new code and one more transformation note.
// The receiver is left untouched.
func (a FormattedArtifact) WithCode(code string, notes ...string) FormattedArtifact {
	out := FormattedArtifact{
		Code:            code,
		Transformations: make([]string, 0, len(a.Transformations)+len(notes)),
		Compliance:      a.Compliance,
	}
	out.Transformations = append(out.Transformations, a.Transformations...)
	out.Transformations = append(out.Transformations, notes...)
	return out
}
