package model

// TemplateID names a known scanner archetype.
type TemplateID string

// Known templates
const (
	TemplateBackside   TemplateID = "backside"
	TemplateAPlus      TemplateID = "a_plus"
	TemplateGapScanner TemplateID = "gap_scanner"
	TemplateGeneric    TemplateID = "generic"
)

// TemplateMatch is the classifier's verdict for one scanner.
type TemplateMatch struct {
	Template   TemplateID             `json:"template"`
	Confidence float64                `json:"confidence"`
	Score      float64                `json:"score"`
	Complexity Complexity             `json:"complexity"`
	Scores     map[TemplateID]float64 `json:"scores,omitempty"`
	Signals    []string               `json:"signals,omitempty"`
}

// IsGeneric reports whether no known template was matched with confidence.
func (m TemplateMatch) IsGeneric() bool { return m.Template == TemplateGeneric }
