package classifier

import "github.com/yangwenmai/scanforge/internal/model"

// SignalKind says where in the source a signal looks.
type SignalKind string

// Signal kinds, strongest first.
const (
	SignalHeader  SignalKind = "header"  // module docstring and leading comments
	SignalConfig  SignalKind = "config"  // anywhere in the text, config literals
	SignalMethods SignalKind = "methods" // method-count threshold
)

// Default weights per signal kind.
const (
	WeightHeader  = 3.0
	WeightConfig  = 2.0
	WeightMethods = 0.5
)

// Signal is one independent piece of evidence for a template.
type Signal struct {
	Kind       SignalKind
	Marker     string // lowercase substring for header and config signals
	MinMethods int    // for method signals: fires when method count exceeds it
	Weight     float64
}

// Template is a known scanner archetype and the evidence that points to it.
type Template struct {
	ID          model.TemplateID
	Description string
	Signals     []Signal
	// ComplexDefault marks the template preferred on ties when the scanner is
	// in the complex bucket.
	ComplexDefault bool
}

// MaxScore is the score a scanner gets when every signal fires.
func (t Template) MaxScore() float64 {
	var sum float64
	for _, s := range t.Signals {
		sum += s.Weight
	}
	return sum
}

// DefaultTemplates is the built-in registry. Order is the tie-break preference.
var DefaultTemplates = []Template{
	{
		ID:          model.TemplateBackside,
		Description: "Backside B: extended stock fading off a prior high",
		Signals: []Signal{
			{Kind: SignalHeader, Marker: "backside", Weight: WeightHeader},
			{Kind: SignalConfig, Marker: "pos_abs_max", Weight: WeightConfig},
			{Kind: SignalConfig, Marker: "abs_lookback_days", Weight: WeightConfig},
			{Kind: SignalMethods, MinMethods: 5, Weight: WeightMethods},
		},
	},
	{
		ID:          model.TemplateAPlus,
		Description: "A+ parabolic: multi-day run with slope and ATR expansion",
		Signals: []Signal{
			{Kind: SignalHeader, Marker: "a+", Weight: WeightHeader},
			{Kind: SignalHeader, Marker: "a plus", Weight: WeightHeader},
			{Kind: SignalConfig, Marker: "atr_mult", Weight: WeightConfig},
			{Kind: SignalConfig, Marker: "slope", Weight: WeightConfig},
			{Kind: SignalMethods, MinMethods: 10, Weight: 1.0},
		},
		ComplexDefault: true,
	},
	{
		ID:          model.TemplateGapScanner,
		Description: "Gap scanner: opening gap versus prior close",
		Signals: []Signal{
			{Kind: SignalHeader, Marker: "gap", Weight: WeightHeader},
			{Kind: SignalConfig, Marker: "gap_pct", Weight: WeightConfig},
			{Kind: SignalConfig, Marker: "gap_min", Weight: WeightConfig},
			{Kind: SignalMethods, MinMethods: 2, Weight: WeightMethods},
		},
	},
}
