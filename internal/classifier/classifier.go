// Package classifier assigns a scanner to a known template.
package classifier

import (
	"fmt"
	"strings"

	"github.com/yangwenmai/scanforge/internal/model"
)

// DefaultMinScore is the lowest winning score reported as a template match.
const DefaultMinScore = 2.0

// Classifier scores a scanner against every registered template. It is
// stateless and safe for concurrent use.
type Classifier struct {
	templates []Template
	minScore  float64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTemplates replaces the template registry.
func WithTemplates(ts []Template) Option {
	return func(c *Classifier) { c.templates = ts }
}

// WithMinScore sets the confidence floor.
func WithMinScore(s float64) Option {
	return func(c *Classifier) { c.minScore = s }
}

// New creates a Classifier over DefaultTemplates.
func New(opts ...Option) *Classifier {
	c := &Classifier{templates: DefaultTemplates, minScore: DefaultMinScore}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Templates returns the registry in preference order.
func (c *Classifier) Templates() []Template {
	return append([]Template(nil), c.templates...)
}

// Classify scores src. The template with the strictly highest score wins;
// ties go to the complex-default template when the scanner is complex and
// otherwise to registry order. A winning score under the floor is reported as
// generic.
func (c *Classifier) Classify(src model.SourceArtifact, report model.AnalysisReport) model.TemplateMatch {
	complexity := report.Metrics.Complexity
	if complexity == "" {
		complexity = model.ComplexityFor(report.Metrics.MethodCount)
	}
	match := model.TemplateMatch{
		Template:   model.TemplateGeneric,
		Complexity: complexity,
		Scores:     map[model.TemplateID]float64{},
	}

	lower := strings.ToLower(src.Code)
	header := headerText(src.Code)

	var (
		best    float64
		tied    []Template
		signals = map[model.TemplateID][]string{}
	)
	for _, t := range c.templates {
		var score float64
		for _, s := range t.Signals {
			if fired(s, header, lower, report.Metrics.MethodCount) {
				score += s.Weight
				signals[t.ID] = append(signals[t.ID], describe(s))
			}
		}
		match.Scores[t.ID] = score
		switch {
		case score > best:
			best = score
			tied = []Template{t}
		case score == best && score > 0:
			tied = append(tied, t)
		}
	}

	if best < c.minScore || len(tied) == 0 {
		match.Score = best
		return match
	}

	winner := tied[0]
	if len(tied) > 1 && complexity == model.ComplexityComplex {
		for _, t := range tied {
			if t.ComplexDefault {
				winner = t
				break
			}
		}
	}
	match.Template = winner.ID
	match.Score = best
	match.Signals = signals[winner.ID]
	if top := winner.MaxScore(); top > 0 {
		match.Confidence = clamp(best / top)
	}
	return match
}

func fired(s Signal, header, lower string, methods int) bool {
	switch s.Kind {
	case SignalHeader:
		return s.Marker != "" && strings.Contains(header, s.Marker)
	case SignalConfig:
		return s.Marker != "" && strings.Contains(lower, s.Marker)
	case SignalMethods:
		return methods > s.MinMethods
	}
	return false
}

func describe(s Signal) string {
	if s.Kind == SignalMethods {
		return fmt.Sprintf("methods>%d", s.MinMethods)
	}
	return string(s.Kind) + ":" + s.Marker
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// headerText returns the lowercase module docstring and the comment lines
// before the first statement. Import lines are skipped over.
func headerText(code string) string {
	var b strings.Builder
	var quote string
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if quote != "" {
			b.WriteString(trimmed)
			b.WriteByte('\n')
			if strings.Contains(trimmed, quote) {
				quote = ""
			}
			continue
		}
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "#"):
			b.WriteString(trimmed)
			b.WriteByte('\n')
		case strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, `'''`):
			q := trimmed[:3]
			b.WriteString(trimmed)
			b.WriteByte('\n')
			if !strings.Contains(trimmed[3:], q) {
				quote = q
			}
		case strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from "):
		default:
			return strings.ToLower(b.String())
		}
	}
	return strings.ToLower(b.String())
}
