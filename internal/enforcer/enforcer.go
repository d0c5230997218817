// Package enforcer turns untrusted generated code into code that satisfies the
// scanner contract. It works on text only and is idempotent: enforcing its own
// output changes nothing.
package enforcer

import "github.com/yangwenmai/scanforge/internal/model"

// Enforcer applies the deterministic repair passes. It holds no state and is
// safe for concurrent use.
type Enforcer struct{}

// New returns an Enforcer.
func New() *Enforcer {
	return &Enforcer{}
}

// Enforce returns a new artifact whose code has normalized imports and every
// canonical method. The input artifact is not modified.
func (e *Enforcer) Enforce(in model.FormattedArtifact) model.FormattedArtifact {
	code, notes := e.EnforceCode(in.Code)
	return in.WithCode(code, notes...)
}

// EnforceCode runs the repair passes on raw code and describes each change.
func (e *Enforcer) EnforceCode(code string) (string, []string) {
	lines := splitLines(code)

	lines, notes := normalizeImports(lines)

	lines, removed := removeDeprecated(lines)
	notes = append(notes, removed...)

	lines, methods := guaranteeMethods(lines)
	notes = append(notes, methods...)

	return tidy(lines), notes
}
