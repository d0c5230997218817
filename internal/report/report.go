// Package report renders a formatting result for the terminal.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/yangwenmai/scanforge/internal/model"
	"github.com/yangwenmai/scanforge/internal/orchestrator"
)

// Colors used by Render.
var (
	colorSuccess = lipgloss.Color("2")
	colorWarning = lipgloss.Color("3")
	colorError   = lipgloss.Color("1")
	colorMuted   = lipgloss.Color("8")
	colorHeader  = lipgloss.Color("4")
)

const barWidth = 20

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorHeader)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	boxStyle     = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
)

// Render formats the workflow outcome, stage log and compliance summary.
// name labels the scanner, usually its file name.
func Render(name string, res *orchestrator.Result) string {
	var sb strings.Builder

	title := "SCANFORGE REPORT"
	if name != "" {
		title += ": " + name
	}
	sb.WriteString(headerStyle.Render(title))
	sb.WriteString("\n")

	status := successStyle.Render("completed")
	if !res.Success {
		status = errorStyle.Render("failed")
	}
	info := fmt.Sprintf("Workflow %s    Lines: %d → %d", res.Workflow.ID,
		res.Summary.OriginalLines, res.Summary.TransformedLines)
	sb.WriteString(status + "  " + mutedStyle.Render(info))
	sb.WriteString("\n")
	if res.Workflow.Error != "" {
		sb.WriteString(errorStyle.Render("  " + res.Workflow.Error))
		sb.WriteString("\n")
	}
	if res.Template != nil {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("Template: %s (confidence %.0f%%, %s complexity)",
			res.Template.Template, res.Template.Confidence*100, res.Template.Complexity)))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(headerStyle.Render("STAGES"))
	sb.WriteString("\n")
	for _, s := range res.Workflow.Stages {
		sb.WriteString(stageLine(s))
		sb.WriteString("\n")
	}

	if res.Compliance != nil {
		sb.WriteString("\n")
		sb.WriteString(compliance(*res.Compliance))
	}
	return boxStyle.Render(strings.TrimRight(sb.String(), "\n"))
}

func stageLine(s model.StageRecord) string {
	var icon string
	style := mutedStyle
	switch s.Status {
	case model.StageSucceeded:
		icon, style = "✓", successStyle
	case model.StageFailed:
		icon, style = "✗", errorStyle
		if !s.Mandatory {
			style = warningStyle
		}
	default:
		icon = "-"
	}
	line := fmt.Sprintf("  %s %-24s %-9s %5dms", icon, s.Name, s.Status, s.DurationMS)
	if s.Attempts > 1 {
		line += fmt.Sprintf("  (%d attempts)", s.Attempts)
	}
	return style.Render(line)
}

// compliance renders the score bar and every failed check.
func compliance(r model.ComplianceReport) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("COMPLIANCE " + r.Version))
	sb.WriteString("\n")

	filled := barWidth * r.Score / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	style := scoreStyle(r.Score)
	sb.WriteString(fmt.Sprintf("  %s  %d/%d  %3d%%\n", style.Render(bar), len(r.Passed), r.Total(), r.Score))

	for _, c := range r.Checks {
		if c.Passed {
			continue
		}
		sb.WriteString(warningStyle.Render(fmt.Sprintf("  ⚠ %-22s %s", c.Name, c.Recommendation)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 90:
		return successStyle
	case score >= 70:
		return warningStyle
	default:
		return errorStyle
	}
}
