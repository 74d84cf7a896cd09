package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nidhogg/crew/internal/orchestrator"
	"github.com/nidhogg/crew/internal/roster"
)

var (
	headStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149"))
	boxStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func statusStyle(s orchestrator.Status) lipgloss.Style {
	switch s {
	case orchestrator.StatusSuccess:
		return okStyle
	case orchestrator.StatusTimeout:
		return warnStyle
	}
	return errStyle
}

// renderReport prints a human summary of a round.
func renderReport(w io.Writer, r *orchestrator.Report) {
	var b strings.Builder
	title := "crew round"
	if r.RoundID != "" {
		title += " " + r.RoundID
	}
	b.WriteString(headStyle.Render(title) + "\n")

	for _, res := range r.Agents {
		line := fmt.Sprintf("%-10s %s", res.Agent, statusStyle(res.Status).Render(fmt.Sprintf("%-8s", res.Status)))
		line += dimStyle.Render(fmt.Sprintf(" %6dms", res.DurationMS))
		if res.Succeeded() && len(res.DigestPrimary) >= 12 {
			line += dimStyle.Render("  " + res.DigestPrimary[:12])
		} else if res.Error != "" {
			line += "  " + errStyle.Render(res.Error)
		}
		b.WriteString(line + "\n")
	}

	s := r.Summary
	b.WriteString(fmt.Sprintf("%d/%d succeeded, %d timed out", s.Succeeded, s.Total, s.TimedOut))
	switch {
	case r.ArtifactPath != nil:
		b.WriteString("\n" + dimStyle.Render("artifact: "+*r.ArtifactPath))
	case r.Error != "":
		b.WriteString("\n" + errStyle.Render(r.Error))
	}
	fmt.Fprintln(w, boxStyle.Render(b.String()))
}

func renderRoster(w io.Writer, agents []roster.AgentSpec) {
	var b strings.Builder
	b.WriteString(headStyle.Render(fmt.Sprintf("%d agents", len(agents))) + "\n")
	for i, a := range agents {
		b.WriteString(fmt.Sprintf("%-10s %s", a.Name, dimStyle.Render(a.Model)))
		if i < len(agents)-1 {
			b.WriteString("\n")
		}
	}
	fmt.Fprintln(w, boxStyle.Render(b.String()))
}
