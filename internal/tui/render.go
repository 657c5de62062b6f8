package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/p-n-ai/pai-learn/internal/scenario"
)

var branchColors = map[scenario.BranchType]lipgloss.Color{
	scenario.BranchSuccess: lipgloss.Color("42"),
	scenario.BranchNeutral: lipgloss.Color("214"),
	scenario.BranchFailure: lipgloss.Color("196"),
	scenario.BranchUnknown: lipgloss.Color("244"),
}

// View renders the player.
func (m Model) View() string {
	sc := m.player.Scenario()
	parts := []string{renderTitle(sc, m.noColor)}

	switch m.snap.State {
	case scenario.StateAwaitingChoice:
		parts = append(parts, renderDecision(m.snap.Decision, m.cursor, m.noColor))
	case scenario.StateShowingFeedback:
		parts = append(parts, renderFeedback(m.snap.Feedback, m.noColor))
	case scenario.StateComplete:
		parts = append(parts, renderSummary(m.snap, m.noColor))
		switch {
		case m.debriefing:
			parts = append(parts, m.spinner.View()+" Writing your debrief...")
		case m.debrief != "":
			parts = append(parts, lipgloss.NewStyle().Width(wrapWidth(m.width)).Render(m.debrief))
		}
	}

	if m.err != nil {
		parts = append(parts, stylize("Error: "+m.err.Error(), m.noColor, lipgloss.Color("196")))
	}
	parts = append(parts,
		stylize(fmt.Sprintf("Points: %d", m.snap.TotalPoints), m.noColor, lipgloss.Color("33")),
		m.help.View(m.keys),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func renderTitle(sc scenario.Scenario, noColor bool) string {
	title := sc.Title
	if title == "" {
		title = sc.ID
	}
	if noColor {
		return title + "\n"
	}
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Render(title) + "\n"
}

func renderDecision(d *scenario.Decision, cursor int, noColor bool) string {
	if d == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(stylize(fmt.Sprintf("Level %d: %s", d.Level, d.Title), noColor, lipgloss.Color("252")))
	b.WriteString("\n")
	if d.Description != "" {
		b.WriteString(d.Description)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	for i, c := range d.Choices {
		marker := "  "
		if i == cursor {
			marker = "> "
		}
		line := fmt.Sprintf("%s%d. %s", marker, i+1, c.Text)
		if i == cursor && !noColor {
			line = lipgloss.NewStyle().Bold(true).Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func renderFeedback(c *scenario.Choice, noColor bool) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("You chose: " + c.Text + "\n")
	b.WriteString(branchBadge(c.Branch(), noColor))
	b.WriteString(fmt.Sprintf("  %+d points\n", c.Points))
	if c.Feedback != "" {
		b.WriteString("\n" + c.Feedback + "\n")
	}
	b.WriteString(stylize("\npress enter to continue", noColor, lipgloss.Color("244")))
	return b.String()
}

func renderSummary(snap scenario.Snapshot, noColor bool) string {
	var b strings.Builder
	b.WriteString(stylize("Scenario complete", noColor, lipgloss.Color("42")))
	b.WriteString("\n\n")
	for i, sel := range snap.History {
		fmt.Fprintf(&b, "%d. %s %s %+d\n", i+1, sel.Choice.Text, branchBadge(sel.Choice.Branch(), noColor), sel.Points)
	}
	return b.String()
}

func branchBadge(bt scenario.BranchType, noColor bool) string {
	label := "[" + string(bt) + "]"
	color, ok := branchColors[bt]
	if !ok {
		color = branchColors[scenario.BranchUnknown]
	}
	return stylize(label, noColor, color)
}

// stylize applies optional color styling.
func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}

func wrapWidth(width int) int {
	if width <= 0 || width > 80 {
		return 80
	}
	return width
}
