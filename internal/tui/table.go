package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/firefly-engineering/onyx/internal/profile"
)

// Column widths of the profile table.
const (
	nameWidth  = 14
	scoreWidth = 9
	memWidth   = 12
	cpuWidth   = 6
	niceWidth  = 6
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	nameStyle  = lipgloss.NewStyle().Bold(true)
	scoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	descStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	severityColors = map[profile.Severity]lipgloss.Color{
		profile.SeverityLow:    lipgloss.Color("42"),
		profile.SeverityMedium: lipgloss.Color("214"),
		profile.SeverityHigh:   lipgloss.Color("196"),
	}
)

func severityCell(s profile.Severity, width int, text string) string {
	return lipgloss.NewStyle().
		Foreground(severityColors[s]).
		Width(width).
		Render(text)
}

// ProfileTable renders ranked profiles, most generous first. The current
// profile is marked with an asterisk.
func ProfileTable(ranked []profile.Profile, current string) string {
	var sb strings.Builder

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Width(nameWidth).Render("NAME"),
		headerStyle.Width(scoreWidth).Render("SCORE"),
		headerStyle.Width(memWidth).Render("MEMORY"),
		headerStyle.Width(cpuWidth).Render("CPU"),
		headerStyle.Width(niceWidth).Render("NICE"),
		headerStyle.Render("DESCRIPTION"),
	)
	sb.WriteString(header + "\n")
	sb.WriteString(strings.Repeat("─", nameWidth+scoreWidth+memWidth+cpuWidth+niceWidth+12) + "\n")

	for _, p := range ranked {
		name := p.Name
		if name == current {
			name += " *"
		}
		row := lipgloss.JoinHorizontal(lipgloss.Top,
			nameStyle.Width(nameWidth).Render(name),
			scoreStyle.Width(scoreWidth).Render(fmt.Sprint(p.Score())),
			severityCell(p.MemorySeverity(), memWidth, p.MemoryDisplay()),
			severityCell(p.CPUSeverity(), cpuWidth, p.CPUDisplay()),
			severityCell(p.NiceSeverity(), niceWidth, fmt.Sprint(p.Nice)),
			descStyle.Render(p.Description),
		)
		sb.WriteString(row + "\n")
	}

	return sb.String()
}
