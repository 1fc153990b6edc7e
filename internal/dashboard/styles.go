package dashboard

import "github.com/charmbracelet/lipgloss"

// Card palette. Entity cards carry a blue border while the entity is
// live and drop to gray for off/unavailable; graph cards are green
// with cyan chart glyphs.
var (
	headerColor = lipgloss.Color("#1E88E5")
	liveBorder  = lipgloss.Color("#1E88E5")
	idleBorder  = lipgloss.Color("#90A4AE")
	graphBorder = lipgloss.Color("#4CAF50")
	chartColor  = lipgloss.Color("#00BCD4")
	stateColor  = lipgloss.Color("#00BCD4")
	errorColor  = lipgloss.Color("#F44336")
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(headerColor).
			Bold(true).
			Align(lipgloss.Center).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(headerColor).
			Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	stateStyle = lipgloss.NewStyle().
			Foreground(stateColor).
			Bold(true)

	secondaryStyle = lipgloss.NewStyle().
			Faint(true)

	chartStyle = lipgloss.NewStyle().
			Foreground(chartColor)

	mutedStyle = lipgloss.NewStyle().
			Faint(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	footerStyle = lipgloss.NewStyle().
			Faint(true).
			Padding(0, 1)
)
