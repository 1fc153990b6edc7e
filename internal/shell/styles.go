package shell

import "github.com/charmbracelet/lipgloss"

// Same palette family as the dashboard so the two tools read as one
// product.
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1E88E5")).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00BCD4")).
			Bold(true)

	suggestStyle = lipgloss.NewStyle().
			Faint(true)

	suggestSelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1E88E5")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Faint(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F44336"))

	footerStyle = lipgloss.NewStyle().
			Faint(true)
)
