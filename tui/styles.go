package tui

import "github.com/charmbracelet/lipgloss"

// sessionPalette holds the display colors cycled across sessions.
var sessionPalette = [8]lipgloss.Color{
	lipgloss.Color("#7aa2f7"), // blue
	lipgloss.Color("#9ece6a"), // green
	lipgloss.Color("#e0af68"), // amber
	lipgloss.Color("#bb9af7"), // violet
	lipgloss.Color("#f7768e"), // rose
	lipgloss.Color("#7dcfff"), // cyan
	lipgloss.Color("#ff9e64"), // orange
	lipgloss.Color("#c0caf5"), // fog
}

var (
	labelStyles = func() [8]lipgloss.Style {
		var s [8]lipgloss.Style
		for i, c := range sessionPalette {
			s[i] = lipgloss.NewStyle().Foreground(c).Bold(true)
		}
		return s
	}()

	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68")).Bold(true)

	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	actionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e"))

	sidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(lipgloss.Color("238")).
			PaddingLeft(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("232")).
			Background(lipgloss.Color("#e0af68")).
			Bold(true).
			Padding(0, 1)

	stateStyles = map[string]lipgloss.Style{
		"discovered": lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		"active":     lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")),
		"idle":       lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68")),
		"closed":     lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Strikethrough(true),
	}
)
