package theme

import "github.com/charmbracelet/lipgloss"

// Colors holds the shared color palette used across the TUI.
type Colors struct {
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Background lipgloss.Color
}

// Theme centralizes the palette and derived styles for the progress view.
type Theme struct {
	colors Colors
}

// Default returns the standard theme.
func Default() Theme {
	return Theme{
		colors: Colors{
			Primary:    lipgloss.Color("#7aa2f7"),
			Accent:     lipgloss.Color("#bb9af7"),
			Muted:      lipgloss.Color("#565f89"),
			Success:    lipgloss.Color("#9ece6a"),
			Error:      lipgloss.Color("#f7768e"),
			Background: lipgloss.Color("#1a1b26"),
		},
	}
}

// Colors exposes the palette.
func (t Theme) Colors() Colors { return t.colors }

// ProgressGradient returns the two gradient stops for the progress bar.
func (t Theme) ProgressGradient() []string {
	return []string{string(t.colors.Primary), string(t.colors.Accent)}
}

// Title styles the header line.
func (t Theme) Title() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.colors.Primary).Bold(true)
}

// Muted styles secondary text.
func (t Theme) Muted() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.colors.Muted)
}

// Success styles completed-item text.
func (t Theme) Success() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.colors.Success)
}

// Error styles failure text.
func (t Theme) Error() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.colors.Error)
}
