package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent    = lipgloss.AdaptiveColor{Light: "#1F6FEB", Dark: "#58A6FF"}
	muted     = lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#8B949E"}
	border    = lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#30363D"}
	danger    = lipgloss.Color("#E5534B")
	success   = lipgloss.Color("#57AB5A")
	llmColor  = lipgloss.Color("#B083F0")
	ocrColor  = lipgloss.Color("#DAAA3F")
	clipColor = lipgloss.Color("#539BF5")
)

// Styles holds every style the model renders with.
type Styles struct {
	Title   lipgloss.Style
	Panel   lipgloss.Style
	Pane    lipgloss.Style
	Focused lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Status  lipgloss.Style
}

// DefaultStyles returns the standard styles.
func DefaultStyles() Styles {
	pane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)

	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		Panel:   pane,
		Pane:    pane,
		Focused: pane.BorderForeground(accent),
		Label:   lipgloss.NewStyle().Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(muted),
		Error:   lipgloss.NewStyle().Foreground(danger),
		Success: lipgloss.NewStyle().Foreground(success),
		Status:  lipgloss.NewStyle().Foreground(muted).Italic(true),
	}
}

// sourceBadge renders the item source in its own color.
func sourceBadge(source string) string {
	color := clipColor
	switch source {
	case "llm":
		color = llmColor
	case "ocr":
		color = ocrColor
	}
	return lipgloss.NewStyle().Foreground(color).Render(source)
}
