package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jaakkos/skydash/internal/render"
)

// Component styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(render.ColorSky).
			Bold(true).
			PaddingLeft(1)

	PhaseStyle = lipgloss.NewStyle().
			Foreground(render.ColorFgMuted).
			PaddingLeft(1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(render.ColorBorder).
			Padding(1, 2)

	InputPromptStyle = lipgloss.NewStyle().
				Foreground(render.ColorSky).
				Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(render.ColorRed).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(render.ColorFgMuted).
			PaddingLeft(1)

	ToastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

func toastStyle(level string) lipgloss.Style {
	return ToastStyle.
		BorderForeground(render.LevelStyle(level).GetForeground()).
		Foreground(render.LevelStyle(level).GetForeground())
}
