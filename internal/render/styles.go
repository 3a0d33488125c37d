package render

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	ColorFgPrimary = lipgloss.Color("#D1D5DB")
	ColorFgMuted   = lipgloss.Color("#6B7280")
	ColorBorder    = lipgloss.Color("#374151")

	ColorSky    = lipgloss.Color("#0EA5E9")
	ColorBlue   = lipgloss.Color("#3B82F6")
	ColorViolet = lipgloss.Color("#8B5CF6")
	ColorGreen  = lipgloss.Color("#22C55E")
	ColorAmber  = lipgloss.Color("#F59E0B")
	ColorRed    = lipgloss.Color("#EF4444")
)

// SeriesColors is the chart and legend rotation.
var SeriesColors = []string{
	"#0ea5e9", "#3b82f6", "#8b5cf6", "#ec4899", "#f43f5e",
	"#f59e0b", "#10b981", "#14b8a6", "#06b6d4", "#6366f1",
}

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorSky).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(ColorViolet).
			Bold(true).
			MarginTop(1)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorFgMuted)

	KPIBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 2).
			MarginRight(1)

	KPILabelStyle = lipgloss.NewStyle().
			Foreground(ColorFgMuted)

	KPIValueStyle = lipgloss.NewStyle().
			Foreground(ColorFgPrimary).
			Bold(true)

	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(ColorSky).
				Bold(true).
				Padding(0, 1)

	TableCellStyle = lipgloss.NewStyle().
			Foreground(ColorFgPrimary).
			Padding(0, 1)
)

// LevelStyle colours a notice or insight by level name
// (info, success, warning, error, danger).
func LevelStyle(level string) lipgloss.Style {
	switch level {
	case "success":
		return lipgloss.NewStyle().Foreground(ColorGreen)
	case "warning":
		return lipgloss.NewStyle().Foreground(ColorAmber)
	case "error", "danger":
		return lipgloss.NewStyle().Foreground(ColorRed)
	}
	return lipgloss.NewStyle().Foreground(ColorSky)
}

// LevelIcon is the one-character marker printed before a notice.
func LevelIcon(level string) string {
	switch level {
	case "success":
		return "✓"
	case "warning":
		return "!"
	case "error", "danger":
		return "✗"
	}
	return "i"
}
