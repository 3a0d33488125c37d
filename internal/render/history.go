package render

import (
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/jaakkos/skydash/internal/domain"
)

// HistoryTable renders past runs, newest first as given.
func HistoryTable(recs []domain.AnalysisRecord, now time.Time) string {
	if len(recs) == 0 {
		return MutedStyle.Render("No analyses recorded yet")
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers("ID", "File", "Status", "Finished", "Duration", "Error").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})
	for i := range recs {
		rec := &recs[i]
		t.Row(
			rec.ID,
			rec.Filename,
			string(rec.Phase),
			humanize.RelTime(rec.FinishedAt, now, "ago", "from now"),
			rec.Duration().Round(time.Second).String(),
			truncate(rec.Error, 40),
		)
	}
	return t.String()
}
