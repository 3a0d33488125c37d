package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/jaakkos/skydash/internal/domain"
)

const (
	maxChartTopics   = 10
	maxEntities      = 10
	maxDescription   = 60
	barWidth         = 24
	noEvaluationText = "No evaluation data available"
	noEntityText     = "No entity data available"
)

// KPI is one headline number of the dashboard.
type KPI struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// KPIs returns total queries, containment rate, overall quality and topic
// count. Values that need evaluation data read "N/A" without it.
func KPIs(r *domain.Result) []KPI {
	containment, quality := "N/A", "N/A"
	if ev := r.Evaluation; ev != nil {
		containment = FormatPercent(ev.ContainmentRate)
		quality = fmt.Sprintf("%.1f", ev.AvgOverallQuality)
	}
	return []KPI{
		{Label: "Total Queries", Value: FormatNumber(r.DataSummary.TotalQueries)},
		{Label: "Containment Rate", Value: containment},
		{Label: "Quality Score", Value: quality},
		{Label: "Topics", Value: fmt.Sprintf("%d", r.Topics.NTopics)},
	}
}

// Metric is one quality bar.
type Metric struct {
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	Max    float64 `json:"max"`
	Suffix string  `json:"suffix,omitempty"`
}

// QualityMetrics returns accuracy, empathy and completeness (out of 5) and the
// hallucination rate (out of 100). Nil without evaluation data.
func QualityMetrics(ev *domain.Evaluation) []Metric {
	if ev == nil {
		return nil
	}
	return []Metric{
		{Label: "Accuracy", Value: ev.AvgAccuracy, Max: 5},
		{Label: "Empathy", Value: ev.AvgEmpathy, Max: 5},
		{Label: "Completeness", Value: ev.AvgCompleteness, Max: 5},
		{Label: "Hallucination Rate", Value: ev.HallucinationRate, Max: 100, Suffix: "%"},
	}
}

// Dashboard renders the full result view for a terminal.
func Dashboard(r *domain.Result) string {
	if r == nil {
		return MutedStyle.Render("No results")
	}
	var b strings.Builder
	title := "Customer Query Analytics"
	if r.Timestamp != "" {
		title += MutedStyle.Render("  " + r.Timestamp)
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(renderKPIs(r))
	b.WriteString("\n")

	b.WriteString(SectionStyle.Render("Topics"))
	b.WriteString("\n")
	b.WriteString(renderTopics(r.Topics.Topics))
	b.WriteString("\n")

	b.WriteString(SectionStyle.Render("Top Entities"))
	b.WriteString("\n")
	b.WriteString(renderEntities(r))
	b.WriteString("\n")

	b.WriteString(SectionStyle.Render("Quality Metrics"))
	b.WriteString("\n")
	b.WriteString(renderMetrics(r.Evaluation))
	b.WriteString("\n")

	if ins := Insights(r); len(ins) > 0 {
		b.WriteString(SectionStyle.Render("Key Insights"))
		b.WriteString("\n")
		for _, in := range ins {
			style := LevelStyle(string(in.Level))
			b.WriteString(style.Render(LevelIcon(string(in.Level)) + " " + in.Text))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderKPIs(r *domain.Result) string {
	var boxes []string
	for _, k := range KPIs(r) {
		boxes = append(boxes, KPIBoxStyle.Render(
			KPILabelStyle.Render(k.Label)+"\n"+KPIValueStyle.Render(k.Value)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func renderTopics(topics []domain.Topic) string {
	if len(topics) == 0 {
		return MutedStyle.Render("No topics found")
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers("#", "Topic", "Description", "Queries", "Share", "Examples").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})
	for _, tp := range topics {
		t.Row(
			fmt.Sprintf("#%d", tp.Rank),
			tp.TopicName,
			truncate(tp.Description, maxDescription),
			FormatNumber(tp.Count),
			FormatPercent(tp.Percentage),
			fmt.Sprintf("View %d examples", len(tp.RepresentativeQueries)),
		)
	}
	return t.String()
}

func renderEntities(r *domain.Result) string {
	top := r.TopEntities(maxEntities)
	if len(top) == 0 {
		return MutedStyle.Render(noEntityText)
	}
	width := 0
	for _, e := range top {
		if w := len(FormatEntityType(e.Type)); w > width {
			width = w
		}
	}
	bar := newBar(string(ColorSky))
	var lines []string
	for _, e := range top {
		ratio := 0.0
		if top[0].Count > 0 {
			ratio = float64(e.Count) / float64(top[0].Count)
		}
		lines = append(lines, fmt.Sprintf("%-*s  %s  %s",
			width, FormatEntityType(e.Type), bar.ViewAs(ratio), FormatNumber(e.Count)))
	}
	return strings.Join(lines, "\n")
}

func renderMetrics(ev *domain.Evaluation) string {
	metrics := QualityMetrics(ev)
	if metrics == nil {
		return MutedStyle.Render(noEvaluationText)
	}
	colors := []lipgloss.Color{ColorSky, ColorGreen, ColorAmber, ColorRed}
	var lines []string
	for i, m := range metrics {
		bar := newBar(string(colors[i%len(colors)]))
		lines = append(lines, fmt.Sprintf("%-18s  %s  %.1f%s",
			m.Label, bar.ViewAs(clamp01(m.Value/m.Max)), m.Value, m.Suffix))
	}
	return strings.Join(lines, "\n")
}

func newBar(color string) progress.Model {
	return progress.New(
		progress.WithSolidFill(color),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
