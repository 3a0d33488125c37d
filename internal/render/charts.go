package render

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/jaakkos/skydash/internal/domain"
)

// ErrNoChartData is returned when a result has nothing to plot for a chart.
var ErrNoChartData = errors.New("no chart data")

const (
	TopicsChartFile  = "topics.png"
	QualityChartFile = "quality.png"
)

func hexColor(s string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
}

// TopicsChartPNG renders a pie chart of the top topics by query count.
func TopicsChartPNG(r *domain.Result) ([]byte, error) {
	var values []chart.Value
	for i, t := range r.TopTopics(maxChartTopics) {
		if t.Count <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Value: float64(t.Count),
			Label: t.TopicName,
			Style: chart.Style{FillColor: hexColor(SeriesColors[i%len(SeriesColors)])},
		})
	}
	if len(values) == 0 {
		return nil, ErrNoChartData
	}
	pie := chart.PieChart{
		Title:      "Topic Distribution",
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		Width:      720,
		Height:     720,
		Values:     values,
	}
	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render topics chart: %w", err)
	}
	return buf.Bytes(), nil
}

// QualityChartPNG renders the four quality scores (out of 5) as bars.
func QualityChartPNG(r *domain.Result) ([]byte, error) {
	ev := r.Evaluation
	if ev == nil {
		return nil, ErrNoChartData
	}
	scores := []struct {
		label string
		value float64
	}{
		{"Accuracy", ev.AvgAccuracy},
		{"Empathy", ev.AvgEmpathy},
		{"Completeness", ev.AvgCompleteness},
		{"Overall", ev.AvgOverallQuality},
	}
	var bars []chart.Value
	for i, s := range scores {
		bars = append(bars, chart.Value{
			Value: s.value,
			Label: s.label,
			Style: chart.Style{
				FillColor:   hexColor(SeriesColors[i%len(SeriesColors)]),
				StrokeColor: hexColor(SeriesColors[i%len(SeriesColors)]),
			},
		})
	}
	bc := chart.BarChart{
		Title:      "Quality Scores",
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		Width:      640,
		Height:     400,
		BarWidth:   80,
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: 5}},
		Bars:       bars,
	}
	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render quality chart: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteCharts writes topics.png and quality.png into dir and returns the
// paths written. A chart without data is skipped.
func WriteCharts(dir string, r *domain.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("charts dir: %w", err)
	}
	var written []string
	for _, c := range []struct {
		name   string
		render func(*domain.Result) ([]byte, error)
	}{
		{TopicsChartFile, TopicsChartPNG},
		{QualityChartFile, QualityChartPNG},
	} {
		data, err := c.render(r)
		if errors.Is(err, ErrNoChartData) {
			continue
		}
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, c.name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", c.name, err)
		}
		written = append(written, path)
	}
	return written, nil
}
