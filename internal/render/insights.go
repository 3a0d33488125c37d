package render

import (
	"fmt"

	"github.com/jaakkos/skydash/internal/domain"
)

// InsightLevel ranks an insight for display.
type InsightLevel string

const (
	InsightInfo    InsightLevel = "info"
	InsightSuccess InsightLevel = "success"
	InsightWarning InsightLevel = "warning"
	InsightDanger  InsightLevel = "danger"
)

// Insight is one key-finding line derived from a result.
type Insight struct {
	Level InsightLevel `json:"level"`
	Text  string       `json:"text"`
}

const (
	highQuality       = 4.0
	lowQuality        = 3.0
	hallucinationRisk = 10.0
)

// Insights derives the key findings: the most common topic, a quality
// verdict, and a hallucination warning.
func Insights(r *domain.Result) []Insight {
	if r == nil {
		return nil
	}
	var out []Insight
	if len(r.Topics.Topics) > 0 {
		top := r.Topics.Topics[0]
		out = append(out, Insight{
			Level: InsightInfo,
			Text:  fmt.Sprintf("Most common topic is %s (%.1f%% of queries).", top.TopicName, top.Percentage),
		})
	}
	if ev := r.Evaluation; ev != nil {
		switch {
		case ev.AvgOverallQuality >= highQuality:
			out = append(out, Insight{
				Level: InsightSuccess,
				Text:  fmt.Sprintf("Overall quality is high (%.1f/5.0).", ev.AvgOverallQuality),
			})
		case ev.AvgOverallQuality < lowQuality:
			out = append(out, Insight{
				Level: InsightWarning,
				Text:  fmt.Sprintf("Overall quality needs attention (%.1f/5.0).", ev.AvgOverallQuality),
			})
		}
		if ev.HallucinationRate > hallucinationRisk {
			out = append(out, Insight{
				Level: InsightDanger,
				Text:  fmt.Sprintf("High hallucination rate detected (%.1f%%).", ev.HallucinationRate),
			})
		}
	}
	return out
}
