package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Result is the analytics payload returned by the backend once a job completes.
// Raw keeps the exact bytes received so the payload can be stored or
// re-served without loss.
type Result struct {
	Timestamp   string         `json:"timestamp,omitempty"`
	DataSummary DataSummary    `json:"data_summary"`
	Topics      TopicSummary   `json:"topics"`
	Evaluation  *Evaluation    `json:"evaluation"`
	Entities    *EntitySummary `json:"entities"`

	Raw json.RawMessage `json:"-"`
}

// DataSummary counts the rows the backend analysed.
type DataSummary struct {
	TotalQueries   int `json:"total_queries"`
	UniqueQueries  int `json:"unique_queries"`
	TotalResponses int `json:"total_responses"`
}

// TopicSummary is the topic discovery section.
type TopicSummary struct {
	NTopics int     `json:"n_topics"`
	Topics  []Topic `json:"topics"`
}

// Topic is one discovered topic cluster.
type Topic struct {
	Rank                  int      `json:"rank"`
	TopicName             string   `json:"topic_name"`
	Description           string   `json:"description"`
	Count                 int      `json:"count"`
	Percentage            float64  `json:"percentage"`
	RepresentativeQueries []string `json:"representative_queries"`
}

// Evaluation holds averaged response-quality scores. Quality scores are out of
// 5; rates are percentages.
type Evaluation struct {
	AvgAccuracy       float64 `json:"avg_accuracy"`
	AvgEmpathy        float64 `json:"avg_empathy"`
	AvgCompleteness   float64 `json:"avg_completeness"`
	AvgOverallQuality float64 `json:"avg_overall_quality"`
	ContainmentRate   float64 `json:"containment_rate"`
	HallucinationRate float64 `json:"hallucination_rate"`
}

// EntitySummary holds per-type entity counts.
type EntitySummary struct {
	EntityCounts map[string]int `json:"entity_counts"`
}

// EntityCount is one entry of a ranked entity list.
type EntityCount struct {
	Type  string
	Count int
}

// ParseResult decodes a backend result body.
func ParseResult(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	r.Raw = append(json.RawMessage(nil), data...)
	return &r, nil
}

// TopTopics returns at most n topics in the order the backend ranked them.
func (r *Result) TopTopics(n int) []Topic {
	if n <= 0 || n >= len(r.Topics.Topics) {
		return r.Topics.Topics
	}
	return r.Topics.Topics[:n]
}

// TopEntities returns at most n entity types ordered by count (desc), then name.
func (r *Result) TopEntities(n int) []EntityCount {
	if r.Entities == nil || len(r.Entities.EntityCounts) == 0 {
		return nil
	}
	out := make([]EntityCount, 0, len(r.Entities.EntityCounts))
	for t, c := range r.Entities.EntityCounts {
		out = append(out, EntityCount{Type: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
