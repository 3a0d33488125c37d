package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/skydash/internal/app"
	"github.com/jaakkos/skydash/internal/domain"
	"github.com/jaakkos/skydash/internal/render"
)

var errNoResults = errors.New("no results available; upload a file and wait for the analysis to complete")

func registerGetResults(s *server.MCPServer, session Session) {
	s.AddTool(
		mcp.NewTool("get_results",
			mcp.WithDescription("Return the results of the completed analysis: a readable summary (KPIs, topics, entities, quality metrics, insights) or the raw backend JSON."),
			mcp.WithString("format", mcp.Description("Output format (default: summary)"), mcp.Enum("summary", "json")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			format := optionalString(req.GetArguments(), "format", "summary")
			res := session.Result()
			if res == nil {
				return nil, errNoResults
			}
			switch format {
			case "json":
				return mcp.NewToolResultText(string(res.Raw)), nil
			case "summary":
				return mcp.NewToolResultText(summary(res)), nil
			}
			return nil, fmt.Errorf("unknown format %q (use summary or json)", format)
		},
	)
}

func registerDownloadReport(s *server.MCPServer, session Session, logger *log.Logger, reportDir string) {
	s.AddTool(
		mcp.NewTool("download_report",
			mcp.WithDescription("Download the PDF report of the completed analysis and save it to disk."),
			mcp.WithString("path", mcp.Description("Where to save the PDF (default: the configured report directory with the backend's file name)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rep, err := session.DownloadReport(ctx)
			if errors.Is(err, app.ErrNoResults) {
				return nil, errNoResults
			}
			if err != nil {
				return nil, err
			}

			path := optionalString(req.GetArguments(), "path", filepath.Join(reportDir, rep.Filename))
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("report dir: %w", err)
			}
			if err := os.WriteFile(path, rep.Data, 0o644); err != nil {
				return nil, fmt.Errorf("save report: %w", err)
			}
			logger.Printf("Tool download_report: saved %s", path)
			return mcp.NewToolResultText(fmt.Sprintf("Report saved to %s (%s)", path, humanize.Bytes(uint64(len(rep.Data))))), nil
		},
	)
}

// summary is a plain text rendering of a result for agents.
func summary(r *domain.Result) string {
	var b strings.Builder
	b.WriteString("=== Customer Query Analytics ===\n")
	if r.Timestamp != "" {
		fmt.Fprintf(&b, "Generated: %s\n", r.Timestamp)
	}
	b.WriteString("\n")
	for _, k := range render.KPIs(r) {
		fmt.Fprintf(&b, "%s: %s\n", k.Label, k.Value)
	}

	b.WriteString("\nTopics:\n")
	if len(r.Topics.Topics) == 0 {
		b.WriteString("  No topics found\n")
	}
	for _, t := range r.Topics.Topics {
		fmt.Fprintf(&b, "  #%d %s: %s queries (%s)", t.Rank, t.TopicName, render.FormatNumber(t.Count), render.FormatPercent(t.Percentage))
		if t.Description != "" {
			fmt.Fprintf(&b, " - %s", t.Description)
		}
		b.WriteString("\n")
		for _, q := range t.RepresentativeQueries {
			fmt.Fprintf(&b, "      %q\n", q)
		}
	}

	b.WriteString("\nTop Entities:\n")
	entities := r.TopEntities(10)
	if len(entities) == 0 {
		b.WriteString("  No entity data available\n")
	}
	for _, e := range entities {
		fmt.Fprintf(&b, "  %s: %s\n", render.FormatEntityType(e.Type), render.FormatNumber(e.Count))
	}

	b.WriteString("\nQuality Metrics:\n")
	metrics := render.QualityMetrics(r.Evaluation)
	if metrics == nil {
		b.WriteString("  No evaluation data available\n")
	}
	for _, m := range metrics {
		fmt.Fprintf(&b, "  %s: %.1f%s / %.0f\n", m.Label, m.Value, m.Suffix, m.Max)
	}

	if ins := render.Insights(r); len(ins) > 0 {
		b.WriteString("\nKey Insights:\n")
		for _, in := range ins {
			fmt.Fprintf(&b, "  [%s] %s\n", in.Level, in.Text)
		}
	}
	return b.String()
}
