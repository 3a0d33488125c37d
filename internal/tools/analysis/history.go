package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/skydash/internal/app"
)

const defaultHistoryLimit = 10

func registerListHistory(s *server.MCPServer, history app.HistoryRepository) {
	s.AddTool(
		mcp.NewTool("list_history",
			mcp.WithDescription("List past analyses, newest first, with file name, outcome and when they finished."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of analyses to list (default: 10, 0 for all)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			limit, err := optionalInt(req.GetArguments(), "limit", defaultHistoryLimit)
			if err != nil {
				return nil, err
			}
			recs, err := history.ListAnalyses(limit)
			if err != nil {
				return nil, fmt.Errorf("list history: %w", err)
			}
			if len(recs) == 0 {
				return mcp.NewToolResultText("No analyses recorded yet"), nil
			}

			now := time.Now()
			var b strings.Builder
			fmt.Fprintf(&b, "=== Analysis History (%d) ===\n\n", len(recs))
			for i := range recs {
				rec := &recs[i]
				fmt.Fprintf(&b, "%s  %s  %s  %s (took %s)\n",
					rec.ID, rec.Filename, rec.Phase,
					humanize.RelTime(rec.FinishedAt, now, "ago", "from now"),
					rec.Duration().Round(time.Second))
				if rec.Error != "" {
					fmt.Fprintf(&b, "    error: %s\n", rec.Error)
				}
			}
			return mcp.NewToolResultText(b.String()), nil
		},
	)
}
