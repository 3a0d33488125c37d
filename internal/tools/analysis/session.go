package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/skydash/internal/app"
	"github.com/jaakkos/skydash/internal/domain"
	"github.com/jaakkos/skydash/internal/jobclient"
)

func registerUploadFile(s *server.MCPServer, session Session, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("upload_file",
			mcp.WithDescription("Upload a customer query export (.xlsx or .csv, max 50MB) to the analytics backend and start an analysis. Returns immediately unless wait is true; follow progress with analysis_status."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the .xlsx or .csv file")),
			mcp.WithBoolean("wait", mcp.Description("Block until the analysis completes or fails (default: false)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			path, err := requireString(args, "path")
			if err != nil {
				return nil, err
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return nil, fmt.Errorf("resolve path: %w", err)
			}
			f, err := jobclient.OpenFile(abs)
			if err != nil {
				return nil, err
			}

			err = session.StartUpload(f)
			var ve *jobclient.ValidationError
			switch {
			case errors.As(err, &ve):
				return nil, errors.New(ve.Reason)
			case errors.Is(err, app.ErrSessionBusy):
				return nil, fmt.Errorf("an analysis is already in progress (%s); wait for it or call reset_session", session.Snapshot().Filename)
			case err != nil:
				return nil, err
			}
			logger.Printf("Tool upload_file: started %s", f.Name)

			if !optionalBool(args, "wait") {
				return mcp.NewToolResultText(fmt.Sprintf("Upload of %s started (run %s). Use analysis_status to follow progress.",
					f.Name, session.Snapshot().RunID)), nil
			}
			snap, err := session.Wait(ctx)
			if err != nil {
				return nil, fmt.Errorf("wait for analysis: %w", err)
			}
			return mcp.NewToolResultText(formatStatus(snap, time.Now())), nil
		},
	)
}

func registerAnalysisStatus(s *server.MCPServer, session Session) {
	s.AddTool(
		mcp.NewTool("analysis_status",
			mcp.WithDescription("Show the current analysis session: phase (idle, uploading, polling, completed, failed), file, progress percent, current step and error."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText(formatStatus(session.Snapshot(), time.Now())), nil
		},
	)
}

func registerResetSession(s *server.MCPServer, session Session, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("reset_session",
			mcp.WithDescription("Cancel any in-flight upload or polling and return the session to idle, discarding the current results."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			prev := session.Snapshot().Phase
			session.Reset()
			logger.Printf("Tool reset_session: reset from %s", prev)
			return mcp.NewToolResultText(fmt.Sprintf("Session reset (was %s)", prev)), nil
		},
	)
}

func registerCheckHealth(s *server.MCPServer, session Session) {
	s.AddTool(
		mcp.NewTool("check_health",
			mcp.WithDescription("Check whether the analytics backend is reachable."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if session.CheckHealth(ctx) {
				return mcp.NewToolResultText("Backend server connected"), nil
			}
			return mcp.NewToolResultText("Backend server not available. Please start the server."), nil
		},
	)
}

func formatStatus(snap domain.SessionSnapshot, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Phase: %s\n", snap.Phase)
	if snap.Phase == domain.PhaseIdle {
		b.WriteString("No analysis running. Use upload_file to start one.\n")
		return b.String()
	}
	if snap.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", snap.RunID)
	}
	fmt.Fprintf(&b, "File: %s\n", snap.Filename)
	fmt.Fprintf(&b, "Progress: %d%%", snap.Progress)
	if snap.CurrentStep != "" {
		fmt.Fprintf(&b, " (%s)", snap.CurrentStep)
	}
	b.WriteString("\n")
	if !snap.StartedAt.IsZero() {
		end := snap.FinishedAt
		if end.IsZero() {
			end = now
		}
		fmt.Fprintf(&b, "Elapsed: %s\n", end.Sub(snap.StartedAt).Round(time.Second))
	}
	switch snap.Phase {
	case domain.PhaseFailed:
		fmt.Fprintf(&b, "Error: %s\n", snap.Error)
	case domain.PhaseCompleted:
		b.WriteString("Results are ready. Use get_results or download_report.\n")
	}
	return b.String()
}
