// Package analysis exposes the analysis session as MCP tools.
package analysis

import (
	"context"
	"io"
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/skydash/internal/app"
	"github.com/jaakkos/skydash/internal/domain"
	"github.com/jaakkos/skydash/internal/jobclient"
)

// Session is the part of *app.Session the tools drive.
type Session interface {
	Snapshot() domain.SessionSnapshot
	Result() *domain.Result
	StartUpload(f jobclient.File) error
	Reset()
	Wait(ctx context.Context) (domain.SessionSnapshot, error)
	CheckHealth(ctx context.Context) bool
	DownloadReport(ctx context.Context) (jobclient.Report, error)
}

// RegisterOption configures optional dependencies for tool registration.
type RegisterOption func(*registerOpts)

type registerOpts struct {
	history   app.HistoryRepository
	reportDir string
}

// WithHistory enables the list_history tool.
func WithHistory(repo app.HistoryRepository) RegisterOption {
	return func(o *registerOpts) { o.history = repo }
}

// WithReportDir sets where download_report saves when no path is given.
func WithReportDir(dir string) RegisterOption {
	return func(o *registerOpts) { o.reportDir = dir }
}

// Register registers the analysis tools with the mcp-go server.
func Register(s *server.MCPServer, session Session, logger *log.Logger, opts ...RegisterOption) {
	o := registerOpts{reportDir: "."}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	registerUploadFile(s, session, logger)
	registerAnalysisStatus(s, session)
	registerResetSession(s, session, logger)
	registerCheckHealth(s, session)

	registerGetResults(s, session)
	registerDownloadReport(s, session, logger, o.reportDir)

	if o.history != nil {
		registerListHistory(s, o.history)
	}
}
