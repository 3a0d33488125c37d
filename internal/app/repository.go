// Package app implements the analysis session use cases and defines ports
// (backend client, history repository).
package app

import (
	"context"

	"github.com/jaakkos/skydash/internal/domain"
	"github.com/jaakkos/skydash/internal/jobclient"
)

// HistoryRepository stores finished analysis runs.
// Implementation: internal/repository/sqlite.
type HistoryRepository interface {
	SaveAnalysis(rec *domain.AnalysisRecord) error
	ListAnalyses(limit int) ([]domain.AnalysisRecord, error)
	GetAnalysis(id string) (*domain.AnalysisRecord, error)
	// PruneAnalyses drops records older than maxAgeDays, then all but the
	// newest maxCount. Zero disables a rule.
	PruneAnalyses(maxCount, maxAgeDays int) (int, error)
}

// JobClient is the analysis backend. Implementation: internal/jobclient.
type JobClient interface {
	CheckHealth(ctx context.Context) bool
	Upload(ctx context.Context, f jobclient.File) (jobclient.UploadResponse, error)
	PollStatus(ctx context.Context) (jobclient.Status, error)
	FetchResults(ctx context.Context) (*domain.Result, error)
	DownloadReport(ctx context.Context) (jobclient.Report, error)
}
