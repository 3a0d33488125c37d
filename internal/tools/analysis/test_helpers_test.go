package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/skydash/internal/app"
	"github.com/jaakkos/skydash/internal/domain"
	"github.com/jaakkos/skydash/internal/jobclient"
)

const resultJSON = `{"timestamp":"2026-03-01T12:00:00","data_summary":{"total_queries":1500},` +
	`"topics":{"n_topics":1,"topics":[{"rank":1,"topic_name":"Order Status","description":"Where is my order",` +
	`"count":1500,"percentage":100,"representative_queries":["where is my parcel"]}]},` +
	`"evaluation":{"avg_accuracy":4.2,"avg_empathy":3.9,"avg_completeness":4,"avg_overall_quality":2.5,"containment_rate":72.5,"hallucination_rate":15},` +
	`"entities":null}`

type fakeSession struct {
	mu        sync.Mutex
	snap      domain.SessionSnapshot
	result    *domain.Result
	uploadErr error
	uploads   []jobclient.File
	resets    int
	healthy   bool
	report    jobclient.Report
	reportErr error
	// finish is the snapshot Wait returns after an upload.
	finish domain.SessionSnapshot
}

func (f *fakeSession) Snapshot() domain.SessionSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSession) Result() *domain.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

func (f *fakeSession) StartUpload(file jobclient.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	if err := jobclient.Validate(file); err != nil {
		return err
	}
	f.uploads = append(f.uploads, file)
	f.snap = domain.SessionSnapshot{RunID: "run-1", Phase: domain.PhaseUploading, Filename: file.Name}
	return nil
}

func (f *fakeSession) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.snap = domain.SessionSnapshot{Phase: domain.PhaseIdle}
	f.result = nil
}

func (f *fakeSession) Wait(ctx context.Context) (domain.SessionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = f.finish
	return f.snap, nil
}

func (f *fakeSession) CheckHealth(ctx context.Context) bool { return f.healthy }

func (f *fakeSession) DownloadReport(ctx context.Context) (jobclient.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result == nil {
		return jobclient.Report{}, app.ErrNoResults
	}
	return f.report, f.reportErr
}

func completedSession(t *testing.T) *fakeSession {
	t.Helper()
	res, err := domain.ParseResult([]byte(resultJSON))
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now().Add(-time.Minute)
	return &fakeSession{
		snap: domain.SessionSnapshot{
			RunID: "run-1", Phase: domain.PhaseCompleted, Filename: "queries.csv", Progress: 100,
			HasResult: true, StartedAt: start, FinishedAt: start.Add(30 * time.Second),
		},
		result: res,
	}
}

type memHistory struct {
	recs []domain.AnalysisRecord
	err  error
}

func (m *memHistory) SaveAnalysis(rec *domain.AnalysisRecord) error {
	m.recs = append([]domain.AnalysisRecord{*rec}, m.recs...)
	return nil
}

func (m *memHistory) ListAnalyses(limit int) ([]domain.AnalysisRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit > 0 && limit < len(m.recs) {
		return m.recs[:limit], nil
	}
	return m.recs, nil
}

func (m *memHistory) GetAnalysis(id string) (*domain.AnalysisRecord, error) {
	return nil, domain.ErrAnalysisNotFound
}

func (m *memHistory) PruneAnalyses(int, int) (int, error) { return 0, nil }

// testServer creates a MCPServer with all tools registered for testing.
func testServer(session Session, opts ...RegisterOption) *server.MCPServer {
	s := server.NewMCPServer("test", "1.0.0")
	Register(s, session, log.New(io.Discard, "", 0), opts...)
	return s
}

// callTool calls a registered tool via the MCPServer's HandleMessage.
// Returns the parsed CallToolResult or an error.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) (*mcp.CallToolResult, error) {
	t.Helper()

	reqJSON, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      name,
			"arguments": args,
		},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	respJSON := s.HandleMessage(context.Background(), reqJSON)

	respBytes, marshalErr := json.Marshal(respJSON)
	if marshalErr != nil {
		t.Fatalf("marshal response: %v", marshalErr)
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("RPC error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	var result mcp.CallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}

	return &result, nil
}

// resultText extracts the first text content from a CallToolResult.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("result is nil")
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content in result")
	return ""
}
