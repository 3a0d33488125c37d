package analysis

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jaakkos/skydash/internal/app"
	"github.com/jaakkos/skydash/internal/domain"
	"github.com/jaakkos/skydash/internal/jobclient"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUploadFile(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		uploadErr error
		wantErr   string
	}{
		{name: "accepted", file: "queries.csv"},
		{name: "bad extension", file: "notes.txt", wantErr: "Invalid file type. Please upload .xlsx or .csv file"},
		{name: "busy", file: "queries.csv", uploadErr: app.ErrSessionBusy, wantErr: "already in progress"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeSession{snap: domain.SessionSnapshot{Phase: domain.PhaseIdle}, uploadErr: tt.uploadErr}
			srv := testServer(sess)
			path := writeFile(t, tt.file, "query\nwhere is my order\n")

			result, err := callTool(t, srv, "upload_file", map[string]any{"path": path})
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			text := resultText(t, result)
			if !strings.Contains(text, "Upload of queries.csv started") || !strings.Contains(text, "run-1") {
				t.Errorf("text = %q", text)
			}
			if len(sess.uploads) != 1 || sess.uploads[0].Name != "queries.csv" {
				t.Errorf("uploads = %+v", sess.uploads)
			}
		})
	}
}

func TestUploadFile_MissingPath(t *testing.T) {
	srv := testServer(&fakeSession{})
	if _, err := callTool(t, srv, "upload_file", map[string]any{}); err == nil || !strings.Contains(err.Error(), "path is required") {
		t.Errorf("err = %v", err)
	}
	missing := filepath.Join(t.TempDir(), "nope.csv")
	if _, err := callTool(t, srv, "upload_file", map[string]any{"path": missing}); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestUploadFile_Wait(t *testing.T) {
	sess := &fakeSession{finish: domain.SessionSnapshot{
		RunID: "run-1", Phase: domain.PhaseFailed, Filename: "queries.csv", Error: "bad format",
	}}
	srv := testServer(sess)
	path := writeFile(t, "queries.csv", "q\n")

	result, err := callTool(t, srv, "upload_file", map[string]any{"path": path, "wait": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	for _, want := range []string{"Phase: failed", "Error: bad format"} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
}

func TestAnalysisStatus(t *testing.T) {
	tests := []struct {
		name string
		snap domain.SessionSnapshot
		want []string
	}{
		{
			name: "idle",
			snap: domain.SessionSnapshot{Phase: domain.PhaseIdle},
			want: []string{"Phase: idle", "No analysis running"},
		},
		{
			name: "polling",
			snap: domain.SessionSnapshot{
				RunID: "abc", Phase: domain.PhasePolling, Filename: "q.xlsx", Progress: 55,
				CurrentStep: "Discovering topics...", StartedAt: time.Now().Add(-10 * time.Second),
			},
			want: []string{"Phase: polling", "Run: abc", "File: q.xlsx", "Progress: 55% (Discovering topics...)", "Elapsed:"},
		},
		{
			name: "failed",
			snap: domain.SessionSnapshot{Phase: domain.PhaseFailed, Filename: "q.csv", Error: "Upload failed"},
			want: []string{"Phase: failed", "Error: Upload failed"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(&fakeSession{snap: tt.snap})
			result, err := callTool(t, srv, "analysis_status", nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			text := resultText(t, result)
			for _, want := range tt.want {
				if !strings.Contains(text, want) {
					t.Errorf("text missing %q:\n%s", want, text)
				}
			}
		})
	}
}

func TestResetSession(t *testing.T) {
	sess := completedSession(t)
	srv := testServer(sess)
	result, err := callTool(t, srv, "reset_session", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text := resultText(t, result); text != "Session reset (was completed)" {
		t.Errorf("text = %q", text)
	}
	if sess.resets != 1 || sess.Result() != nil {
		t.Error("session not reset")
	}
}

func TestCheckHealth(t *testing.T) {
	for _, healthy := range []bool{true, false} {
		srv := testServer(&fakeSession{healthy: healthy})
		result, err := callTool(t, srv, "check_health", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		text := resultText(t, result)
		want := "Backend server not available. Please start the server."
		if healthy {
			want = "Backend server connected"
		}
		if text != want {
			t.Errorf("healthy=%v: text = %q, want %q", healthy, text, want)
		}
	}
}

func TestGetResults(t *testing.T) {
	if _, err := callTool(t, testServer(&fakeSession{}), "get_results", nil); err == nil {
		t.Error("expected error without results")
	}

	srv := testServer(completedSession(t))
	result, err := callTool(t, srv, "get_results", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	for _, want := range []string{
		"Total Queries: 1,500",
		"Containment Rate: 72.5%",
		"#1 Order Status: 1,500 queries (100.0%) - Where is my order",
		`"where is my parcel"`,
		"No entity data available",
		"Hallucination Rate: 15.0% / 100",
		"[warning] Overall quality needs attention (2.5/5.0).",
		"[danger] High hallucination rate detected (15.0%).",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}

	result, err = callTool(t, srv, "get_results", map[string]any{"format": "json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text := resultText(t, result); text != resultJSON {
		t.Errorf("json = %q", text)
	}

	if _, err := callTool(t, srv, "get_results", map[string]any{"format": "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestDownloadReport(t *testing.T) {
	t.Run("default path", func(t *testing.T) {
		dir := t.TempDir()
		sess := completedSession(t)
		sess.report = jobclient.Report{Filename: "skyrocket-analysis-1.pdf", Data: []byte("%PDF-1.4 report")}
		srv := testServer(sess, WithReportDir(dir))

		result, err := callTool(t, srv, "download_report", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := filepath.Join(dir, "skyrocket-analysis-1.pdf")
		if text := resultText(t, result); !strings.Contains(text, want) {
			t.Errorf("text = %q", text)
		}
		data, err := os.ReadFile(want)
		if err != nil || string(data) != "%PDF-1.4 report" {
			t.Errorf("saved = %q, %v", data, err)
		}
	})

	t.Run("explicit path", func(t *testing.T) {
		sess := completedSession(t)
		sess.report = jobclient.Report{Filename: "x.pdf", Data: []byte("%PDF")}
		srv := testServer(sess)
		path := filepath.Join(t.TempDir(), "nested", "out.pdf")
		if _, err := callTool(t, srv, "download_report", map[string]any{"path": path}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("report not saved: %v", err)
		}
	})

	t.Run("no results", func(t *testing.T) {
		_, err := callTool(t, testServer(&fakeSession{}), "download_report", nil)
		if err == nil || !strings.Contains(err.Error(), "no results available") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("download failed", func(t *testing.T) {
		sess := completedSession(t)
		sess.reportErr = jobclient.ErrDownloadFailed
		if _, err := callTool(t, testServer(sess), "download_report", nil); err == nil {
			t.Error("expected error")
		}
	})
}

func TestListHistory(t *testing.T) {
	hist := &memHistory{}
	now := time.Now()
	hist.SaveAnalysis(&domain.AnalysisRecord{
		ID: "a1", Filename: "old.csv", Phase: domain.PhaseFailed, Error: "bad format",
		StartedAt: now.Add(-2 * time.Hour), FinishedAt: now.Add(-2*time.Hour + 5*time.Second),
	})
	hist.SaveAnalysis(&domain.AnalysisRecord{
		ID: "a2", Filename: "new.xlsx", Phase: domain.PhaseCompleted,
		StartedAt: now.Add(-time.Minute), FinishedAt: now.Add(-30 * time.Second),
	})
	srv := testServer(&fakeSession{}, WithHistory(hist))

	result, err := callTool(t, srv, "list_history", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "Analysis History (2)") || !strings.Contains(text, "error: bad format") {
		t.Errorf("text = %q", text)
	}
	if strings.Index(text, "new.xlsx") > strings.Index(text, "old.csv") {
		t.Error("newest analysis should be listed first")
	}

	result, err = callTool(t, srv, "list_history", map[string]any{"limit": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text := resultText(t, result); strings.Contains(text, "old.csv") {
		t.Errorf("limit not applied: %q", text)
	}

	if _, err := callTool(t, srv, "list_history", map[string]any{"limit": 1.5}); err == nil {
		t.Error("expected error for fractional limit")
	}

	hist.err = errors.New("disk I/O error")
	if _, err := callTool(t, srv, "list_history", nil); err == nil {
		t.Error("expected error from repository")
	}
}

func TestListHistory_NotRegisteredWithoutRepository(t *testing.T) {
	srv := testServer(&fakeSession{})
	if _, err := callTool(t, srv, "list_history", nil); err == nil {
		t.Error("list_history should not exist without a history repository")
	}
}

func TestOptionalInt(t *testing.T) {
	tests := []struct {
		args    map[string]any
		want    int
		wantErr bool
	}{
		{map[string]any{}, 10, false},
		{map[string]any{"n": nil}, 10, false},
		{map[string]any{"n": float64(3)}, 3, false},
		{map[string]any{"n": float64(0)}, 0, false},
		{map[string]any{"n": float64(-1)}, 0, true},
		{map[string]any{"n": 2.5}, 0, true},
		{map[string]any{"n": "3"}, 0, true},
	}
	for _, tt := range tests {
		got, err := optionalInt(tt.args, "n", 10)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("optionalInt(%v) = %d, %v; want %d, err=%v", tt.args, got, err, tt.want, tt.wantErr)
		}
	}
}
