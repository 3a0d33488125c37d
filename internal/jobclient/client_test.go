package jobclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestBackend(t *testing.T, mux *http.ServeMux) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL + "/api"), &hits
}

func TestNew_DefaultBaseURL(t *testing.T) {
	c := New("")
	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL(), DefaultBaseURL)
	}
	if New("http://x/api/").BaseURL() != "http://x/api" {
		t.Error("trailing slash should be trimmed")
	}
}

func TestNew_NilHTTPClientIgnored(t *testing.T) {
	c := New("http://x/api", WithHTTPClient(nil), WithTimeout(3*time.Second))
	if c.httpClient == nil {
		t.Fatal("nil http client should be ignored")
	}
	if c.httpClient.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", c.httpClient.Timeout)
	}
}

func TestCheckHealth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy"}`))
	})
	c, _ := newTestBackend(t, mux)
	if !c.CheckHealth(context.Background()) {
		t.Error("expected healthy")
	}

	down := New("http://127.0.0.1:1/api", WithTimeout(200*time.Millisecond))
	if down.CheckHealth(context.Background()) {
		t.Error("expected unhealthy for unreachable backend")
	}
}

func TestUpload_SendsMultipartFile(t *testing.T) {
	var gotName, gotBody string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotName, gotBody = hdr.Filename, string(b)
		w.Write([]byte(`{"message":"File uploaded successfully. Analysis started.","filename":"queries.csv"}`))
	})
	c, hits := newTestBackend(t, mux)

	resp, err := c.Upload(context.Background(), BytesFile("queries.csv", []byte("q,a\nhi,hello\n")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if resp.Filename != "queries.csv" {
		t.Errorf("Filename = %q", resp.Filename)
	}
	if gotName != "queries.csv" || gotBody != "q,a\nhi,hello\n" {
		t.Errorf("server got %q %q", gotName, gotBody)
	}
	if atomic.LoadInt32(hits) != 1 {
		t.Errorf("requests = %d, want 1", atomic.LoadInt32(hits))
	}
}

func TestUpload_ValidationMakesNoRequest(t *testing.T) {
	c, hits := newTestBackend(t, http.NewServeMux())

	tests := []struct {
		name string
		file File
	}{
		{"bad extension", BytesFile("report.pdf", []byte("x"))},
		{"no extension", BytesFile("report", []byte("x"))},
		{"too large", File{Name: "big.csv", Size: MaxFileSize + 1, Open: func() (io.ReadCloser, error) {
			t.Error("Open should not be called")
			return io.NopCloser(strings.NewReader("")), nil
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Upload(context.Background(), tt.file)
			if !IsValidation(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
	if atomic.LoadInt32(hits) != 0 {
		t.Errorf("requests = %d, want 0", atomic.LoadInt32(hits))
	}
}

func TestUpload_ServerErrorWrapsUploadFailed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"File too large. Maximum size is 50MB"}`))
	})
	c, _ := newTestBackend(t, mux)

	_, err := c.Upload(context.Background(), BytesFile("a.xlsx", []byte("x")))
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "Maximum size is 50MB") {
		t.Errorf("error should carry backend detail: %v", err)
	}
}

func TestPollStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Status
	}{
		{"processing is pending", `{"status":"processing","progress":45,"current_step":"Discovering topics...","error":null}`,
			Status{State: StatePending, Progress: 45, CurrentStep: "Discovering topics..."}},
		{"idle is pending", `{"status":"idle","progress":0,"current_step":"","error":null}`,
			Status{State: StatePending}},
		{"pending", `{"status":"pending","progress":10,"current_step":"Loading"}`,
			Status{State: StatePending, Progress: 10, CurrentStep: "Loading"}},
		{"completed", `{"status":"completed","progress":100,"current_step":"Done"}`,
			Status{State: StateCompleted, Progress: 100, CurrentStep: "Done"}},
		{"error", `{"status":"error","progress":30,"current_step":"","error":"bad format"}`,
			Status{State: StateError, Progress: 30, Error: "bad format"}},
		{"progress clamped high", `{"status":"processing","progress":140}`,
			Status{State: StatePending, Progress: 100}},
		{"progress clamped low", `{"status":"processing","progress":-5}`,
			Status{State: StatePending, Progress: 0}},
		{"fractional progress", `{"status":"processing","progress":33.6}`,
			Status{State: StatePending, Progress: 34}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			c, _ := newTestBackend(t, mux)
			got, err := c.PollStatus(context.Background())
			if err != nil {
				t.Fatalf("PollStatus: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPollStatus_Failures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	c, _ := newTestBackend(t, mux)
	if _, err := c.PollStatus(context.Background()); !errors.Is(err, ErrPollFailed) {
		t.Errorf("expected ErrPollFailed, got %v", err)
	}

	mux2 := http.NewServeMux()
	mux2.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	c2, _ := newTestBackend(t, mux2)
	if _, err := c2.PollStatus(context.Background()); !errors.Is(err, ErrPollFailed) {
		t.Errorf("expected ErrPollFailed on decode error, got %v", err)
	}
}

func TestFetchResults(t *testing.T) {
	body := `{"data_summary":{"total_queries":10},"topics":{"n_topics":1,"topics":[{"rank":1,"topic_name":"Billing","count":10,"percentage":100}]},"evaluation":null,"entities":null}`
	mux := http.NewServeMux()
	mux.HandleFunc("/api/results", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})
	c, _ := newTestBackend(t, mux)

	r, err := c.FetchResults(context.Background())
	if err != nil {
		t.Fatalf("FetchResults: %v", err)
	}
	if r.DataSummary.TotalQueries != 10 || r.Topics.Topics[0].TopicName != "Billing" {
		t.Errorf("unexpected result %+v", r)
	}
	if string(r.Raw) != body {
		t.Error("Raw should match response body")
	}
}

func TestFetchResults_NotReady(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/results", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"message":"Analysis not yet completed"}`))
	})
	c, _ := newTestBackend(t, mux)
	_, err := c.FetchResults(context.Background())
	if !errors.Is(err, ErrResultsUnavailable) {
		t.Fatalf("expected ErrResultsUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "202") {
		t.Errorf("error should mention status: %v", err)
	}
}

func TestDownloadReport(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/results/download", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename=skyrocket-analysis-report.pdf")
		w.Write([]byte("%PDF-1.4"))
	})
	c, _ := newTestBackend(t, mux)
	fixed := time.UnixMilli(1736500000123)
	c.now = func() time.Time { return fixed }

	rep, err := c.DownloadReport(context.Background())
	if err != nil {
		t.Fatalf("DownloadReport: %v", err)
	}
	if rep.Filename != "skyrocket-analysis-1736500000123.pdf" {
		t.Errorf("Filename = %q", rep.Filename)
	}
	if string(rep.Data) != "%PDF-1.4" || rep.ContentType != "application/pdf" {
		t.Errorf("unexpected report %+v", rep)
	}
}

func TestDownloadReport_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/results/download", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"No results available"}`))
	})
	c, _ := newTestBackend(t, mux)
	_, err := c.DownloadReport(context.Background())
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "No results available") {
		t.Errorf("error should include detail: %v", err)
	}
}
