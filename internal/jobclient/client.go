// Package jobclient talks to the analysis backend: health, upload, status,
// results and report download. It holds no session state and never retries.
package jobclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/jaakkos/skydash/internal/domain"
)

const (
	// DefaultBaseURL is the backend API root used when none is configured.
	DefaultBaseURL = "http://localhost:5001/api"

	maxErrorBody = 4 << 10
)

// JobState is the normalized backend job status.
type JobState string

const (
	StatePending   JobState = "pending"
	StateCompleted JobState = "completed"
	StateError     JobState = "error"
)

// Status is one GET /status response.
type Status struct {
	State       JobState
	Progress    int // 0..100
	CurrentStep string
	Error       string
}

// UploadResponse is the body of a successful POST /upload.
type UploadResponse struct {
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

// Report is a downloaded PDF report.
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Client is an analysis backend client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Nil is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets a per-request timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithClock overrides the clock used to name downloaded reports.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client for the backend rooted at baseURL (e.g. http://host:5001/api).
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the backend API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CheckHealth reports whether GET /health answers 200.
func (c *Client) CheckHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Upload validates f and sends it as multipart field "file" in a single POST /upload.
// Validation failures return *ValidationError without any request.
func (c *Client) Upload(ctx context.Context, f File) (UploadResponse, error) {
	if err := Validate(f); err != nil {
		return UploadResponse{}, err
	}
	body, err := f.Open()
	if err != nil {
		return UploadResponse{}, fmt.Errorf("%w: open %s: %v", ErrUploadFailed, f.Name, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer body.Close()
		part, err := mw.CreateFormFile("file", f.Name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, body); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		pr.Close()
		return UploadResponse{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.Close()
		return UploadResponse{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return UploadResponse{}, fmt.Errorf("%w: %s", ErrUploadFailed, httpError(resp))
	}
	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return UploadResponse{}, fmt.Errorf("%w: decode response: %v", ErrUploadFailed, err)
	}
	if out.Filename == "" {
		out.Filename = f.Name
	}
	return out, nil
}

// PollStatus issues a single GET /status. Any backend status other than
// "completed" or "error" (e.g. "processing", "idle") is reported as pending.
func (c *Client) PollStatus(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrPollFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrPollFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("%w: %s", ErrPollFailed, httpError(resp))
	}

	var raw struct {
		Status      string   `json:"status"`
		Progress    *float64 `json:"progress"`
		CurrentStep *string  `json:"current_step"`
		Error       *string  `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Status{}, fmt.Errorf("%w: decode: %v", ErrPollFailed, err)
	}

	st := Status{State: normalizeState(raw.Status)}
	if raw.Progress != nil {
		st.Progress = clampProgress(*raw.Progress)
	}
	if raw.CurrentStep != nil {
		st.CurrentStep = *raw.CurrentStep
	}
	if raw.Error != nil {
		st.Error = *raw.Error
	}
	return st, nil
}

// FetchResults issues a single GET /results. Anything but 200 with a decodable
// body (including the backend's 202 "not yet completed") is ErrResultsUnavailable.
func (c *Client) FetchResults(ctx context.Context) (*domain.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/results", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResultsUnavailable, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResultsUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrResultsUnavailable, httpError(resp))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrResultsUnavailable, err)
	}
	result, err := domain.ParseResult(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResultsUnavailable, err)
	}
	return result, nil
}

// DownloadReport issues a single GET /results/download and returns the PDF
// named skyrocket-analysis-<unix-millis>.pdf.
func (c *Client) DownloadReport(ctx context.Context) (Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/results/download", nil)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Report{}, fmt.Errorf("%w: %s", ErrDownloadFailed, httpError(resp))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Report{}, fmt.Errorf("%w: read body: %v", ErrDownloadFailed, err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/pdf"
	}
	return Report{
		Filename:    ReportFilename(c.now()),
		ContentType: ct,
		Data:        data,
	}, nil
}

// ReportFilename names a report downloaded at t.
func ReportFilename(t time.Time) string {
	return fmt.Sprintf("skyrocket-analysis-%d.pdf", t.UnixMilli())
}

func normalizeState(s string) JobState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed":
		return StateCompleted
	case "error":
		return StateError
	default:
		return StatePending
	}
}

func clampProgress(p float64) int {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(math.Round(p))
}

// httpError formats a non-2xx response, preferring the backend's "detail" message.
func httpError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Detail != "" {
			return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body.Detail)
		}
		if body.Message != "" {
			return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body.Message)
		}
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, text)
}
