// Package dashboard provides a web dashboard and JSON API for driving and
// watching an analysis session in real time.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jaakkos/skydash/internal/app"
	"github.com/jaakkos/skydash/internal/domain"
	"github.com/jaakkos/skydash/internal/jobclient"
	"github.com/jaakkos/skydash/internal/render"
)

// multipart overhead allowed on top of the file size limit
const uploadSlack = 1 << 20

const defaultHistoryLimit = 20

// SessionController is the part of *app.Session the dashboard drives.
type SessionController interface {
	Snapshot() domain.SessionSnapshot
	Result() *domain.Result
	StartUpload(f jobclient.File) error
	Reset()
	DownloadReport(ctx context.Context) (jobclient.Report, error)
}

// SessionView is the JSON response from /api/session.
type SessionView struct {
	Timestamp string `json:"timestamp"`
	domain.SessionSnapshot
	Started string         `json:"started,omitempty"`
	Elapsed string         `json:"elapsed,omitempty"`
	Summary *ResultSummary `json:"summary,omitempty"`
}

// ResultSummary is the rendered view of a completed result.
type ResultSummary struct {
	KPIs     []render.KPI     `json:"kpis"`
	Topics   []domain.Topic   `json:"topics"`
	Entities []EntityView     `json:"entities,omitempty"`
	Metrics  []render.Metric  `json:"metrics,omitempty"`
	Insights []render.Insight `json:"insights,omitempty"`
	Charts   []string         `json:"charts,omitempty"`
}

// EntityView is one row of the top entities list.
type EntityView struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// HistoryEntry is a per-run summary in /api/history.
type HistoryEntry struct {
	ID         string       `json:"id"`
	Filename   string       `json:"filename"`
	Phase      domain.Phase `json:"phase"`
	Error      string       `json:"error,omitempty"`
	FinishedAt string       `json:"finished_at"`
	Age        string       `json:"age"`
	Duration   string       `json:"duration"`
}

// Handler holds dependencies for dashboard HTTP handlers.
type Handler struct {
	session SessionController
	history app.HistoryRepository // optional
	now     func() time.Time
}

// HandlerOption configures optional dependencies for the dashboard handler.
type HandlerOption func(*Handler)

// WithHistory enables /api/history.
func WithHistory(repo app.HistoryRepository) HandlerOption {
	return func(h *Handler) { h.history = repo }
}

// NewHandler creates a dashboard handler.
func NewHandler(session SessionController, opts ...HandlerOption) *Handler {
	h := &Handler{session: session, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes adds dashboard routes to the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/session", h.handleAPISession)
	mux.HandleFunc("/api/upload", h.handleAPIUpload)
	mux.HandleFunc("/api/reset", h.handleAPIReset)
	mux.HandleFunc("/api/results", h.handleAPIResults)
	mux.HandleFunc("/api/report", h.handleAPIReport)
	mux.HandleFunc("/api/history", h.handleAPIHistory)
	mux.HandleFunc("/api/history/", h.handleAPIHistoryItem)
	mux.HandleFunc("/api/charts/", h.handleAPIChart)
	mux.HandleFunc("/dashboard", h.handleDashboard)
	mux.HandleFunc("/dashboard/", h.handleDashboard)
}

func (h *Handler) handleAPISession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache")

	now := h.now()
	snap := h.session.Snapshot()
	view := SessionView{
		Timestamp:       now.Format(time.RFC3339),
		SessionSnapshot: snap,
	}
	if !snap.StartedAt.IsZero() {
		view.Started = humanize.RelTime(snap.StartedAt, now, "ago", "from now")
		end := snap.FinishedAt
		if end.IsZero() {
			end = now
		}
		view.Elapsed = end.Sub(snap.StartedAt).Round(time.Second).String()
	}
	if snap.Phase == domain.PhaseCompleted {
		view.Summary = summarize(h.session.Result())
	}
	writeJSON(w, http.StatusOK, view)
}

func summarize(res *domain.Result) *ResultSummary {
	if res == nil {
		return nil
	}
	sum := &ResultSummary{
		KPIs:     render.KPIs(res),
		Topics:   res.Topics.Topics,
		Metrics:  render.QualityMetrics(res.Evaluation),
		Insights: render.Insights(res),
	}
	if sum.Topics == nil {
		sum.Topics = []domain.Topic{}
	}
	for _, e := range res.TopEntities(10) {
		sum.Entities = append(sum.Entities, EntityView{
			Type:  e.Type,
			Label: render.FormatEntityType(e.Type),
			Count: e.Count,
		})
	}
	if len(res.TopTopics(10)) > 0 {
		sum.Charts = append(sum.Charts, "/api/charts/"+render.TopicsChartFile)
	}
	if res.Evaluation != nil {
		sum.Charts = append(sum.Charts, "/api/charts/"+render.QualityChartFile)
	}
	return sum
}

func (h *Handler) handleAPIUpload(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, jobclient.MaxFileSize+uploadSlack)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusBadRequest, "File too large. Maximum size is 50MB")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	err = h.session.StartUpload(jobclient.BytesFile(header.Filename, data))
	var ve *jobclient.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Reason)
		return
	case errors.Is(err, app.ErrSessionBusy):
		writeError(w, http.StatusConflict, "analysis already in progress")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	snap := h.session.Snapshot()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "accepted",
		"filename": header.Filename,
		"run_id":   snap.RunID,
	})
}

func (h *Handler) handleAPIReset(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r, http.MethodPost) {
		return
	}
	h.session.Reset()
	w.Write([]byte(`{"status":"ok","message":"Session has been reset"}`))
}

func (h *Handler) handleAPIResults(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	res := h.session.Result()
	if res == nil {
		writeError(w, http.StatusNotFound, "no results available")
		return
	}
	if len(res.Raw) > 0 {
		w.Write(res.Raw)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleAPIReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	rep, err := h.session.DownloadReport(r.Context())
	if errors.Is(err, app.ErrNoResults) {
		w.Header().Set("Content-Type", "application/json")
		writeError(w, http.StatusNotFound, "no results available")
		return
	}
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeError(w, http.StatusBadGateway, "Download failed")
		return
	}

	ct := rep.ContentType
	if ct == "" {
		ct = "application/pdf"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="`+rep.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(rep.Data)))
	w.Write(rep.Data)
}

func (h *Handler) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache")

	if h.history == nil {
		writeError(w, http.StatusNotFound, "history is not enabled")
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	recs, err := h.history.ListAnalyses(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	now := h.now()
	entries := make([]HistoryEntry, 0, len(recs))
	for i := range recs {
		rec := &recs[i]
		entries = append(entries, HistoryEntry{
			ID:         rec.ID,
			Filename:   rec.Filename,
			Phase:      rec.Phase,
			Error:      rec.Error,
			FinishedAt: rec.FinishedAt.Format(time.RFC3339),
			Age:        humanize.RelTime(rec.FinishedAt, now, "ago", "from now"),
			Duration:   rec.Duration().Round(time.Millisecond).String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": entries})
}

// handleAPIHistoryItem serves /api/history/{id}: the stored record plus its
// raw result.
func (h *Handler) handleAPIHistoryItem(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if h.history == nil {
		writeError(w, http.StatusNotFound, "history is not enabled")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/history/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	rec, err := h.history.GetAnalysis(id)
	if errors.Is(err, domain.ErrAnalysisNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{"analysis": rec}
	if len(rec.Result) > 0 {
		resp["result"] = json.RawMessage(rec.Result)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAPIChart(w http.ResponseWriter, r *http.Request) {
	res := h.session.Result()
	if res == nil {
		http.NotFound(w, r)
		return
	}
	var (
		data []byte
		err  error
	)
	switch strings.TrimPrefix(r.URL.Path, "/api/charts/") {
	case render.TopicsChartFile:
		data, err = render.TopicsChartPNG(res)
	case render.QualityChartFile:
		data, err = render.QualityChartPNG(res)
	default:
		http.NotFound(w, r)
		return
	}
	if errors.Is(err, render.ErrNoChartData) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

// preflight sets the JSON and CORS headers for a mutating endpoint. It
// answers OPTIONS and wrong methods itself and reports whether it did.
func preflight(w http.ResponseWriter, r *http.Request, method string) bool {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", method+", OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"error":"` + method + ` required"}`))
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
