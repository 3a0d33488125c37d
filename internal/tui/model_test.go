package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jaakkos/skydash/internal/app"
	"github.com/jaakkos/skydash/internal/domain"
	"github.com/jaakkos/skydash/internal/jobclient"
)

const resultJSON = `{"data_summary":{"total_queries":1200},"topics":{"n_topics":1,"topics":[` +
	`{"rank":1,"topic_name":"Order Status","description":"d","count":1200,"percentage":100,"representative_queries":[]}]},` +
	`"evaluation":null,"entities":null}`

type fakeSession struct {
	mu        sync.Mutex
	snap      domain.SessionSnapshot
	result    *domain.Result
	uploadErr error
	uploads   []string
	resets    int
	health    int
	report    jobclient.Report
	reportErr error
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
	f.uploads = append(f.uploads, file.Name)
	return nil
}

func (f *fakeSession) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func (f *fakeSession) CheckHealth(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.health++
	return true
}

func (f *fakeSession) DownloadReport(ctx context.Context) (jobclient.Report, error) {
	return f.report, f.reportErr
}

func (f *fakeSession) setPhase(p domain.Phase) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.Phase = p
}

type recordingSender struct {
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) { r.msgs = append(r.msgs, msg) }

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func sampleResult(t *testing.T) *domain.Result {
	t.Helper()
	r, err := domain.ParseResult([]byte(resultJSON))
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestObserver_ForwardsEvents(t *testing.T) {
	o := NewObserver()
	o.OnUploadStart("dropped.csv")

	var rec recordingSender
	o.Attach(&rec)
	o.OnUploadStart("q.csv")
	o.OnProgress(55, "Discovering topics...")
	o.OnValidationError(&jobclient.ValidationError{Filename: "a.pdf", Reason: "Invalid file type. Please upload .xlsx or .csv file"})
	o.OnNotice(app.Notice{Level: app.NoticeSuccess, Message: "File uploaded: q.csv"})
	o.OnFailed(errors.New("bad format"))
	o.OnReset()

	if len(rec.msgs) != 6 {
		t.Fatalf("got %d messages, want 6 (events before Attach are dropped)", len(rec.msgs))
	}
	if m, ok := rec.msgs[0].(uploadStartMsg); !ok || m.filename != "q.csv" {
		t.Errorf("msg[0] = %#v", rec.msgs[0])
	}
	if m, ok := rec.msgs[1].(progressMsg); !ok || m.percent != 55 || m.step != "Discovering topics..." {
		t.Errorf("msg[1] = %#v", rec.msgs[1])
	}
	if m, ok := rec.msgs[2].(validationMsg); !ok || m.reason != "Invalid file type. Please upload .xlsx or .csv file" {
		t.Errorf("msg[2] = %#v", rec.msgs[2])
	}
	if _, ok := rec.msgs[5].(resetMsg); !ok {
		t.Errorf("msg[5] = %#v", rec.msgs[5])
	}
}

func TestModel_IdleView(t *testing.T) {
	m := New(&fakeSession{snap: domain.SessionSnapshot{Phase: domain.PhaseIdle}})
	view := m.View()
	if !strings.Contains(view, "Upload a customer query export") {
		t.Errorf("idle view:\n%s", view)
	}
	if !strings.Contains(view, "enter upload") {
		t.Errorf("help line missing from idle view:\n%s", view)
	}
}

func TestModel_SubmitUploadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.csv")
	if err := os.WriteFile(path, []byte("q\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sess := &fakeSession{snap: domain.SessionSnapshot{Phase: domain.PhaseIdle}}
	m := New(sess)
	m.input.SetValue(path)

	m, cmd := update(t, m, keyMsg("enter"))
	if cmd == nil {
		t.Fatal("expected an upload command")
	}
	if msg := cmd(); msg != nil {
		t.Errorf("upload returned %#v", msg)
	}
	if len(sess.uploads) != 1 || sess.uploads[0] != "queries.csv" {
		t.Errorf("uploads = %v", sess.uploads)
	}
	if m.input.Value() != "" {
		t.Error("input should be cleared after submit")
	}
}

func TestModel_UploadCmdErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.csv")
	os.WriteFile(path, []byte("q\n"), 0o644)

	tests := []struct {
		name      string
		path      string
		uploadErr error
		wantLevel string
	}{
		{"busy", path, app.ErrSessionBusy, "warning"},
		{"missing file", filepath.Join(t.TempDir(), "nope.csv"), nil, "error"},
		{"validation", path, &jobclient.ValidationError{Filename: "x", Reason: "r"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(&fakeSession{uploadErr: tt.uploadErr})
			msg := m.uploadCmd(tt.path)()
			if tt.wantLevel == "" {
				if msg != nil {
					t.Errorf("msg = %#v, want nil", msg)
				}
				return
			}
			em, ok := msg.(commandErrMsg)
			if !ok || em.level != tt.wantLevel {
				t.Errorf("msg = %#v, want level %q", msg, tt.wantLevel)
			}
		})
	}
}

func TestModel_ProgressView(t *testing.T) {
	sess := &fakeSession{snap: domain.SessionSnapshot{Phase: domain.PhasePolling, Filename: "q.xlsx"}}
	m := New(sess)
	m, _ = update(t, m, progressMsg{percent: 55, step: "Discovering topics..."})

	view := m.View()
	for _, want := range []string{"Analyzing", "q.xlsx", "55%", "Discovering topics..."} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_CompletedShowsDashboard(t *testing.T) {
	sess := &fakeSession{snap: domain.SessionSnapshot{Phase: domain.PhasePolling}}
	m := New(sess)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 140, Height: 80})

	res := sampleResult(t)
	sess.setPhase(domain.PhaseCompleted)
	m, _ = update(t, m, completedMsg{result: res})

	if m.result != res {
		t.Error("model should keep the completed result")
	}
	view := m.View()
	for _, want := range []string{"Customer Query Analytics", "1,200", "Order Status"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_Toasts(t *testing.T) {
	m := New(&fakeSession{})
	m, cmd := update(t, m, noticeMsg{app.Notice{Level: app.NoticeSuccess, Message: "Backend server connected"}})
	if cmd == nil {
		t.Fatal("expected an expiry tick")
	}
	if !strings.Contains(m.View(), "Backend server connected") {
		t.Error("toast not shown")
	}

	for i := 0; i < maxToasts+1; i++ {
		m, _ = update(t, m, validationMsg{reason: "File too large. Maximum size is 50MB"})
	}
	if len(m.toasts) != maxToasts {
		t.Errorf("toasts = %d, want %d", len(m.toasts), maxToasts)
	}

	last := m.toasts[len(m.toasts)-1].id
	m, _ = update(t, m, toastExpiredMsg{id: last})
	for _, ts := range m.toasts {
		if ts.id == last {
			t.Error("expired toast still shown")
		}
	}
	if len(m.toasts) != maxToasts-1 {
		t.Errorf("toasts = %d, want %d", len(m.toasts), maxToasts-1)
	}
}

func TestModel_Keys(t *testing.T) {
	tests := []struct {
		name      string
		phase     domain.Phase
		key       string
		typed     bool
		wantQuit  bool
		wantReset bool
		wantCmd   bool
	}{
		{name: "q quits when completed", phase: domain.PhaseCompleted, key: "q", wantQuit: true, wantCmd: true},
		{name: "ctrl+c always quits", phase: domain.PhaseIdle, key: "ctrl+c", wantQuit: true, wantCmd: true},
		{name: "q is typed while idle", phase: domain.PhaseIdle, key: "q", typed: true},
		{name: "r resets when completed", phase: domain.PhaseCompleted, key: "r", wantReset: true, wantCmd: true},
		{name: "r resets while polling", phase: domain.PhasePolling, key: "r", wantReset: true, wantCmd: true},
		{name: "d ignored while polling", phase: domain.PhasePolling, key: "d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeSession{snap: domain.SessionSnapshot{Phase: tt.phase}}
			m, cmd := update(t, New(sess), keyMsg(tt.key))
			if tt.typed {
				if m.input.Value() != tt.key {
					t.Errorf("input = %q, want %q", m.input.Value(), tt.key)
				}
				return
			}
			if !tt.wantCmd {
				if cmd != nil {
					t.Errorf("unexpected command")
				}
				return
			}
			if cmd == nil {
				t.Fatal("expected a command")
			}
			msg := cmd()
			if _, ok := msg.(tea.QuitMsg); ok != tt.wantQuit {
				t.Errorf("quit = %v, want %v", ok, tt.wantQuit)
			}
			if (sess.resets == 1) != tt.wantReset {
				t.Errorf("resets = %d, wantReset %v", sess.resets, tt.wantReset)
			}
		})
	}
}

func TestModel_DownloadSavesReport(t *testing.T) {
	dir := t.TempDir()
	sess := &fakeSession{
		snap:   domain.SessionSnapshot{Phase: domain.PhaseCompleted},
		report: jobclient.Report{Filename: "skyrocket-analysis-1.pdf", Data: []byte("%PDF")},
	}
	m := New(sess, WithReportDir(dir))

	m, cmd := update(t, m, keyMsg("d"))
	if cmd == nil {
		t.Fatal("expected a download command")
	}
	saved, ok := cmd().(reportSavedMsg)
	if !ok || saved.err != nil {
		t.Fatalf("msg = %#v", saved)
	}
	if saved.path != filepath.Join(dir, "skyrocket-analysis-1.pdf") {
		t.Errorf("path = %q", saved.path)
	}
	if data, err := os.ReadFile(saved.path); err != nil || string(data) != "%PDF" {
		t.Errorf("saved = %q, %v", data, err)
	}

	m, _ = update(t, m, saved)
	if !strings.Contains(m.View(), "Saved "+saved.path) {
		t.Error("save toast not shown")
	}

	sess.reportErr = jobclient.ErrDownloadFailed
	if msg := m.downloadCmd()(); msg != nil {
		t.Errorf("failed download should be reported by the session, got %#v", msg)
	}
}

func TestModel_ResetReturnsToInput(t *testing.T) {
	sess := &fakeSession{snap: domain.SessionSnapshot{Phase: domain.PhaseCompleted}, result: sampleResult(t)}
	m := New(sess)
	if m.result == nil {
		t.Fatal("existing result should be loaded")
	}
	sess.setPhase(domain.PhaseIdle)
	m, _ = update(t, m, resetMsg{})
	if m.result != nil {
		t.Error("result should be cleared")
	}
	if !m.input.Focused() {
		t.Error("input should be focused after reset")
	}
}
