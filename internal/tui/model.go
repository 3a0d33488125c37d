// Package tui is the interactive terminal dashboard for an analysis session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jaakkos/skydash/internal/app"
	"github.com/jaakkos/skydash/internal/domain"
	"github.com/jaakkos/skydash/internal/jobclient"
	"github.com/jaakkos/skydash/internal/render"
)

const (
	toastTTL  = 5 * time.Second
	maxToasts = 3
)

// Session is the part of *app.Session the dashboard drives.
type Session interface {
	Snapshot() domain.SessionSnapshot
	Result() *domain.Result
	StartUpload(f jobclient.File) error
	Reset()
	CheckHealth(ctx context.Context) bool
	DownloadReport(ctx context.Context) (jobclient.Report, error)
}

type toast struct {
	id    int
	level string
	text  string
}

// Local command results.
type (
	toastExpiredMsg struct{ id int }
	reportSavedMsg  struct {
		path string
		err  error
	}
	commandErrMsg struct {
		level string
		text  string
	}
)

// Model is the root Bubble Tea model.
type Model struct {
	session   Session
	reportDir string
	keys      KeyMap

	width  int
	height int
	ready  bool

	snap   domain.SessionSnapshot
	result *domain.Result

	input    textinput.Model
	spinner  spinner.Model
	progress progress.Model
	viewport viewport.Model

	toasts    []toast
	nextToast int

	initialFile string
}

// Option configures a Model.
type Option func(*Model)

// WithReportDir sets where the d key saves the PDF report.
func WithReportDir(dir string) Option {
	return func(m *Model) { m.reportDir = dir }
}

// WithInitialFile uploads path as soon as the program starts.
func WithInitialFile(path string) Option {
	return func(m *Model) { m.initialFile = path }
}

// New creates the dashboard model for session.
func New(session Session, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "path/to/queries.xlsx"
	ti.Prompt = "File: "
	ti.PromptStyle = InputPromptStyle
	ti.CharLimit = 0
	ti.Width = 60
	ti.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(render.ColorSky)

	m := Model{
		session:   session,
		reportDir: ".",
		keys:      DefaultKeyMap(),
		snap:      session.Snapshot(),
		result:    session.Result(),
		input:     ti,
		spinner:   sp,
		progress: progress.New(
			progress.WithGradient(string(render.ColorSky), string(render.ColorViolet)),
			progress.WithWidth(50),
		),
		viewport: viewport.New(80, 20),
	}
	for _, o := range opts {
		o(&m)
	}
	if m.result != nil {
		m.viewport.SetContent(render.Dashboard(m.result))
	}
	return m
}

// Init starts the spinner and the backend health check, and uploads the
// initial file if one was given.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		m.spinner.Tick,
		m.healthCmd(),
	}
	if m.initialFile != "" {
		cmds = append(cmds, m.uploadCmd(m.initialFile))
	}
	return tea.Batch(cmds...)
}

func (m Model) uploadCmd(path string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		f, err := jobclient.OpenFile(path)
		if err != nil {
			return commandErrMsg{level: "error", text: err.Error()}
		}
		err = session.StartUpload(f)
		switch {
		case errors.Is(err, app.ErrSessionBusy):
			return commandErrMsg{level: "warning", text: "Analysis already in progress"}
		case jobclient.IsValidation(err):
			// reported through the observer
			return nil
		case err != nil:
			return commandErrMsg{level: "error", text: err.Error()}
		}
		return nil
	}
}

func (m Model) resetCmd() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		session.Reset()
		return nil
	}
}

func (m Model) healthCmd() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		session.CheckHealth(ctx)
		return nil
	}
}

func (m Model) downloadCmd() tea.Cmd {
	session, dir := m.session, m.reportDir
	return func() tea.Msg {
		rep, err := session.DownloadReport(context.Background())
		if err != nil {
			// the session already raised "Download failed"
			return nil
		}
		path := filepath.Join(dir, rep.Filename)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return reportSavedMsg{err: err}
		}
		if err := os.WriteFile(path, rep.Data, 0o644); err != nil {
			return reportSavedMsg{err: err}
		}
		return reportSavedMsg{path: path}
	}
}

func (m *Model) addToast(level, text string) tea.Cmd {
	m.nextToast++
	id := m.nextToast
	m.toasts = append(m.toasts, toast{id: id, level: level, text: text})
	if len(m.toasts) > maxToasts {
		m.toasts = m.toasts[len(m.toasts)-maxToasts:]
	}
	return tea.Tick(toastTTL, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

func (m *Model) refresh() {
	m.snap = m.session.Snapshot()
}

// inputActive reports whether keystrokes go to the file path input.
func (m Model) inputActive() bool {
	return m.snap.Phase == domain.PhaseIdle || m.snap.Phase == domain.PhaseFailed
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.viewport.Width = msg.Width - 2
		m.viewport.Height = msg.Height - 6
		if m.viewport.Height < 1 {
			m.viewport.Height = 1
		}
		m.progress.Width = min(60, msg.Width-10)
		m.input.Width = msg.Width - 12

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Interrupt) {
			return m, tea.Quit
		}
		if m.inputActive() {
			switch {
			case key.Matches(msg, m.keys.Submit):
				path := strings.TrimSpace(m.input.Value())
				if path == "" {
					return m, nil
				}
				m.input.SetValue("")
				return m, m.uploadCmd(path)
			case msg.Type == tea.KeyEsc:
				return m, tea.Quit
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reset):
			return m, m.resetCmd()
		case key.Matches(msg, m.keys.Health):
			return m, m.healthCmd()
		case key.Matches(msg, m.keys.Download):
			if m.snap.Phase == domain.PhaseCompleted {
				return m, m.downloadCmd()
			}
			return m, nil
		}
		if m.snap.Phase == domain.PhaseCompleted {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case uploadStartMsg:
		m.refresh()
		m.result = nil
		m.input.Blur()

	case progressMsg:
		m.refresh()
		m.snap.Progress = msg.percent
		m.snap.CurrentStep = msg.step

	case completedMsg:
		m.refresh()
		m.result = msg.result
		m.viewport.SetContent(render.Dashboard(msg.result))
		m.viewport.GotoTop()

	case failedMsg:
		m.refresh()
		m.input.Focus()

	case resetMsg:
		m.refresh()
		m.result = nil
		m.viewport.SetContent("")
		m.input.Focus()

	case validationMsg:
		cmds = append(cmds, m.addToast("error", msg.reason))

	case noticeMsg:
		cmds = append(cmds, m.addToast(string(msg.notice.Level), msg.notice.Message))

	case commandErrMsg:
		cmds = append(cmds, m.addToast(msg.level, msg.text))

	case reportSavedMsg:
		if msg.err != nil {
			cmds = append(cmds, m.addToast("error", "Save failed: "+msg.err.Error()))
		} else {
			cmds = append(cmds, m.addToast("info", "Saved "+msg.path))
		}

	case toastExpiredMsg:
		for i, t := range m.toasts {
			if t.id == msg.id {
				m.toasts = append(m.toasts[:i], m.toasts[i+1:]...)
				break
			}
		}
	}

	return m, tea.Batch(cmds...)
}

// View renders the dashboard
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("Skydash"))
	b.WriteString(PhaseStyle.Render(string(m.snap.Phase)))
	b.WriteString("\n\n")

	switch m.snap.Phase {
	case domain.PhaseUploading, domain.PhasePolling:
		b.WriteString(m.viewRunning())
	case domain.PhaseCompleted:
		b.WriteString(m.viewport.View())
	case domain.PhaseFailed:
		b.WriteString(PanelStyle.Render(
			ErrorStyle.Render("Analysis failed") + "\n" + m.snap.Error + "\n\n" + m.input.View()))
	default:
		b.WriteString(PanelStyle.Render(
			"Upload a customer query export (.xlsx or .csv, max 50MB)\n\n" + m.input.View()))
	}
	b.WriteString("\n")

	if len(m.toasts) > 0 {
		var ts []string
		for _, t := range m.toasts {
			ts = append(ts, toastStyle(t.level).Render(render.LevelIcon(t.level)+" "+t.text))
		}
		b.WriteString(lipgloss.JoinVertical(lipgloss.Left, ts...))
		b.WriteString("\n")
	}
	b.WriteString(HelpStyle.Render(m.helpLine()))
	return b.String()
}

func (m Model) viewRunning() string {
	status := "Uploading"
	if m.snap.Phase == domain.PhasePolling {
		status = "Analyzing"
	}
	step := m.snap.CurrentStep
	if step == "" {
		step = "Waiting for the backend..."
	}
	body := fmt.Sprintf("%s %s %s\n\n%s\n%s",
		m.spinner.View(), status, m.snap.Filename,
		m.progress.ViewAs(float64(m.snap.Progress)/100),
		render.MutedStyle.Render(step))
	return PanelStyle.Render(body)
}

func (m Model) helpLine() string {
	var bindings []key.Binding
	switch m.snap.Phase {
	case domain.PhaseIdle, domain.PhaseFailed:
		bindings = []key.Binding{m.keys.Submit, m.keys.Interrupt}
	case domain.PhaseCompleted:
		bindings = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Download, m.keys.Reset, m.keys.Health, m.keys.Quit}
	default:
		bindings = []key.Binding{m.keys.Reset, m.keys.Health, m.keys.Quit}
	}
	var parts []string
	for _, k := range bindings {
		h := k.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}
