package tui

import (
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jaakkos/skydash/internal/app"
	"github.com/jaakkos/skydash/internal/domain"
	"github.com/jaakkos/skydash/internal/jobclient"
)

// Session events, delivered to the model as messages.
type (
	uploadStartMsg struct{ filename string }
	progressMsg    struct {
		percent int
		step    string
	}
	completedMsg  struct{ result *domain.Result }
	failedMsg     struct{ err error }
	validationMsg struct{ reason string }
	noticeMsg     struct{ notice app.Notice }
	resetMsg      struct{}
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards session events to a running Bubble Tea program. Events
// raised before Attach are dropped.
type Observer struct {
	mu sync.Mutex
	p  Sender
}

var _ app.Observer = (*Observer)(nil)

// NewObserver returns an unattached observer.
func NewObserver() *Observer { return &Observer{} }

// Attach starts delivering events to p.
func (o *Observer) Attach(p Sender) {
	o.mu.Lock()
	o.p = p
	o.mu.Unlock()
}

func (o *Observer) send(msg tea.Msg) {
	o.mu.Lock()
	p := o.p
	o.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (o *Observer) OnUploadStart(filename string) { o.send(uploadStartMsg{filename}) }

func (o *Observer) OnProgress(percent int, step string) {
	o.send(progressMsg{percent: percent, step: step})
}

func (o *Observer) OnCompleted(result *domain.Result) { o.send(completedMsg{result}) }
func (o *Observer) OnFailed(err error)                { o.send(failedMsg{err}) }

func (o *Observer) OnValidationError(err error) {
	reason := err.Error()
	var ve *jobclient.ValidationError
	if errors.As(err, &ve) {
		reason = ve.Reason
	}
	o.send(validationMsg{reason})
}

func (o *Observer) OnNotice(n app.Notice) { o.send(noticeMsg{n}) }
func (o *Observer) OnReset()              { o.send(resetMsg{}) }
