package app

import "github.com/jaakkos/skydash/internal/domain"

// NoticeLevel classifies a user-facing notice (a toast).
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a short user-facing message emitted alongside state transitions.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Observer receives session events. Calls are serialized and made outside the
// session's state lock, so an observer may call Session.Snapshot but must not
// call StartUpload or Reset synchronously.
type Observer interface {
	OnUploadStart(filename string)
	OnProgress(percent int, step string)
	OnCompleted(result *domain.Result)
	OnFailed(err error)
	OnValidationError(err error)
	OnNotice(n Notice)
	OnReset()
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnUploadStart(string)       {}
func (NopObserver) OnProgress(int, string)     {}
func (NopObserver) OnCompleted(*domain.Result) {}
func (NopObserver) OnFailed(error)             {}
func (NopObserver) OnValidationError(error)    {}
func (NopObserver) OnNotice(Notice)            {}
func (NopObserver) OnReset()                   {}

// MultiObserver fans events out in registration order.
type MultiObserver []Observer

// Observers combines obs, skipping nils.
func Observers(obs ...Observer) Observer {
	var m MultiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return NopObserver{}
	case 1:
		return m[0]
	}
	return m
}

func (m MultiObserver) OnUploadStart(filename string) {
	for _, o := range m {
		o.OnUploadStart(filename)
	}
}

func (m MultiObserver) OnProgress(percent int, step string) {
	for _, o := range m {
		o.OnProgress(percent, step)
	}
}

func (m MultiObserver) OnCompleted(result *domain.Result) {
	for _, o := range m {
		o.OnCompleted(result)
	}
}

func (m MultiObserver) OnFailed(err error) {
	for _, o := range m {
		o.OnFailed(err)
	}
}

func (m MultiObserver) OnValidationError(err error) {
	for _, o := range m {
		o.OnValidationError(err)
	}
}

func (m MultiObserver) OnNotice(n Notice) {
	for _, o := range m {
		o.OnNotice(n)
	}
}

func (m MultiObserver) OnReset() {
	for _, o := range m {
		o.OnReset()
	}
}
