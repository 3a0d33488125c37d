package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaakkos/skydash/internal/domain"
	"github.com/jaakkos/skydash/internal/jobclient"
)

const defaultPollInterval = 2 * time.Second

var (
	// ErrSessionBusy is returned by StartUpload while a run is uploading or polling.
	ErrSessionBusy = errors.New("analysis already in progress")
	// ErrNoResults is returned by DownloadReport outside the completed phase.
	ErrNoResults = errors.New("no completed analysis")
)

// Session drives one analysis at a time through
// idle -> uploading -> polling -> completed|failed, with Reset back to idle.
//
// Two locks are used. transMu serializes transitions together with the
// observer events they produce, so events are never reordered across
// goroutines. mu guards the fields and is only held for short sections;
// Snapshot takes mu alone. Neither lock is held across a backend call.
type Session struct {
	client   JobClient
	sched    Scheduler
	observer Observer
	history  HistoryRepository
	keep     int
	maxAge   int
	logger   *log.Logger
	interval time.Duration
	now      func() time.Time
	newID    func() string

	transMu sync.Mutex

	mu         sync.Mutex
	phase      domain.Phase
	runID      string
	filename   string
	progress   int
	step       string
	lastErr    error
	result     *domain.Result
	startedAt  time.Time
	finishedAt time.Time

	gen       uint64 // bumped by every new run and every reset
	poll      PollHandle
	pollID    uint64
	ticking   bool
	runCtx    context.Context
	cancelRun context.CancelFunc
	done      chan struct{} // closed when the current run ends
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithObserver sets the event observer. Combine several with Observers.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithScheduler replaces the poll timer implementation (default TickerScheduler).
func WithScheduler(sc Scheduler) SessionOption {
	return func(s *Session) { s.sched = sc }
}

// WithHistory records every finished run in repo.
func WithHistory(repo HistoryRepository) SessionOption {
	return func(s *Session) { s.history = repo }
}

// WithHistoryRetention prunes history after every save, keeping at most
// maxCount records no older than maxAgeDays. Zero disables a rule.
func WithHistoryRetention(maxCount, maxAgeDays int) SessionOption {
	return func(s *Session) { s.keep, s.maxAge = maxCount, maxAgeDays }
}

// WithSessionPollInterval sets the status poll interval (default 2s).
func WithSessionPollInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *log.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession creates an idle session talking to client.
func NewSession(client JobClient, opts ...SessionOption) *Session {
	s := &Session{
		client:   client,
		sched:    TickerScheduler{},
		observer: NopObserver{},
		logger:   log.New(io.Discard, "", 0),
		interval: defaultPollInterval,
		now:      time.Now,
		newID:    uuid.NewString,
		phase:    domain.PhaseIdle,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot returns a copy of the observable session fields.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := domain.SessionSnapshot{
		RunID:       s.runID,
		Phase:       s.phase,
		Filename:    s.filename,
		Progress:    s.progress,
		CurrentStep: s.step,
		HasResult:   s.result != nil,
		StartedAt:   s.startedAt,
		FinishedAt:  s.finishedAt,
		Err:         s.lastErr,
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

// Result returns the payload of a completed run, or nil.
func (s *Session) Result() *domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// StartUpload validates f and, if the session is free, starts a run. The
// upload itself proceeds in the background; follow it through the observer,
// Snapshot or Wait.
//
// While a run is uploading or polling it returns ErrSessionBusy. A validation
// failure returns the *jobclient.ValidationError, emits OnValidationError and
// leaves the phase unchanged. Starting from completed or failed resets first.
func (s *Session) StartUpload(f jobclient.File) error {
	s.transMu.Lock()
	defer s.transMu.Unlock()

	s.mu.Lock()
	busy := s.phase.Busy()
	s.mu.Unlock()
	if busy {
		return ErrSessionBusy
	}

	if err := jobclient.Validate(f); err != nil {
		s.logger.Printf("Session: rejected %s: %v", f.Name, err)
		s.observer.OnValidationError(err)
		return err
	}

	s.mu.Lock()
	wasTerminal := s.phase.Terminal()
	if wasTerminal {
		s.resetLocked()
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.runCtx, s.cancelRun = ctx, cancel
	s.phase = domain.PhaseUploading
	s.runID = s.newID()
	s.filename = f.Name
	s.startedAt = s.now()
	s.done = make(chan struct{})
	s.mu.Unlock()

	if wasTerminal {
		s.observer.OnReset()
	}
	s.logger.Printf("Session: uploading %s (%d bytes)", f.Name, f.Size)
	s.observer.OnUploadStart(f.Name)

	go s.upload(ctx, gen, f)
	return nil
}

// Reset cancels any poll timer and in-flight request and returns to idle.
// Safe from any phase.
func (s *Session) Reset() {
	s.transMu.Lock()
	defer s.transMu.Unlock()

	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	s.observer.OnReset()
}

// Close stops timers and in-flight requests without emitting events.
func (s *Session) Close() {
	s.transMu.Lock()
	defer s.transMu.Unlock()
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

// Wait blocks until the current run ends (completed, failed or reset) or ctx
// is done. It returns immediately when no run is in flight.
func (s *Session) Wait(ctx context.Context) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	done := s.done
	busy := s.phase.Busy()
	s.mu.Unlock()
	if !busy || done == nil {
		return s.Snapshot(), nil
	}
	select {
	case <-done:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// CheckHealth probes the backend and emits a notice with the outcome.
func (s *Session) CheckHealth(ctx context.Context) bool {
	ok := s.client.CheckHealth(ctx)
	if ok {
		s.notify(NoticeSuccess, "Backend server connected")
	} else {
		s.notify(NoticeError, "Backend server not available. Please start the server.")
	}
	return ok
}

// DownloadReport fetches the PDF report of a completed run. It never changes
// the phase.
func (s *Session) DownloadReport(ctx context.Context) (jobclient.Report, error) {
	s.mu.Lock()
	phase := s.phase
	s.mu.Unlock()
	if phase != domain.PhaseCompleted {
		return jobclient.Report{}, ErrNoResults
	}

	rep, err := s.client.DownloadReport(ctx)
	if err != nil {
		if !errors.Is(err, jobclient.ErrDownloadFailed) {
			err = fmt.Errorf("%w: %v", jobclient.ErrDownloadFailed, err)
		}
		s.logger.Printf("Session: report download failed: %v", err)
		s.notify(NoticeError, "Download failed")
		return jobclient.Report{}, err
	}
	s.notify(NoticeSuccess, "Results downloaded successfully")
	return rep, nil
}

func (s *Session) upload(ctx context.Context, gen uint64, f jobclient.File) {
	resp, err := s.client.Upload(ctx, f)

	s.transMu.Lock()
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.transMu.Unlock()
		return
	}

	if err != nil {
		if !errors.Is(err, jobclient.ErrUploadFailed) {
			err = fmt.Errorf("%w: %v", jobclient.ErrUploadFailed, err)
		}
		rec := s.finishLocked(domain.PhaseFailed, err)
		s.mu.Unlock()
		s.logger.Printf("Session: %v", err)
		s.observer.OnFailed(err)
		s.observer.OnNotice(Notice{Level: NoticeError, Message: "Upload failed. Please try again."})
		s.transMu.Unlock()
		s.save(rec)
		return
	}

	s.phase = domain.PhasePolling
	if resp.Filename != "" {
		s.filename = resp.Filename
	}
	name := s.filename
	s.pollID++
	pollID := s.pollID
	s.ticking = false
	s.poll = s.sched.Every(s.interval, func() { s.tick(gen, pollID) })
	s.mu.Unlock()

	s.logger.Printf("Session: uploaded %s, polling every %s", name, s.interval)
	s.observer.OnNotice(Notice{Level: NoticeSuccess, Message: "File uploaded: " + name})
	s.transMu.Unlock()
}

func (s *Session) tick(gen, pollID uint64) {
	s.mu.Lock()
	if !s.pollActiveLocked(gen, pollID) || s.ticking {
		s.mu.Unlock()
		return
	}
	s.ticking = true
	ctx := s.runCtx
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.pollID == pollID {
			s.ticking = false
		}
		s.mu.Unlock()
	}()

	st, err := s.client.PollStatus(ctx)
	if err != nil {
		s.logger.Printf("Session: status poll failed, will retry: %v", err)
		return
	}

	s.transMu.Lock()
	s.mu.Lock()
	if !s.pollActiveLocked(gen, pollID) {
		s.mu.Unlock()
		s.transMu.Unlock()
		return
	}

	switch st.State {
	case jobclient.StateCompleted:
		s.cancelPollLocked()
		s.progress = 100
		if st.CurrentStep != "" {
			s.step = st.CurrentStep
		}
		step := s.step
		s.mu.Unlock()
		s.observer.OnProgress(100, step)
		s.transMu.Unlock()
		s.fetchResults(ctx, gen)

	case jobclient.StateError:
		s.cancelPollLocked()
		perr := &jobclient.PollError{Message: st.Error}
		rec := s.finishLocked(domain.PhaseFailed, perr)
		s.mu.Unlock()
		s.logger.Printf("Session: backend reported failure: %s", st.Error)
		s.observer.OnFailed(perr)
		s.observer.OnNotice(Notice{Level: NoticeError, Message: "Analysis failed: " + st.Error})
		s.transMu.Unlock()
		s.save(rec)

	default:
		s.progress = st.Progress
		s.step = st.CurrentStep
		s.mu.Unlock()
		s.observer.OnProgress(st.Progress, st.CurrentStep)
		s.transMu.Unlock()
	}
}

func (s *Session) fetchResults(ctx context.Context, gen uint64) {
	result, err := s.client.FetchResults(ctx)

	s.transMu.Lock()
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.transMu.Unlock()
		return
	}

	if err != nil {
		if !errors.Is(err, jobclient.ErrResultsUnavailable) {
			err = fmt.Errorf("%w: %v", jobclient.ErrResultsUnavailable, err)
		}
		rec := s.finishLocked(domain.PhaseFailed, err)
		s.mu.Unlock()
		s.logger.Printf("Session: %v", err)
		s.observer.OnFailed(err)
		s.observer.OnNotice(Notice{Level: NoticeError, Message: "Failed to load results"})
		s.transMu.Unlock()
		s.save(rec)
		return
	}

	s.result = result
	rec := s.finishLocked(domain.PhaseCompleted, nil)
	s.mu.Unlock()
	s.logger.Printf("Session: analysis of %s completed", rec.Filename)
	s.observer.OnCompleted(result)
	s.observer.OnNotice(Notice{Level: NoticeSuccess, Message: "Analysis complete! Dashboard loaded."})
	s.transMu.Unlock()
	s.save(rec)
}

func (s *Session) pollActiveLocked(gen, pollID uint64) bool {
	return s.gen == gen && s.pollID == pollID && s.poll != nil
}

func (s *Session) cancelPollLocked() {
	if s.poll != nil {
		s.poll.Cancel()
		s.poll = nil
	}
}

// finishLocked moves the run to a terminal phase and returns the history
// record describing it.
func (s *Session) finishLocked(phase domain.Phase, err error) *domain.AnalysisRecord {
	s.cancelPollLocked()
	s.phase = phase
	s.lastErr = err
	s.finishedAt = s.now()
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	if s.done != nil {
		close(s.done)
		s.done = nil
	}

	rec := &domain.AnalysisRecord{
		ID:         s.runID,
		Filename:   s.filename,
		Phase:      phase,
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if s.result != nil {
		rec.Result = s.result.Raw
	}
	return rec
}

func (s *Session) resetLocked() {
	s.cancelPollLocked()
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.gen++
	s.phase = domain.PhaseIdle
	s.runID = ""
	s.filename = ""
	s.progress = 0
	s.step = ""
	s.lastErr = nil
	s.result = nil
	s.startedAt = time.Time{}
	s.finishedAt = time.Time{}
	s.runCtx = nil
}

func (s *Session) notify(level NoticeLevel, msg string) {
	s.transMu.Lock()
	defer s.transMu.Unlock()
	s.observer.OnNotice(Notice{Level: level, Message: msg})
}

func (s *Session) save(rec *domain.AnalysisRecord) {
	if s.history == nil || rec == nil {
		return
	}
	if err := s.history.SaveAnalysis(rec); err != nil {
		s.logger.Printf("Session: save history for %s failed: %v", rec.ID, err)
		return
	}
	PruneHistory(s.history, s.keep, s.maxAge, s.logger)
}
