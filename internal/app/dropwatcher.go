package app

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jaakkos/skydash/internal/jobclient"
)

const (
	defaultDropDebounce = 500 * time.Millisecond
	defaultDropPoll     = 30 * time.Second
)

// Uploader starts an analysis run. Implemented by *Session.
type Uploader interface {
	StartUpload(f jobclient.File) error
}

// DropWatcher submits files that appear in a directory. Each file is
// debounced so that a copy in progress is submitted once, after the writes
// settle. Hidden files and directories are ignored. Rejected files (busy
// session or failed validation) are logged and left in place.
type DropWatcher struct {
	dir          string
	uploader     Uploader
	logger       *log.Logger
	debounce     time.Duration
	pollInterval time.Duration

	mu        sync.Mutex
	timers    map[string]*time.Timer
	submitted map[string]time.Time // path -> mod time at submission
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
}

// DropWatcherOption configures a DropWatcher.
type DropWatcherOption func(*DropWatcher)

// WithDebounce sets the per-file settle delay (default 500ms).
func WithDebounce(d time.Duration) DropWatcherOption {
	return func(w *DropWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithDropPollInterval sets the rescan interval used when fsnotify is
// unavailable (default 30s).
func WithDropPollInterval(d time.Duration) DropWatcherOption {
	return func(w *DropWatcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithDropLogger sets the logger.
func WithDropLogger(l *log.Logger) DropWatcherOption {
	return func(w *DropWatcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewDropWatcher creates a watcher for dir that hands files to up.
func NewDropWatcher(dir string, up Uploader, opts ...DropWatcherOption) *DropWatcher {
	w := &DropWatcher{
		dir:          dir,
		uploader:     up,
		logger:       log.New(io.Discard, "", 0),
		debounce:     defaultDropDebounce,
		pollInterval: defaultDropPoll,
		timers:       make(map[string]*time.Timer),
		submitted:    make(map[string]time.Time),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Dir returns the watched directory.
func (w *DropWatcher) Dir() string { return w.dir }

// Start creates the directory if needed and watches it until ctx is cancelled
// or Stop is called. Files already present are not submitted. If fsnotify
// fails to initialize, it falls back to rescanning the directory.
func (w *DropWatcher) Start(ctx context.Context) error {
	defer close(w.doneCh)

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	w.markExisting()

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err = watcher.Add(w.dir); err != nil {
			_ = watcher.Close()
		}
	}
	if err != nil {
		w.logger.Printf("DropWatcher: fsnotify unavailable (%v), rescanning every %s", err, w.pollInterval)
		w.pollLoop(ctx)
		w.stopTimers()
		return nil
	}

	w.watcher = watcher
	defer watcher.Close()
	w.logger.Printf("DropWatcher: watching %s", w.dir)
	w.watchLoop(ctx)
	w.stopTimers()
	return nil
}

// Stop signals the watcher to stop and waits for Start to return.
func (w *DropWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *DropWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if hidden(event.Name) {
				continue
			}
			w.triggerDebounced(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("DropWatcher: watch error: %v", err)
		}
	}
}

func (w *DropWatcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *DropWatcher) triggerDebounced(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.submit(path)
	})
}

func (w *DropWatcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p, t := range w.timers {
		t.Stop()
		delete(w.timers, p)
	}
}

// scan submits regular files that are new or modified since the last scan.
func (w *DropWatcher) scan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Printf("DropWatcher: scan %s: %v", w.dir, err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || hidden(e.Name()) {
			continue
		}
		w.submit(filepath.Join(w.dir, e.Name()))
	}
}

func (w *DropWatcher) markExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range entries {
		if info, err := e.Info(); err == nil && info.Mode().IsRegular() {
			w.submitted[filepath.Join(w.dir, e.Name())] = info.ModTime()
		}
	}
}

func (w *DropWatcher) submit(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	w.mu.Lock()
	if last, ok := w.submitted[path]; ok && last.Equal(info.ModTime()) {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	f, err := jobclient.OpenFile(path)
	if err != nil {
		w.logger.Printf("DropWatcher: %v", err)
		return
	}
	switch err := w.uploader.StartUpload(f); {
	case err == nil:
		w.logger.Printf("DropWatcher: submitted %s", f.Name)
	case errors.Is(err, ErrSessionBusy):
		w.logger.Printf("DropWatcher: skipped %s: %v", f.Name, err)
		return
	case jobclient.IsValidation(err):
		w.logger.Printf("DropWatcher: rejected %v", err)
	default:
		w.logger.Printf("DropWatcher: submit %s failed: %v", f.Name, err)
		return
	}

	w.mu.Lock()
	w.submitted[path] = info.ModTime()
	w.mu.Unlock()
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
