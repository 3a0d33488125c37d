package app

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jaakkos/skydash/internal/jobclient"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule re-submits one file on a cron schedule. A run that finds the
// session busy is skipped and logged.
type Schedule struct {
	expr     string
	path     string
	sched    cron.Schedule
	uploader Uploader
	logger   *log.Logger
	now      func() time.Time

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSchedule parses expr (5-field cron or a descriptor like "@daily").
func NewSchedule(expr, path string, up Uploader, logger *log.Logger) (*Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	if path == "" {
		return nil, fmt.Errorf("schedule %q has no file", expr)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Schedule{
		expr:     expr,
		path:     path,
		sched:    sched,
		uploader: up,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Next returns the next run time after now.
func (s *Schedule) Next() time.Time {
	return s.sched.Next(s.now())
}

// Start starts the schedule loop. Calling Start twice is a no-op.
func (s *Schedule) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(stop)
	s.logger.Printf("Schedule: %s every %q, next run %s", s.path, s.expr, s.Next().Format(time.RFC3339))
}

// Stop stops the loop and waits for it to exit.
func (s *Schedule) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Schedule) run(stop <-chan struct{}) {
	defer s.wg.Done()
	for {
		now := s.now()
		timer := time.NewTimer(s.sched.Next(now).Sub(now))
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
			_ = s.RunOnce()
		}
	}
}

// RunOnce submits the file immediately.
func (s *Schedule) RunOnce() error {
	f, err := jobclient.OpenFile(s.path)
	if err != nil {
		s.logger.Printf("Schedule: %v", err)
		return err
	}
	err = s.uploader.StartUpload(f)
	switch {
	case err == nil:
		s.logger.Printf("Schedule: submitted %s", f.Name)
	case errors.Is(err, ErrSessionBusy):
		s.logger.Printf("Schedule: skipped %s, analysis already in progress", f.Name)
	default:
		s.logger.Printf("Schedule: submit %s failed: %v", f.Name, err)
	}
	return err
}
