package app

import (
	"sync"
	"time"
)

// PollHandle is a repeating timer. Cancel is idempotent; after it returns no
// new tick starts.
type PollHandle interface {
	Cancel()
}

// Scheduler starts repeating timers.
type Scheduler interface {
	Every(d time.Duration, fn func()) PollHandle
}

// TickerScheduler runs fn on a dedicated goroutine driven by time.Ticker.
// Ticks are sequential: a slow fn makes the ticker drop ticks rather than overlap.
type TickerScheduler struct{}

func (TickerScheduler) Every(d time.Duration, fn func()) PollHandle {
	h := &tickerHandle{stop: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				select {
				case <-h.stop:
					return
				default:
				}
				fn()
			}
		}
	}()
	return h
}

type tickerHandle struct {
	once sync.Once
	stop chan struct{}
}

func (h *tickerHandle) Cancel() {
	h.once.Do(func() { close(h.stop) })
}
