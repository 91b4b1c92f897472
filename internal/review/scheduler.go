package review

import (
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const DefaultRefreshInterval = 30 * time.Second

// Scheduler re-runs the queue fetch on a fixed interval while the view is
// visible. It owns at most one ticker; Start and Stop are idempotent and
// each cancels whatever the other left running.
type Scheduler struct {
	mu       sync.Mutex
	clock    clock.Clock
	interval time.Duration
	visible  func() bool
	refresh  func()

	ticker *clock.Ticker
	done   chan struct{}
	closed bool
}

// NewScheduler creates a stopped scheduler. refresh is called from the
// scheduler's goroutine on every tick for which visible reports true.
func NewScheduler(clk clock.Clock, interval time.Duration, visible func() bool, refresh func()) *Scheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Scheduler{
		clock:    clk,
		interval: interval,
		visible:  visible,
		refresh:  refresh,
	}
}

// Start cancels any running ticker and arms a new one. It does nothing
// once the scheduler is closed.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopLocked()

	ticker := s.clock.Ticker(s.interval)
	done := make(chan struct{})
	s.ticker = ticker
	s.done = done
	go s.run(ticker, done)
}

// Stop cancels the running ticker, if any.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Close stops the scheduler for good.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopLocked()
}

func (s *Scheduler) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Running reports whether a ticker is armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker != nil
}

// HandleVisibility is the visibility observer: becoming visible refreshes
// immediately and restarts the interval, becoming hidden stops it.
func (s *Scheduler) HandleVisibility(visible bool) {
	if !visible {
		log.Println("[Scheduler] View hidden, pausing refresh")
		s.Stop()
		return
	}
	if s.isClosed() {
		return
	}
	log.Println("[Scheduler] View visible, refreshing and resuming")
	s.refresh()
	s.Start()
}

func (s *Scheduler) stopLocked() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.done)
	s.ticker = nil
	s.done = nil
}

func (s *Scheduler) run(ticker *clock.Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			select {
			case <-done:
				return
			default:
			}
			if s.visible() {
				s.refresh()
			}
		}
	}
}
