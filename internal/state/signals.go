package state

import (
	"context"
	"sync"
	"time"
)

// Signals carries the cooperative stop and pause controls of one run.
// Stop is permanent. Pause can be toggled any number of times.
type Signals struct {
	stop     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	paused bool
	resume chan struct{}

	pollInterval time.Duration
	onWait       func()
}

// NewSignals creates signals whose paused waiters re-check every pollInterval
func NewSignals(pollInterval time.Duration) *Signals {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Signals{
		stop:         make(chan struct{}),
		resume:       make(chan struct{}),
		pollInterval: pollInterval,
	}
}

// OnWait registers a callback invoked each time a paused waiter wakes without being resumed
func (s *Signals) OnWait(fn func()) {
	s.mu.Lock()
	s.onWait = fn
	s.mu.Unlock()
}

// Stop sets the stop signal. Calling it more than once is harmless.
func (s *Signals) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Stopped reports whether Stop has been called
func (s *Signals) Stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the run is stopped
func (s *Signals) Done() <-chan struct{} {
	return s.stop
}

// Pause makes subsequent checkpoints block until Resume or Stop
func (s *Signals) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.paused = true
	s.resume = make(chan struct{})
}

// Resume releases every waiter blocked in Checkpoint
func (s *Signals) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	s.paused = false
	close(s.resume)
}

// Paused reports whether the run is currently paused
func (s *Signals) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Checkpoint blocks while the run is paused. It returns false once the run is
// stopped or ctx is done, true when work may continue.
func (s *Signals) Checkpoint(ctx context.Context) bool {
	for {
		if s.Stopped() || ctx.Err() != nil {
			return false
		}

		s.mu.Lock()
		paused, resume, onWait := s.paused, s.resume, s.onWait
		s.mu.Unlock()

		if !paused {
			return true
		}

		timer := time.NewTimer(s.pollInterval)
		select {
		case <-s.stop:
			timer.Stop()
			return false
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-resume:
			timer.Stop()
		case <-timer.C:
			if onWait != nil {
				onWait()
			}
		}
	}
}

// Sleep waits for d unless the run is stopped or ctx is done first.
// It returns false when interrupted.
func (s *Signals) Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !s.Stopped() && ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return !s.Stopped()
	case <-s.stop:
		return false
	case <-ctx.Done():
		return false
	}
}
