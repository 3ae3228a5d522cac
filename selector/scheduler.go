package selector

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// boundarySlack is added to the sleep until the next window so the wake up
// lands inside the new window.
const boundarySlack = time.Second

// Scheduler creates each window's selection as the window begins, so the
// first reader does not pay for it. Selections are correct without it.
type Scheduler struct {
	sl *Selector

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	// InitialInterval and MaxInterval bound the retry backoff after a
	// failed attempt.
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func NewScheduler(sl *Selector) *Scheduler {
	return &Scheduler{
		sl:              sl,
		done:            make(chan struct{}),
		InitialInterval: time.Second * 3,
		MaxInterval:     time.Second * 60,
	}
}

// Start launches the scheduler loop. It returns false if the scheduler was
// already started; a Scheduler runs at most once.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return false
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		defer close(s.done)
		s.run(ctx)
	}()
	return true
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started, cancel := s.started, s.cancel
	s.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-s.done
}

// Done is closed when the loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) run(ctx context.Context) {
	log := s.sl.log

	expback := backoff.NewExponentialBackOff()
	expback.InitialInterval = s.InitialInterval
	expback.MaxInterval = s.MaxInterval

	for {
		var wait time.Duration

		sel, win, err := s.sl.EnsureSelection(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait = expback.NextBackOff()
			log.WarnContext(ctx, "could not ensure selection", "key", win.Key, "retry", wait, "err", err)
			s.count("error")
		} else {
			expback.Reset()
			wait = max(win.End.Sub(s.sl.now()), 0) + boundarySlack
			log.InfoContext(ctx, "selection ready", "key", win.Key, "size", sel.Size(), "next", win.End)
			s.count("ok")
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Scheduler) count(status string) {
	if s.sl.metrics != nil {
		s.sl.metrics.SchedulerRuns.WithLabelValues(status).Inc()
	}
}
