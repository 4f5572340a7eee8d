// Package syncq schedules write-through persistence in the background.
// Mutations kick the scheduler; rapid kicks coalesce into a single flush, so
// the in-memory update stays optimistic and the remote write happens off the
// caller's path. Last write wins at collection granularity.
package syncq

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Flusher writes the current state through to the local and remote stores.
type Flusher func(ctx context.Context) error

// Scheduler debounces flush requests. It is safe for concurrent use.
type Scheduler struct {
	delay time.Duration
	flush Flusher
	log   zerolog.Logger

	mu      sync.Mutex
	kicks   chan struct{}
	closing chan struct{}
	done    chan struct{}
	closed  bool
}

// NewScheduler starts a scheduler whose worker flushes delay after the most
// recent kick. Close must be called to drain the final flush.
func NewScheduler(delay time.Duration, flush Flusher, log zerolog.Logger) *Scheduler {
	s := &Scheduler{
		delay:   delay,
		flush:   flush,
		log:     log,
		kicks:   make(chan struct{}, 1),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Kick requests a flush. Multiple kicks within the debounce window run one
// flush. Kicking a closed scheduler is a no-op.
func (s *Scheduler) Kick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.kicks <- struct{}{}:
	default: // a flush is already pending
	}
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		select {
		case <-s.kicks:
			s.debounce()
			s.doFlush()
		case <-s.closing:
			// Drain any pending kick before shutting down.
			select {
			case <-s.kicks:
				s.doFlush()
			default:
			}
			return
		}
	}
}

// debounce absorbs kicks until the window goes quiet.
func (s *Scheduler) debounce() {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	for {
		select {
		case <-s.kicks:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(s.delay)
		case <-timer.C:
			return
		case <-s.closing:
			return
		}
	}
}

func (s *Scheduler) doFlush() {
	if err := s.flush(context.Background()); err != nil {
		// Write-through is fire-and-forget for the caller: the in-memory
		// state is not rolled back, the failure is only logged here.
		s.log.Error().Err(err).Msg("background persist failed")
	}
}

// Close stops the worker, running one final flush if a kick is pending.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.closing)
	s.mu.Unlock()
	<-s.done
}
