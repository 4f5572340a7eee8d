package syncq

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestKick_CoalescesIntoOneFlush(t *testing.T) {
	var flushes atomic.Int32
	s := NewScheduler(30*time.Millisecond, func(ctx context.Context) error {
		flushes.Add(1)
		return nil
	}, zerolog.Nop())

	for i := 0; i < 10; i++ {
		s.Kick()
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	s.Close()

	if got := flushes.Load(); got != 1 {
		t.Errorf("flushes = %d, want 1", got)
	}
}

func TestKick_SeparatedWindowsFlushSeparately(t *testing.T) {
	var flushes atomic.Int32
	s := NewScheduler(10*time.Millisecond, func(ctx context.Context) error {
		flushes.Add(1)
		return nil
	}, zerolog.Nop())

	s.Kick()
	time.Sleep(50 * time.Millisecond)
	s.Kick()
	time.Sleep(50 * time.Millisecond)
	s.Close()

	if got := flushes.Load(); got != 2 {
		t.Errorf("flushes = %d, want 2", got)
	}
}

func TestClose_DrainsPendingKick(t *testing.T) {
	var flushes atomic.Int32
	s := NewScheduler(time.Hour, func(ctx context.Context) error {
		flushes.Add(1)
		return nil
	}, zerolog.Nop())

	s.Kick()
	// The debounce window is huge; Close must still run the pending flush.
	s.Close()

	if got := flushes.Load(); got != 1 {
		t.Errorf("flushes = %d, want 1", got)
	}
}

func TestFlushError_DoesNotStopWorker(t *testing.T) {
	var flushes atomic.Int32
	s := NewScheduler(5*time.Millisecond, func(ctx context.Context) error {
		flushes.Add(1)
		return errors.New("remote down")
	}, zerolog.Nop())

	s.Kick()
	time.Sleep(40 * time.Millisecond)
	s.Kick()
	time.Sleep(40 * time.Millisecond)
	s.Close()

	if got := flushes.Load(); got < 2 {
		t.Errorf("flushes = %d, want >= 2", got)
	}
}

func TestKickAfterClose_Noop(t *testing.T) {
	s := NewScheduler(time.Millisecond, func(ctx context.Context) error { return nil }, zerolog.Nop())
	s.Close()
	s.Kick() // must not panic or deadlock
	s.Close()
}
