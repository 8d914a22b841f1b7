package gateway

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errWaitTimeout = errors.New("wait timed out")

// latch is one generation of a signal: closed once, carrying a result.
type latch struct {
	ch  chan struct{}
	err error
}

// signal is a resettable broadcast event. Set releases every waiter of the
// current generation; Clear starts a new one. The first Set of a
// generation wins.
type signal struct {
	mu  sync.Mutex
	cur *latch
	set bool
}

func newSignal() *signal {
	return &signal{cur: &latch{ch: make(chan struct{})}}
}

// Set releases waiters with err (nil for success).
func (s *signal) Set(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		return
	}
	s.set = true
	s.cur.err = err
	close(s.cur.ch)
}

// Clear re-arms the signal if it was set.
func (s *signal) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return
	}
	s.set = false
	s.cur = &latch{ch: make(chan struct{})}
}

// IsSet reports whether the current generation has been released.
func (s *signal) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Done returns the channel of the current generation.
func (s *signal) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.ch
}

// Wait blocks until the signal is set, timeout elapses (errWaitTimeout) or
// ctx ends.
func (s *signal) Wait(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	l := s.cur
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-l.ch:
		return l.err
	case <-timer.C:
		return errWaitTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
