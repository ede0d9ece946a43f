// Package oneshot provides a single-use signal for rendezvous between a
// background producer and a blocked caller.
//
// Exactly one of Resolve or Fail takes effect. Any later attempt returns
// ErrAlreadySignaled and leaves the stored outcome untouched.
package oneshot

import (
	"context"
	"errors"
	"sync"
)

var ErrAlreadySignaled = errors.New("oneshot: already signaled")

type Signal[T any] struct {
	mu    sync.Mutex
	fired bool
	done  chan struct{}

	val T
	err error
}

func New[T any]() *Signal[T] {
	return &Signal[T]{done: make(chan struct{})}
}

// Resolve fulfils the signal with v.
func (s *Signal[T]) Resolve(v T) error {
	return s.fire(v, nil)
}

// Fail fulfils the signal with err. A nil err is recorded as a failure too,
// so waiters never mistake it for success.
func (s *Signal[T]) Fail(err error) error {
	if err == nil {
		err = errors.New("oneshot: failed")
	}
	var zero T
	return s.fire(zero, err)
}

func (s *Signal[T]) fire(v T, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fired {
		return ErrAlreadySignaled
	}
	s.fired = true
	s.val, s.err = v, err
	close(s.done)
	return nil
}

// Done is closed once the signal has fired.
func (s *Signal[T]) Done() <-chan struct{} { return s.done }

// Wait blocks until the signal fires or ctx is done.
func (s *Signal[T]) Wait(ctx context.Context) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.val, s.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
