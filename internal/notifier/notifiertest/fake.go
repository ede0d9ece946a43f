// Package notifiertest provides an in-memory Notifier for tests.
package notifiertest

import (
	"context"
	"sync"
	"sync/atomic"

	"bioswatch/internal/notifier"
)

// Fake records every call. Set AcquireErr or SendErr to make it fail.
type Fake struct {
	ID         string
	AcquireErr error
	SendErr    error
	ReleaseErr error
	// Block makes Send wait for ctx to be done before returning SendErr
	// (or ctx.Err() when SendErr is nil).
	Block bool
	// OnSend runs inside Send before it returns.
	OnSend func(ctx context.Context, msg notifier.Message)

	acquires atomic.Int32
	releases atomic.Int32

	mu   sync.Mutex
	sent []notifier.Message
}

var _ notifier.Notifier = (*Fake)(nil)

func New(id string) *Fake { return &Fake{ID: id} }

func (f *Fake) Name() string { return f.ID }

func (f *Fake) Acquire(ctx context.Context) (notifier.Session, error) {
	f.acquires.Add(1)
	if f.AcquireErr != nil {
		return nil, f.AcquireErr
	}
	return &session{f: f}, nil
}

// Acquires returns how many times Acquire was called.
func (f *Fake) Acquires() int { return int(f.acquires.Load()) }

// Releases returns how many sessions were released.
func (f *Fake) Releases() int { return int(f.releases.Load()) }

// Sent returns a copy of every message passed to Send.
func (f *Fake) Sent() []notifier.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifier.Message(nil), f.sent...)
}

type session struct {
	f    *Fake
	once sync.Once
}

func (s *session) Send(ctx context.Context, msg notifier.Message) error {
	s.f.mu.Lock()
	s.f.sent = append(s.f.sent, msg)
	s.f.mu.Unlock()

	if s.f.OnSend != nil {
		s.f.OnSend(ctx, msg)
	}
	if s.f.Block {
		<-ctx.Done()
		if s.f.SendErr != nil {
			return s.f.SendErr
		}
		return ctx.Err()
	}
	return s.f.SendErr
}

func (s *session) Release(ctx context.Context) error {
	s.once.Do(func() { s.f.releases.Add(1) })
	return s.f.ReleaseErr
}
