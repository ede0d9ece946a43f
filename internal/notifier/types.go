package notifier

import (
	"context"
	"strings"
	"time"
)

// Notifier is a delivery backend. Implementations must be safe to Acquire
// concurrently with other notifiers.
type Notifier interface {
	Name() string
	Acquire(ctx context.Context) (Session, error)
}

// Session is an authenticated, ready-to-use handle owned by one invocation.
// Release must be called exactly once per successful Acquire; calling it
// again is allowed and returns nil.
type Session interface {
	Send(ctx context.Context, msg Message) error
	Release(ctx context.Context) error
}

// Message is a plain text notification. Chat backends only use Body.
type Message struct {
	Subject string
	Body    string
	To      Contact
}

// Contact is an email destination.
type Contact struct {
	Name    string
	Address string
}

func (c Contact) String() string {
	addr := strings.TrimSpace(c.Address)
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return addr
	}
	return name + " <" + addr + ">"
}

func (c Contact) IsZero() bool { return strings.TrimSpace(c.Address) == "" }

// Report is the outcome of one notifier within a Dispatch.
type Report struct {
	Name    string
	Err     error
	Elapsed time.Duration
}

func (r Report) OK() bool { return r.Err == nil }
