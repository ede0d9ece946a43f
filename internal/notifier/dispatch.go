package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	rtsup "bioswatch/internal/runtime/supervisor"
	logx "bioswatch/pkg/logx"
)

// ErrAborted is reported for a notifier whose goroutine exited without a
// result (it panicked).
var ErrAborted = errors.New("notifier aborted")

// Run acquires a session from n, sends msg and releases the session.
//
// Release runs on every exit path once Acquire succeeded. It gets its own
// context, detached from ctx cancellation and bounded by releaseTimeout
// (0 means no bound), so an expired ctx never leaks a session.
func Run(ctx context.Context, n Notifier, msg Message, releaseTimeout time.Duration) (err error) {
	s, err := n.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%s: acquire: %w", n.Name(), err)
	}

	defer func() {
		rctx, cancel := withTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if rerr := s.Release(rctx); rerr != nil {
			err = errors.Join(err, fmt.Errorf("%s: release: %w", n.Name(), rerr))
		}
	}()

	if err := s.Send(ctx, msg); err != nil {
		return fmt.Errorf("%s: send: %w", n.Name(), err)
	}
	return nil
}

type DispatchOptions struct {
	// Timeout bounds acquire+send per notifier. 0 disables it.
	Timeout time.Duration
	// ReleaseTimeout bounds Release per notifier. 0 disables it.
	ReleaseTimeout time.Duration
}

// Dispatch runs every notifier concurrently and waits for all of them.
// Failures are collected independently and never cancel siblings. The
// returned reports follow the order of notifiers.
func Dispatch(ctx context.Context, log logx.Logger, notifiers []Notifier, msg Message, opts DispatchOptions) []Report {
	if log.IsZero() {
		log = logx.Nop()
	}
	reports := make([]Report, len(notifiers))
	if len(notifiers) == 0 {
		return reports
	}

	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(log.With(logx.String("comp", "dispatch"))),
		// one backend failing must not cancel the others
		rtsup.WithCancelOnError(false),
	)

	for i, n := range notifiers {
		name := n.Name()
		reports[i] = Report{Name: name, Err: fmt.Errorf("%s: %w", name, ErrAborted)}

		sup.Go("notify."+name, func(ctx context.Context) error {
			start := time.Now()
			nctx, cancel := withTimeout(ctx, opts.Timeout)
			defer cancel()

			err := Run(nctx, n, msg, opts.ReleaseTimeout)
			elapsed := time.Since(start)
			reports[i] = Report{Name: name, Err: err, Elapsed: elapsed}

			if err != nil {
				log.Warn("notification failed", logx.String("notifier", name), logx.Duration("elapsed", elapsed), logx.Err(err))
				return err
			}
			log.Info("notification sent", logx.String("notifier", name), logx.Duration("elapsed", elapsed))
			return nil
		})
	}

	// Unbounded: each notifier carries its own timeouts.
	_ = sup.Wait(context.Background())
	sup.Cancel()
	return reports
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
