package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "bioswatch/pkg/logx"
)

// Job is one scheduled run. ctx is cancelled when the runner stops.
type Job func(ctx context.Context)

type Runner struct {
	job        Job
	log        logx.Logger
	loc        *time.Location
	runOnStart bool

	mu      sync.Mutex
	c       *cron.Cron
	entry   cron.EntryID
	spec    Spec
	ctx     context.Context
	cancel  context.CancelFunc
	started bool

	// running tracks job runs, including the run-on-start one that cron
	// itself does not track.
	running sync.WaitGroup
}

type Option func(*Runner)

func WithLogger(log logx.Logger) Option {
	return func(r *Runner) { r.log = log }
}

func WithLocation(loc *time.Location) Option {
	return func(r *Runner) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithRunOnStart runs the job once right after Start.
func WithRunOnStart(enabled bool) Option {
	return func(r *Runner) { r.runOnStart = enabled }
}

func NewRunner(job Job, opts ...Option) *Runner {
	r := &Runner{job: job, loc: time.Local}
	for _, o := range opts {
		o(r)
	}
	if r.log.IsZero() {
		r.log = logx.Nop()
	}
	return r
}

// Start schedules the job and starts triggering. It is an error to Start twice.
func (r *Runner) Start(ctx context.Context, spec Spec) error {
	sched, err := spec.Schedule()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("schedule runner already started")
	}

	cl := cronLogger{log: r.log}
	r.c = cron.New(
		cron.WithLocation(r.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.spec = spec
	r.entry = r.c.Schedule(sched, r.cronJob())
	r.c.Start()
	r.started = true

	r.log.Info("schedule started",
		logx.String("schedule", spec.String()),
		logx.String("kind", spec.Kind.String()),
		logx.Time("next", r.c.Entry(r.entry).Next),
	)

	if r.runOnStart {
		// Goes through the job chain so it is skipped if a tick overlaps.
		go r.c.Entry(r.entry).WrappedJob.Run()
	}
	return nil
}

func (r *Runner) cronJob() cron.Job {
	return cron.FuncJob(func() {
		r.mu.Lock()
		if !r.started || r.ctx.Err() != nil {
			r.mu.Unlock()
			return
		}
		ctx := r.ctx
		r.running.Add(1)
		r.mu.Unlock()

		defer r.running.Done()
		r.job(ctx)
	})
}

// Reschedule replaces the schedule of a started runner. An unchanged spec is
// a no-op.
func (r *Runner) Reschedule(spec Spec) error {
	sched, err := spec.Schedule()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return fmt.Errorf("schedule runner not started")
	}
	if spec == r.spec {
		return nil
	}
	r.c.Remove(r.entry)
	r.entry = r.c.Schedule(sched, r.cronJob())
	r.spec = spec

	r.log.Info("schedule changed",
		logx.String("schedule", spec.String()),
		logx.Time("next", r.c.Entry(r.entry).Next),
	)
	return nil
}

// Next returns the next activation time (zero if not started).
func (r *Runner) Next() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return time.Time{}
	}
	return r.c.Entry(r.entry).Next
}

// Stop stops triggering, cancels the running job's context and waits for it
// to return (or ctx to be done).
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	r.cancel()
	c := r.c
	r.mu.Unlock()

	start := time.Now()
	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		r.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info("schedule stopped", logx.Duration("took", time.Since(start)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
