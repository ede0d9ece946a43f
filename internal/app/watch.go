package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"bioswatch/internal/config"
	"bioswatch/internal/runtime/supervisor"
	"bioswatch/internal/schedule"
	logx "bioswatch/pkg/logx"
)

const stopTimeout = 15 * time.Second

type WatchOptions struct {
	// Schedule overrides the configured schedule. Reloads then never
	// change it.
	Schedule   string
	RunOnStart bool
}

// Watch runs checks on a schedule until ctx is cancelled. The config file
// is watched; valid changes rebuild the notifiers and reschedule, invalid
// ones are logged and ignored.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	raw := strings.TrimSpace(opts.Schedule)
	if raw == "" {
		raw = a.cfgm.Get().Schedule
	}
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: schedule is not set (use --schedule or %s)", config.ErrConfig, config.EnvSchedule)
	}
	spec, err := schedule.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfig, err)
	}

	sup := supervisor.NewSupervisor(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	runner := schedule.NewRunner(a.runScheduled,
		schedule.WithLogger(a.logs.Logger().With(logx.String("comp", "schedule"))),
		schedule.WithRunOnStart(opts.RunOnStart),
	)
	if err := runner.Start(sup.Context(), spec); err != nil {
		sup.Cancel()
		return err
	}

	sub := a.cfgm.Subscribe(4)
	sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.apply(cfg, runner, opts.Schedule == "")
			}
		}
	})
	sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("watching",
		logx.String("schedule", spec.String()),
		logx.Time("next", runner.Next()),
		logx.String("config", a.cfgm.Path()),
	)
	a.sdNotify(daemon.SdNotifyReady)

	<-sup.Context().Done()
	a.sdNotify(daemon.SdNotifyStopping)
	a.log.Info("stopping")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if err := runner.Stop(stopCtx); err != nil {
		a.log.Warn("schedule stop did not finish", logx.Err(err))
	}
	sup.Cancel()
	if err := sup.Wait(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info("stopped")
	return nil
}

func (a *App) runScheduled(ctx context.Context) {
	// Failures are already logged by the checker with the request id.
	_, _ = a.Check(ctx, "")
}

// apply makes a reloaded config current.
func (a *App) apply(cfg *config.Config, runner *schedule.Runner, followSchedule bool) {
	if cfg == nil {
		return
	}
	a.logs.Apply(cfg.LogConfig())
	a.install(cfg)

	if !followSchedule {
		return
	}
	spec, err := schedule.Parse(cfg.Schedule)
	if err != nil {
		a.log.Warn("invalid schedule in reloaded config; keeping previous", logx.Err(err))
		return
	}
	if err := runner.Reschedule(spec); err != nil {
		a.log.Warn("reschedule failed", logx.Err(err))
		return
	}
	a.log.Info("schedule applied", logx.String("schedule", spec.String()), logx.Time("next", runner.Next()))
}

// sdNotify reports state to systemd when run as a Type=notify unit.
func sdNotify(state string) {
	_, _ = daemon.SdNotify(false, state)
}
