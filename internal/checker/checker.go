// Package checker compares the latest vendor firmware against the expected
// version and notifies every configured backend when a newer one appears.
package checker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bioswatch/internal/config"
	"bioswatch/internal/firmware"
	"bioswatch/internal/notifier"
	logx "bioswatch/pkg/logx"
)

// ConfigSource returns the current configuration. *config.Manager implements it.
type ConfigSource interface {
	Get() *config.Config
}

// VersionSource returns the latest published firmware version.
// *firmware.Fetcher implements it.
type VersionSource interface {
	FetchLatestVersion(ctx context.Context) (firmware.Version, error)
}

// Result is returned to the trigger. It is never persisted.
type Result struct {
	RequestID        string           `json:"req_id" yaml:"req_id"`
	ExpectedVersion  firmware.Version `json:"expected_version" yaml:"expected_version"`
	LatestVersion    firmware.Version `json:"latest_version" yaml:"latest_version"`
	NotificationSent bool             `json:"notification_sent" yaml:"notification_sent"`
}

// ErrAllNotifiersFailed matches *AllNotifiersFailedError via errors.Is.
var ErrAllNotifiersFailed = errors.New("all notifiers failed")

type AllNotifiersFailedError struct {
	Reports []notifier.Report
}

func (e *AllNotifiersFailedError) Error() string {
	if len(e.Reports) == 0 {
		return ErrAllNotifiersFailed.Error() + ": no notifier configured"
	}
	parts := make([]string, 0, len(e.Reports))
	for _, r := range e.Reports {
		parts = append(parts, r.Err.Error())
	}
	return ErrAllNotifiersFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (e *AllNotifiersFailedError) Is(target error) bool { return target == ErrAllNotifiersFailed }

func (e *AllNotifiersFailedError) Unwrap() []error {
	out := make([]error, 0, len(e.Reports))
	for _, r := range e.Reports {
		if r.Err != nil {
			out = append(out, r.Err)
		}
	}
	return out
}

type Checker struct {
	cfg       ConfigSource
	source    VersionSource
	notifiers []notifier.Notifier
	log       logx.Logger
}

type Option func(*Checker)

func WithLogger(log logx.Logger) Option {
	return func(c *Checker) { c.log = log }
}

func New(cfg ConfigSource, source VersionSource, notifiers []notifier.Notifier, opts ...Option) *Checker {
	c := &Checker{cfg: cfg, source: source, notifiers: notifiers}
	for _, o := range opts {
		o(c)
	}
	if c.log.IsZero() {
		c.log = logx.Nop()
	}
	return c
}

// Notifiers returns the names of the configured notifiers.
func (c *Checker) Notifiers() []string {
	out := make([]string, 0, len(c.notifiers))
	for _, n := range c.notifiers {
		out = append(out, n.Name())
	}
	return out
}

// CheckAndNotify runs one check. Notification happens only when the latest
// version is strictly greater than the expected one. Partial delivery counts
// as success; the call fails only when every notifier failed.
func (c *Checker) CheckAndNotify(ctx context.Context, requestID string) (Result, error) {
	start := time.Now()
	log := c.log.With(logx.String("req_id", requestID))
	res := Result{RequestID: requestID}

	cfg := c.cfg.Get()
	if cfg == nil {
		err := fmt.Errorf("%w: configuration not loaded", config.ErrConfig)
		log.Error("check aborted", logx.Err(err))
		return res, err
	}

	log.Info("handling request")

	expected, err := cfg.ExpectedVersion()
	if err != nil {
		log.Error("check aborted", logx.Err(err))
		return res, err
	}
	res.ExpectedVersion = expected
	log.Info("using expected version", logx.Uint32("expected_version", uint32(expected)))

	fctx, cancel := withTimeout(ctx, cfg.FetchTimeout())
	latest, err := c.source.FetchLatestVersion(fctx)
	cancel()
	if err != nil {
		err = fmt.Errorf("fetch latest version: %w", err)
		log.Error("check failed", logx.Duration("elapsed", time.Since(start)), logx.Err(err))
		return res, err
	}
	res.LatestVersion = latest
	log.Info("retrieved latest version",
		logx.Uint32("latest_version", uint32(latest)),
		logx.Duration("elapsed", time.Since(start)),
	)

	switch {
	case latest > expected:
		log.Info("newer firmware available; notifying",
			logx.Uint32("expected_version", uint32(expected)),
			logx.Uint32("latest_version", uint32(latest)),
			logx.Strings("notifiers", c.Notifiers()),
		)
		msg := buildMessage(cfg, expected, latest)
		reports := notifier.Dispatch(ctx, log, c.notifiers, msg, notifier.DispatchOptions{
			Timeout:        cfg.NotifyTimeout(),
			ReleaseTimeout: cfg.ReleaseTimeout(),
		})
		res.NotificationSent = true

		if err := aggregate(reports); err != nil {
			log.Error("check failed", logx.Duration("elapsed", time.Since(start)), logx.Err(err))
			return res, err
		}
		for _, r := range reports {
			if !r.OK() {
				log.Warn("partial delivery", logx.String("failed", r.Name), logx.Err(r.Err))
			}
		}
	case latest < expected:
		log.Warn("latest version is less than expected; configuration drift?",
			logx.Uint32("expected_version", uint32(expected)),
			logx.Uint32("latest_version", uint32(latest)),
		)
	default:
		log.Debug("firmware up to date")
	}

	log.Info("check completed",
		logx.Uint32("expected_version", uint32(res.ExpectedVersion)),
		logx.Uint32("latest_version", uint32(res.LatestVersion)),
		logx.Bool("notification_sent", res.NotificationSent),
		logx.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// aggregate returns *AllNotifiersFailedError when no report succeeded.
func aggregate(reports []notifier.Report) error {
	for _, r := range reports {
		if r.OK() {
			return nil
		}
	}
	return &AllNotifiersFailedError{Reports: reports}
}

// Body renders the notification text.
func Body(product string, expected, latest firmware.Version) string {
	return fmt.Sprintf("There's a new BIOS update for the %s: %d => %d", product, expected, latest)
}

func buildMessage(cfg *config.Config, expected, latest firmware.Version) notifier.Message {
	to := notifier.Contact{Name: cfg.EmailTo.Name, Address: cfg.EmailTo.Address}
	if to.IsZero() {
		// no explicit recipient: the sender notifies itself
		to = notifier.Contact{Name: cfg.SMTP.Name, Address: cfg.SMTP.Email}
	}
	return notifier.Message{
		Subject: cfg.Product + " BIOS Update",
		Body:    Body(cfg.Product, expected, latest),
		To:      to,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
