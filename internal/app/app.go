package app

import (
	"context"
	"io"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"bioswatch/internal/checker"
	"bioswatch/internal/config"
	"bioswatch/internal/firmware"
	"bioswatch/internal/notifier"
	"bioswatch/internal/notifier/discord"
	"bioswatch/internal/notifier/email"
	"bioswatch/internal/notifier/telegram"
	logx "bioswatch/pkg/logx"
)

// NotifierFactory builds the notifier set for one config snapshot.
type NotifierFactory func(cfg *config.Config, log logx.Logger) []notifier.Notifier

// SourceFactory builds the vendor version source for one config snapshot.
type SourceFactory func(cfg *config.Config, log logx.Logger) checker.VersionSource

type App struct {
	cfgm *config.Manager

	log    logx.Logger
	logs   *logx.Service
	logOut io.Writer

	newNotifiers NotifierFactory
	newSource    SourceFactory
	sdNotify     func(state string)
	newID        func() string

	// current is swapped whole on config reload; in-flight checks keep the
	// snapshot they started with.
	current atomic.Pointer[checker.Checker]
}

type Option func(*App)

// WithLogOutput sends logs to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *App) { a.logOut = w }
}

// WithLookup replaces the environment lookup used when loading config.
func WithLookup(fn config.LookupFunc) Option {
	return func(a *App) { a.cfgm.SetLookup(fn) }
}

func WithNotifierFactory(fn NotifierFactory) Option {
	return func(a *App) { a.newNotifiers = fn }
}

func WithSourceFactory(fn SourceFactory) Option {
	return func(a *App) { a.newSource = fn }
}

// New loads the configuration at cfgPath (empty: environment only) and
// wires the checker.
func New(cfgPath string, opts ...Option) (*App, error) {
	a := &App{
		cfgm:         config.NewManager(cfgPath),
		newNotifiers: BuildNotifiers,
		newSource:    buildSource,
		sdNotify:     sdNotify,
		newID:        uuid.NewString,
	}
	for _, o := range opts {
		o(a)
	}

	cfg, err := a.cfgm.Load()
	if err != nil {
		return nil, err
	}
	a.logs, a.log = logx.New(cfg.LogConfig(), a.logOut)
	a.log = a.log.With(logx.String("comp", "app"))
	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))

	a.install(cfg)
	return a, nil
}

// install builds a checker for cfg and makes it current.
func (a *App) install(cfg *config.Config) {
	base := a.logs.Logger()
	c := checker.New(
		a.cfgm,
		a.newSource(cfg, base.With(logx.String("comp", "firmware"))),
		a.newNotifiers(cfg, base),
		checker.WithLogger(base.With(logx.String("comp", "checker"))),
	)
	a.current.Store(c)
	a.log.Debug("checker ready",
		logx.String("product", cfg.Product),
		logx.Strings("notifiers", c.Notifiers()),
	)
}

// Config returns the current configuration snapshot.
func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Check runs one check. An empty requestID gets a random one.
func (a *App) Check(ctx context.Context, requestID string) (checker.Result, error) {
	if strings.TrimSpace(requestID) == "" {
		requestID = a.newID()
	}
	return a.current.Load().CheckAndNotify(ctx, requestID)
}

// Close flushes and closes the log sinks.
func (a *App) Close() error {
	if a.logs == nil {
		return nil
	}
	return a.logs.Close()
}

// BuildNotifiers returns email and discord, plus telegram when a bot token
// is configured. Credentials are checked by each notifier on Acquire so a
// single misconfigured backend never stops the others.
func BuildNotifiers(cfg *config.Config, log logx.Logger) []notifier.Notifier {
	to := notifier.Contact{Name: cfg.EmailTo.Name, Address: cfg.EmailTo.Address}
	if to.IsZero() {
		to = notifier.Contact{Name: cfg.SMTP.Name, Address: cfg.SMTP.Email}
	}

	out := []notifier.Notifier{
		email.New(email.Config{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			Username:   cfg.SMTP.Email,
			Password:   cfg.SMTP.Password,
			SenderName: cfg.SMTP.Name,
			To:         to,
			Timeout:    cfg.NotifyTimeout(),
		}, email.WithLogger(log.With(logx.String("comp", email.Name)))),
		discord.New(discord.Config{
			Token:         cfg.Discord.Token,
			ChannelFilter: cfg.Discord.ChannelName,
		}, discord.WithLogger(log.With(logx.String("comp", discord.Name)))),
	}
	if cfg.Telegram.Enabled() {
		out = append(out, telegram.New(telegramConfig(cfg),
			telegram.WithLogger(log.With(logx.String("comp", telegram.Name)))))
	}
	return out
}

func telegramConfig(cfg *config.Config) telegram.Config {
	return telegram.Config{
		Token:         cfg.Telegram.Token,
		ChatIDs:       cfg.Telegram.ChatIDs,
		ChannelFilter: cfg.Telegram.ChannelName,
		RatePerSec:    cfg.Telegram.RatePerSec,
		APIURL:        cfg.Telegram.APIURL,
		Timeout:       cfg.NotifyTimeout(),
	}
}

func buildSource(cfg *config.Config, log logx.Logger) checker.VersionSource {
	return firmware.NewFetcher(
		firmware.WithURL(cfg.Vendor.URL),
		firmware.WithTimeout(cfg.FetchTimeout()),
		firmware.WithLogger(log),
	)
}
