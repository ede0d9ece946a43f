// Package telegram delivers notifications to Telegram chats through the Bot
// API. It never polls for updates; a session only sends.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"bioswatch/internal/notifier"
	logx "bioswatch/pkg/logx"
)

const (
	Name = "telegram"

	DefaultRatePerSec = 3

	defaultHTTPTimeout = 30 * time.Second
)

type Config struct {
	Token   string
	ChatIDs []int64
	// ChannelFilter keeps only chats whose title contains it. Empty keeps all.
	// Private chats have no title and are always kept.
	ChannelFilter string
	RatePerSec    int
	// APIURL overrides the Bot API base URL.
	APIURL  string
	Timeout time.Duration
}

type Notifier struct {
	cfg Config
	log logx.Logger
}

type Option func(*Notifier)

func WithLogger(log logx.Logger) Option {
	return func(n *Notifier) { n.log = log }
}

func New(cfg Config, opts ...Option) *Notifier {
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = DefaultRatePerSec
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	n := &Notifier{cfg: cfg}
	for _, o := range opts {
		o(n)
	}
	if n.log.IsZero() {
		n.log = logx.Nop()
	}
	n.log = n.log.With(logx.String("notifier", Name))
	return n
}

func (n *Notifier) Name() string { return Name }

// Acquire authenticates the bot (getMe) and resolves every configured chat.
// Chats that cannot be resolved are logged and skipped.
func (n *Notifier) Acquire(ctx context.Context) (notifier.Session, error) {
	if n.cfg.Token == "" {
		return nil, fmt.Errorf("%w: telegram: bot token is empty", notifier.ErrConfig)
	}
	if len(n.cfg.ChatIDs) == 0 {
		return nil, fmt.Errorf("%w: telegram: no chat ids configured", notifier.ErrConfig)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: telegram: %w", notifier.ErrConnection, err)
	}
	start := time.Now()

	b, err := tele.NewBot(tele.Settings{
		Token:  n.cfg.Token,
		URL:    n.cfg.APIURL,
		Client: &http.Client{Timeout: n.cfg.Timeout},
		// no Start(): this bot never polls
		Poller: &tele.LongPoller{Timeout: time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: telegram: %w", notifier.ErrConnection, err)
	}

	chats := make([]*tele.Chat, 0, len(n.cfg.ChatIDs))
	for _, id := range n.cfg.ChatIDs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: telegram: %w", notifier.ErrConnection, err)
		}
		c, err := b.ChatByID(id)
		if err != nil {
			n.log.Warn("telegram chat lookup failed", logx.Int64("chat_id", id), logx.Err(err))
			continue
		}
		if !n.keep(c) {
			n.log.Debug("telegram chat filtered out", logx.Int64("chat_id", id), logx.String("title", c.Title))
			continue
		}
		chats = append(chats, c)
	}
	if len(chats) == 0 {
		return nil, fmt.Errorf("%w: telegram: none of %d chat(s) reachable", notifier.ErrConnection, len(n.cfg.ChatIDs))
	}

	user := ""
	if b.Me != nil {
		user = b.Me.Username
	}
	n.log.Info("telegram ready",
		logx.String("bot", user),
		logx.Int("chats", len(chats)),
		logx.Duration("elapsed", time.Since(start)),
	)

	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	lim := rate.NewLimiter(rate.Limit(n.cfg.RatePerSec), n.cfg.RatePerSec)
	return &session{n: n, bot: b, chats: chats, limiter: lim}, nil
}

func (n *Notifier) keep(c *tele.Chat) bool {
	if n.cfg.ChannelFilter == "" {
		return true
	}
	if c.Type == tele.ChatPrivate && c.Title == "" {
		return true
	}
	return strings.Contains(c.Title, n.cfg.ChannelFilter)
}

type session struct {
	n       *Notifier
	bot     *tele.Bot
	chats   []*tele.Chat
	limiter *rate.Limiter
}

// Send broadcasts the body to every resolved chat concurrently. Long bodies
// are split; each chunk waits for the shared rate limiter.
func (s *session) Send(ctx context.Context, msg notifier.Message) error {
	start := time.Now()
	chunks := splitText(msg.Body, textLimit)

	errs := make([]error, len(s.chats))
	var wg sync.WaitGroup
	for i, c := range s.chats {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.sendChat(ctx, c, chunks); err != nil {
				errs[i] = fmt.Errorf("chat %d: %w", c.ID, err)
			}
		}()
	}
	wg.Wait()

	err := notifier.NewDeliveryError(len(s.chats), errs)
	s.n.log.Info("telegram notified",
		logx.Int("chats", len(s.chats)),
		logx.Int("chunks", len(chunks)),
		logx.Bool("ok", err == nil),
		logx.Duration("elapsed", time.Since(start)),
	)
	return err
}

func (s *session) sendChat(ctx context.Context, c *tele.Chat, chunks []string) error {
	for _, chunk := range chunks {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := s.bot.Send(c, chunk, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
			return err
		}
	}
	return nil
}

// Release is a no-op: the bot holds no connection between requests.
func (s *session) Release(context.Context) error { return nil }
