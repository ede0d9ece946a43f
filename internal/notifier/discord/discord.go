// Package discord delivers notifications to Discord channels through a bot
// account.
//
// A bot only learns which guilds it belongs to once the gateway emits its
// Ready event, so Acquire opens the gateway in a supervised background task
// and blocks on a one-shot signal. The signal is resolved by the Ready handler
// (with the discovered target channels) or failed by the background task when
// the connection cannot be opened, whichever happens first.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"bioswatch/internal/notifier"
	"bioswatch/internal/runtime/oneshot"
	rtsup "bioswatch/internal/runtime/supervisor"
	logx "bioswatch/pkg/logx"
)

const (
	Name = "discord"

	DefaultChannelFilter = "notification"

	// broadcastPrefix pings every member of the channel.
	broadcastPrefix = "@everyone "

	// cleanupTimeout bounds gateway shutdown when Acquire fails.
	cleanupTimeout = 10 * time.Second
)

type Config struct {
	Token string
	// ChannelFilter selects target channels by substring of their name.
	ChannelFilter string
}

// gateway is the part of *discordgo.Session used here.
type gateway interface {
	Open() error
	Close() error
	AddHandlerOnce(handler interface{}) func()
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Notifier struct {
	cfg        Config
	log        logx.Logger
	newGateway func(token string) (gateway, error)
}

type Option func(*Notifier)

func WithLogger(log logx.Logger) Option {
	return func(n *Notifier) { n.log = log }
}

func New(cfg Config, opts ...Option) *Notifier {
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.ChannelFilter == "" {
		cfg.ChannelFilter = DefaultChannelFilter
	}
	n := &Notifier{cfg: cfg, newGateway: dialGateway}
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

// target is a channel selected for notifications.
type target struct {
	ID      string
	Name    string
	GuildID string
}

// Acquire connects to the gateway and waits for the Ready handshake. On any
// failure the background task is stopped before returning.
func (n *Notifier) Acquire(ctx context.Context) (notifier.Session, error) {
	if n.cfg.Token == "" {
		return nil, fmt.Errorf("%w: discord: bot token is empty", notifier.ErrConfig)
	}
	start := time.Now()

	gw, err := n.newGateway(n.cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: discord: %w", notifier.ErrConnection, err)
	}

	// The gateway must outlive ctx until Release; only Release stops it.
	sup := rtsup.NewSupervisor(context.WithoutCancel(ctx),
		rtsup.WithLogger(n.log),
		rtsup.WithCancelOnError(false),
	)
	ready := oneshot.New[[]target]()

	removeHandler := gw.AddHandlerOnce(func(_ *discordgo.Session, r *discordgo.Ready) {
		n.onReady(sup.Context(), gw, r, ready)
	})

	sup.Go("discord.gateway", func(ctx context.Context) error {
		if err := gw.Open(); err != nil {
			n.settle(ready.Fail(fmt.Errorf("%w: discord: open gateway: %w", notifier.ErrConnection, err)), "open failure")
			return err
		}
		<-ctx.Done()
		if err := gw.Close(); err != nil {
			n.log.Warn("discord gateway close failed", logx.Err(err))
			return err
		}
		n.log.Debug("discord gateway closed")
		return nil
	})

	targets, err := ready.Wait(ctx)
	if err != nil {
		removeHandler()
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			err = fmt.Errorf("%w: discord: waiting for ready: %w", notifier.ErrConnection, err)
		}
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if serr := sup.Stop(cctx); serr != nil && !errors.Is(serr, context.Canceled) {
			n.log.Debug("discord gateway stopped after failed handshake", logx.Err(serr))
		}
		return nil, err
	}

	n.log.Info("discord ready",
		logx.Int("channels", len(targets)),
		logx.Strings("channel_names", targetNames(targets)),
		logx.Duration("elapsed", time.Since(start)),
	)
	return &session{n: n, gw: gw, sup: sup, targets: targets}, nil
}

// onReady selects text channels whose name contains the filter across every
// guild in the Ready event and settles the signal.
func (n *Notifier) onReady(ctx context.Context, gw gateway, r *discordgo.Ready, ready *oneshot.Signal[[]target]) {
	user := ""
	if r.User != nil {
		user = r.User.Username
	}
	n.log.Debug("discord connected", logx.String("user", user), logx.Int("guilds", len(r.Guilds)))

	var targets []target
	for _, g := range r.Guilds {
		if g == nil {
			continue
		}
		chans, err := gw.GuildChannels(g.ID, discordgo.WithContext(ctx))
		if err != nil {
			n.log.Warn("list guild channels failed", logx.String("guild_id", g.ID), logx.Err(err))
			continue
		}
		// Every matching channel in the guild is a target, not only the first.
		for _, c := range chans {
			if c == nil || !isTextChannel(c.Type) {
				continue
			}
			if strings.Contains(c.Name, n.cfg.ChannelFilter) {
				targets = append(targets, target{ID: c.ID, Name: c.Name, GuildID: g.ID})
			}
		}
	}

	if len(targets) == 0 {
		n.settle(ready.Fail(fmt.Errorf("%w: discord: no text channel matching %q in %d guild(s)",
			notifier.ErrConfig, n.cfg.ChannelFilter, len(r.Guilds))), "ready")
		return
	}
	n.settle(ready.Resolve(targets), "ready")
}

func (n *Notifier) settle(err error, from string) {
	if err != nil {
		n.log.Debug("discord handshake already settled", logx.String("from", from), logx.Err(err))
	}
}

func isTextChannel(t discordgo.ChannelType) bool {
	return t == discordgo.ChannelTypeGuildText || t == discordgo.ChannelTypeGuildNews
}

func targetNames(ts []target) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Name+" ("+t.ID+")")
	}
	return out
}

type session struct {
	n       *Notifier
	gw      gateway
	sup     *rtsup.Supervisor
	targets []target

	releaseOnce sync.Once
}

// Send posts the body to every target channel concurrently.
func (s *session) Send(ctx context.Context, msg notifier.Message) error {
	start := time.Now()
	content := broadcastPrefix + msg.Body

	errs := make([]error, len(s.targets))
	var wg sync.WaitGroup
	for i, t := range s.targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.gw.ChannelMessageSend(t.ID, content, discordgo.WithContext(ctx)); err != nil {
				errs[i] = fmt.Errorf("channel %s (%s): %w", t.Name, t.ID, err)
			}
		}()
	}
	wg.Wait()

	err := notifier.NewDeliveryError(len(s.targets), errs)
	s.n.log.Info("discord notified",
		logx.Int("channels", len(s.targets)),
		logx.Bool("ok", err == nil),
		logx.Duration("elapsed", time.Since(start)),
	)
	return err
}

// Release disconnects the gateway and returns once the background task has
// exited. Later calls return nil immediately.
func (s *session) Release(ctx context.Context) error {
	var err error
	s.releaseOnce.Do(func() {
		err = s.sup.Stop(ctx)
	})
	return err
}

func dialGateway(token string) (gateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	s.ShouldReconnectOnError = false
	s.StateEnabled = false
	return s, nil
}
