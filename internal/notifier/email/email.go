// Package email delivers notifications through an SMTP relay.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"bioswatch/internal/notifier"
	logx "bioswatch/pkg/logx"
)

const Name = "email"

// Config holds the relay and credentials. Port 465 uses implicit TLS, any
// other port requires STARTTLS.
type Config struct {
	Host       string
	Port       int
	Username   string // sender address, also the SMTP login
	Password   string
	SenderName string
	// To is the recipient used when a message carries none.
	To      notifier.Contact
	Timeout time.Duration
}

func (c Config) sender() notifier.Contact {
	return notifier.Contact{Name: c.SenderName, Address: c.Username}
}

// sender is the part of *mail.Client used here.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type dialFunc func(cfg Config) (sender, error)

type Notifier struct {
	cfg  Config
	log  logx.Logger
	dial dialFunc
}

type Option func(*Notifier)

func WithLogger(log logx.Logger) Option {
	return func(n *Notifier) { n.log = log }
}

func New(cfg Config, opts ...Option) *Notifier {
	n := &Notifier{cfg: cfg, dial: newClient}
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

// Acquire only validates and captures the credentials. The SMTP connection is
// opened per Send.
func (n *Notifier) Acquire(ctx context.Context) (notifier.Session, error) {
	var missing []string
	if strings.TrimSpace(n.cfg.Host) == "" {
		missing = append(missing, "smtp host")
	}
	if strings.TrimSpace(n.cfg.Username) == "" {
		missing = append(missing, "sender address")
	}
	if n.cfg.Password == "" {
		missing = append(missing, "password")
	}
	if n.cfg.To.IsZero() {
		missing = append(missing, "recipient")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: email: missing %s", notifier.ErrConfig, strings.Join(missing, ", "))
	}
	return &session{n: n}, nil
}

type session struct {
	n *Notifier
}

// Send opens a connection, authenticates and delivers one message to one
// recipient.
func (s *session) Send(ctx context.Context, msg notifier.Message) error {
	cfg := s.n.cfg
	to := msg.To
	if to.IsZero() {
		to = cfg.To
	}

	m, err := buildMessage(cfg.sender(), to, msg)
	if err != nil {
		return &notifier.DeliveryError{Total: 1, Errs: []error{err}}
	}

	start := time.Now()
	s.n.log.Debug("sending email",
		logx.String("host", cfg.Host),
		logx.Int("port", cfg.Port),
		logx.String("to", to.String()),
		logx.String("subject", msg.Subject),
	)

	c, err := s.n.dial(cfg)
	if err != nil {
		return &notifier.DeliveryError{Total: 1, Errs: []error{fmt.Errorf("%w: %w", notifier.ErrConnection, err)}}
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return &notifier.DeliveryError{Total: 1, Errs: []error{classify(err)}}
	}

	s.n.log.Info("email sent", logx.String("to", to.String()), logx.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *session) Release(context.Context) error { return nil }

func buildMessage(from, to notifier.Contact, msg notifier.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(from.Name, from.Address); err != nil {
		return nil, fmt.Errorf("%w: invalid sender %q: %w", notifier.ErrConfig, from.Address, err)
	}
	if err := m.AddToFormat(to.Name, to.Address); err != nil {
		return nil, fmt.Errorf("%w: invalid recipient %q: %w", notifier.ErrConfig, to.Address, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

// classify maps dial/auth failures to ErrConnection. Errors reported by the
// server for a specific SMTP command stay delivery errors.
func classify(err error) error {
	var se *mail.SendError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", notifier.ErrConnection, err)
}

func newClient(cfg Config) (sender, error) {
	port := cfg.Port
	if port == 0 {
		port = 465
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}
	if port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	return mail.NewClient(cfg.Host, opts...)
}
