package email

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"bioswatch/internal/notifier"
)

type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	f.sent = append(f.sent, messages...)
	return f.err
}

func validConfig() Config {
	return Config{
		Host:       "smtp.example.com",
		Port:       465,
		Username:   "bot@example.com",
		Password:   "secret",
		SenderName: "BIOS Bot",
		To:         notifier.Contact{Name: "Me", Address: "me@example.com"},
	}
}

func newWithFake(cfg Config, fs *fakeSender) *Notifier {
	n := New(cfg)
	n.dial = func(Config) (sender, error) { return fs, nil }
	return n
}

func TestAcquireMissingConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "recipient", mutate: func(c *Config) { c.To = notifier.Contact{} }, want: "recipient"},
		{name: "sender", mutate: func(c *Config) { c.Username = " " }, want: "sender address"},
		{name: "password", mutate: func(c *Config) { c.Password = "" }, want: "password"},
		{name: "host", mutate: func(c *Config) { c.Host = "" }, want: "smtp host"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)

			_, err := New(cfg).Acquire(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, notifier.ErrConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSendBuildsSingleMessage(t *testing.T) {
	t.Parallel()

	fs := &fakeSender{}
	n := newWithFake(validConfig(), fs)

	s, err := n.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), notifier.Message{
		Subject: "ASUS B450-I BIOS Update",
		Body:    "There's a new BIOS update for the ASUS B450-I: 100 => 105",
	}))
	require.NoError(t, s.Release(context.Background()))

	require.Len(t, fs.sent, 1)
	m := fs.sent[0]

	from := m.GetFromString()
	require.Len(t, from, 1)
	assert.Contains(t, from[0], "bot@example.com")
	assert.Contains(t, from[0], "BIOS Bot")

	to := m.GetToString()
	require.Len(t, to, 1)
	assert.Contains(t, to[0], "me@example.com")

	assert.Equal(t, []string{"ASUS B450-I BIOS Update"}, m.GetGenHeader(mail.HeaderSubject))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "100 => 105")
}

func TestSendPrefersMessageRecipient(t *testing.T) {
	t.Parallel()

	fs := &fakeSender{}
	s, err := newWithFake(validConfig(), fs).Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), notifier.Message{
		Subject: "s",
		Body:    "b",
		To:      notifier.Contact{Address: "other@example.com"},
	}))
	require.Len(t, fs.sent, 1)
	to := fs.sent[0].GetToString()
	require.Len(t, to, 1)
	assert.True(t, strings.Contains(to[0], "other@example.com"))
}

func TestSendFailures(t *testing.T) {
	t.Parallel()

	t.Run("dial", func(t *testing.T) {
		n := New(validConfig())
		n.dial = func(Config) (sender, error) { return nil, errors.New("no route") }
		s, err := n.Acquire(context.Background())
		require.NoError(t, err)

		err = s.Send(context.Background(), notifier.Message{Subject: "s", Body: "b"})
		var de *notifier.DeliveryError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, 0, de.Succeeded)
		assert.Equal(t, 1, de.Total)
		assert.ErrorIs(t, err, notifier.ErrConnection)
	})

	t.Run("auth", func(t *testing.T) {
		fs := &fakeSender{err: errors.New("535 authentication failed")}
		s, err := newWithFake(validConfig(), fs).Acquire(context.Background())
		require.NoError(t, err)

		err = s.Send(context.Background(), notifier.Message{Subject: "s", Body: "b"})
		assert.ErrorIs(t, err, notifier.ErrConnection)
	})

	t.Run("invalid recipient", func(t *testing.T) {
		cfg := validConfig()
		cfg.To = notifier.Contact{Address: "not an address"}
		fs := &fakeSender{}
		s, err := newWithFake(cfg, fs).Acquire(context.Background())
		require.NoError(t, err)

		err = s.Send(context.Background(), notifier.Message{Subject: "s", Body: "b"})
		assert.ErrorIs(t, err, notifier.ErrConfig)
		assert.Empty(t, fs.sent)
	})
}

func TestNewClientPorts(t *testing.T) {
	t.Parallel()

	for _, port := range []int{0, 465, 587} {
		cfg := validConfig()
		cfg.Port = port
		c, err := newClient(cfg)
		require.NoError(t, err, "port %d", port)
		assert.NotNil(t, c)
	}
}
