package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bioswatch/internal/firmware"
)

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestParseEnvOnlyDefaults(t *testing.T) {
	t.Parallel()

	m := NewManager("")
	m.SetLookup(envMap(map[string]string{EnvLatestVersion: "4602"}))

	cfg, err := m.Parse()
	require.NoError(t, err)

	v, err := cfg.ExpectedVersion()
	require.NoError(t, err)
	assert.Equal(t, firmware.Version(4602), v)
	assert.Equal(t, DefaultProduct, cfg.Product)
	assert.Equal(t, firmware.DefaultURL, cfg.Vendor.URL)
	assert.Equal(t, DefaultSMTPHost, cfg.SMTP.Host)
	assert.Equal(t, DefaultSMTPPort, cfg.SMTP.Port)
	assert.Equal(t, DefaultChannelFilter, cfg.Discord.ChannelName)
	assert.Equal(t, DefaultFetchTimeout, cfg.FetchTimeout())
	assert.Equal(t, DefaultNotifyTimeout, cfg.NotifyTimeout())
	assert.Equal(t, DefaultReleaseTimeout, cfg.ReleaseTimeout())
	assert.False(t, cfg.Telegram.Enabled())
}

func TestParseYAMLWithEnvOverride(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "bioswatch.yaml", `
latest_version: 4204
product: "ASUS B450-I"
smtp:
  email: bot@example.com
  password: file-secret
  name: BIOS Bot
email_to:
  address: me@example.com
discord:
  token: file-token
timeouts:
  fetch: 5s
  release: 0s
schedule: "@every 6h"
`)
	m := NewManager(path)
	m.SetLookup(envMap(map[string]string{
		EnvLatestVersion:  "4602",
		EnvSMTPPassword:   " spaced ",
		EnvDiscordChannel: "alerts",
		EnvTelegramToken:  "123:abc",
		EnvTelegramChats:  "-100, 42",
	}))

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())

	assert.Equal(t, FlexString("4602"), cfg.LatestVersion)
	assert.Equal(t, "bot@example.com", cfg.SMTP.Email)
	assert.Equal(t, " spaced ", cfg.SMTP.Password)
	assert.Equal(t, "file-token", cfg.Discord.Token)
	assert.Equal(t, "alerts", cfg.Discord.ChannelName)
	assert.Equal(t, []int64{-100, 42}, cfg.Telegram.ChatIDs)
	assert.True(t, cfg.Telegram.Enabled())
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout())
	assert.Equal(t, time.Duration(0), cfg.ReleaseTimeout())
	assert.Equal(t, "@every 6h", cfg.Schedule)
}

func TestParseTelegramChatFilter(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "c.yaml", "latest_version: 1\ntelegram:\n  token: \"123:abc\"\n  channel_name: BIOS\n")

	m := NewManager(path)
	m.SetLookup(envMap(nil))
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "BIOS", cfg.Telegram.ChannelName)

	m = NewManager(path)
	m.SetLookup(envMap(map[string]string{EnvTelegramFilter: " Alerts "}))
	cfg, err = m.Load()
	require.NoError(t, err)
	assert.Equal(t, "Alerts", cfg.Telegram.ChannelName)
}

func TestParseYAMLNumericVersion(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "c.yml", "latest_version: 4204\n")
	m := NewManager(path)
	m.SetLookup(envMap(nil))

	cfg, err := m.Parse()
	require.NoError(t, err)
	v, err := cfg.ExpectedVersion()
	require.NoError(t, err)
	assert.Equal(t, firmware.Version(4204), v)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		body string
		env  map[string]string
	}{
		{name: "unknown key", file: "c.yaml", body: "latest_versoin: 1\n"},
		{name: "trailing json", file: "c.json", body: `{"product":"x"}{"product":"y"}`},
		{name: "bad duration", file: "c.yaml", body: "timeouts: {fetch: soon}\n"},
		{name: "negative duration", file: "c.yaml", body: "timeouts: {notify: -1s}\n"},
		{name: "port out of range", file: "c.yaml", body: "smtp: {port: 70000}\n"},
		{name: "bad env port", env: map[string]string{EnvSMTPPort: "smtp"}},
		{name: "bad env chat id", env: map[string]string{EnvTelegramChats: "1,abc"}},
		{name: "bad env rate", env: map[string]string{EnvTelegramRate: "0"}},
		{name: "bad env timeout", env: map[string]string{EnvFetchTimeout: "ten"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file, tt.body)
			}
			m := NewManager(path)
			m.SetLookup(envMap(tt.env))

			_, err := m.Parse()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestParseMissingFile(t *testing.T) {
	t.Parallel()

	m := NewManager(filepath.Join(t.TempDir(), "missing.yaml"))
	m.SetLookup(envMap(nil))
	_, err := m.Parse()
	assert.ErrorIs(t, err, ErrConfig)
}

func TestExpectedVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  FlexString
		want firmware.Version
		err  bool
	}{
		{raw: "4602", want: 4602},
		{raw: " 12 ", want: 12},
		{raw: "", err: true},
		{raw: "   ", err: true},
		{raw: "abc", err: true},
		{raw: "-1", err: true},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.LatestVersion = tt.raw
		v, err := cfg.ExpectedVersion()
		if tt.err {
			assert.ErrorIs(t, err, ErrConfig, "raw=%q", tt.raw)
			assert.Contains(t, err.Error(), EnvLatestVersion)
			continue
		}
		require.NoError(t, err, "raw=%q", tt.raw)
		assert.Equal(t, tt.want, v)
	}
}

func TestReloadPublishesOnlyOnChange(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "c.yaml", "latest_version: \"1\"\n")
	m := NewManager(path)
	m.SetLookup(envMap(nil))
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	published, err := m.Reload()
	require.NoError(t, err)
	assert.False(t, published)

	require.NoError(t, os.WriteFile(path, []byte("latest_version: \"2\"\n"), 0o600))
	published, err = m.Reload()
	require.NoError(t, err)
	assert.True(t, published)

	select {
	case cfg := <-ch:
		assert.Equal(t, FlexString("2"), cfg.LatestVersion)
	default:
		t.Fatal("expected a published config")
	}

	// Invalid content keeps the previous config.
	require.NoError(t, os.WriteFile(path, []byte("nope: true\n"), 0o600))
	_, err = m.Reload()
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, FlexString("2"), m.Get().LatestVersion)
}

func TestSummarizeConfigChangeHidesSecrets(t *testing.T) {
	t.Parallel()

	oldCfg := Default()
	newCfg := Default()
	newCfg.SMTP.Password = "hunter2"
	newCfg.Discord.Token = "discord-secret"
	newCfg.Schedule = "@daily"

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	assert.Equal(t, []string{"email", "discord", "schedule"}, changed)
	assert.NotEmpty(t, attrs)

	changed, _ = SummarizeConfigChange(oldCfg, Default())
	assert.Empty(t, changed)
}

func TestNewStatic(t *testing.T) {
	t.Parallel()

	cfg := Default()
	m := NewStatic(cfg)
	assert.Same(t, cfg, m.Get())
	assert.Empty(t, m.Path())
}
