package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bioswatch/internal/errdefs"
	"bioswatch/internal/firmware"
	logx "bioswatch/pkg/logx"
)

// ErrConfig marks a missing or invalid configuration value.
var ErrConfig = errdefs.ErrConfig

const (
	DefaultProduct       = "ASUS B450-I"
	DefaultSMTPHost      = "smtp.gmail.com"
	DefaultSMTPPort      = 465
	DefaultChannelFilter = "notification"
	DefaultTelegramRate  = 3

	DefaultFetchTimeout   = 30 * time.Second
	DefaultNotifyTimeout  = 30 * time.Second
	DefaultReleaseTimeout = 10 * time.Second
)

// Config is the full runtime configuration. Secrets are never logged.
//
// Example (YAML):
//
//	latest_version: "4602"
//	product: "ASUS B450-I"
//	smtp: { email: bot@example.com, password: secret, name: BIOS Bot }
//	email_to: { name: Me, address: me@example.com }
//	discord: { token: xxx, channel_name: notification }
//	schedule: "@every 6h"
type Config struct {
	// LatestVersion is the last known (expected) firmware version. It is kept
	// as the raw string so the orchestrator can report a missing value itself.
	LatestVersion FlexString `json:"latest_version"`
	Product       string     `json:"product,omitempty"`

	Vendor   VendorConfig   `json:"vendor"`
	SMTP     SMTPConfig     `json:"smtp"`
	EmailTo  ContactConfig  `json:"email_to"`
	Discord  DiscordConfig  `json:"discord"`
	Telegram TelegramConfig `json:"telegram"`
	Timeouts TimeoutsConfig `json:"timeouts"`
	Logging  LoggingConfig  `json:"logging"`

	// Schedule drives the watch daemon (cron, "@every 6h", "55m", "02:30").
	Schedule string `json:"schedule,omitempty"`
}

type VendorConfig struct {
	URL string `json:"url,omitempty"`
}

type SMTPConfig struct {
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type ContactConfig struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

type DiscordConfig struct {
	Token       string `json:"token"`
	ChannelName string `json:"channel_name,omitempty"`
}

type TelegramConfig struct {
	Token      string  `json:"token,omitempty"`
	ChatIDs    []int64 `json:"chat_ids,omitempty"`
	RatePerSec int     `json:"rate_per_sec,omitempty"`
	// ChannelName keeps only chats whose title contains it. Private chats
	// have no title and are always kept.
	ChannelName string `json:"channel_name,omitempty"`
	// APIURL overrides the Bot API base URL (self-hosted bot API servers).
	APIURL string `json:"api_url,omitempty"`
}

// FlexString accepts a JSON string or number, so YAML files may write
// latest_version: 4602 without quotes.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(b))
	}
	*f = FlexString(n.String())
	return nil
}

// Enabled reports whether the optional Telegram notifier should run.
func (t TelegramConfig) Enabled() bool { return strings.TrimSpace(t.Token) != "" }

// TimeoutsConfig holds Go duration strings. "0s" disables a timeout.
type TimeoutsConfig struct {
	Fetch   string `json:"fetch,omitempty"`
	Notify  string `json:"notify,omitempty"`
	Release string `json:"release,omitempty"`
}

type LoggingConfig struct {
	Level  string      `json:"level,omitempty"`
	Format string      `json:"format,omitempty"`
	File   LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// Default returns a config with every optional field at its default.
func Default() *Config {
	return &Config{
		Product: DefaultProduct,
		Vendor:  VendorConfig{URL: firmware.DefaultURL},
		SMTP:    SMTPConfig{Host: DefaultSMTPHost, Port: DefaultSMTPPort},
		Discord: DiscordConfig{ChannelName: DefaultChannelFilter},
		Telegram: TelegramConfig{
			RatePerSec: DefaultTelegramRate,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// fillDefaults sets defaults for fields a config file left empty.
func (c *Config) fillDefaults() {
	d := Default()
	if strings.TrimSpace(c.Product) == "" {
		c.Product = d.Product
	}
	if strings.TrimSpace(c.Vendor.URL) == "" {
		c.Vendor.URL = d.Vendor.URL
	}
	if strings.TrimSpace(c.SMTP.Host) == "" {
		c.SMTP.Host = d.SMTP.Host
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = d.SMTP.Port
	}
	if strings.TrimSpace(c.Discord.ChannelName) == "" {
		c.Discord.ChannelName = d.Discord.ChannelName
	}
	if c.Telegram.RatePerSec <= 0 {
		c.Telegram.RatePerSec = d.Telegram.RatePerSec
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = d.Logging.Level
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = d.Logging.Format
	}
}

// ExpectedVersion parses LatestVersion. A missing or malformed value is a
// fatal configuration error.
func (c *Config) ExpectedVersion() (firmware.Version, error) {
	raw := strings.TrimSpace(string(c.LatestVersion))
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is not set", ErrConfig, EnvLatestVersion)
	}
	v, err := firmware.ParseVersion(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrConfig, EnvLatestVersion, err)
	}
	return v, nil
}

// Validate checks format errors that can be detected without network calls.
// Missing credentials are not reported here; each notifier reports its own.
func (c *Config) Validate() error {
	var errs []error
	if c.SMTP.Port < 0 || c.SMTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: smtp.port out of range: %d", ErrConfig, c.SMTP.Port))
	}
	for name, raw := range map[string]string{
		"timeouts.fetch":   c.Timeouts.Fetch,
		"timeouts.notify":  c.Timeouts.Notify,
		"timeouts.release": c.Timeouts.Release,
	} {
		if _, err := ParseDurationField(name, raw); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrConfig, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) FetchTimeout() time.Duration {
	return durationOr(c.Timeouts.Fetch, DefaultFetchTimeout)
}

func (c *Config) NotifyTimeout() time.Duration {
	return durationOr(c.Timeouts.Notify, DefaultNotifyTimeout)
}

func (c *Config) ReleaseTimeout() time.Duration {
	return durationOr(c.Timeouts.Release, DefaultReleaseTimeout)
}

// durationOr returns def for an empty value and 0 for an explicit "0s".
// Invalid values are caught by Validate, so they fall back to def here.
func durationOr(raw string, def time.Duration) time.Duration {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	d, err := ParseDurationField("", raw)
	if err != nil {
		return def
	}
	return d
}

// LogConfig maps the logging section onto the logx service config.
func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		File:   logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
	}
}
