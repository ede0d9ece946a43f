package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	EnvLatestVersion  = "LATEST_VER"
	EnvProduct        = "PRODUCT_NAME"
	EnvVendorURL      = "BIOS_URL"
	EnvSMTPHost       = "SMTP_HOST"
	EnvSMTPPort       = "SMTP_PORT"
	EnvSMTPEmail      = "SMTP_EMAIL"
	EnvSMTPPassword   = "SMTP_PASSWORD"
	EnvSMTPName       = "SMTP_NAME"
	EnvEmailTo        = "EMAIL_TO"
	EnvEmailToName    = "EMAIL_TO_NAME"
	EnvDiscordToken   = "DISCORD_AUTH_TOKEN"
	EnvDiscordChannel = "DISCORD_CHANNEL_NAME"
	EnvTelegramToken  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChats  = "TELEGRAM_CHAT_IDS"
	EnvTelegramRate   = "TELEGRAM_RATE_PER_SEC"
	EnvTelegramAPIURL = "TELEGRAM_API_URL"
	EnvTelegramFilter = "TELEGRAM_CHAT_FILTER"
	EnvFetchTimeout   = "FETCH_TIMEOUT"
	EnvNotifyTimeout  = "NOTIFY_TIMEOUT"
	EnvReleaseTimeout = "RELEASE_TIMEOUT"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
	EnvSchedule       = "SCHEDULE"

	// EnvLambdaRuntimeAPI is set by the AWS Lambda runtime.
	EnvLambdaRuntimeAPI = "AWS_LAMBDA_RUNTIME_API"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadFromEnv returns the default config overlaid with the process environment.
func LoadFromEnv() (*Config, error) {
	cfg := Default()
	if InLambda() {
		cfg.Logging.Format = "json"
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InLambda reports whether the process runs inside the AWS Lambda runtime.
func InLambda() bool {
	return strings.TrimSpace(os.Getenv(EnvLambdaRuntimeAPI)) != ""
}

// ApplyEnv overlays every set (non-empty) variable onto cfg.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup(EnvLatestVersion); ok && strings.TrimSpace(v) != "" {
		cfg.LatestVersion = FlexString(strings.TrimSpace(v))
	}
	str(EnvProduct, &cfg.Product)
	str(EnvVendorURL, &cfg.Vendor.URL)
	str(EnvSMTPHost, &cfg.SMTP.Host)
	str(EnvSMTPEmail, &cfg.SMTP.Email)
	str(EnvSMTPName, &cfg.SMTP.Name)
	str(EnvEmailTo, &cfg.EmailTo.Address)
	str(EnvEmailToName, &cfg.EmailTo.Name)
	str(EnvDiscordToken, &cfg.Discord.Token)
	str(EnvDiscordChannel, &cfg.Discord.ChannelName)
	str(EnvTelegramToken, &cfg.Telegram.Token)
	str(EnvTelegramAPIURL, &cfg.Telegram.APIURL)
	str(EnvTelegramFilter, &cfg.Telegram.ChannelName)
	str(EnvFetchTimeout, &cfg.Timeouts.Fetch)
	str(EnvNotifyTimeout, &cfg.Timeouts.Notify)
	str(EnvReleaseTimeout, &cfg.Timeouts.Release)
	str(EnvLogLevel, &cfg.Logging.Level)
	str(EnvLogFormat, &cfg.Logging.Format)
	str(EnvSchedule, &cfg.Schedule)

	// Passwords may legitimately contain surrounding spaces.
	if v, ok := lookup(EnvSMTPPassword); ok && v != "" {
		cfg.SMTP.Password = v
	}

	if v, ok := lookup(EnvSMTPPort); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s: invalid port %q", ErrConfig, EnvSMTPPort, v)
		}
		cfg.SMTP.Port = n
	}
	if v, ok := lookup(EnvTelegramRate); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: %s: invalid rate %q", ErrConfig, EnvTelegramRate, v)
		}
		cfg.Telegram.RatePerSec = n
	}
	if v, ok := lookup(EnvTelegramChats); ok && strings.TrimSpace(v) != "" {
		ids, err := ParseChatIDs(v)
		if err != nil {
			return err
		}
		cfg.Telegram.ChatIDs = ids
	}
	return nil
}

// ParseChatIDs parses a comma separated list of Telegram chat ids.
func ParseChatIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: invalid chat id %q", ErrConfig, EnvTelegramChats, p)
		}
		out = append(out, id)
	}
	return out, nil
}
