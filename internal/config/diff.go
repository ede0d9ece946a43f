package config

import (
	"reflect"
	"strings"

	logx "bioswatch/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured attrs for logging. Secrets (passwords, tokens) are only reported
// as *_set booleans.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if strings.TrimSpace(string(oldCfg.LatestVersion)) != strings.TrimSpace(string(newCfg.LatestVersion)) ||
		oldCfg.Product != newCfg.Product {
		changed = append(changed, "firmware")
		attrs = append(attrs,
			logx.String("latest_version", strings.TrimSpace(string(newCfg.LatestVersion))),
			logx.String("product", newCfg.Product),
		)
	}

	if oldCfg.Vendor != newCfg.Vendor {
		changed = append(changed, "vendor")
		attrs = append(attrs, logx.String("vendor.url", newCfg.Vendor.URL))
	}

	// SMTP (never log password)
	if oldCfg.SMTP != newCfg.SMTP || oldCfg.EmailTo != newCfg.EmailTo {
		changed = append(changed, "email")
		attrs = append(attrs,
			logx.String("smtp.host", newCfg.SMTP.Host),
			logx.Int("smtp.port", newCfg.SMTP.Port),
			logx.Bool("smtp.password_set", newCfg.SMTP.Password != ""),
			logx.Bool("email_to.set", strings.TrimSpace(newCfg.EmailTo.Address) != ""),
		)
	}

	// Discord (never log token)
	if oldCfg.Discord != newCfg.Discord {
		changed = append(changed, "discord")
		attrs = append(attrs,
			logx.String("discord.channel_name", newCfg.Discord.ChannelName),
			logx.Bool("discord.token_set", strings.TrimSpace(newCfg.Discord.Token) != ""),
		)
	}

	// Telegram (never log token)
	if !reflect.DeepEqual(oldCfg.Telegram, newCfg.Telegram) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.enabled", newCfg.Telegram.Enabled()),
			logx.Int("telegram.chat_count", len(newCfg.Telegram.ChatIDs)),
			logx.Int("telegram.rate_per_sec", newCfg.Telegram.RatePerSec),
			logx.String("telegram.channel_name", newCfg.Telegram.ChannelName),
		)
	}

	if oldCfg.Timeouts != newCfg.Timeouts {
		changed = append(changed, "timeouts")
		attrs = append(attrs,
			logx.Duration("timeouts.fetch", newCfg.FetchTimeout()),
			logx.Duration("timeouts.notify", newCfg.NotifyTimeout()),
			logx.Duration("timeouts.release", newCfg.ReleaseTimeout()),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.String("logx.format", newCfg.Logging.Format),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Schedule) != strings.TrimSpace(newCfg.Schedule) {
		changed = append(changed, "schedule")
		attrs = append(attrs, logx.String("schedule", strings.TrimSpace(newCfg.Schedule)))
	}

	return changed, attrs
}
