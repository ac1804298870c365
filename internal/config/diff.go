package config

import (
	"sort"
	"strings"

	logx "runrelay/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes the webhook URL or
// the redis URL), and (3) the changed sections that only take effect after
// a restart.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)
	restart := make([]string, 0, 4)

	// Server (listener is bound once)
	if oldCfg.Server != newCfg.Server {
		changed = append(changed, "server")
		restart = append(restart, "server")
		attrs = append(attrs,
			logx.String("server.addr", strings.TrimSpace(newCfg.Server.Addr)),
			logx.String("server.path", strings.TrimSpace(newCfg.Server.Path)),
			logx.Int64("server.max_body_bytes", newCfg.Server.MaxBodyBytes),
			logx.String("server.relay_timeout", strings.TrimSpace(newCfg.Server.RelayTimeout)),
		)
	}

	// Discord (never log the webhook URL)
	if strings.TrimSpace(oldCfg.Discord.WebhookURL) != strings.TrimSpace(newCfg.Discord.WebhookURL) ||
		strings.TrimSpace(oldCfg.Discord.Timeout) != strings.TrimSpace(newCfg.Discord.Timeout) ||
		oldCfg.Discord.Username != newCfg.Discord.Username ||
		oldCfg.Discord.AvatarURL != newCfg.Discord.AvatarURL {
		changed = append(changed, "discord")
		restart = append(restart, "discord")
		attrs = append(attrs,
			logx.Bool("discord.webhook_changed", strings.TrimSpace(oldCfg.Discord.WebhookURL) != strings.TrimSpace(newCfg.Discord.WebhookURL)),
			logx.String("discord.timeout", strings.TrimSpace(newCfg.Discord.Timeout)),
			logx.Bool("discord.username_set", strings.TrimSpace(newCfg.Discord.Username) != ""),
		)
	}

	// Storage (never log the redis URL)
	oS, nS := oldCfg.Storage, newCfg.Storage
	if strings.TrimSpace(oS.Driver) != strings.TrimSpace(nS.Driver) ||
		strings.TrimSpace(oS.Path) != strings.TrimSpace(nS.Path) ||
		strings.TrimSpace(oS.BusyTimeout) != strings.TrimSpace(nS.BusyTimeout) ||
		strings.TrimSpace(oS.URL) != strings.TrimSpace(nS.URL) ||
		strings.TrimSpace(oS.KeyPrefix) != strings.TrimSpace(nS.KeyPrefix) ||
		strings.TrimSpace(oS.TTL) != strings.TrimSpace(nS.TTL) {
		changed = append(changed, "storage")
		restart = append(restart, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
			logx.Bool("storage.url_set", strings.TrimSpace(nS.URL) != ""),
			logx.String("storage.ttl", strings.TrimSpace(nS.TTL)),
		)
	}

	// Janitor
	if oldCfg.Janitor != newCfg.Janitor {
		changed = append(changed, "janitor")
		restart = append(restart, "janitor")
		attrs = append(attrs,
			logx.Bool("janitor.enabled", newCfg.Janitor.Enabled),
			logx.String("janitor.schedule", strings.TrimSpace(newCfg.Janitor.Schedule)),
			logx.String("janitor.max_age", strings.TrimSpace(newCfg.Janitor.MaxAge)),
		)
	}

	// Logging (applied live)
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.discord_enabled", newCfg.Logging.Discord.Enabled),
		)
	}

	sort.Strings(changed)
	sort.Strings(restart)
	return changed, attrs, restart
}
