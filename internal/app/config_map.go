package app

import (
	"strings"
	"time"

	"runrelay/internal/config"
	"runrelay/internal/janitor"
	"runrelay/internal/server"
	"runrelay/internal/transport/discord"
	logx "runrelay/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    lc.Discord.Enabled,
			MinLevel:   lc.Discord.MinLevel,
			RatePerSec: lc.Discord.RatePerSec,
		},
	}
}

func mapDiscordConfig(cfg *config.Config) (discord.Config, error) {
	timeout, err := config.ParseDurationOrDefault("discord.timeout", cfg.Discord.Timeout, discord.DefaultTimeout)
	if err != nil {
		return discord.Config{}, err
	}
	return discord.Config{
		WebhookURL: strings.TrimSpace(cfg.Discord.WebhookURL),
		Timeout:    timeout,
		Username:   strings.TrimSpace(cfg.Discord.Username),
		AvatarURL:  strings.TrimSpace(cfg.Discord.AvatarURL),
	}, nil
}

func mapServerConfig(cfg *config.Config) (server.Config, error) {
	sc := cfg.Server
	out := server.Config{
		Addr:         sc.Addr,
		Path:         sc.Path,
		MaxBodyBytes: sc.MaxBodyBytes,
	}
	fields := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"server.relay_timeout", sc.RelayTimeout, &out.RelayTimeout},
		{"server.read_timeout", sc.ReadTimeout, &out.ReadTimeout},
		{"server.write_timeout", sc.WriteTimeout, &out.WriteTimeout},
		{"server.idle_timeout", sc.IdleTimeout, &out.IdleTimeout},
		{"server.shutdown_timeout", sc.ShutdownTimeout, &out.ShutdownTimeout},
	}
	for _, f := range fields {
		d, err := config.ParseDurationField(f.key, f.raw)
		if err != nil {
			return server.Config{}, err
		}
		*f.dst = d
	}
	return out, nil
}

// mapJanitorConfig reports enabled=false when the janitor is off.
func mapJanitorConfig(cfg *config.Config) (janitor.Config, bool, error) {
	jc := cfg.Janitor
	if !jc.Enabled {
		return janitor.Config{}, false, nil
	}
	maxAge, err := config.ParseDurationOrDefault("janitor.max_age", jc.MaxAge, janitor.DefaultMaxAge)
	if err != nil {
		return janitor.Config{}, false, err
	}
	return janitor.Config{
		Enabled:  true,
		Schedule: strings.TrimSpace(jc.Schedule),
		MaxAge:   maxAge,
		Timezone: strings.TrimSpace(jc.Timezone),
	}, true, nil
}
