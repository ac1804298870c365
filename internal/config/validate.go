package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"runrelay/internal/janitor"
	"runrelay/internal/server"
)

// Validate checks required fields and value formats. It reports every
// problem it finds, joined.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string) {
		_, err := ParseDurationField(path, raw)
		add(err)
	}

	// server
	if cfg.Server.MaxBodyBytes < 0 {
		add(errors.New("server.max_body_bytes must be >= 0"))
	}
	if err := server.CheckPath(cfg.Server.Path); err != nil {
		add(fmt.Errorf("server.path: %w", err))
	}
	relay, rerr := ParseDurationOrDefault("server.relay_timeout", cfg.Server.RelayTimeout, server.DefaultRelayTimeout)
	add(rerr)
	write, werr := ParseDurationOrDefault("server.write_timeout", cfg.Server.WriteTimeout, server.DefaultWriteTimeout)
	add(werr)
	if rerr == nil && werr == nil && relay >= write {
		add(fmt.Errorf("server.relay_timeout (%s) must be shorter than server.write_timeout (%s)", relay, write))
	}
	dur("server.read_timeout", cfg.Server.ReadTimeout)
	dur("server.idle_timeout", cfg.Server.IdleTimeout)
	dur("server.shutdown_timeout", cfg.Server.ShutdownTimeout)

	// discord
	add(validateWebhookURL(cfg.Discord.WebhookURL))
	dur("discord.timeout", cfg.Discord.Timeout)

	// storage
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "memory", "mem":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add(fmt.Errorf("storage.path is required when storage.driver=%s", cfg.Storage.Driver))
		}
		dur("storage.busy_timeout", cfg.Storage.BusyTimeout)
	case "redis":
		if strings.TrimSpace(cfg.Storage.URL) == "" {
			add(errors.New("storage.url is required when storage.driver=redis"))
		}
		dur("storage.ttl", cfg.Storage.TTL)
	default:
		add(fmt.Errorf("unknown storage.driver: %s", cfg.Storage.Driver))
	}

	// janitor
	if cfg.Janitor.Enabled {
		if s := strings.TrimSpace(cfg.Janitor.Schedule); s != "" {
			if _, err := janitor.ParseSchedule(s); err != nil {
				add(fmt.Errorf("janitor.schedule: %w", err))
			}
		}
		dur("janitor.max_age", cfg.Janitor.MaxAge)
		if tz := strings.TrimSpace(cfg.Janitor.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				add(fmt.Errorf("janitor.timezone: invalid %q: %w", tz, err))
			}
		}
	}

	// logging
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		add(errors.New("logging.file.path is required when logging.file.enabled"))
	}
	if cfg.Logging.Discord.RatePerSec < 0 {
		add(errors.New("logging.discord.rate_per_sec must be >= 0"))
	}

	return errors.Join(errs...)
}

func validateWebhookURL(raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return errors.New("discord.webhook_url is required")
	}
	u, err := url.Parse(s)
	if err != nil {
		// url.Error repeats the URL, which holds the webhook token.
		return errors.New("discord.webhook_url is not a valid URL")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("discord.webhook_url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("discord.webhook_url: host is required")
	}
	return nil
}
