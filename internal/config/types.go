package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings ("500ms", "10s", "72h").
type Config struct {
	Server  ServerConfig  `json:"server"`
	Discord DiscordConfig `json:"discord"`
	Storage StorageConfig `json:"storage"`
	Janitor JanitorConfig `json:"janitor"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig controls the inbound webhook listener.
//
// Defaults:
//   - addr: "127.0.0.1:8080"
//   - path: "/"
//   - max_body_bytes: 26214400 (25 MiB)
//   - relay_timeout: "15s"
//   - shutdown_timeout: "10s"
type ServerConfig struct {
	Addr            string `json:"addr,omitempty"`
	Path            string `json:"path,omitempty"`
	MaxBodyBytes    int64  `json:"max_body_bytes,omitempty"`
	RelayTimeout    string `json:"relay_timeout,omitempty"`
	ReadTimeout     string `json:"read_timeout,omitempty"`
	WriteTimeout    string `json:"write_timeout,omitempty"`
	IdleTimeout     string `json:"idle_timeout,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`
}

// DiscordConfig points at the channel webhook.
//
// Example:
//
//	"discord": { "webhook_url": "${DISCORD_WEBHOOK}" }
type DiscordConfig struct {
	WebhookURL string `json:"webhook_url"` // secret; never logged
	Timeout    string `json:"timeout,omitempty"`
	Username   string `json:"username,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
}

// StorageConfig selects the association store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/runrelay.db" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"` // memory | file | sqlite | redis
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
	URL         string `json:"url,omitempty"`          // redis; secret
	KeyPrefix   string `json:"key_prefix,omitempty"`   // redis
	TTL         string `json:"ttl,omitempty"`          // redis
}

// JanitorConfig controls periodic expiry of stale associations.
type JanitorConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // cron, "30m" or "HH:MM"
	MaxAge   string `json:"max_age,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Discord LoggingDiscord `json:"discord"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingDiscord mirrors log lines into the relay channel.
type LoggingDiscord struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}
