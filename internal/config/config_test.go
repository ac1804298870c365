package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
server:
  addr: 127.0.0.1:9000
  path: /hooks/github
  relay_timeout: 5s
discord:
  webhook_url: ${RUNRELAY_TEST_WEBHOOK}
  timeout: 10s
storage:
  driver: sqlite
  path: ./data/runrelay.db
janitor:
  enabled: true
  schedule: "@every 30m"
  max_age: 72h
logging:
  level: debug
  console: true
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadYAMLExpandsEnv(t *testing.T) {
	t.Setenv("RUNRELAY_TEST_WEBHOOK", "https://discord.com/api/webhooks/1/tok")
	m := NewConfigManager(writeFile(t, "config.yaml", validYAML))

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "/hooks/github", cfg.Server.Path)
	assert.Equal(t, "https://discord.com/api/webhooks/1/tok", cfg.Discord.WebhookURL)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.True(t, cfg.Janitor.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Same(t, cfg, m.Get())
}

func TestDecodeJSON(t *testing.T) {
	cfg, err := Decode("config.json", []byte(`{"discord":{"webhook_url":"https://x.test/w"},"storage":{"driver":"memory"}}`))
	require.NoError(t, err)
	assert.Equal(t, "https://x.test/w", cfg.Discord.WebhookURL)
	assert.NoError(t, Validate(cfg))
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode("config.json", []byte(`{"discord":{"webhook_url":"https://x.test/w","token":"x"}}`))
	assert.Error(t, err)

	_, err = Decode("config.yaml", []byte("discrod:\n  webhook_url: https://x.test/w\n"))
	assert.Error(t, err)
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode("config.json", []byte(`{"discord":{}} {"discord":{}}`))
	assert.ErrorContains(t, err, "trailing data")
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("RUNRELAY_SET", "value")
	os.Unsetenv("RUNRELAY_UNSET")

	assert.Equal(t, "a=value", ExpandEnv("a=${RUNRELAY_SET}"))
	assert.Equal(t, "a=", ExpandEnv("a=${RUNRELAY_UNSET}"))
	assert.Equal(t, "a=fallback", ExpandEnv("a=${RUNRELAY_UNSET:-fallback}"))
	assert.Equal(t, "a=value", ExpandEnv("a=${RUNRELAY_SET:-fallback}"))
	assert.Equal(t, "a=$HOME", ExpandEnv("a=$HOME"))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Discord: DiscordConfig{WebhookURL: "https://discord.com/api/webhooks/1/tok"}}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "minimal", mutate: func(*Config) {}},
		{name: "missing webhook", mutate: func(c *Config) { c.Discord.WebhookURL = "" }, wantErr: "discord.webhook_url is required"},
		{name: "bad scheme", mutate: func(c *Config) { c.Discord.WebhookURL = "ftp://x.test/w" }, wantErr: "unsupported scheme"},
		{name: "no host", mutate: func(c *Config) { c.Discord.WebhookURL = "https:///w" }, wantErr: "host is required"},
		{name: "bad duration", mutate: func(c *Config) { c.Server.RelayTimeout = "soon" }, wantErr: "server.relay_timeout"},
		{name: "negative body", mutate: func(c *Config) { c.Server.MaxBodyBytes = -1 }, wantErr: "max_body_bytes"},
		{name: "health path", mutate: func(c *Config) { c.Server.Path = "/healthz" }, wantErr: "reserved for the health probe"},
		{name: "health path unnormalized", mutate: func(c *Config) { c.Server.Path = " healthz " }, wantErr: "reserved for the health probe"},
		{name: "path under health", mutate: func(c *Config) { c.Server.Path = "/healthz/github" }},
		{name: "path with wildcard", mutate: func(c *Config) { c.Server.Path = "/hooks/{id}" }, wantErr: "server.path"},
		{name: "relay exceeds default write", mutate: func(c *Config) { c.Server.RelayTimeout = "30s" }, wantErr: "must be shorter than server.write_timeout"},
		{name: "default relay exceeds write", mutate: func(c *Config) { c.Server.WriteTimeout = "10s" }, wantErr: "must be shorter than server.write_timeout"},
		{name: "relay equals write", mutate: func(c *Config) {
			c.Server.RelayTimeout = "5s"
			c.Server.WriteTimeout = "5s"
		}, wantErr: "must be shorter than server.write_timeout"},
		{name: "relay below write", mutate: func(c *Config) {
			c.Server.RelayTimeout = "20s"
			c.Server.WriteTimeout = "1m"
		}},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "etcd" }, wantErr: "unknown storage.driver"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Storage.Driver = "sqlite" }, wantErr: "storage.path is required"},
		{name: "redis without url", mutate: func(c *Config) { c.Storage.Driver = "redis" }, wantErr: "storage.url is required"},
		{name: "bad schedule", mutate: func(c *Config) {
			c.Janitor.Enabled = true
			c.Janitor.Schedule = "whenever"
		}, wantErr: "janitor.schedule"},
		{name: "bad timezone", mutate: func(c *Config) {
			c.Janitor.Enabled = true
			c.Janitor.Timezone = "Mars/Olympus"
		}, wantErr: "janitor.timezone"},
		{name: "disabled janitor ignores schedule", mutate: func(c *Config) { c.Janitor.Schedule = "whenever" }},
		{name: "file log without path", mutate: func(c *Config) { c.Logging.File.Enabled = true }, wantErr: "logging.file.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateDoesNotLeakWebhookURL(t *testing.T) {
	err := Validate(&Config{Discord: DiscordConfig{WebhookURL: "https://x.test/%zz-secret"}})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}

func TestSummarizeConfigChange(t *testing.T) {
	old := &Config{
		Discord: DiscordConfig{WebhookURL: "https://x.test/old-secret"},
		Logging: LoggingConfig{Level: "info"},
	}
	next := &Config{
		Discord: DiscordConfig{WebhookURL: "https://x.test/new-secret"},
		Logging: LoggingConfig{Level: "debug"},
	}

	changed, attrs, restart := SummarizeConfigChange(old, next)
	assert.Equal(t, []string{"discord", "logging"}, changed)
	assert.Equal(t, []string{"discord"}, restart)
	assert.NotEmpty(t, attrs)

	changed, _, restart = SummarizeConfigChange(next, next)
	assert.Empty(t, changed)
	assert.Empty(t, restart)
}

func TestReloadSkipsUnchangedContent(t *testing.T) {
	path := writeFile(t, "config.json", `{"discord":{"webhook_url":"https://x.test/w"}}`)
	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)

	published, err := m.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, published)

	require.NoError(t, os.WriteFile(path, []byte(`{"discord":{"webhook_url":"https://x.test/w"},"logging":{"level":"debug"}}`), 0o600))
	ch := m.Subscribe(1)
	published, err = m.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, published)
	assert.Equal(t, "debug", (<-ch).Logging.Level)
}

func TestReloadRejectedByValidator(t *testing.T) {
	path := writeFile(t, "config.json", `{"discord":{"webhook_url":"https://x.test/w"}}`)
	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	before := m.Get()

	m.SetValidator(func(context.Context, *Config) error { return assert.AnError })
	require.NoError(t, os.WriteFile(path, []byte(`{"discord":{"webhook_url":"https://x.test/other"}}`), 0o600))

	_, err = m.Reload(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Same(t, before, m.Get())
}

func TestWatchPublishesOnWrite(t *testing.T) {
	path := writeFile(t, "config.yaml", "discord:\n  webhook_url: https://x.test/w\n")
	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("discord:\n  webhook_url: https://x.test/w\nlogging:\n  level: warn\n"), 0o600))

	select {
	case cfg := <-ch:
		assert.Equal(t, "warn", cfg.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	m := NewConfigManager("unused.json")
	ch := m.Subscribe(0)
	m.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
	m.publish(&Config{})
}
