package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runrelay/internal/config"
	logx "runrelay/pkg/logx"
)

// fakeDiscord records webhook calls and hands out sequential message IDs.
type fakeDiscord struct {
	mu    sync.Mutex
	calls []string
	next  atomic.Int64
}

func (f *fakeDiscord) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	id := filepath.Base(r.URL.Path)
	if r.Method == http.MethodPost {
		id = "m" + strconv.FormatInt(f.next.Add(1), 10)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"id":"` + id + `"}`))
}

func (f *fakeDiscord) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func writeConfig(t *testing.T, webhook string) string {
	t.Helper()
	dir := t.TempDir()
	body := strings.Join([]string{
		"server:",
		"  addr: 127.0.0.1:0",
		"discord:",
		"  webhook_url: " + webhook + "/api/webhooks/1/tok",
		"storage:",
		"  driver: sqlite",
		"  path: " + filepath.Join(dir, "runrelay.db"),
		"janitor:",
		"  enabled: true",
		"  schedule: 1h",
		"logging:",
		"  level: error",
		"",
	}, "\n")
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func post(t *testing.T, addr, body string) map[string]any {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "http://"+addr+"/", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-GitHub-Event", "workflow_run")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func runEvent(action, status, conclusion string) string {
	c := "null"
	if conclusion != "" {
		c = `"` + conclusion + `"`
	}
	return `{"action":"` + action + `","workflow_run":{"id":7,"name":"CI","status":"` + status + `","conclusion":` + c + `},"repository":{"full_name":"octo/app"}}`
}

func TestAppRelaysRunLifecycle(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	discord := &fakeDiscord{}
	ds := httptest.NewServer(discord)
	defer ds.Close()

	a, err := NewApp(writeConfig(t, ds.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	assert.Equal(t, true, post(t, a.Addr(), runEvent("requested", "queued", ""))["success"])
	assert.Equal(t, true, post(t, a.Addr(), runEvent("in_progress", "in_progress", ""))["success"])
	assert.Equal(t, true, post(t, a.Addr(), runEvent("completed", "completed", "success"))["success"])

	assert.Equal(t, []string{
		"POST /api/webhooks/1/tok",
		"PATCH /api/webhooks/1/tok/messages/m1",
		"PATCH /api/webhooks/1/tok/messages/m1",
	}, discord.snapshot())

	assert.Eventually(t, func() bool {
		st := a.Stats().(Stats)
		return st.Relay.Created == 1 && st.Relay.Updated == 2 && st.Relay.Forgotten == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + a.Addr() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health struct {
		Status string `json:"status"`
		Stats  Stats  `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	require.NotNil(t, health.Stats.Janitor)
	assert.Equal(t, "1h", health.Stats.Janitor.Schedule)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	assert.NoError(t, a.Stop(stopCtx, StopAppStop))
	<-a.Done()
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"discord":{"webhook_url":""}}`), 0o600))
	_, err := NewApp(p)
	assert.ErrorContains(t, err, "discord.webhook_url is required")
}

func TestMaintenanceForgetAndExpire(t *testing.T) {
	discord := &fakeDiscord{}
	ds := httptest.NewServer(discord)
	defer ds.Close()
	cfgPath := writeConfig(t, ds.URL)

	a, err := NewApp(cfgPath)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	post(t, a.Addr(), runEvent("requested", "queued", ""))
	require.NoError(t, a.Stop(context.Background(), StopAppStop))

	m, err := OpenMaintenance(cfgPath)
	require.NoError(t, err)
	defer m.Close()

	n, err := m.Expire(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, m.Forget(context.Background(), "7"))
	_, ok, err := m.core.store.Get(context.Background(), "7")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, m.Forget(context.Background(), " "))
	_, err = m.Expire(context.Background(), 0)
	assert.Error(t, err)
}

func TestMapStorageConfig(t *testing.T) {
	tests := []struct {
		name    string
		in      config.StorageConfig
		driver  string
		wantErr bool
	}{
		{name: "default memory", in: config.StorageConfig{}, driver: "memory"},
		{name: "sqlite", in: config.StorageConfig{Driver: "SQLite", Path: "x.db"}, driver: "sqlite"},
		{name: "sqlite no path", in: config.StorageConfig{Driver: "sqlite"}, wantErr: true},
		{name: "redis", in: config.StorageConfig{Driver: "redis", URL: "redis://localhost:6379/0", TTL: "24h"}, driver: "redis"},
		{name: "redis bad ttl", in: config.StorageConfig{Driver: "redis", URL: "redis://x", TTL: "forever"}, wantErr: true},
		{name: "unknown", in: config.StorageConfig{Driver: "etcd"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := mapStorageConfig(&config.Config{Storage: tt.in})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.driver, sc.Driver)
		})
	}
}

func TestMapServerConfigDurations(t *testing.T) {
	sc, err := mapServerConfig(&config.Config{Server: config.ServerConfig{RelayTimeout: "3s", ShutdownTimeout: "1m"}})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, sc.RelayTimeout)
	assert.Equal(t, time.Minute, sc.ShutdownTimeout)

	_, err = mapServerConfig(&config.Config{Server: config.ServerConfig{IdleTimeout: "later"}})
	assert.ErrorContains(t, err, "server.idle_timeout")
}

func TestStepHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	step(context.Background(), logx.Nop(), "slow", 50*time.Millisecond, func(context.Context) error {
		<-release
		return nil
	})
	assert.Less(t, time.Since(start), time.Second)
}

func TestBootstrapMirrorsLogsThroughDiscord(t *testing.T) {
	discord := &fakeDiscord{}
	ds := httptest.NewServer(discord)
	defer ds.Close()

	cfg := &config.Config{
		Discord: config.DiscordConfig{WebhookURL: ds.URL + "/api/webhooks/1/tok"},
		Logging: config.LoggingConfig{
			Level:   "debug",
			Discord: config.LoggingDiscord{Enabled: true, MinLevel: "warn", RatePerSec: 20},
		},
	}
	c, err := bootstrap(cfg, nil)
	require.NoError(t, err)
	defer c.close()

	c.log.Warn("store slow")
	assert.Eventually(t, func() bool {
		return len(discord.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "POST /api/webhooks/1/tok", discord.snapshot()[0])
}
