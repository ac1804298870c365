// Package app wires the relay components together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"runrelay/internal/config"
	"runrelay/internal/eventbus"
	"runrelay/internal/janitor"
	"runrelay/internal/metrics"
	"runrelay/internal/runtime/supervisor"
	"runrelay/internal/server"
	logx "runrelay/pkg/logx"
	"runrelay/pkg/systemd"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	core *core
	log  logx.Logger
	bus  eventbus.Bus

	metrics *metrics.Collector
	janitor *janitor.Janitor // nil when disabled
	server  *server.Server
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	c, err := bootstrap(cfg, bus)
	if err != nil {
		return nil, err
	}
	log := c.log.With(logx.String("comp", "app"))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		core:    c,
		log:     log,
		bus:     bus,
		metrics: metrics.NewCollector(bus),
	}

	if jc, enabled, err := mapJanitorConfig(cfg); err != nil {
		_ = c.close()
		return nil, err
	} else if enabled {
		j, err := janitor.New(jc, c.relay, c.log)
		if err != nil {
			_ = c.close()
			return nil, fmt.Errorf("janitor: %w", err)
		}
		a.janitor = j
	}

	scfg, err := mapServerConfig(cfg)
	if err != nil {
		_ = c.close()
		return nil, err
	}
	a.server = server.New(scfg, c.relay, a.Stats, c.log)

	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Addr is the bound listener address once Start returned.
func (a *App) Addr() string { return a.server.Addr() }

// Stats is the payload of /healthz.
type Stats struct {
	Relay      metrics.Snapshot    `json:"relay"`
	Janitor    *janitor.Status     `json:"janitor,omitempty"`
	Supervisor supervisor.Snapshot `json:"supervisor"`
}

func (a *App) Stats() any {
	st := Stats{Relay: a.metrics.Snapshot()}
	if a.janitor != nil {
		js := a.janitor.Status()
		st.Janitor = &js
	}
	if a.sup != nil {
		st.Supervisor = a.sup.Snapshot()
	}
	return st
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log)
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapDiscordConfig(cfg); err != nil {
			return err
		}
		if _, err := mapServerConfig(cfg); err != nil {
			return err
		}
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		_, _, err := mapJanitorConfig(cfg)
		return err
	})

	if err := a.server.Listen(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	a.sup.Go("server", a.server.Serve)
	a.sup.Go("metrics", a.metrics.Run)
	if a.janitor != nil {
		a.sup.Go("janitor", a.janitor.Run)
	}

	if a.log.Enabled(logx.LevelDebug) {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go("eventbus.log", func(c context.Context) error {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return nil
				case e, ok := <-events:
					if !ok {
						return nil
					}
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	if d := systemd.WatchdogInterval(); d > 0 {
		a.sup.Go("systemd.watchdog", func(c context.Context) error {
			return systemd.Watchdog(c, d)
		})
	}
	if sent, err := systemd.Ready(); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	} else if sent {
		_, _ = systemd.Status("relaying on " + a.server.Addr())
	}

	a.log.Info("app started", logx.String("addr", a.server.Addr()))
	return nil
}

// reloadLoop applies logging changes live and reports every other changed
// section as needing a restart.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}

			sections, attrs, restart := config.SummarizeConfigChange(lastApplied, newCfg)
			lastApplied = newCfg
			if len(sections) == 0 {
				a.log.Info("config reloaded (no changes)")
				continue
			}

			a.core.logs.Apply(mapLoggingConfig(newCfg))

			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			a.log.Info("config reloaded", fields...)
			if len(restart) > 0 {
				a.log.Warn("config changed; restart required for changes to take effect",
					logx.String("sections", strings.Join(restart, ",")))
			}
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.core.close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if _, err := systemd.Stopping(); err != nil {
		a.log.Debug("systemd notify failed", logx.Err(err))
	}

	// Cancel the run context so the listener and background loops start
	// unwinding immediately.
	a.sup.Cancel()

	// The server drains in-flight relays within its own shutdown timeout.
	step(ctx, a.log, "supervisor", 15*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step(ctx, a.log, "storage", 2*time.Second, func(context.Context) error { return a.core.store.Close() })

	a.log.Info("stopped")
	_ = a.core.logs.Close()
	return a.sup.Err()
}
