// Package janitor periodically drops associations of runs whose completed
// event never arrived.
package janitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "runrelay/pkg/logx"
)

const (
	DefaultSchedule = "1h"
	DefaultMaxAge   = 72 * time.Hour

	sweepTimeout = time.Minute
)

// Expirer drops associations older than maxAge.
type Expirer interface {
	Expire(ctx context.Context, maxAge time.Duration) (int, error)
}

type Config struct {
	Enabled  bool
	Schedule string
	MaxAge   time.Duration
	Timezone string // IANA name; empty means local
}

// Janitor runs Expire on a schedule. Overlapping sweeps are skipped.
type Janitor struct {
	cfg      Config
	spec     ParsedSpec
	schedule cron.Schedule
	loc      *time.Location
	exp      Expirer
	log      logx.Logger

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	removed int
}

func New(cfg Config, exp Expirer, log logx.Logger) (*Janitor, error) {
	if exp == nil {
		return nil, errors.New("janitor: expirer is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Schedule) == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	spec, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	sched, err := spec.Schedule()
	if err != nil {
		return nil, err
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, err
		}
	}
	return &Janitor{
		cfg:      cfg,
		spec:     spec,
		schedule: sched,
		loc:      loc,
		exp:      exp,
		log:      log.With(logx.String("comp", "janitor")),
	}, nil
}

// Run schedules sweeps until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(j.loc),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{j.log})),
	)
	c.Schedule(j.schedule, cron.FuncJob(func() { j.Sweep(ctx) }))
	c.Start()
	j.log.Info("janitor started",
		logx.String("schedule", j.cfg.Schedule),
		logx.String("kind", j.spec.Source),
		logx.Duration("max_age", j.cfg.MaxAge),
	)

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// Sweep runs one expiry pass.
func (j *Janitor) Sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	n, err := j.exp.Expire(sctx, j.cfg.MaxAge)

	j.mu.Lock()
	j.lastRun = time.Now()
	j.lastErr = err
	j.removed += n
	j.mu.Unlock()

	if err != nil {
		j.log.Warn("sweep failed", logx.Err(err))
		return
	}
	j.log.Debug("sweep done", logx.Int("removed", n))
}

// Status is exposed on the health endpoint.
type Status struct {
	Schedule string    `json:"schedule"`
	MaxAge   string    `json:"max_age"`
	LastRun  time.Time `json:"last_run,omitzero"`
	LastErr  string    `json:"last_error,omitempty"`
	Removed  int       `json:"removed"`
}

func (j *Janitor) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	st := Status{
		Schedule: j.cfg.Schedule,
		MaxAge:   j.cfg.MaxAge.String(),
		LastRun:  j.lastRun,
		Removed:  j.removed,
	}
	if j.lastErr != nil {
		st.LastErr = j.lastErr.Error()
	}
	return st
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Warn("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
