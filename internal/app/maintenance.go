package app

import (
	"context"
	"time"

	"runrelay/internal/config"
)

// Maintenance gives one-shot commands access to the association store
// without starting the listener.
type Maintenance struct {
	core *core
}

func OpenMaintenance(cfgPath string) (*Maintenance, error) {
	cfg, err := config.NewConfigManager(cfgPath).Load()
	if err != nil {
		return nil, err
	}
	c, err := bootstrap(cfg, nil)
	if err != nil {
		return nil, err
	}
	return &Maintenance{core: c}, nil
}

// Forget drops the association of one run.
func (m *Maintenance) Forget(ctx context.Context, runID string) error {
	return m.core.relay.Forget(ctx, runID)
}

// Expire drops associations older than maxAge and reports how many.
func (m *Maintenance) Expire(ctx context.Context, maxAge time.Duration) (int, error) {
	return m.core.relay.Expire(ctx, maxAge)
}

func (m *Maintenance) Close() error { return m.core.close() }
