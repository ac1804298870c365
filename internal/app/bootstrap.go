package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"runrelay/internal/config"
	"runrelay/internal/eventbus"
	"runrelay/internal/reconcile"
	"runrelay/internal/storage"
	"runrelay/internal/transport/discord"
	logx "runrelay/pkg/logx"
)

// core holds the pieces every entry point needs: logging, the Discord
// adapter, the association store and the reconciler over them.
type core struct {
	log     logx.Logger
	logs    *logx.Service
	discord *discord.Adapter
	store   storage.Store
	relay   *reconcile.Reconciler
}

func bootstrap(cfg *config.Config, bus eventbus.Bus) (*core, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	dcfg, err := mapDiscordConfig(cfg)
	if err != nil {
		return nil, err
	}

	// The Discord log sink posts through the same adapter as the relay. The
	// adapter logs without the chat sink so its own lines never loop back.
	var adRef atomic.Pointer[discord.Adapter]
	logSvc, log := logx.New(mapLoggingConfig(cfg), logx.SenderFunc(func(ctx context.Context, text string) error {
		a := adRef.Load()
		if a == nil {
			return errors.New("discord adapter not ready")
		}
		return a.SendText(ctx, text)
	}))
	ad, err := discord.New(dcfg, nil, log.WithoutChat().With(logx.String("comp", "discord")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	adRef.Store(ad)

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	store, err := storage.Open(sc, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.Info("storage ready", logx.String("driver", sc.Driver))

	relay := reconcile.New(store, ad, bus, log)

	return &core{
		log:     log,
		logs:    logSvc,
		discord: ad,
		store:   store,
		relay:   relay,
	}, nil
}

func (c *core) close() error {
	err := c.store.Close()
	if cerr := c.logs.Close(); err == nil {
		err = cerr
	}
	return err
}
