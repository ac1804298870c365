package app

import (
	"fmt"
	"strings"
	"time"

	"runrelay/internal/config"
	"runrelay/internal/storage"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg == nil {
		return storage.Config{}, nil
	}
	sc := cfg.Storage
	dl := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch dl {
	case "", "memory", "mem":
		return storage.Config{Driver: "memory"}, nil
	case "file":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: dl, Path: path, BusyTimeout: busy}, nil
	case "redis":
		if strings.TrimSpace(sc.URL) == "" {
			return storage.Config{}, fmt.Errorf("storage.url is required when storage.driver=redis")
		}
		ttl, err := config.ParseDurationField("storage.ttl", sc.TTL)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{
			Driver:    dl,
			URL:       strings.TrimSpace(sc.URL),
			KeyPrefix: strings.TrimSpace(sc.KeyPrefix),
			TTL:       ttl,
		}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
