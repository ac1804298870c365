package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	logx "runrelay/pkg/logx"
)

// DefaultKeyPrefix namespaces association keys.
const DefaultKeyPrefix = "runrelay:run:"

const scanBatch = 256

// redisStore keeps one string key per run holding a JSON record.
type redisStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	log    logx.Logger
}

type redisRecord struct {
	MessageID string `json:"message_id"`
	CreatedAt int64  `json:"created_at"` // unix milli
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("storage.url is required for redis driver")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis store: invalid URL: %w", err)
	}
	return newRedisStore(goredis.NewClient(opts), cfg, log), nil
}

func newRedisStore(client *goredis.Client, cfg Config, log logx.Logger) *redisStore {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	ttl := cfg.TTL
	if ttl < 0 {
		ttl = 0
	}
	return &redisStore{client: client, prefix: prefix, ttl: ttl, log: log}
}

func (s *redisStore) key(runID string) string { return s.prefix + strings.TrimSpace(runID) }

func (s *redisStore) Get(ctx context.Context, runID string) (Association, bool, error) {
	raw, err := s.client.Get(ctx, s.key(runID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Association{}, false, nil
	}
	if err != nil {
		return Association{}, false, fmt.Errorf("redis get: %w", err)
	}
	a, err := decodeRecord(strings.TrimSpace(runID), raw)
	if err != nil {
		return Association{}, false, err
	}
	return a, true, nil
}

func (s *redisStore) Put(ctx context.Context, a Association) (Association, error) {
	a, err := normalize(a)
	if err != nil {
		return Association{}, err
	}
	body, err := json.Marshal(redisRecord{MessageID: a.MessageID, CreatedAt: a.CreatedAt.UnixMilli()})
	if err != nil {
		return Association{}, fmt.Errorf("redis: marshal record: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(a.RunID), body, s.ttl).Result()
	if err != nil {
		return Association{}, fmt.Errorf("redis setnx: %w", err)
	}
	if ok {
		return a, nil
	}
	cur, found, err := s.Get(ctx, a.RunID)
	if err != nil {
		return Association{}, err
	}
	if !found {
		return a, nil
	}
	return cur, nil
}

func (s *redisStore) Delete(ctx context.Context, runID string) error {
	if err := s.client.Del(ctx, s.key(runID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Expire walks the key space with SCAN. Keys with a TTL also expire on
// their own.
func (s *redisStore) Expire(ctx context.Context, before time.Time) (int, error) {
	cutoff := before.UnixMilli()
	n := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		raw, err := s.client.Get(ctx, k).Bytes()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("redis get: %w", err)
		}
		var rec redisRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			s.log.Warn("dropping unreadable association", logx.String("key", k), logx.Err(err))
		} else if rec.CreatedAt >= cutoff {
			continue
		}
		deleted, err := s.client.Del(ctx, k).Result()
		if err != nil {
			return n, fmt.Errorf("redis del: %w", err)
		}
		n += int(deleted)
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

func decodeRecord(runID string, raw []byte) (Association, error) {
	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Association{}, fmt.Errorf("redis: decode %s: %w", runID, err)
	}
	return Association{RunID: runID, MessageID: rec.MessageID, CreatedAt: time.UnixMilli(rec.CreatedAt).UTC()}, nil
}
