// Package redis is a cache.Store backed by Redis hashes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pario-ai/sift/pkg/apperr"
	"github.com/pario-ai/sift/pkg/logger"
	"github.com/pario-ai/sift/pkg/models"
)

// Config holds connection settings for the Redis backend.
type Config struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	Prefix      string        `yaml:"prefix"`
	Grace       time.Duration `yaml:"grace"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	PoolSize    int           `yaml:"pool_size"`
}

// ToRedisOptions converts the config into client options.
func (c Config) ToRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: c.DialTimeout,
		PoolSize:    c.PoolSize,
	}
}

// Hash fields of a stored entry.
const (
	fieldPayload = "p"
	fieldHits    = "h"
	fieldCreated = "c"
	fieldExpires = "e"
)

// getScript returns nil unless the entry is live, in which case it bumps the
// hit count and returns {payload, hits, created, expires}.
var getScript = redis.NewScript(`
local e = redis.call('HGET', KEYS[1], 'e')
if not e or tonumber(e) <= tonumber(ARGV[1]) then
	return false
end
local h = redis.call('HINCRBY', KEYS[1], 'h', 1)
local v = redis.call('HMGET', KEYS[1], 'p', 'c')
return {v[1], h, v[2], e}
`)

// sweepScript deletes the entry only if it is still expired, so an entry
// rewritten between SCAN and delete survives.
var sweepScript = redis.NewScript(`
local e = redis.call('HGET', KEYS[1], 'e')
if e and tonumber(e) <= tonumber(ARGV[1]) then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Store keeps one hash per cache key. Logical expiry lives in the hash; the
// physical Redis TTL is the logical expiry plus a grace period so sweeps can
// still observe and count expired entries.
type Store struct {
	client *redis.Client
	prefix string
	grace  time.Duration
	now    func() time.Time
}

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	client := redis.NewClient(cfg.ToRedisOptions())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	logger.WithComponent("cache").Info("connected to redis", "addr", cfg.Addr, "db", cfg.DB)

	return NewWithClient(client, cfg.Prefix, cfg.Grace), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string, grace time.Duration) *Store {
	if prefix == "" {
		prefix = "sift:cache:"
	}
	if grace <= 0 {
		grace = time.Minute
	}
	return &Store{client: client, prefix: prefix, grace: grace, now: time.Now}
}

func (s *Store) key(k string) string { return s.prefix + k }

// Get returns a live entry and increments its hit count atomically.
func (s *Store) Get(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	res, err := getScript.Run(ctx, s.client, []string{s.key(key)}, s.now().UnixMilli()).Result()
	if errors.Is(err, redis.Nil) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, apperr.StoreUnavailable("redis.Get", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 4 {
		return models.CacheEntry{}, false, apperr.StoreUnavailable("redis.Get",
			fmt.Errorf("unexpected script reply %T", res))
	}
	payload, _ := vals[0].(string)
	hits, _ := vals[1].(int64)
	created, err := parseMillis(vals[2])
	if err != nil {
		return models.CacheEntry{}, false, apperr.StoreUnavailable("redis.Get", err)
	}
	expires, err := parseMillis(vals[3])
	if err != nil {
		return models.CacheEntry{}, false, apperr.StoreUnavailable("redis.Get", err)
	}
	return models.CacheEntry{
		Key:       key,
		Payload:   []byte(payload),
		HitCount:  hits,
		CreatedAt: created,
		ExpiresAt: expires,
	}, true, nil
}

func parseMillis(v interface{}) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected timestamp %T", v)
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Put replaces the entry in one MULTI block.
func (s *Store) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl < 0 {
		return apperr.InvalidArgument("redis.Put", "negative ttl %s", ttl)
	}
	now := s.now()
	expires := now.Add(ttl)
	k := s.key(key)

	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.HSet(ctx, k,
			fieldPayload, payload,
			fieldHits, 0,
			fieldCreated, now.UnixMilli(),
			fieldExpires, expires.UnixMilli(),
		)
		p.PExpireAt(ctx, k, expires.Add(s.grace))
		return nil
	})
	if err != nil {
		return apperr.StoreUnavailable("redis.Put", err)
	}
	return nil
}

// scan visits every key under the prefix in batches.
func (s *Store) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 500).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// SweepExpired deletes logically expired entries one key at a time.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	var removed int64
	err := s.scan(ctx, func(keys []string) error {
		now := s.now().UnixMilli()
		for _, k := range keys {
			n, err := sweepScript.Run(ctx, s.client, []string{k}, now).Int64()
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		return removed, apperr.StoreUnavailable("redis.SweepExpired", err)
	}
	return removed, nil
}

// Purge deletes every key under the prefix.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	var removed int64
	err := s.scan(ctx, func(keys []string) error {
		n, err := s.client.Del(ctx, keys...).Result()
		removed += n
		return err
	})
	if err != nil {
		return removed, apperr.StoreUnavailable("redis.Purge", err)
	}
	return removed, nil
}

// Stats reads expiry and hit fields of every key under the prefix.
func (s *Store) Stats(ctx context.Context) (models.CacheStats, error) {
	var st models.CacheStats
	now := s.now().UnixMilli()
	err := s.scan(ctx, func(keys []string) error {
		cmds := make([]*redis.SliceCmd, len(keys))
		_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
			for i, k := range keys {
				cmds[i] = p.HMGet(ctx, k, fieldExpires, fieldHits)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, cmd := range cmds {
			vals := cmd.Val()
			if len(vals) != 2 || vals[0] == nil {
				continue
			}
			exp, err := strconv.ParseInt(fmt.Sprint(vals[0]), 10, 64)
			if err != nil || exp <= now {
				continue
			}
			hits, _ := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
			st.Entries++
			st.Hits += hits
		}
		return nil
	})
	if err != nil {
		return models.CacheStats{}, apperr.StoreUnavailable("redis.Stats", err)
	}
	return st, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
