// Package cache keeps short-lived snapshots of matches in redis so that
// hot detail pages skip the database. The database stays authoritative:
// every committed mutation replaces the entry with a tombstone carrying the
// committed version, and snapshots older than the entry are never written.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fitmatch/backend/internal/logger"
	"fitmatch/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

type MatchCache interface {
	Get(ctx context.Context, id uint) (*models.Match, bool)
	// Set stores m unless the entry already holds a newer version.
	Set(ctx context.Context, m *models.Match)
	// Invalidate drops the snapshot and rejects later snapshots older than
	// version.
	Invalidate(ctx context.Context, id, version uint)
}

// Nop is used when no redis is configured.
type Nop struct{}

func (Nop) Get(context.Context, uint) (*models.Match, bool) { return nil, false }
func (Nop) Set(context.Context, *models.Match)              {}
func (Nop) Invalidate(context.Context, uint, uint)          {}

// NewRedisClient connects to redis and pings it with a short timeout.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Redis stores JSON entries under match:{id}. Failures are logged and
// treated as misses.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

// entry is either a snapshot or a tombstone left by a committed mutation.
type entry struct {
	Version uint          `json:"version"`
	Match   *models.Match `json:"match,omitempty"`
}

func NewRedis(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{rdb: rdb, ttl: ttl, log: log}
}

const maxPutAttempts = 3

func key(id uint) string { return fmt.Sprintf("match:%d", id) }

func (c *Redis) Get(ctx context.Context, id uint) (*models.Match, bool) {
	bs, err := c.rdb.Get(ctx, key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("match cache get failed", "match_id", id, "error", err)
		}
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(bs, &e); err != nil {
		c.log.Warn("match cache entry corrupt", "match_id", id, "error", err)
		c.drop(ctx, id)
		return nil, false
	}
	if e.Match == nil {
		return nil, false
	}
	return e.Match, true
}

func (c *Redis) Set(ctx context.Context, m *models.Match) {
	if err := c.put(ctx, m.ID, entry{Version: m.Version, Match: m}); err != nil {
		c.log.Warn("match cache set failed", "match_id", m.ID, "error", err)
	}
}

func (c *Redis) Invalidate(ctx context.Context, id, version uint) {
	if err := c.put(ctx, id, entry{Version: version}); err != nil {
		c.log.Warn("match cache invalidate failed", "match_id", id, "error", err)
		c.drop(ctx, id)
	}
}

// put writes e unless the stored entry carries a higher version. Writes
// racing on the same key are retried a few times.
func (c *Redis) put(ctx context.Context, id uint, e entry) error {
	bs, err := json.Marshal(e)
	if err != nil {
		return err
	}
	k := key(id)
	write := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var stored entry
			if json.Unmarshal(cur, &stored) == nil && stored.Version > e.Version {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, bs, c.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxPutAttempts; attempt++ {
		err = c.rdb.Watch(ctx, write, k)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (c *Redis) drop(ctx context.Context, id uint) {
	if err := c.rdb.Del(ctx, key(id)).Err(); err != nil {
		c.log.Warn("match cache delete failed", "match_id", id, "error", err)
	}
}
