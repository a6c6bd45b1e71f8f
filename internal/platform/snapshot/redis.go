package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ehr/hms/internal/platform/store"
)

const redisKey = "hms:snapshots"

// Redis keeps every container's snapshot as a field of one hash.
type Redis struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	r := NewRedisClient(redis.NewClient(opts), redisKey)
	if err := r.Ping(ctx); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return r, nil
}

// NewRedisClient wraps an existing client; key names the hash.
func NewRedisClient(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key, now: time.Now}
}

func (r *Redis) Save(ctx context.Context, snaps []store.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	now := r.now()
	fields := make(map[string]any, len(snaps))
	for _, snap := range snaps {
		payload, err := encode(snap, now)
		if err != nil {
			return err
		}
		fields[snap.Name] = payload
	}
	if err := r.client.HSet(ctx, r.key, fields).Err(); err != nil {
		return fmt.Errorf("hset snapshots: %w", err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context) ([]store.Snapshot, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall snapshots: %w", err)
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]store.Snapshot, 0, len(names))
	for _, name := range names {
		snap, err := decode([]byte(all[name]))
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.client.Close() }
