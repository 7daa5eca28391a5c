package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/setulabs/setu/pkg/metrics"
)

// Redis is a Store backed by a Redis server.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects to addr and verifies the connection with a ping.
func NewRedis(addr, password string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Driver() string { return "redis" }

func (r *Redis) Get(key string, dest any) bool {
	val, err := r.rdb.Get(context.Background(), key).Result()
	if err != nil {
		metrics.CacheMisses.WithLabelValues(r.Driver()).Inc()
		return false
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		metrics.CacheMisses.WithLabelValues(r.Driver()).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(r.Driver()).Inc()
	return true
}

func (r *Redis) Set(key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.rdb.Set(context.Background(), key, data, ttl).Err()
}

func (r *Redis) Del(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(context.Background(), keys...).Err()
}

// Close releases the client's connections.
func (r *Redis) Close() error { return r.rdb.Close() }
