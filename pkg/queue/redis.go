package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisJobsKey    = "setu:queue:jobs"
	redisDelayedKey = "setu:queue:delayed"
)

// Redis is a durable driver. Immediate jobs ride a list via
// LPUSH/BRPOP; delayed jobs sit in a sorted set scored by the Unix
// time they become due, promoted onto the list by a background loop.
type Redis struct {
	rdb *redis.Client
}

// NewRedis wraps an existing client; the kernel dials one from
// REDIS_ADDR when QUEUE_DRIVER=redis.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (d *Redis) Push(ctx context.Context, payload []byte) error {
	if err := d.rdb.LPush(ctx, redisJobsKey, payload).Err(); err != nil {
		return fmt.Errorf("queue/redis: push: %w", err)
	}
	return nil
}

func (d *Redis) PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error {
	due := float64(time.Now().Add(delay).Unix())
	err := d.rdb.ZAdd(ctx, redisDelayedKey, redis.Z{Score: due, Member: string(payload)}).Err()
	if err != nil {
		return fmt.Errorf("queue/redis: push delayed: %w", err)
	}
	return nil
}

// Pop blocks up to five seconds for a job. A timeout is not an error;
// it returns (nil, nil) so the fetch loop can check its context.
func (d *Redis) Pop(ctx context.Context) ([]byte, error) {
	result, err := d.rdb.BRPop(ctx, 5*time.Second, redisJobsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue/redis: pop: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

// start promotes due delayed jobs onto the main list once a second
// until ctx ends. The queue runs it alongside the fetch loop.
func (d *Redis) start(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.promote(ctx)
		}
	}
}

func (d *Redis) promote(ctx context.Context) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := d.rdb.ZRangeByScore(ctx, redisDelayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil || len(due) == 0 {
		return
	}

	pipe := d.rdb.Pipeline()
	for _, job := range due {
		pipe.ZRem(ctx, redisDelayedKey, job)
		pipe.LPush(ctx, redisJobsKey, []byte(job))
	}
	pipe.Exec(ctx) //nolint:errcheck
}
