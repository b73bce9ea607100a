package throttle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"webgate/pkg/platform/sentinel"
)

// RedisLimiter keeps attempts in a sorted set per key, scored by unix
// microseconds, so the window is shared across instances.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter allows limit attempts per window for each key.
func NewRedisLimiter(client redis.UniversalClient, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: "throttle:",
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	k := l.prefix + key
	now := l.now()
	cutoff := now.Add(-l.window).UnixMicro()

	var card *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMicro()), Member: uuid.NewString()})
		card = pipe.ZCard(ctx, k)
		oldest = pipe.ZRangeWithScores(ctx, k, 0, 0)
		pipe.PExpire(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("throttle %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}

	first := now
	if zs := oldest.Val(); len(zs) > 0 {
		first = time.UnixMicro(int64(zs[0].Score))
	}
	return result(int(card.Val()), l.limit, first, l.window, now), nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("reset throttle %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}
	return nil
}
