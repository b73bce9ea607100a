package session

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"webgate/pkg/platform/sentinel"
)

var (
	redisLoadDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webgate_session_redis_load_duration_ms",
		Help:    "Latency of session loads from Redis in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	})
)

// Redis key prefix for sessions; each session is a hash.
const sessionKeyPrefix = "sess:"

// RedisStore is a Redis-backed Store. Each session is one hash with a TTL that
// slides on every save.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the default "sess:" prefix.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore constructs a Redis-backed session store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, prefix: sessionKeyPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) key(token string) string {
	return s.prefix + token
}

func (s *RedisStore) Load(ctx context.Context, token string) (map[string]string, error) {
	start := time.Now()
	defer func() {
		redisLoadDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	values, err := s.client.HGetAll(ctx, s.key(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w: %w", sentinel.ErrUnavailable, err)
	}
	// HGETALL on a missing or expired key returns an empty map.
	if len(values) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return values, nil
}

// Save replaces the hash atomically in a MULTI/EXEC block so a concurrent
// reader never sees a half-written session.
func (s *RedisStore) Save(ctx context.Context, token string, values map[string]string, ttl time.Duration) error {
	key := s.key(token)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, hashArgs(values)...)
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func hashArgs(values map[string]string) []any {
	args := make([]any, 0, len(values)*2)
	for k, v := range values {
		args = append(args, k, v)
	}
	return args
}
