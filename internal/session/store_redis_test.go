package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"webgate/pkg/platform/sentinel"
)

type RedisStoreSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	store  *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.store = NewRedisStore(s.client)
}

func (s *RedisStoreSuite) TearDownTest() {
	_ = s.client.Close()
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	values := map[string]string{KeyPersonID: "p-1", KeyLocale: "de"}
	s.Require().NoError(s.store.Save(ctx, "tok", values, time.Hour))

	loaded, err := s.store.Load(ctx, "tok")
	s.Require().NoError(err)
	s.Equal(values, loaded)
	s.True(s.mr.Exists("sess:tok"))
	s.Equal(time.Hour, s.mr.TTL("sess:tok"))
}

func (s *RedisStoreSuite) TestSaveReplacesRemovedKeys() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, "tok", map[string]string{KeyPersonID: "p-1", KeyReturnTo: "/x"}, time.Hour))
	s.Require().NoError(s.store.Save(ctx, "tok", map[string]string{KeyPersonID: "p-1"}, time.Hour))

	loaded, err := s.store.Load(ctx, "tok")
	s.Require().NoError(err)
	s.Equal(map[string]string{KeyPersonID: "p-1"}, loaded)
}

func (s *RedisStoreSuite) TestSaveEmptyDeletes() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, "tok", map[string]string{KeyLocale: "fr"}, time.Hour))
	s.Require().NoError(s.store.Save(ctx, "tok", map[string]string{}, time.Hour))

	_, err := s.store.Load(ctx, "tok")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, "tok", map[string]string{KeyLocale: "fr"}, time.Minute))

	s.mr.FastForward(2 * time.Minute)

	_, err := s.store.Load(ctx, "tok")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestDeleteAndPrefix() {
	ctx := context.Background()
	store := NewRedisStore(s.client, WithKeyPrefix("app:s:"))
	s.Require().NoError(store.Save(ctx, "tok", map[string]string{KeyLocale: "fr"}, time.Hour))
	s.True(s.mr.Exists("app:s:tok"))

	s.Require().NoError(store.Delete(ctx, "tok"))
	s.False(s.mr.Exists("app:s:tok"))
}

func (s *RedisStoreSuite) TestUnavailable() {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	defer client.Close()

	_, err := NewRedisStore(client).Load(context.Background(), "tok")
	s.Require().ErrorIs(err, sentinel.ErrUnavailable)
}
