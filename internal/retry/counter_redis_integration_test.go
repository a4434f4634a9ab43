//go:build integration

package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verifid/pkg/testutil/containers"
)

type RedisCounterSuite struct {
	suite.Suite
	counter *RedisCounter
	redis   *containers.RedisContainer
}

func TestRedisCounterSuite(t *testing.T) {
	suite.Run(t, new(RedisCounterSuite))
}

func (s *RedisCounterSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.counter = NewRedisCounter(s.redis.Client, 24*time.Hour)
}

func (s *RedisCounterSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCounterSuite) TestIncrAdvancesAndSetsTTL() {
	ctx := context.Background()

	n, err := s.counter.Incr(ctx, "DNI-12345678")
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.counter.Incr(ctx, "DNI-12345678")
	s.Require().NoError(err)
	s.Equal(2, n)

	ttl, err := s.redis.Client.TTL(ctx, attemptKeyPrefix+"DNI-12345678").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisCounterSuite) TestCurrentUnknownKeyIsZero() {
	n, err := s.counter.Current(context.Background(), "DNI-99999999")
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RedisCounterSuite) TestResetClears() {
	ctx := context.Background()
	_, err := s.counter.Incr(ctx, "DNI-12345678")
	s.Require().NoError(err)

	s.Require().NoError(s.counter.Reset(ctx, "DNI-12345678"))

	n, err := s.counter.Current(ctx, "DNI-12345678")
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RedisCounterSuite) TestKeysAreIsolatedPerDocument() {
	ctx := context.Background()
	_, err := s.counter.Incr(ctx, "DNI-11111111")
	s.Require().NoError(err)
	_, err = s.counter.Incr(ctx, "PASSPORT-11111111")
	s.Require().NoError(err)

	n, err := s.counter.Current(ctx, "DNI-11111111")
	s.Require().NoError(err)
	s.Equal(1, n)
}
