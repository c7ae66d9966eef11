//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"countersign/internal/ratelimit"
	"countersign/pkg/testutil/containers"
)

type RedisLimiterSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisLimiterSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLimiterSuite))
}

func (s *RedisLimiterSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisLimiterSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLimiterSuite) TestAllowUpToLimit() {
	ctx := context.Background()
	limiter := ratelimit.NewRedisLimiter(s.redis.Client, 3, time.Minute)

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "profile-a")
		s.Require().NoError(err)
		s.True(result.Allowed, "attempt %d should be allowed", i+1)
	}

	result, err := limiter.Allow(ctx, "profile-a")
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Equal(0, result.Remaining)
}

func (s *RedisLimiterSuite) TestKeysAreIndependent() {
	ctx := context.Background()
	limiter := ratelimit.NewRedisLimiter(s.redis.Client, 1, time.Minute)

	first, err := limiter.Allow(ctx, "profile-a")
	s.Require().NoError(err)
	s.True(first.Allowed)

	blocked, err := limiter.Allow(ctx, "profile-a")
	s.Require().NoError(err)
	s.False(blocked.Allowed)

	other, err := limiter.Allow(ctx, "profile-b")
	s.Require().NoError(err)
	s.True(other.Allowed)
}

func (s *RedisLimiterSuite) TestWindowExpires() {
	ctx := context.Background()
	limiter := ratelimit.NewRedisLimiter(s.redis.Client, 1, time.Second)

	first, err := limiter.Allow(ctx, "profile-a")
	s.Require().NoError(err)
	s.True(first.Allowed)

	blocked, err := limiter.Allow(ctx, "profile-a")
	s.Require().NoError(err)
	s.False(blocked.Allowed)

	time.Sleep(1100 * time.Millisecond)

	again, err := limiter.Allow(ctx, "profile-a")
	s.Require().NoError(err)
	s.True(again.Allowed)
}
