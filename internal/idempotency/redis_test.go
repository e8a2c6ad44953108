package idempotency

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

// RedisStoreTestSuite runs against the server named by TEST_REDIS_URL,
// e.g. redis://localhost:6379/15. It is skipped when the variable is unset.
type RedisStoreTestSuite struct {
	suite.Suite
	client *redis.Client
	store  *RedisStore
	prefix string
}

func (s *RedisStoreTestSuite) SetupSuite() {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		s.T().Skip("TEST_REDIS_URL not set")
	}
	client, err := NewRedisClient(context.Background(), url)
	s.Require().NoError(err)
	s.client = client
}

func (s *RedisStoreTestSuite) SetupTest() {
	s.store = NewRedisStore(s.client, time.Minute)
	// isolate runs that share a server
	s.prefix = "test:" + uuid.NewString() + ":"
	s.store.prefix = s.prefix
}

func (s *RedisStoreTestSuite) TearDownTest() {
	ctx := context.Background()
	keys, err := s.client.Keys(ctx, s.prefix+"*").Result()
	s.Require().NoError(err)
	if len(keys) > 0 {
		s.Require().NoError(s.client.Del(ctx, keys...).Err())
	}
}

func (s *RedisStoreTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *RedisStoreTestSuite) TestLifecycle() {
	ctx := context.Background()

	result, err := s.store.Reserve(ctx, "k")
	s.Require().NoError(err)
	s.Empty(result)

	_, err = s.store.Reserve(ctx, "k")
	s.ErrorIs(err, ErrInFlight)

	s.Require().NoError(s.store.Complete(ctx, "k", "order-1"))
	result, err = s.store.Reserve(ctx, "k")
	s.Require().NoError(err)
	s.Equal("order-1", result)

	ttl, err := s.client.TTL(ctx, s.prefix+"k").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0), "completed keys still expire")
}

func (s *RedisStoreTestSuite) TestReleaseAllowsRetry() {
	ctx := context.Background()

	_, err := s.store.Reserve(ctx, "k")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Release(ctx, "k"))

	result, err := s.store.Reserve(ctx, "k")
	s.Require().NoError(err)
	s.Empty(result)
}

func (s *RedisStoreTestSuite) TestExpiredReservationCanBeClaimed() {
	ctx := context.Background()
	s.store.ttl = time.Second

	_, err := s.store.Reserve(ctx, "k")
	s.Require().NoError(err)

	time.Sleep(1500 * time.Millisecond)
	result, err := s.store.Reserve(ctx, "k")
	s.Require().NoError(err)
	s.Empty(result)
}

func (s *RedisStoreTestSuite) TestSingleOwnerUnderContention() {
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	owners := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if result, err := s.store.Reserve(ctx, "k"); err == nil && result == "" {
				mu.Lock()
				owners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, owners)
}

func TestRedisStoreTestSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreTestSuite))
}
