package testutil

import (
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// GetTestRedisOptions returns Redis options for testing with configurable address
func GetTestRedisOptions() *redis.Options {
	redisAddr := os.Getenv("REDIS_TEST_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379" // fallback for local development
	}

	return &redis.Options{
		Addr: redisAddr,
		DB:   1, // Use test database
	}
}

// GetTestRedisClient returns a Redis client configured for testing
func GetTestRedisClient() *redis.Client {
	return redis.NewClient(GetTestRedisOptions())
}

// NewMiniRedisClient starts an in-process Redis and returns a client bound to
// it. Server and client are torn down with the test, so suites stay isolated
// without a running Redis.
func NewMiniRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}
