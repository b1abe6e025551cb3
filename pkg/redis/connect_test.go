package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/redis"
)

func TestConnect_InvalidConfig(t *testing.T) {
	t.Parallel()

	t.Run("empty url", func(t *testing.T) {
		t.Parallel()
		client, err := redis.Connect(context.Background(), redis.Config{})
		require.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
		assert.Nil(t, client)
	})

	t.Run("malformed url", func(t *testing.T) {
		t.Parallel()
		client, err := redis.Connect(context.Background(), redis.Config{ConnectionURL: "mysql://nope"})
		require.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
		assert.Nil(t, client)
	})
}
