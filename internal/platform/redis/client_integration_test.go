//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycgate/internal/platform/config"
	"kycgate/internal/platform/redis"
	"kycgate/pkg/testutil/containers"
)

func TestClient(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)

	client, err := redis.New(ctx, config.Redis{
		URL:          rc.URL,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.NoError(t, client.Health(ctx))
	require.NoError(t, client.Close())
	assert.Error(t, client.Health(ctx), "closed client reports unhealthy")
}

func TestNewWithoutURL(t *testing.T) {
	client, err := redis.New(context.Background(), config.Redis{})
	assert.NoError(t, err)
	assert.Nil(t, client)
}
