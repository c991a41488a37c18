package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("Integration test - requires redis")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7.4-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := NewFromRedis(redis.NewClient(opts))
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx))
	return client
}

func TestCacheGeneration(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	gen, err := client.CacheGeneration(ctx)
	require.NoError(t, err)
	assert.Zero(t, gen)

	require.NoError(t, client.BumpCacheGeneration(ctx))
	gen, err = client.CacheGeneration(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
}

func TestJSONCache(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	type report struct {
		Name string `json:"name"`
	}

	var got report
	found, err := client.GetJSON(ctx, "compare:1:i5", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.SetJSON(ctx, "compare:1:i5", report{Name: "Intel Core i5-12400F"}, time.Minute))
	found, err = client.GetJSON(ctx, "compare:1:i5", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Intel Core i5-12400F", got.Name)
}

func TestMarkProcessed(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	fresh, err := client.MarkProcessed(ctx, "scraped:evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = client.MarkProcessed(ctx, "scraped:evt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)

	require.NoError(t, client.ForgetProcessed(ctx, "scraped:evt-1"))
	fresh, err = client.MarkProcessed(ctx, "scraped:evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestLock(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	token, err := client.AcquireLock(ctx, "match-batch:all", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	other, err := client.AcquireLock(ctx, "match-batch:all", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, other)

	// a stale token must not release someone else's lock
	require.NoError(t, client.ReleaseLock(ctx, "match-batch:all", "stale"))
	other, err = client.AcquireLock(ctx, "match-batch:all", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, client.ReleaseLock(ctx, "match-batch:all", token))
	token, err = client.AcquireLock(ctx, "match-batch:all", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}
