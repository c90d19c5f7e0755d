package cache

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/alankar/internal/analytics/domain"
	"github.com/smallbiznis/alankar/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// newRedis starts a throwaway redis container and returns a client for it.
func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func sampleSummary() domain.Summary {
	return domain.Summary{
		TotalCustomers:  4,
		TotalBills:      9,
		TotalPaidAmount: "125000",
		TotalDues:       "3400",
		SalesRevenue: []domain.RevenuePoint{
			{Date: "2024-03-14", DailyTotal: "52000"},
			{Date: "2024-03-15", DailyTotal: "0"},
		},
	}
}

func TestNewSummaryCacheDisabled(t *testing.T) {
	assert.Nil(t, NewSummaryCache(nil, config.Config{SummaryCacheTTL: time.Minute}, zap.NewNop()))

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	assert.Nil(t, NewSummaryCache(client, config.Config{}, zap.NewNop()))
	assert.NotNil(t, NewSummaryCache(client, config.Config{SummaryCacheTTL: time.Minute}, zap.NewNop()))
}

func TestSummaryKey(t *testing.T) {
	assert.Equal(t, "analytics:summary:2024-03-15", SummaryKey("2024-03-15"))
	assert.Equal(t, "analytics:summary:2024-03-15:refresh", RefreshKey(SummaryKey("2024-03-15")))
}

func TestSummaryCacheReadThrough(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()
	cache := NewSummaryCache(client, config.Config{SummaryCacheTTL: time.Minute}, zap.NewNop())
	require.NotNil(t, cache)
	key := SummaryKey("2024-03-15")

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.Set(ctx, key, sampleSummary()))

	got, err = cache.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sampleSummary(), *got)

	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	exists, err := client.Exists(ctx, RefreshKey(key)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "refresh marker released after write")
}

func TestSummaryCacheSkipsWriteWhileRefreshHeld(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()
	cache := NewSummaryCache(client, config.Config{SummaryCacheTTL: time.Minute}, zap.NewNop())
	key := SummaryKey("2024-03-16")

	require.NoError(t, client.Set(ctx, RefreshKey(key), "other-replica", time.Minute).Err())

	require.NoError(t, cache.Set(ctx, key, sampleSummary()))
	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	owner, err := client.Get(ctx, RefreshKey(key)).Result()
	require.NoError(t, err)
	assert.Equal(t, "other-replica", owner, "foreign marker left untouched")

	require.NoError(t, client.Del(ctx, RefreshKey(key)).Err())
	require.NoError(t, cache.Set(ctx, key, sampleSummary()))
	got, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSummaryCacheDiscardsUnreadableEntry(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()
	cache := NewSummaryCache(client, config.Config{SummaryCacheTTL: time.Minute}, zap.NewNop())
	key := SummaryKey("2024-03-17")

	require.NoError(t, client.Set(ctx, key, "{not json", time.Minute).Err())
	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}
