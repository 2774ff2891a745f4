package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bahon/internal/config"
	"bahon/internal/logging"
	"bahon/internal/redis"
	"bahon/internal/tests"
)

func newCachedFareService(t *testing.T, repo *tests.MockFareRepository) (*FareService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewFareService(repo, redis.NewCacheStore(client), config.FareConfig{
		DefaultPerKm: 8,
		CacheTTL:     30 * time.Second,
	}, time.Second, logging.Discard())
	return svc, mr
}

func TestFareService_CachesTableRead(t *testing.T) {
	repo := tests.NewMockFareRepository(decimal.RequireFromString("10.5"))
	svc, mr := newCachedFareService(t, repo)
	ctx := context.Background()

	assert.True(t, svc.CurrentFarePerKm(ctx).Equal(decimal.RequireFromString("10.5")))
	assert.True(t, svc.CurrentFarePerKm(ctx).Equal(decimal.RequireFromString("10.5")))
	assert.Equal(t, int32(1), repo.CurrentCallCount)

	cached, err := mr.Get("cache:fare")
	require.NoError(t, err)
	assert.Equal(t, "10.5", cached)

	mr.FastForward(31 * time.Second)
	svc.CurrentFarePerKm(ctx)
	assert.Equal(t, int32(2), repo.CurrentCallCount)
}

func TestFareService_DefaultIsNotCached(t *testing.T) {
	repo := tests.NewMockFareRepository(decimal.NewFromInt(10))
	repo.CurrentError = tests.ErrMockTimeout
	svc, mr := newCachedFareService(t, repo)

	assert.True(t, svc.CurrentFarePerKm(context.Background()).Equal(decimal.NewFromInt(8)))
	assert.False(t, mr.Exists("cache:fare"))
}

func TestFareService_CacheFailureFallsBackToTable(t *testing.T) {
	repo := tests.NewMockFareRepository(decimal.NewFromInt(10))
	svc, mr := newCachedFareService(t, repo)
	mr.Close()

	assert.True(t, svc.CurrentFarePerKm(context.Background()).Equal(decimal.NewFromInt(10)))
}

func TestFareService_ConcurrentCallers(t *testing.T) {
	repo := tests.NewMockFareRepository(decimal.NewFromInt(10))
	svc := NewFareService(repo, nil, config.FareConfig{DefaultPerKm: 8}, time.Second, logging.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, svc.CurrentFarePerKm(context.Background()).Equal(decimal.NewFromInt(10)))
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, repo.CurrentCallCount, int32(20))
}
