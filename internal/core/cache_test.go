package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront-agent/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := core.NewTTLCache[int](time.Minute, func() time.Time { return now })

	cache.Put("a", 1)
	cache.Put("b", 2)
	v, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(30 * time.Second)
	cache.Put("b", 3)
	now = now.Add(45 * time.Second)

	_, ok = cache.Get("a")
	assert.False(t, ok, "entries expire after the ttl")
	assert.Equal(t, 1, cache.Len())

	v, ok = cache.Get("b")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	now = now.Add(time.Minute)
	assert.Equal(t, 1, cache.Purge())
	assert.Zero(t, cache.Len())
}

type fakeForecastSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeForecastSource) ProductForecast(_ context.Context, storeID, productID string, horizon int) (core.ProductForecast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return core.ProductForecast{}, f.err
	}
	points := make([]core.ForecastPoint, 0, horizon)
	for i := 0; i < horizon && i < 3; i++ {
		points = append(points, core.ForecastPoint{Period: time.Date(2026, 4, i+1, 0, 0, 0, 0, time.UTC).Format(time.DateOnly), Quantity: dec("4")})
	}
	return core.ProductForecast{StoreID: storeID, ProductID: productID, Points: points}, nil
}

func TestForecastServiceCaches(t *testing.T) {
	src := &fakeForecastSource{}
	svc := core.NewForecastService(src, time.Hour, nil)
	ctx := context.Background()

	first, err := svc.Forecast(ctx, "mangoes", "shirt-1", 0)
	require.NoError(t, err)
	assert.Equal(t, "shirt-1", first.ProductID)
	assert.Len(t, first.Points, 3)

	_, err = svc.Forecast(ctx, " mangoes ", "shirt-1", 30)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "zero horizon and 30 share a cache entry")

	_, err = svc.Forecast(ctx, "mangoes", "shirt-1", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Zero(t, svc.PurgeExpired())
}

func TestForecastServiceValidation(t *testing.T) {
	svc := core.NewForecastService(&fakeForecastSource{}, 0, nil)
	ctx := context.Background()

	for _, tc := range []struct {
		name           string
		store, product string
		horizon        int
	}{
		{"missing store", "", "p", 7},
		{"missing product", "s", " ", 7},
		{"negative horizon", "s", "p", -1},
		{"horizon too long", "s", "p", 366},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Forecast(ctx, tc.store, tc.product, tc.horizon)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

func TestForecastServiceDoesNotCacheFailures(t *testing.T) {
	src := &fakeForecastSource{err: errors.New("backend down")}
	svc := core.NewForecastService(src, time.Hour, nil)

	_, err := svc.Forecast(context.Background(), "s", "p", 7)
	require.Error(t, err)
	src.err = nil
	_, err = svc.Forecast(context.Background(), "s", "p", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}
