package core_test

import (
	"context"
	"os"
	"testing"
	"time"

	"storefront-agent/internal/core"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSavingsModelApply(t *testing.T) {
	model := core.DefaultSavingsModel()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("PHT", 8*3600))

	s := model.Apply(core.BookkeeperStats{}, core.StatsDelta{Docs: 1, Transactions: 2}, now)
	assert.Equal(t, 1, s.Processed)
	assert.Equal(t, 9, s.TimeSavedMinutes)
	assert.True(t, s.CostSavings.Equal(dec("22.50")), "got %s", s.CostSavings)
	assert.Equal(t, time.UTC, s.UpdatedAt.Location())

	s = model.Apply(s, core.StatsDelta{Docs: 3, Transactions: 10}, now)
	assert.Equal(t, 2, s.Processed)
	assert.Equal(t, 4, s.DocsCount)
	assert.Equal(t, 12, s.TxCount)
	assert.Equal(t, 44, s.TimeSavedMinutes)
	assert.True(t, s.CostSavings.Equal(dec("110")), "got %s", s.CostSavings)
}

func TestMemoryStatsStoreIsPerStore(t *testing.T) {
	store := core.NewMemoryStatsStore(core.DefaultSavingsModel())
	ctx := context.Background()

	empty, err := store.Load(ctx, "mangoes")
	require.NoError(t, err)
	assert.Zero(t, empty.Processed)

	_, err = store.Accumulate(ctx, "mangoes", core.StatsDelta{Docs: 2, Transactions: 4})
	require.NoError(t, err)
	_, err = store.Accumulate(ctx, "mangoes", core.StatsDelta{Docs: 1, Transactions: 1})
	require.NoError(t, err)
	_, err = store.Accumulate(ctx, "other", core.StatsDelta{Docs: 5})
	require.NoError(t, err)

	got, err := store.Load(ctx, "mangoes")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Processed)
	assert.Equal(t, 3, got.DocsCount)
	assert.Equal(t, 5, got.TxCount)
}

func TestRedisStatsStore(t *testing.T) {
	_ = godotenv.Load("../../.env")
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	storeID := "test-" + t.Name() + "-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { client.Del(ctx, core.StatsKey+":"+storeID) })

	store := core.NewRedisStatsStore(client, core.DefaultSavingsModel())
	_, err := store.Accumulate(ctx, storeID, core.StatsDelta{Docs: 1, Transactions: 2})
	require.NoError(t, err)
	next, err := store.Accumulate(ctx, storeID, core.StatsDelta{Docs: 1, Transactions: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, next.Processed)

	loaded, err := store.Load(ctx, storeID)
	require.NoError(t, err)
	assert.Equal(t, 18, loaded.TimeSavedMinutes)
	assert.True(t, loaded.CostSavings.Equal(dec("45")))
}
