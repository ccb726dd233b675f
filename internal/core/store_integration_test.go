package core_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"storefront-agent/internal/core"
	"storefront-agent/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../migrations/001_storefront.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)
	return pool
}

func uniqueStore(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("it-%d", time.Now().UnixNano())
}

func TestLedgerPostIsIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := uniqueStore(t)
	ledger := core.NewLedger(pool)

	tx := core.Transaction{ID: store + "-tx", Description: "Meralco", Amount: dec("2500.40"), AICategory: "Utilities", Date: "2026-03-02"}
	entries, err := core.BuildBookEntries(tx, store, time.Now())
	require.NoError(t, err)

	for _, e := range entries {
		require.NoError(t, ledger.Post(ctx, e))
	}
	err = ledger.Post(ctx, entries[0])
	assert.ErrorIs(t, err, core.ErrDuplicateEntry)

	balances, err := ledger.GetBalances(ctx, store)
	require.NoError(t, err)
	require.Len(t, balances, 4)
	for _, b := range balances {
		switch b.Account {
		case "Utilities":
			assert.True(t, b.Balance.Equal(dec("2500.40")), "%s %s", b.Book, b.Balance)
		case core.AccountCash:
			assert.True(t, b.Balance.Equal(dec("-2500.40")), "%s %s", b.Book, b.Balance)
		default:
			t.Fatalf("unexpected account %s", b.Account)
		}
	}
}

func TestLedgerKeysAreScopedPerStore(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	ledger := core.NewLedger(pool)
	shared := uniqueStore(t) + "-tx"
	storeA, storeB := uniqueStore(t)+"-a", uniqueStore(t)+"-b"

	tx := core.Transaction{ID: shared, Description: "Sales", Amount: dec("1200"), AICategory: "Sales Revenue", Date: "2026-03-02"}
	for _, store := range []string{storeA, storeB} {
		entries, err := core.BuildBookEntries(tx, store, time.Now())
		require.NoError(t, err)
		for _, e := range entries {
			require.NoError(t, ledger.Post(ctx, e), "store %s", store)
		}
	}

	entries, err := core.BuildBookEntries(tx, storeB, time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, ledger.Post(ctx, entries[0]), core.ErrDuplicateEntry)

	for _, store := range []string{storeA, storeB} {
		balances, err := ledger.GetBalances(ctx, store)
		require.NoError(t, err)
		assert.NotEmpty(t, balances, "store %s", store)
	}
}

func TestLedgerRejectsUnbalancedEntry(t *testing.T) {
	pool := setupTestDB(t)
	ledger := core.NewLedger(pool)
	err := ledger.Post(context.Background(), core.BookEntry{
		Book: core.BookGeneralJournal, IdempotencyKey: uniqueStore(t), EntryDate: "2026-03-02",
		Lines: []core.BookLine{
			{Account: "Cash", IsDebit: true, Amount: dec("10")},
			{Account: "Sales Revenue", Amount: dec("5")},
		},
	})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestPostgresOrderMirrorUpsert(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	mirror := core.NewPostgresOrderMirror(pool)
	store := uniqueStore(t)

	order := core.OrderInput{
		ID:        store + "-ORD",
		StoreID:   store,
		Price:     dec("1650"),
		Status:    core.OrderStatusPending,
		Payment:   core.PaymentDetails{Method: core.PaymentGCash},
		CreatedAt: time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC),
	}
	require.NoError(t, mirror.AddOrder(ctx, order))

	order.Status = core.OrderStatusPaid
	require.NoError(t, mirror.AddOrder(ctx, order))

	got, err := mirror.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusPaid, got.Status)
	assert.True(t, got.Price.Equal(dec("1650")))

	_, err = mirror.GetOrder(ctx, store+"-missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryOrderMirror(t *testing.T) {
	mirror := core.NewMemoryOrderMirror()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, mirror.AddOrder(ctx, core.OrderInput{ID: "b", StoreID: "s", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, mirror.AddOrder(ctx, core.OrderInput{ID: "a", StoreID: "s", CreatedAt: base}))
	require.NoError(t, mirror.AddOrder(ctx, core.OrderInput{ID: "c", StoreID: "other", CreatedAt: base}))

	require.NoError(t, mirror.AddOrder(ctx, core.OrderInput{ID: "a", StoreID: "s", Status: core.OrderStatusPaid, CreatedAt: base}))

	got, err := mirror.GetOrder(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusPaid, got.Status, "a re-add replaces the stored order")
	got, err = mirror.GetOrder(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "other", got.StoreID)

	_, err = mirror.GetOrder(ctx, "zzz")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
