package backend_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-agent/internal/backend"
	"storefront-agent/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return backend.NewClient(srv.URL+"/", "secret-token", time.Second)
}

func TestCreatePublicOrder(t *testing.T) {
	var (
		got     core.OrderInput
		headers http.Header
		path    string
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	order := core.OrderInput{ID: "ORD-1", StoreID: "mangoes", Price: decimal.RequireFromString("1650"), Status: core.OrderStatusPending}
	require.NoError(t, client.CreatePublicOrder(context.Background(), order))

	assert.Equal(t, "/api/orders/public", path)
	assert.Equal(t, "Bearer secret-token", headers.Get("Authorization"))
	assert.Equal(t, "ORD-1", headers.Get("Idempotency-Key"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "mangoes", got.StoreID)
	assert.True(t, got.Price.Equal(order.Price))
}

func TestAPIErrorCarriesBackendMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"error":"inventory service down"}`)
	})

	err := client.CreatePublicOrder(context.Background(), core.OrderInput{ID: "x"})
	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "inventory service down", apiErr.Message)
	assert.Equal(t, "/api/orders/public", apiErr.Path)
}

func TestPostRoutesBooksAndMapsConflict(t *testing.T) {
	seen := map[string]string{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if _, dup := seen[key]; dup {
			w.WriteHeader(http.StatusConflict)
			return
		}
		seen[key] = r.URL.Path
		w.WriteHeader(http.StatusCreated)
	})
	ctx := context.Background()
	entry := core.BookEntry{Book: core.BookCashReceipts, IdempotencyKey: "tx-1:cash_receipts"}

	require.NoError(t, client.Post(ctx, entry))
	assert.Equal(t, "/api/bookkeeping/cash-receipts", seen["tx-1:cash_receipts"])

	err := client.Post(ctx, entry)
	assert.ErrorIs(t, err, core.ErrDuplicateEntry)

	err = client.Post(ctx, core.BookEntry{Book: "petty_cash", IdempotencyKey: "k"})
	assert.ErrorIs(t, err, core.ErrValidation)

	for _, store := range []string{"mangoes", "durian"} {
		scoped := core.BookEntry{Book: core.BookCashReceipts, StoreID: store, IdempotencyKey: "tx-1:cash_receipts"}
		require.NoError(t, client.Post(ctx, scoped), "same transaction id in another store is a new entry")
	}
	assert.Contains(t, seen, "durian:tx-1:cash_receipts")
}

func TestProcessDocumentSendsMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "mangoes", r.FormValue("storeId"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "receipt.jpg", header.Filename)
		assert.Equal(t, []byte("jpeg-bytes"), content)

		_, _ = io.WriteString(w, `{"text":"Meralco 2,500.00","canonical":{"grandTotal":"2500","merchant":"Meralco"}}`)
	})

	doc, err := client.ProcessDocument(context.Background(), "mangoes", "receipt.jpg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "Meralco 2,500.00", doc.Text)
	require.NotNil(t, doc.Canonical.GrandTotal)
	assert.Equal(t, "2500", doc.Canonical.GrandTotal.String())
}

func TestReportUsageAndForecast(t *testing.T) {
	var usage map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/ai/stats":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&usage))
			w.WriteHeader(http.StatusNoContent)
		case "/api/analytics/products/forecast":
			_, _ = io.WriteString(w, `{"points":[{"period":"2026-04-01","quantity":"3","revenue":"2250"}]}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	require.NoError(t, client.ReportUsage(ctx, "mangoes", core.StatsDelta{Docs: 2, Transactions: 5}))
	assert.Equal(t, map[string]any{"storeId": "mangoes", "docs": float64(2), "transactions": float64(5)}, usage)

	f, err := client.ProductForecast(ctx, "mangoes", "shirt-1", 7)
	require.NoError(t, err)
	assert.Equal(t, "shirt-1", f.ProductID, "missing ids are filled from the request")
	assert.Equal(t, "mangoes", f.StoreID)
	require.Len(t, f.Points, 1)
	assert.True(t, f.Points[0].Revenue.Equal(decimal.NewFromInt(2250)))
}

func TestUnconfiguredClient(t *testing.T) {
	client := backend.NewClient("", "", 0)
	ctx := context.Background()

	assert.ErrorIs(t, client.CreatePublicOrder(ctx, core.OrderInput{}), backend.ErrNotConfigured)
	_, err := client.ProcessDocument(ctx, "s", "a.jpg", nil)
	assert.ErrorIs(t, err, backend.ErrNotConfigured)
}

func TestPaymentStatus(t *testing.T) {
	tests := []struct {
		status string
		want   core.PaymentCheckStatus
	}{
		{"succeeded", core.PaymentCheckPaid},
		{"PAID", core.PaymentCheckPaid},
		{"expired", core.PaymentCheckFailed},
		{"awaiting_scan", core.PaymentCheckPending},
		{"", core.PaymentCheckPending},
	}
	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			var got map[string]string
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/payments/status", r.URL.Path)
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				_ = json.NewEncoder(w).Encode(map[string]string{"status": tc.status, "providerReference": "GC-991"})
			})

			check, err := client.PaymentStatus(context.Background(), core.PaymentGCash, "01REF")
			require.NoError(t, err)
			assert.Equal(t, tc.want, check.Status)
			assert.Equal(t, "GC-991", check.Reference)
			assert.Equal(t, map[string]string{"method": string(core.PaymentGCash), "reference": "01REF"}, got)
		})
	}
}
