package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"storefront-agent/internal/app"
	"storefront-agent/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService implements only the calls the CLI makes.
type fakeService struct {
	app.ApplicationService

	quoteReq    app.QuoteShippingRequest
	docs        map[string]core.OCRDocument
	uploaded    []core.UploadFile
	txs         []core.Transaction
	horizon     int
	transferErr error
	balances    []core.AccountBalance
	balancesErr error
}

func (f *fakeService) QuoteShipping(_ context.Context, req app.QuoteShippingRequest) (*app.ShippingQuoteResult, error) {
	f.quoteReq = req
	opt := core.ShippingOption{ID: "jnt-ncr", CourierName: "J&T Express", Fee: decimal.NewFromInt(85), Available: true}
	return &app.ShippingQuoteResult{Options: []core.ShippingOption{opt}, Default: &opt, Currency: "PHP"}, nil
}

func (f *fakeService) ParseDocuments(_ context.Context, _ string, docs map[string]core.OCRDocument) (*app.ParseResult, error) {
	f.docs = docs
	return &app.ParseResult{Transactions: []core.Transaction{{
		Description: "A very long description that will not fit the column", Amount: decimal.NewFromInt(10),
		AICategory: "Utilities", Confidence: 0.85, Book: core.BookCashDisbursements,
	}}}, nil
}

func (f *fakeService) UploadDocuments(_ context.Context, _ string, files []core.UploadFile, progress func(core.UploadProgress)) (*app.ParseResult, error) {
	f.uploaded = files
	for i, file := range files {
		progress(core.UploadProgress{File: file.Name, Index: i + 1, Total: len(files), Status: core.UploadDone})
	}
	return &app.ParseResult{Transactions: []core.Transaction{}, FailedFiles: []string{"x.jpg"}}, nil
}

func (f *fakeService) TransferTransactions(_ context.Context, _ string, txs []core.Transaction, progress func(core.TransferProgress)) (*app.TransferResult, error) {
	f.txs = txs
	progress(core.TransferProgress{Done: 1, Total: 2, TransactionID: "t1", Book: core.BookGeneralJournal})
	progress(core.TransferProgress{Done: 2, Total: 2, TransactionID: "t1", Book: core.BookCashDisbursements, Skipped: true})
	return &app.TransferResult{Report: core.TransferReport{Total: 2, Posted: 1, Skipped: 1}}, f.transferErr
}

func (f *fakeService) GetBookkeeperStats(context.Context, string) (*core.BookkeeperStats, error) {
	return &core.BookkeeperStats{Processed: 3, TimeSavedMinutes: 42, CostSavings: decimal.RequireFromString("105")}, nil
}

func (f *fakeService) GetProductForecast(_ context.Context, storeID, productID string, horizon int) (*core.ProductForecast, error) {
	f.horizon = horizon
	return &core.ProductForecast{StoreID: storeID, ProductID: productID, Points: []core.ForecastPoint{
		{Period: "2026-04-01", Quantity: decimal.NewFromInt(4), Revenue: decimal.NewFromInt(3000)},
	}}, nil
}

func (f *fakeService) GetBookBalances(_ context.Context, storeID string) (*app.BalancesResult, error) {
	if f.balancesErr != nil {
		return nil, f.balancesErr
	}
	return &app.BalancesResult{StoreID: storeID, Balances: f.balances}, nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestRunQuote(t *testing.T) {
	svc := &fakeService{}
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), svc, []string{"q", "mangoes", "Metro Manila", "Makati", "1200.50"}, &out))

	assert.Equal(t, "Makati", svc.quoteReq.City)
	assert.True(t, svc.quoteReq.Subtotal.Equal(decimal.RequireFromString("1200.50")))
	assert.Contains(t, out.String(), "* jnt-ncr")
	assert.Contains(t, out.String(), "85.00")

	err := Run(context.Background(), svc, []string{"quote", "mangoes", "Cebu", "Cebu City", "lots"}, &out)
	assert.ErrorContains(t, err, "invalid subtotal")
}

func TestRunParseAndUpload(t *testing.T) {
	svc := &fakeService{}
	var out bytes.Buffer

	docs := writeFile(t, "docs.json", `{"a.jpg":{"text":"Meralco 10.00"}}`)
	require.NoError(t, Run(context.Background(), svc, []string{"parse", "mangoes", docs}, &out))
	assert.Equal(t, "Meralco 10.00", svc.docs["a.jpg"].Text)
	assert.Contains(t, out.String(), "A very long description that wi…")

	receipt := writeFile(t, "receipt.jpg", "jpeg")
	out.Reset()
	require.NoError(t, Run(context.Background(), svc, []string{"upload", "mangoes", receipt}, &out))
	require.Len(t, svc.uploaded, 1)
	assert.Equal(t, "receipt.jpg", svc.uploaded[0].Name)
	assert.Contains(t, out.String(), "[1/1] receipt.jpg: done")
	assert.Contains(t, out.String(), "failed: x.jpg")

	err := Run(context.Background(), svc, []string{"parse", "mangoes", writeFile(t, "bad.json", "{")}, &out)
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestRunTransfer(t *testing.T) {
	svc := &fakeService{transferErr: errors.New("ledger offline")}
	var out bytes.Buffer
	txs := writeFile(t, "txs.json", `[{"id":"t1","description":"Meralco","amount":"10","aiCategory":"Utilities"}]`)

	err := Run(context.Background(), svc, []string{"transfer", "mangoes", txs}, &out)
	assert.ErrorContains(t, err, "ledger offline")
	require.Len(t, svc.txs, 1)
	assert.Contains(t, out.String(), "[2/2] t1 → cash_disbursements skipped")
	assert.Contains(t, out.String(), "Posted 1, skipped 1 of 2 entries.")
}

func TestRunStatsAndForecast(t *testing.T) {
	svc := &fakeService{}
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), svc, []string{"stats", "mangoes"}, &out))
	assert.Contains(t, out.String(), "Time saved     : 42 min")
	assert.Contains(t, out.String(), "Cost savings   : 105.00")

	out.Reset()
	require.NoError(t, Run(context.Background(), svc, []string{"forecast", "mangoes", "shirt", "14"}, &out))
	assert.Equal(t, 14, svc.horizon)
	assert.Contains(t, out.String(), "Forecast for shirt (store mangoes)")
	assert.Contains(t, out.String(), "3000.00")
}

func TestRunUsageErrors(t *testing.T) {
	svc := &fakeService{}
	var out bytes.Buffer
	for _, args := range [][]string{
		nil,
		{"launch"},
		{"stats"},
		{"forecast", "mangoes"},
		{"forecast", "mangoes", "shirt", "soon"},
	} {
		assert.Error(t, Run(context.Background(), svc, args, &out), "%v", args)
	}
}

func TestRunBalances(t *testing.T) {
	svc := &fakeService{}
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), svc, []string{"balances", "mangoes"}, &out))
	assert.Equal(t, "No book entries for mangoes.\n", out.String())

	svc.balances = []core.AccountBalance{
		{Book: core.BookCashDisbursements, Account: "Utilities", Balance: decimal.RequireFromString("2500.4")},
		{Book: core.BookCashDisbursements, Account: core.AccountCash, Balance: decimal.RequireFromString("-2500.4")},
	}
	out.Reset()
	require.NoError(t, Run(context.Background(), svc, []string{"balances", "mangoes"}, &out))
	assert.Contains(t, out.String(), "BOOK")
	assert.Contains(t, out.String(), "2500.40")
	assert.Contains(t, out.String(), "-2500.40")

	svc.balancesErr = core.ErrUnavailable
	err := Run(context.Background(), svc, []string{"balances", "mangoes"}, &out)
	assert.ErrorIs(t, err, core.ErrUnavailable)

	assert.Error(t, Run(context.Background(), svc, []string{"balances"}, &out))
}
