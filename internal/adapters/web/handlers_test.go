package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront-agent/internal/app"
	"storefront-agent/internal/core"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"
)

const testSecret = "test-secret-at-least-32-characters!!"

type stubGateway struct {
	mu  sync.Mutex
	err error
}

func (g *stubGateway) CreatePublicOrder(context.Context, core.OrderInput) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

type failingPoster struct{ failOn string }

func (p failingPoster) Post(_ context.Context, e core.BookEntry) error {
	if e.TransactionID == p.failOn {
		return errors.New("ledger offline")
	}
	return nil
}

type testServer struct {
	handler http.Handler
	gateway *stubGateway
}

func newTestServer(t *testing.T, burst int) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	gateway := &stubGateway{}
	mirror := core.NewMemoryOrderMirror()
	checkouts, err := core.NewCheckoutService(core.CheckoutServiceDeps{Mirror: mirror, Gateway: gateway, Logger: logger})
	require.NoError(t, err)
	bookkeeping, err := core.NewBookkeepingService(core.BookkeepingServiceDeps{
		Stats:  core.NewMemoryStatsStore(core.DefaultSavingsModel()),
		Worker: core.NewTransferWorker(failingPoster{failOn: "boom"}, logger),
		Logger: logger,
	})
	require.NoError(t, err)
	svc, err := app.NewAppService(app.Deps{Checkouts: checkouts, Bookkeeping: bookkeeping, Orders: mirror, Logger: logger})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &testServer{
		handler: NewHandler(ctx, svc, Options{
			JWTSecret:    testSecret,
			Logger:       logger,
			ConfirmRate:  rate.Every(time.Hour),
			ConfirmBurst: burst,
		}),
		gateway: gateway,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func sellerToken(t *testing.T, storeID, secret string) http.Header {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		StoreID: storeID,
		Role:    "owner",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return http.Header{"Authorization": {"Bearer " + signed}}
}

var checkoutBody = map[string]any{
	"items": []map[string]any{
		{"id": "shirt", "name": "Barong Shirt", "price": "750", "quantity": 2},
	},
	"customer": map[string]any{
		"firstName": "Maria", "lastName": "Santos", "email": "maria@example.com", "phone": "09175550101",
		"address": "12 Jupiter St", "city": "Makati", "state": "Metro Manila", "zipCode": "1209",
	},
}

func startCheckout(t *testing.T, s *testServer) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/stores/mangoes/checkouts", checkoutBody, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	checkout := decodeBody(t, rec)["checkout"].(map[string]any)
	return checkout["id"].(string)
}

func readyForConfirm(t *testing.T, s *testServer) string {
	t.Helper()
	id := startCheckout(t, s)
	base := "/api/checkouts/" + id
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/payment-method", map[string]string{"method": "cod"}, nil).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/terms", map[string]bool{"agreed": true}, nil).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/review", nil, nil).Code)
	return id
}

func TestHealthSetsRequestID(t *testing.T) {
	s := newTestServer(t, 3)
	rec := s.do(t, http.MethodGet, "/api/health", nil, http.Header{"X-Request-Id": {"abc-123"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = s.do(t, http.MethodGet, "/api/health", nil, http.Header{"X-Request-Id": {"<script>"}})
	assert.NotEqual(t, "<script>", rec.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestQuoteShippingEndpoint(t *testing.T) {
	s := newTestServer(t, 3)
	rec := s.do(t, http.MethodPost, "/api/stores/mangoes/shipping/options",
		map[string]any{"province": "Metro Manila", "city": "Parañaque", "subtotal": "400"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	options := body["options"].([]any)
	require.Len(t, options, 3)
	lalamove := options[0].(map[string]any)
	assert.Equal(t, true, lalamove["disabled"], "subtotal below the minimum")
	assert.Equal(t, "PHP", body["currency"])
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, 3)
	id := readyForConfirm(t, s)

	rec := s.do(t, http.MethodGet, "/api/checkouts/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	checkout := decodeBody(t, rec)["checkout"].(map[string]any)
	assert.Equal(t, "pending_confirmation", checkout["state"])

	rec = s.do(t, http.MethodPost, "/api/checkouts/"+id+"/confirm", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	outcome := decodeBody(t, rec)["outcome"].(map[string]any)
	assert.Equal(t, "success", outcome["state"])
	assert.Contains(t, outcome["redirectUrl"], "/order-confirmation?orderId=")
}

func TestOrderLookupAfterConfirm(t *testing.T) {
	s := newTestServer(t, 3)
	id := readyForConfirm(t, s)

	rec := s.do(t, http.MethodPost, "/api/checkouts/"+id+"/confirm", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	outcome := decodeBody(t, rec)["outcome"].(map[string]any)
	orderID := outcome["order"].(map[string]any)["id"].(string)
	require.NotEmpty(t, orderID)

	rec = s.do(t, http.MethodGet, "/api/stores/mangoes/orders/"+orderID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order := decodeBody(t, rec)["order"].(map[string]any)
	assert.Equal(t, orderID, order["id"])
	assert.Equal(t, "mangoes", order["storeId"])

	rec = s.do(t, http.MethodGet, "/api/stores/durian/orders/"+orderID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "orders are scoped to their store")
}

func TestBookBalancesWithoutLedger(t *testing.T) {
	s := newTestServer(t, 3)

	rec := s.do(t, http.MethodGet, "/api/bookkeeping/balances", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/bookkeeping/balances", nil, sellerToken(t, "mangoes", testSecret))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "UNAVAILABLE", decodeBody(t, rec)["code"])
}

func TestCheckoutErrors(t *testing.T) {
	s := newTestServer(t, 3)

	rec := s.do(t, http.MethodGet, "/api/checkouts/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.NotEmpty(t, body["request_id"])

	id := startCheckout(t, s)
	rec = s.do(t, http.MethodPost, "/api/checkouts/"+id+"/review", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeBody(t, rec)["code"])

	rec = s.do(t, http.MethodPost, "/api/checkouts/"+id+"/shipping", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/checkouts/"+id+"/confirm", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATE", decodeBody(t, rec)["code"])

	rec = s.do(t, http.MethodPost, "/api/checkouts/"+id+"/discount", strings.Repeat(" ", 2<<20), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestConfirmFailureCarriesAlertAndCheckout(t *testing.T) {
	s := newTestServer(t, 3)
	id := readyForConfirm(t, s)
	s.gateway.err = errors.New("orders api down")

	rec := s.do(t, http.MethodPost, "/api/checkouts/"+id+"/confirm", nil, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ORDER_SUBMISSION_FAILED", body["code"])
	assert.NotEmpty(t, body["alert"])
	checkout := body["checkout"].(map[string]any)
	assert.Equal(t, "collecting_info", checkout["state"])
}

func TestConfirmIsRateLimited(t *testing.T) {
	s := newTestServer(t, 1)

	rec := s.do(t, http.MethodPost, "/api/checkouts/nope/confirm", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/checkouts/nope/confirm", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decodeBody(t, rec)["code"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = s.do(t, http.MethodGet, "/api/checkouts/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other routes are not limited")
}

func TestSellerAuth(t *testing.T) {
	s := newTestServer(t, 3)

	rec := s.do(t, http.MethodGet, "/api/bookkeeping/stats", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/bookkeeping/stats", nil, sellerToken(t, "mangoes", "wrong-secret-wrong-secret-wrong-secret"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/bookkeeping/stats", nil, sellerToken(t, "", testSecret))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/bookkeeping/stats", nil, sellerToken(t, "mangoes", testSecret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decodeBody(t, rec)["processed"])

	token := sellerToken(t, "mangoes", testSecret).Get("Authorization")
	req := httptest.NewRequest(http.MethodGet, "/api/bookkeeping/stats", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: strings.TrimPrefix(token, "Bearer ")})
	cookieRec := httptest.NewRecorder()
	s.handler.ServeHTTP(cookieRec, req)
	assert.Equal(t, http.StatusOK, cookieRec.Code)
}

func TestParseDocumentsEndpoint(t *testing.T) {
	s := newTestServer(t, 3)
	auth := sellerToken(t, "mangoes", testSecret)

	rec := s.do(t, http.MethodPost, "/api/bookkeeping/parse", map[string]any{"documents": map[string]any{}}, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/bookkeeping/parse", map[string]any{
		"documents": map[string]any{"a.jpg": map[string]any{"text": "Meralco 2,500.00"}},
	}, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	txs := decodeBody(t, rec)["transactions"].([]any)
	require.Len(t, txs, 1)
	assert.Equal(t, "Utilities", txs[0].(map[string]any)["aiCategory"])
}

func TestTransferStreamsProgress(t *testing.T) {
	s := newTestServer(t, 3)
	auth := sellerToken(t, "mangoes", testSecret)

	rec := s.do(t, http.MethodPost, "/api/bookkeeping/transfer", map[string]any{
		"transactions": []map[string]any{
			{"id": "t1", "description": "Meralco", "amount": "2500", "aiCategory": "Utilities"},
		},
	}, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	stream := rec.Body.String()
	assert.Equal(t, 2, strings.Count(stream, "event: progress"))
	assert.Contains(t, stream, "event: result")
	assert.True(t, strings.HasSuffix(stream, "event: done\ndata: {}\n\n"))
}

func TestTransferFailureReportsPartialProgress(t *testing.T) {
	s := newTestServer(t, 3)
	auth := sellerToken(t, "mangoes", testSecret)

	rec := s.do(t, http.MethodPost, "/api/bookkeeping/transfer", map[string]any{
		"transactions": []map[string]any{
			{"id": "t1", "description": "Meralco", "amount": "2500", "aiCategory": "Utilities"},
			{"id": "boom", "description": "Printer ink", "amount": "300", "aiCategory": "Office Supplies"},
		},
	}, auth)
	stream := rec.Body.String()
	assert.Contains(t, stream, "event: error")
	assert.Contains(t, stream, `"code":"TRANSFER_ABORTED"`)
	assert.Contains(t, stream, `"posted":2`)
	assert.NotContains(t, stream, "event: result")
}

func TestUploadValidation(t *testing.T) {
	s := newTestServer(t, 3)
	auth := sellerToken(t, "mangoes", testSecret)

	upload := func(name string, content []byte) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, _ = part.Write(content)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/bookkeeping/upload", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", auth.Get("Authorization"))
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("notes.txt", []byte("plain text receipt"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	rec = upload("receipt.png", png)
	require.Equal(t, http.StatusOK, rec.Code)
	stream := rec.Body.String()
	assert.Contains(t, stream, "event: error")
	assert.Contains(t, stream, `"code":"UNAVAILABLE"`, "no OCR processor is configured")
	assert.Contains(t, stream, "event: done")
}

func TestForecastEndpoint(t *testing.T) {
	s := newTestServer(t, 3)
	auth := sellerToken(t, "mangoes", testSecret)

	rec := s.do(t, http.MethodGet, "/api/analytics/products/shirt/forecast?horizon=abc", nil, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/analytics/products/shirt/forecast?horizon=7", nil, auth)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS("https://shop.example.ph")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	for _, tc := range []struct {
		origin, method string
		wantAllow      string
		wantStatus     int
	}{
		{"https://shop.example.ph", http.MethodOptions, "https://shop.example.ph", http.StatusNoContent},
		{"https://evil.example", http.MethodGet, "", http.StatusTeapot},
	} {
		t.Run(fmt.Sprintf("%s %s", tc.method, tc.origin), func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/", nil)
			req.Header.Set("Origin", tc.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
