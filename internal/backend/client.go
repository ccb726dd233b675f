package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-agent/internal/core"
)

const (
	defaultTimeout    = 15 * time.Second
	idempotencyHeader = "Idempotency-Key"
	maxErrorBody      = 4 << 10
)

// ErrNotConfigured is returned when no backend base URL is set.
var ErrNotConfigured = errors.New("backend: base url not configured")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s returned %d: %s", e.Path, e.StatusCode, e.Message)
}

// Client talks to the storefront backend REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client. token, when set, is sent as a bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: timeout},
	}
}

// CreatePublicOrder creates a COD order.
func (c *Client) CreatePublicOrder(ctx context.Context, order core.OrderInput) error {
	return c.postJSON(ctx, "/api/orders/public", order.ID, order, nil)
}

var bookPaths = map[core.Book]string{
	core.BookGeneralJournal:    "/api/bookkeeping/journal",
	core.BookCashReceipts:      "/api/bookkeeping/cash-receipts",
	core.BookCashDisbursements: "/api/bookkeeping/cash-disbursements",
}

// Post sends a book entry to its ledger endpoint. A 409 means the entry's
// idempotency key was already posted for its store.
func (c *Client) Post(ctx context.Context, entry core.BookEntry) error {
	path, ok := bookPaths[entry.Book]
	if !ok {
		return fmt.Errorf("%w: unknown book %q", core.ErrValidation, entry.Book)
	}
	key := entry.IdempotencyKey
	if entry.StoreID != "" {
		key = entry.StoreID + ":" + key
	}
	err := c.postJSON(ctx, path, key, entry, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		return fmt.Errorf("%w: %s", core.ErrDuplicateEntry, key)
	}
	return err
}

// ProcessDocument uploads one file for OCR.
func (c *Client) ProcessDocument(ctx context.Context, storeID, filename string, content []byte) (core.OCRDocument, error) {
	if c.baseURL == "" {
		return core.OCRDocument{}, ErrNotConfigured
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("storeId", storeID); err != nil {
		return core.OCRDocument{}, err
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return core.OCRDocument{}, err
	}
	if _, err := part.Write(content); err != nil {
		return core.OCRDocument{}, err
	}
	if err := mw.Close(); err != nil {
		return core.OCRDocument{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/ai/upload", &body)
	if err != nil {
		return core.OCRDocument{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var doc core.OCRDocument
	if err := c.do(req, &doc); err != nil {
		return core.OCRDocument{}, err
	}
	return doc, nil
}

// ReportUsage accumulates usage counters on the backend.
func (c *Client) ReportUsage(ctx context.Context, storeID string, delta core.StatsDelta) error {
	body := struct {
		StoreID string `json:"storeId"`
		core.StatsDelta
	}{StoreID: storeID, StatsDelta: delta}
	return c.postJSON(ctx, "/api/ai/stats", "", body, nil)
}

// PaymentStatus asks the backend, which receives the QRPH and GCash provider
// notifications, for the state of a dialog payment.
func (c *Client) PaymentStatus(ctx context.Context, method core.PaymentMethod, reference string) (core.PaymentCheck, error) {
	body := map[string]string{"method": string(method), "reference": reference}
	var resp struct {
		Status            string `json:"status"`
		ProviderReference string `json:"providerReference"`
	}
	if err := c.postJSON(ctx, "/api/payments/status", "", body, &resp); err != nil {
		return core.PaymentCheck{}, err
	}
	check := core.PaymentCheck{Status: core.PaymentCheckPending, Reference: resp.ProviderReference}
	switch strings.ToLower(resp.Status) {
	case "paid", "succeeded", "success":
		check.Status = core.PaymentCheckPaid
	case "failed", "expired", "cancelled", "canceled":
		check.Status = core.PaymentCheckFailed
	}
	return check, nil
}

// ProductForecast fetches a product's sales forecast.
func (c *Client) ProductForecast(ctx context.Context, storeID, productID string, horizonDays int) (core.ProductForecast, error) {
	body := map[string]any{
		"storeId":     storeID,
		"productId":   productID,
		"horizonDays": horizonDays,
	}
	var f core.ProductForecast
	if err := c.postJSON(ctx, "/api/analytics/products/forecast", "", body, &f); err != nil {
		return core.ProductForecast{}, err
	}
	if f.ProductID == "" {
		f.ProductID = productID
	}
	if f.StoreID == "" {
		f.StoreID = storeID
	}
	return f, nil
}

func (c *Client) postJSON(ctx context.Context, path, idempotencyKey string, in, out any) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, idempotencyKey)
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Path: req.URL.Path, Message: drainError(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func drainError(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &envelope) == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return strings.TrimSpace(string(data))
}
