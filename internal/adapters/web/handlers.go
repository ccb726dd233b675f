package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"storefront-agent/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configures NewHandler.
type Options struct {
	AllowedOrigins string
	JWTSecret      string
	Logger         *zap.Logger
	// ConfirmRate and ConfirmBurst limit checkout confirmations per client.
	ConfirmRate  rate.Limit
	ConfirmBurst int
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
	limiter   *clientLimiter
}

// NewHandler creates and wires the chi router with all routes. Background
// maintenance stops when ctx is done.
func NewHandler(ctx context.Context, svc app.ApplicationService, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := opts.ConfirmRate
	if limit <= 0 {
		limit = rate.Every(6 * time.Second)
	}
	burst := opts.ConfirmBurst
	if burst <= 0 {
		burst = 3
	}

	h := &Handler{
		svc:       svc,
		jwtSecret: opts.JWTSecret,
		limiter:   newClientLimiter(limit, burst),
	}
	h.limiter.startPurge(ctx)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(opts.AllowedOrigins))

	r.Get("/api/health", h.health)

	// ── Buyer checkout (public) ──────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20))

		r.Post("/api/stores/{storeID}/shipping/options", h.quoteShipping)
		r.Post("/api/stores/{storeID}/checkouts", h.startCheckout)
		r.Get("/api/stores/{storeID}/orders/{orderID}", h.getOrder)

		r.Route("/api/checkouts/{checkoutID}", func(r chi.Router) {
			r.Get("/", h.getCheckout)
			r.Put("/customer", h.updateCustomer)
			r.Patch("/items/{itemID}", h.updateItem)
			r.Delete("/items/{itemID}", h.removeItem)
			r.Post("/shipping", h.selectShipping)
			r.Post("/payment-method", h.setPaymentMethod)
			r.Post("/terms", h.setTerms)
			r.Post("/discount", h.applyDiscount)
			r.Post("/review", h.reviewCheckout)
			r.With(h.limiter.Middleware).Post("/confirm", h.confirmCheckout)
			r.Post("/payment-result", h.paymentResult)
		})
	})

	// ── Seller tools (JWT) ───────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireSeller)

		// Multipart upload manages its own body limit.
		r.Post("/api/bookkeeping/upload", h.uploadDocuments)

		r.Group(func(r chi.Router) {
			r.Use(RequestBodyLimit(1 << 20))

			r.Post("/api/bookkeeping/parse", h.parseDocuments)
			r.Post("/api/bookkeeping/transfer", h.transferTransactions)
			r.Get("/api/bookkeeping/stats", h.bookkeeperStats)
			r.Get("/api/bookkeeping/balances", h.bookBalances)
			r.Get("/api/analytics/products/{productID}/forecast", h.productForecast)
		})
	})

	h.router = r
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
