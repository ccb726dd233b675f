package web

import (
	"errors"
	"net/http"

	"storefront-agent/internal/app"
	"storefront-agent/internal/core"
	"storefront-agent/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type quoteShippingRequest struct {
	Province string          `json:"province"`
	City     string          `json:"city"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type startCheckoutRequest struct {
	Items    []core.CartItem    `json:"items"`
	Customer *core.CustomerInfo `json:"customer,omitempty"`
}

type updateItemRequest struct {
	Quantity *int    `json:"quantity,omitempty"`
	Color    *string `json:"color,omitempty"`
	Size     *string `json:"size,omitempty"`
}

func checkoutID(r *http.Request) string { return chi.URLParam(r, "checkoutID") }

// quoteShipping handles POST /api/stores/{storeID}/shipping/options.
func (h *Handler) quoteShipping(w http.ResponseWriter, r *http.Request) {
	var req quoteShippingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.QuoteShipping(r.Context(), app.QuoteShippingRequest{
		StoreID:  chi.URLParam(r, "storeID"),
		Province: req.Province,
		City:     req.City,
		Subtotal: req.Subtotal,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// startCheckout handles POST /api/stores/{storeID}/checkouts.
func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request) {
	var req startCheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.StartCheckout(r.Context(), app.StartCheckoutRequest{
		StoreID:  chi.URLParam(r, "storeID"),
		Items:    req.Items,
		Customer: req.Customer,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeStatus(w, http.StatusCreated, res)
}

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	h.respondCheckout(w, r)(h.svc.GetCheckout(r.Context(), checkoutID(r)))
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var info core.CustomerInfo
	if !decodeJSON(w, r, &info) {
		return
	}
	h.respondCheckout(w, r)(h.svc.UpdateCustomer(r.Context(), checkoutID(r), info))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respondCheckout(w, r)(h.svc.UpdateItem(r.Context(), app.UpdateItemRequest{
		CheckoutID: checkoutID(r),
		ItemID:     chi.URLParam(r, "itemID"),
		Quantity:   req.Quantity,
		Color:      req.Color,
		Size:       req.Size,
	}))
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	h.respondCheckout(w, r)(h.svc.RemoveItem(r.Context(), checkoutID(r), chi.URLParam(r, "itemID")))
}

func (h *Handler) selectShipping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OptionID string `json:"optionId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respondCheckout(w, r)(h.svc.SelectShipping(r.Context(), checkoutID(r), req.OptionID))
}

func (h *Handler) setPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respondCheckout(w, r)(h.svc.SetPaymentMethod(r.Context(), checkoutID(r), req.Method))
}

func (h *Handler) setTerms(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Agreed bool `json:"agreed"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respondCheckout(w, r)(h.svc.SetTerms(r.Context(), checkoutID(r), req.Agreed))
}

func (h *Handler) applyDiscount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respondCheckout(w, r)(h.svc.ApplyDiscount(r.Context(), app.ApplyDiscountRequest{
		CheckoutID: checkoutID(r),
		Amount:     req.Amount,
	}))
}

func (h *Handler) reviewCheckout(w http.ResponseWriter, r *http.Request) {
	h.respondCheckout(w, r)(h.svc.ReviewCheckout(r.Context(), checkoutID(r)))
}

// confirmCheckout handles POST /api/checkouts/{checkoutID}/confirm.
//
// A failed submission still carries the checkout snapshot and the alert the
// buyer should see, so the error envelope includes both.
func (h *Handler) confirmCheckout(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ConfirmCheckout(r.Context(), checkoutID(r))
	h.respondConfirm(w, r, res, err)
}

// getOrder handles GET /api/stores/{storeID}/orders/{orderID} for the
// order confirmation page.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetOrder(r.Context(), chi.URLParam(r, "storeID"), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// paymentResult handles POST /api/checkouts/{checkoutID}/payment-result.
func (h *Handler) paymentResult(w http.ResponseWriter, r *http.Request) {
	var result core.PaymentResult
	if !decodeJSON(w, r, &result) {
		return
	}
	res, err := h.svc.CompletePayment(r.Context(), checkoutID(r), result)
	h.respondConfirm(w, r, res, err)
}

func (h *Handler) respondConfirm(w http.ResponseWriter, r *http.Request, res *app.ConfirmResult, err error) {
	if err == nil {
		writeJSON(w, res)
		return
	}
	if res == nil || errors.Is(err, core.ErrNotFound) {
		h.writeServiceError(w, r, err)
		return
	}
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Warn("checkout submission failed",
			zap.String("checkout_id", res.Checkout.ID),
			zap.Error(err),
		)
	}
	view := res.Checkout
	alert := res.Outcome.Alert
	if alert == "" {
		alert = view.Error
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeErrorBody(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
		Alert:     alert,
		Checkout:  &view,
	})
}

// respondCheckout returns a writer for the (result, error) pair of a checkout call.
func (h *Handler) respondCheckout(w http.ResponseWriter, r *http.Request) func(*app.CheckoutResult, error) {
	return func(res *app.CheckoutResult, err error) {
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, res)
	}
}
