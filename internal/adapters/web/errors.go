package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"storefront-agent/internal/backend"
	"storefront-agent/internal/core"
	"storefront-agent/internal/logging"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string             `json:"error"`
	Code      string             `json:"code"`
	RequestID string             `json:"request_id,omitempty"`
	Alert     string             `json:"alert,omitempty"`
	Checkout  *core.CheckoutView `json:"checkout,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorBody(w, status, errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeErrorBody(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeStatus writes a JSON response with the given status.
func writeStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps a service error to an HTTP status and error code.
func classify(err error) (int, string) {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, core.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR"
	case errors.Is(err, core.ErrOrderSubmission):
		return http.StatusBadGateway, "ORDER_SUBMISSION_FAILED"
	case errors.Is(err, core.ErrPaymentUnverified):
		return http.StatusConflict, "PAYMENT_UNVERIFIED"
	case errors.Is(err, core.ErrPaymentFailed):
		return http.StatusBadGateway, "PAYMENT_FAILED"
	case errors.Is(err, core.ErrPaymentUnavailable):
		return http.StatusServiceUnavailable, "PAYMENT_UNAVAILABLE"
	case errors.Is(err, core.ErrTransferAborted):
		return http.StatusBadGateway, "TRANSFER_ABORTED"
	case errors.Is(err, core.ErrUnavailable), errors.Is(err, backend.ErrNotConfigured):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "BACKEND_ERROR"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// writeServiceError writes err using classify. Internal errors are logged
// and their message is not exposed.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
		msg = "internal server error"
	}
	writeError(w, r, msg, code, status)
}
