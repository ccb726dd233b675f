package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// productForecast handles GET /api/analytics/products/{productID}/forecast?horizon=N.
func (h *Handler) productForecast(w http.ResponseWriter, r *http.Request) {
	horizon := 0
	if v := r.URL.Query().Get("horizon"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, "horizon must be an integer", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		horizon = n
	}
	f, err := h.svc.GetProductForecast(r.Context(), sellerFromContext(r.Context()).StoreID, chi.URLParam(r, "productID"), horizon)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, f)
}
