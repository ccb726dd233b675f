package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"storefront-agent/internal/core"
)

const (
	maxUploadSize  = 10 << 20 // 10 MB
	maxUploadFiles = 10
)

// allowedMIMETypes is the whitelist for receipts and invoices.
var allowedMIMETypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

type parseDocumentsRequest struct {
	Documents map[string]core.OCRDocument `json:"documents"`
}

type transferRequest struct {
	Transactions []core.Transaction `json:"transactions"`
}

// parseDocuments handles POST /api/bookkeeping/parse.
func (h *Handler) parseDocuments(w http.ResponseWriter, r *http.Request) {
	var req parseDocumentsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, r, "no documents provided", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	res, err := h.svc.ParseDocuments(r.Context(), sellerFromContext(r.Context()).StoreID, req.Documents)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// uploadDocuments handles POST /api/bookkeeping/upload and streams progress via SSE.
//
// SSE event types:
//
//	progress  core.UploadProgress, once per file state change
//	result    app.ParseResult
//	error     {"message":"...","code":"..."}
//	done      {}
func (h *Handler) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize*maxUploadFiles)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, r, "request too large or malformed", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, r, "no file provided", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if len(headers) > maxUploadFiles {
		writeError(w, r, fmt.Sprintf("too many files (max %d)", maxUploadFiles), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	files := make([]core.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, r, "failed to open uploaded file", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
		f.Close()
		if err != nil {
			writeError(w, r, "failed to read uploaded file", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if int64(len(data)) > maxUploadSize {
			writeError(w, r, fmt.Sprintf("file exceeds maximum size of %d MB", maxUploadSize>>20),
				"FILE_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return
		}
		mimeType := strings.ToLower(http.DetectContentType(data))
		if i := strings.IndexByte(mimeType, ';'); i >= 0 {
			mimeType = strings.TrimSpace(mimeType[:i])
		}
		if !allowedMIMETypes[mimeType] {
			writeError(w, r, fmt.Sprintf("file type %q not allowed; accepted: jpeg, png, webp, pdf", mimeType),
				"UNSUPPORTED_TYPE", http.StatusUnsupportedMediaType)
			return
		}
		files = append(files, core.UploadFile{Name: fh.Filename, Content: data})
	}

	flusher, ok := startSSE(w)
	if !ok {
		writeError(w, r, "streaming not supported", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	defer sendSSE(w, flusher, "done", map[string]any{})

	storeID := sellerFromContext(r.Context()).StoreID
	res, err := h.svc.UploadDocuments(r.Context(), storeID, files, func(p core.UploadProgress) {
		sendSSE(w, flusher, "progress", p)
	})
	if err != nil {
		_, code := classify(err)
		sendSSE(w, flusher, "error", map[string]any{"message": err.Error(), "code": code})
		return
	}
	sendSSE(w, flusher, "result", res)
}

// transferTransactions handles POST /api/bookkeeping/transfer and streams
// per-entry progress via SSE. A failed transfer still reports what was posted.
func (h *Handler) transferTransactions(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Transactions) == 0 {
		writeError(w, r, "no transactions provided", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	flusher, ok := startSSE(w)
	if !ok {
		writeError(w, r, "streaming not supported", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	defer sendSSE(w, flusher, "done", map[string]any{})

	storeID := sellerFromContext(r.Context()).StoreID
	res, err := h.svc.TransferTransactions(r.Context(), storeID, req.Transactions, func(p core.TransferProgress) {
		sendSSE(w, flusher, "progress", p)
	})
	if err != nil {
		_, code := classify(err)
		payload := map[string]any{"message": err.Error(), "code": code}
		if res != nil {
			payload["report"] = res.Report
		}
		sendSSE(w, flusher, "error", payload)
		return
	}
	sendSSE(w, flusher, "result", res)
}

// bookkeeperStats handles GET /api/bookkeeping/stats.
func (h *Handler) bookkeeperStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetBookkeeperStats(r.Context(), sellerFromContext(r.Context()).StoreID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, stats)
}

func (h *Handler) bookBalances(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetBookBalances(r.Context(), sellerFromContext(r.Context()).StoreID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// startSSE writes the event-stream headers.
func startSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return flusher, true
}

// sendSSE writes one SSE event and flushes. data is JSON-marshalled.
func sendSSE(w http.ResponseWriter, f http.Flusher, event string, data any) {
	b, _ := json.Marshal(data)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(b))
	f.Flush()
}
