// Package httptransport exposes a Guardian over HTTPS as JSON-RPC 2.0, the
// protocol's mandatory transport.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethdenver2026/gateway/bubbleerr"
	"github.com/ethdenver2026/gateway/rpc"
)

// Guardian is the subset of guardian.Guardian this transport drives.
type Guardian interface {
	Handle(ctx context.Context, method rpc.Method, p rpc.Params) (interface{}, error)
}

// Handler adapts a Guardian to net/http.
type Handler struct {
	guardian Guardian
	log      *slog.Logger
}

// NewHandler builds an http.Handler that decodes JSON-RPC 2.0 requests and
// drives g with them.
func NewHandler(g Guardian, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{guardian: g, log: logger}
}

type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  rpc.Method      `json:"method"`
	Params  rpc.Params      `json:"params"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req wireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeResponse(w, rpc.NewErrorResponse(nil, bubbleerr.New(bubbleerr.CodeInvalidRequest, "malformed JSON-RPC envelope")))
		return
	}

	result, err := h.guardian.Handle(r.Context(), req.Method, req.Params)
	if err != nil {
		h.log.Warn("request rejected", "method", req.Method, "err", err)
		h.writeResponse(w, rpc.NewErrorResponse(req.ID, err))
		return
	}
	h.writeResponse(w, rpc.NewResultResponse(req.ID, result))
}

func (h *Handler) writeResponse(w http.ResponseWriter, resp rpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("failed to encode response", "err", err)
	}
}
