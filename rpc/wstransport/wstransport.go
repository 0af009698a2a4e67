// Package wstransport exposes a Guardian over WSS, the transport
// subscriptions require. Each connection gets its own
// transport id so dropped sockets tear down exactly their own
// subscriptions.
package wstransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ethdenver2026/gateway/bubbleerr"
	"github.com/ethdenver2026/gateway/dataserver"
	"github.com/ethdenver2026/gateway/rpc"
	"github.com/ethdenver2026/gateway/subscription"
)

// methodResume is a transport-local pseudo-method: it never reaches the
// Guardian, since resuming re-associates an already-authorized
// subscription with a new connection rather than authorizing a new
// request.
const methodResume rpc.Method = "resume"

// Guardian is the subset of guardian.Guardian this transport drives.
type Guardian interface {
	Handle(ctx context.Context, method rpc.Method, p rpc.Params) (interface{}, error)
	OnNotify(listener dataserver.Listener)
}

const heartbeatInterval = time.Hour

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades incoming HTTP connections to WebSocket and drives each
// one's JSON-RPC traffic against a Guardian, fanning subscription
// notifications back out over whichever socket registered them.
type Handler struct {
	guardian Guardian
	subs     *subscription.Manager
	tokens   *subscription.TokenIssuer
	log      *slog.Logger

	mu    sync.Mutex
	conns map[string]*conn // transportID -> live connection
}

// NewHandler builds a WebSocket handler backed by g, tracking
// subscriptions in subs. It installs itself as g's notification sink.
// tokens signs and validates subscription resume tokens; a nil tokens
// disables the "resume" method entirely.
func NewHandler(g Guardian, subs *subscription.Manager, tokens *subscription.TokenIssuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{guardian: g, subs: subs, tokens: tokens, log: logger, conns: make(map[string]*conn)}
	g.OnNotify(h.dispatchNotification)
	return h
}

type wireRequest struct {
	ID     json.RawMessage `json:"id"`
	Method rpc.Method      `json:"method"`
	Params rpc.Params      `json:"params"`
	Token  string          `json:"token,omitempty"`
}

// conn wraps one upgraded socket with a dedicated write mutex — gorilla's
// websocket.Conn forbids concurrent writers.
type conn struct {
	ws          *websocket.Conn
	transportID string
	writeMu     sync.Mutex
}

func (c *conn) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer ws.Close()

	c := &conn{ws: ws, transportID: uuid.NewString()}
	h.mu.Lock()
	h.conns[c.transportID] = c
	h.mu.Unlock()
	defer h.closeTransport(c.transportID)

	ws.SetReadDeadline(time.Now().Add(heartbeatInterval))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(heartbeatInterval))
		return nil
	})

	stopHeartbeat := h.startHeartbeat(c)
	defer close(stopHeartbeat)

	for {
		var req wireRequest
		if err := ws.ReadJSON(&req); err != nil {
			return
		}
		go h.handleOne(r.Context(), c, req)
	}
}

func (h *Handler) startHeartbeat(c *conn) chan struct{} {
	stop := make(chan struct{})
	ticker := time.NewTicker(heartbeatInterval / 2)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()
	return stop
}

func (h *Handler) handleOne(ctx context.Context, c *conn, req wireRequest) {
	if req.Method == methodResume {
		h.handleResume(c, req)
		return
	}

	result, err := h.guardian.Handle(ctx, req.Method, req.Params)
	if err != nil {
		h.log.Warn("request rejected", "method", req.Method, "err", err)
		_ = c.writeJSON(rpc.NewErrorResponse(req.ID, err))
		return
	}

	switch req.Method {
	case rpc.MethodSubscribe:
		if sr, ok := result.(dataserver.SubscribeResult); ok {
			h.subs.Register(sr.SubscriptionID, c.transportID, req.Params.Contract, paramsFile(req.Params))
			_ = c.writeJSON(h.subscribeResponse(req.ID, sr))
			return
		}
	case rpc.MethodUnsubscribe:
		var opts struct {
			SubscriptionID string `json:"subscriptionId"`
		}
		_ = json.Unmarshal(req.Params.Options, &opts)
		h.subs.Unregister(opts.SubscriptionID)
	}

	_ = c.writeJSON(rpc.NewResultResponse(req.ID, result))
}

// subscribeResponse attaches a signed resume token to a successful
// subscribe result whenever h.tokens is configured, so a client that
// loses its socket can later present the token to "resume" instead of
// re-running authorization from scratch.
func (h *Handler) subscribeResponse(id json.RawMessage, sr dataserver.SubscribeResult) interface{} {
	resp := rpc.NewResultResponse(id, sr)
	if h.tokens == nil {
		return resp
	}
	rec, ok := h.subs.Lookup(sr.SubscriptionID)
	if !ok {
		return resp
	}
	token, err := h.tokens.Issue(rec)
	if err != nil {
		h.log.Warn("resume token issuance failed", "subscriptionId", sr.SubscriptionID, "err", err)
		return resp
	}
	return struct {
		rpc.Response
		ResumeToken string `json:"resumeToken"`
	}{Response: resp, ResumeToken: token}
}

// handleResume validates a client-presented resume token and
// re-registers its subscription under this connection's transport id.
// The underlying DataServer-side subscription was never torn down by
// the previous connection's closeTransport, so resuming is purely a
// subscription.Manager re-association.
func (h *Handler) handleResume(c *conn, req wireRequest) {
	if h.tokens == nil {
		_ = c.writeJSON(rpc.NewErrorResponse(req.ID, bubbleerr.New(bubbleerr.CodeInvalidParams, "subscription resume is not enabled")))
		return
	}
	claims, err := h.tokens.Validate(req.Token)
	if err != nil {
		_ = c.writeJSON(rpc.NewErrorResponse(req.ID, bubbleerr.Wrap(bubbleerr.CodeAuthenticationFailure, "invalid resume token", err)))
		return
	}
	h.subs.Register(claims.SubscriptionID, c.transportID, claims.Contract, claims.Path)
	_ = c.writeJSON(rpc.NewResultResponse(req.ID, dataserver.SubscribeResult{SubscriptionID: claims.SubscriptionID}))
}

func paramsFile(p rpc.Params) string {
	if p.File == nil {
		return ""
	}
	return *p.File
}

func (h *Handler) closeTransport(transportID string) {
	h.mu.Lock()
	delete(h.conns, transportID)
	h.mu.Unlock()

	for _, id := range h.subs.ForTransport(transportID) {
		h.subs.Unregister(id)
	}
}

// dispatchNotification is installed as the Guardian's notification sink;
// it has no way to know which subscription a notification belongs to on
// its own, so DataServer implementations are expected to stamp
// Notification.SubscriptionID, which the subscription.Manager maps back
// to a live connection.
func (h *Handler) dispatchNotification(n dataserver.Notification) {
	rec, ok := h.subs.Lookup(n.SubscriptionID)
	if !ok {
		return
	}

	h.mu.Lock()
	c, ok := h.conns[rec.TransportID]
	h.mu.Unlock()
	if !ok {
		return
	}

	if err := c.writeJSON(n); err != nil {
		h.log.Warn("notification delivery failed", "subscriptionId", n.SubscriptionID, "err", err)
	}
}
