package wstransport

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/ethdenver2026/gateway/bubbleerr"
	"github.com/ethdenver2026/gateway/dataserver"
	"github.com/ethdenver2026/gateway/rpc"
	"github.com/ethdenver2026/gateway/subscription"
)

const testResumeSecret = "resume-test-secret"

type fakeGuardian struct {
	result  interface{}
	err     error
	notify  dataserver.Listener
	methods []rpc.Method
}

func (f *fakeGuardian) Handle(ctx context.Context, method rpc.Method, p rpc.Params) (interface{}, error) {
	f.methods = append(f.methods, method)
	return f.result, f.err
}

func (f *fakeGuardian) OnNotify(listener dataserver.Listener) {
	f.notify = listener
}

func dialHandler(t *testing.T, h *Handler) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(h)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return ws, func() {
		ws.Close()
		srv.Close()
	}
}

func TestServeHTTPDispatchesRequestAndReturnsResult(t *testing.T) {
	fake := &fakeGuardian{result: "ok"}
	h := NewHandler(fake, subscription.New(), nil, nil)
	ws, cleanup := dialHandler(t, h)
	defer cleanup()

	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"id":     1,
		"method": "read",
		"params": map[string]interface{}{"version": 1, "chainId": 1, "contract": "0xAbC", "file": "x"},
	}))

	var resp rpc.Response
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&resp))
	require.Nil(t, resp.Error)
	require.Equal(t, "ok", resp.Result)
}

func TestServeHTTPRegistersSubscriptionOnSubscribeResult(t *testing.T) {
	subID := "sub-1"
	fake := &fakeGuardian{result: dataserver.SubscribeResult{SubscriptionID: subID}}
	subs := subscription.New()
	h := NewHandler(fake, subs, nil, nil)
	ws, cleanup := dialHandler(t, h)
	defer cleanup()

	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"id":     1,
		"method": "subscribe",
		"params": map[string]interface{}{"version": 1, "chainId": 1, "contract": "0xAbC123", "file": "x"},
	}))

	var resp rpc.Response
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&resp))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := subs.Lookup(subID); ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	rec, ok := subs.Lookup(subID)
	require.True(t, ok)
	require.Equal(t, "0xAbC123", rec.Contract)
}

func TestServeHTTPUnregistersSubscriptionOnUnsubscribe(t *testing.T) {
	subID := "sub-2"
	subs := subscription.New()
	subs.Register(subID, "some-other-transport", "0xAbC123", "x")

	fake := &fakeGuardian{result: map[string]bool{"unsubscribed": true}}
	h := NewHandler(fake, subs, nil, nil)
	ws, cleanup := dialHandler(t, h)
	defer cleanup()

	opts, err := json.Marshal(map[string]string{"subscriptionId": subID})
	require.NoError(t, err)

	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"id":     1,
		"method": "unsubscribe",
		"params": map[string]interface{}{"version": 1, "chainId": 1, "contract": "0xAbC123", "file": "x", "options": json.RawMessage(opts)},
	}))

	var resp rpc.Response
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&resp))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := subs.Lookup(subID); !ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	_, ok := subs.Lookup(subID)
	require.False(t, ok)
}

func TestServeHTTPWritesErrorResponseOnGuardianFailure(t *testing.T) {
	fake := &fakeGuardian{err: bubbleerr.PermissionDenied()}
	h := NewHandler(fake, subscription.New(), nil, nil)
	ws, cleanup := dialHandler(t, h)
	defer cleanup()

	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"id":     1,
		"method": "write",
		"params": map[string]interface{}{"version": 1, "chainId": 1, "contract": "0xAbC", "file": "x"},
	}))

	var resp rpc.Response
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, int(bubbleerr.CodePermissionDenied), resp.Error.Code)
}

func TestDispatchNotificationDeliversToOwningConnection(t *testing.T) {
	fake := &fakeGuardian{result: "ok"}
	subs := subscription.New()
	h := NewHandler(fake, subs, nil, nil)
	ws, cleanup := dialHandler(t, h)
	defer cleanup()

	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"id":     1,
		"method": "read",
		"params": map[string]interface{}{"version": 1, "chainId": 1, "contract": "0xAbC", "file": "x"},
	}))
	var initial rpc.Response
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&initial))

	var transportID string
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		for id := range h.conns {
			transportID = id
		}
		h.mu.Unlock()
		if transportID != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NotEmpty(t, transportID)

	subs.Register("sub-3", transportID, "0xAbC123", "x")
	fake.notify(dataserver.Notification{SubscriptionID: "sub-3", Event: dataserver.EventWrite})

	var n dataserver.Notification
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&n))
	require.Equal(t, "sub-3", n.SubscriptionID)
	require.Equal(t, dataserver.EventWrite, n.Event)
}

func TestDispatchNotificationIgnoresUnknownSubscription(t *testing.T) {
	fake := &fakeGuardian{result: "ok"}
	h := NewHandler(fake, subscription.New(), nil, nil)
	_, cleanup := dialHandler(t, h)
	defer cleanup()

	fake.notify(dataserver.Notification{SubscriptionID: "does-not-exist", Event: dataserver.EventWrite})
}

func TestServeHTTPSubscribeAttachesResumeTokenWhenConfigured(t *testing.T) {
	subID := "sub-resume-1"
	fake := &fakeGuardian{result: dataserver.SubscribeResult{SubscriptionID: subID}}
	subs := subscription.New()
	tokens := subscription.NewTokenIssuer([]byte(testResumeSecret), time.Hour)
	h := NewHandler(fake, subs, tokens, nil)
	ws, cleanup := dialHandler(t, h)
	defer cleanup()

	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"id":     1,
		"method": "subscribe",
		"params": map[string]interface{}{"version": 1, "chainId": 1, "contract": "0xAbC123", "file": "x"},
	}))

	var raw map[string]interface{}
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&raw))
	token, ok := raw["resumeToken"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)

	claims, err := tokens.Validate(token)
	require.NoError(t, err)
	require.Equal(t, subID, claims.SubscriptionID)
	require.Equal(t, "0xAbC123", claims.Contract)
}

func TestServeHTTPSubscribeOmitsResumeTokenWhenNotConfigured(t *testing.T) {
	subID := "sub-resume-2"
	fake := &fakeGuardian{result: dataserver.SubscribeResult{SubscriptionID: subID}}
	h := NewHandler(fake, subscription.New(), nil, nil)
	ws, cleanup := dialHandler(t, h)
	defer cleanup()

	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"id":     1,
		"method": "subscribe",
		"params": map[string]interface{}{"version": 1, "chainId": 1, "contract": "0xAbC123", "file": "x"},
	}))

	var raw map[string]interface{}
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&raw))
	_, present := raw["resumeToken"]
	require.False(t, present)
}

func TestHandleResumeReRegistersSubscriptionUnderNewTransport(t *testing.T) {
	subID := "sub-resume-3"
	fake := &fakeGuardian{result: "ok"}
	subs := subscription.New()
	tokens := subscription.NewTokenIssuer([]byte(testResumeSecret), time.Hour)
	h := NewHandler(fake, subs, tokens, nil)

	token, err := tokens.Issue(subscription.Record{ID: subID, Contract: "0xAbC123", Path: "x"})
	require.NoError(t, err)

	ws, cleanup := dialHandler(t, h)
	defer cleanup()

	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"id":     1,
		"method": "resume",
		"token":  token,
	}))

	var resp rpc.Response
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&resp))
	require.Nil(t, resp.Error)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := subs.Lookup(subID); ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	rec, ok := subs.Lookup(subID)
	require.True(t, ok)
	require.Equal(t, "0xAbC123", rec.Contract)
}

func TestHandleResumeRejectsInvalidToken(t *testing.T) {
	fake := &fakeGuardian{result: "ok"}
	tokens := subscription.NewTokenIssuer([]byte(testResumeSecret), time.Hour)
	h := NewHandler(fake, subscription.New(), tokens, nil)
	ws, cleanup := dialHandler(t, h)
	defer cleanup()

	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"id":     1,
		"method": "resume",
		"token":  "not-a-real-token",
	}))

	var resp rpc.Response
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, int(bubbleerr.CodeAuthenticationFailure), resp.Error.Code)
}

func TestHandleResumeDisabledWithoutTokenIssuer(t *testing.T) {
	fake := &fakeGuardian{result: "ok"}
	h := NewHandler(fake, subscription.New(), nil, nil)
	ws, cleanup := dialHandler(t, h)
	defer cleanup()

	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"id":     1,
		"method": "resume",
		"token":  "irrelevant",
	}))

	var resp rpc.Response
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, int(bubbleerr.CodeInvalidParams), resp.Error.Code)
}
