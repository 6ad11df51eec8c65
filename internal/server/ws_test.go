package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsServer(t *testing.T, srv *Server) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dialURL(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	return ws
}

func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	return dialURL(t, wsServer(t, srv))
}

func sendFrame(t *testing.T, ws *websocket.Conn, id, method string, params any) {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(map[string]any{
		"id":     id,
		"method": method,
		"params": json.RawMessage(raw),
	}))
}

type testFrame struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *frameError     `json:"error"`
}

func readFrame(t *testing.T, ws *websocket.Conn) testFrame {
	t.Helper()
	var f testFrame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func handshake(t *testing.T, ws *websocket.Conn, userID string) string {
	t.Helper()
	sendFrame(t, ws, "h1", "handshake", map[string]any{
		"protocolVersion": protocolVersion,
		"userId":          userID,
	})
	f := readFrame(t, ws)
	require.Nil(t, f.Error, "handshake failed: %+v", f.Error)

	var res struct {
		ProtocolVersion string `json:"protocolVersion"`
		SessionID       string `json:"sessionId"`
		ConnectionID    string `json:"connectionId"`
	}
	require.NoError(t, json.Unmarshal(f.Result, &res))
	require.Equal(t, protocolVersion, res.ProtocolVersion)
	require.NotEmpty(t, res.SessionID)
	require.NotEmpty(t, res.ConnectionID)
	return res.SessionID
}

// ─── Handshake ─────────────────────────────────────────────────────────────

func TestWS_HandshakeBindsSession(t *testing.T) {
	srv := newTestServer(t)
	ws := dialWS(t, srv)
	sessionID := handshake(t, ws, "u1")

	// A second connection for the same user joins the same session.
	ws2 := dialWS(t, srv)
	assert.Equal(t, sessionID, handshake(t, ws2, "u1"))
}

func TestWS_UnsupportedProtocolVersion(t *testing.T) {
	srv := newTestServer(t)
	ws := dialWS(t, srv)

	sendFrame(t, ws, "h1", "handshake", map[string]any{
		"protocolVersion": "0.9",
		"userId":          "u1",
	})
	f := readFrame(t, ws)
	require.NotNil(t, f.Error)
	assert.Equal(t, "UNSUPPORTED_PROTOCOL_VERSION", string(f.Error.Code))
}

func TestWS_FirstFrameMustBeHandshake(t *testing.T) {
	srv := newTestServer(t)
	ws := dialWS(t, srv)

	sendFrame(t, ws, "1", "tools/list", map[string]any{})
	f := readFrame(t, ws)
	require.NotNil(t, f.Error)
	assert.Equal(t, "UNSUPPORTED_PROTOCOL_VERSION", string(f.Error.Code))
}

func TestWS_HandshakeRequiresUserID(t *testing.T) {
	srv := newTestServer(t)
	ws := dialWS(t, srv)

	sendFrame(t, ws, "h1", "handshake", map[string]any{
		"protocolVersion": protocolVersion,
	})
	f := readFrame(t, ws)
	require.NotNil(t, f.Error)
	assert.Equal(t, "VALIDATION_ERROR", string(f.Error.Code))
}

// ─── Requests ──────────────────────────────────────────────────────────────

func TestWS_ToolsListAndCall(t *testing.T) {
	srv := newTestServer(t)
	ws := dialWS(t, srv)
	handshake(t, ws, "u1")

	sendFrame(t, ws, "1", "tools/list", map[string]any{"category": "info"})
	f := readFrame(t, ws)
	require.Equal(t, "1", f.ID)
	require.Nil(t, f.Error)
	var listRes struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(f.Result, &listRes))
	assert.Len(t, listRes.Tools, 2)

	sendFrame(t, ws, "2", "tools/call", map[string]any{
		"tool":       "banking_find_atm",
		"parameters": map[string]any{"location": "10001"},
	})
	f = readFrame(t, ws)
	require.Equal(t, "2", f.ID)
	var callRes struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(f.Result, &callRes))
	assert.True(t, callRes.Success)
}

func TestWS_SessionProcessAndFeedback(t *testing.T) {
	srv := newTestServer(t)
	ws := dialWS(t, srv)
	sessionID := handshake(t, ws, "u1")

	sendFrame(t, ws, "1", "session/process", map[string]any{
		"message": "I want to transfer money",
	})
	f := readFrame(t, ws)
	require.Nil(t, f.Error)
	var reply struct {
		SessionID          string   `json:"sessionId"`
		RequiresHumanInput bool     `json:"requiresHumanInput"`
		RequiredFields     []string `json:"requiredFields"`
		ExecutionID        string   `json:"executionId"`
	}
	require.NoError(t, json.Unmarshal(f.Result, &reply))
	assert.Equal(t, sessionID, reply.SessionID)
	require.True(t, reply.RequiresHumanInput)
	assert.Equal(t, []string{"amount", "toAccount"}, reply.RequiredFields)

	sendFrame(t, ws, "2", "session/feedback", map[string]any{
		"executionId": reply.ExecutionID,
		"value":       map[string]any{"amount": 25, "toAccount": "savings"},
	})
	f = readFrame(t, ws)
	require.Nil(t, f.Error)
	var done struct {
		Result struct {
			Success bool `json:"success"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(f.Result, &done))
	assert.True(t, done.Result.Success)
}

func TestWS_UnknownMethod(t *testing.T) {
	srv := newTestServer(t)
	ws := dialWS(t, srv)
	handshake(t, ws, "u1")

	sendFrame(t, ws, "1", "tools/uninstall", map[string]any{})
	f := readFrame(t, ws)
	require.NotNil(t, f.Error)
	assert.Equal(t, "VALIDATION_ERROR", string(f.Error.Code))
}

// ─── Connection isolation ──────────────────────────────────────────────────

func TestConcurrentConnections_NoCrossTalk(t *testing.T) {
	ts := wsServer(t, newTestServer(t))
	a := dialURL(t, ts)
	b := dialURL(t, ts)
	handshake(t, a, "ws:ua")
	handshake(t, b, "ws:ub")

	for i := 0; i < 3; i++ {
		sendFrame(t, a, fmt.Sprintf("a%d", i), "session/process", map[string]any{
			"message": "What's my balance?",
		})
		sendFrame(t, b, fmt.Sprintf("b%d", i), "session/process", map[string]any{
			"message": "What's my balance?",
		})
	}

	for conn, prefix := range map[*websocket.Conn]string{a: "a", b: "b"} {
		seen := map[string]bool{}
		for i := 0; i < 3; i++ {
			f := readFrame(t, conn)
			require.Nil(t, f.Error, "unexpected error frame: %+v", f.Error)
			require.True(t, strings.HasPrefix(f.ID, prefix),
				"frame %s observed on the wrong connection", f.ID)
			seen[f.ID] = true
		}
		assert.Len(t, seen, 3)
	}
}

// ─── Backpressure ──────────────────────────────────────────────────────────

func TestSend_BackpressureDropsSlowClient(t *testing.T) {
	upgraded := make(chan *websocket.Conn, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err == nil {
			upgraded <- ws
		}
	}))
	t.Cleanup(ts.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))

	c := &wsConn{
		id:   "slow",
		ws:   <-upgraded,
		out:  make(chan frame, 2),
		done: make(chan struct{}),
	}

	// Fill the queue before the write pump runs; the overflow send must
	// drop the client instead of buffering without bound.
	c.send(frame{Result: "one"})
	c.send(frame{Result: "two"})
	c.send(frame{Result: "three"})

	select {
	case <-c.done:
	default:
		t.Fatal("overflow send did not close the connection")
	}

	go c.writePump()

	// Queued frames are flushed, then the policy-violation close arrives.
	for i := 0; i < 2; i++ {
		var f testFrame
		require.NoError(t, client.ReadJSON(&f))
	}
	_, _, err = client.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, "backpressure", closeErr.Text)
}
