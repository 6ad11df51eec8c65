package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tellergate/tellergate/internal/schema"
)

// protocolVersion is the duplex-channel protocol this server speaks.
// The handshake rejects anything else rather than silently degrading.
const protocolVersion = "1.0"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Cross-origin policy is the reverse proxy's job.
	CheckOrigin: func(*http.Request) bool { return true },
}

// frame is the versioned request/response envelope. Requests and responses
// carry the correlation id; notifications omit it.
type frame struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  *frameError     `json:"error,omitempty"`
}

type frameError struct {
	Code    schema.ErrorCode    `json:"code"`
	Message string              `json:"message"`
	Fields  []schema.FieldError `json:"fields,omitempty"`
}

func toFrameError(err error) *frameError {
	e := schema.AsError(err)
	return &frameError{Code: e.Code, Message: e.Message, Fields: e.Fields}
}

// wsConn is one duplex client connection. The read loop and the write pump
// are independent goroutines; all outbound traffic goes through the bounded
// out queue so a slow client never blocks other connections.
type wsConn struct {
	id        string
	ws        *websocket.Conn
	out       chan frame
	done      chan struct{}
	closeOnce sync.Once
	limiter   *rate.Limiter
	sessionID string
	userID    string
	srv       *Server
}

// handleWS upgrades the connection and runs the session transport.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws: upgrade failed", "err", err)
		return
	}

	c := &wsConn{
		id:      uuid.NewString(),
		ws:      ws,
		out:     make(chan frame, s.wsQueueSize),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(s.rateLimit), s.rateBurst),
		srv:     s,
	}

	go c.writePump()
	c.readLoop(r.Context())
}

// readLoop performs the handshake and then dispatches frames until the
// connection drops.
func (c *wsConn) readLoop(ctx context.Context) {
	defer c.close()

	c.ws.SetReadLimit(1 << 20)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	if !c.handshake() {
		return
	}
	c.srv.hub.add(c.sessionID, c)
	defer c.srv.hub.remove(c.sessionID, c)

	for {
		var f frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("ws: read error", "conn", c.id, "err", err)
			}
			return
		}
		if !c.limiter.Allow() {
			c.send(frame{ID: f.ID, Error: &frameError{
				Code: schema.CodeBackpressure, Message: "message rate limit exceeded",
			}})
			continue
		}
		// One worker per message; responses are correlated by id, so
		// ordering across in-flight requests is not guaranteed.
		go c.dispatch(ctx, f)
	}
}

// handshake validates the protocol version and binds the connection to one
// session. Every later frame on this connection is implicitly scoped to it.
func (c *wsConn) handshake() bool {
	var f frame
	if err := c.ws.ReadJSON(&f); err != nil {
		return false
	}
	if f.Method != "handshake" {
		c.send(frame{ID: f.ID, Error: &frameError{
			Code: schema.CodeUnsupportedProtocol, Message: "first frame must be a handshake",
		}})
		return false
	}

	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
		UserID          string `json:"userId"`
		SessionID       string `json:"sessionId"`
	}
	if err := json.Unmarshal(f.Params, &params); err != nil || params.UserID == "" {
		c.send(frame{ID: f.ID, Error: &frameError{
			Code: schema.CodeValidation, Message: "handshake requires protocolVersion and userId",
		}})
		return false
	}
	if params.ProtocolVersion != protocolVersion {
		c.send(frame{ID: f.ID, Error: &frameError{
			Code:    schema.CodeUnsupportedProtocol,
			Message: "unsupported protocol version " + params.ProtocolVersion,
		}})
		return false
	}

	sessionID, err := c.srv.orch.CreateOrResumeSession(params.UserID, params.SessionID)
	if err != nil {
		c.send(frame{ID: f.ID, Error: toFrameError(err)})
		return false
	}

	c.sessionID = sessionID
	c.userID = params.UserID
	c.send(frame{ID: f.ID, Result: map[string]any{
		"protocolVersion": protocolVersion,
		"connectionId":    c.id,
		"sessionId":       sessionID,
	}})
	slog.Info("ws: connected", "conn", c.id, "session", sessionID, "user", params.UserID)
	return true
}

// dispatch handles one post-handshake request frame.
func (c *wsConn) dispatch(ctx context.Context, f frame) {
	switch f.Method {
	case "tools/list":
		var params struct {
			Category string `json:"category"`
		}
		_ = json.Unmarshal(f.Params, &params)
		list := []schema.ToolDefinition{}
		for def := range c.srv.executor.Registry().List(params.Category) {
			list = append(list, def)
		}
		c.send(frame{ID: f.ID, Result: map[string]any{"tools": list}})

	case "tools/call":
		var req schema.ExecuteRequest
		if err := json.Unmarshal(f.Params, &req); err != nil {
			c.send(frame{ID: f.ID, Error: &frameError{Code: schema.CodeValidation, Message: "bad tools/call params"}})
			return
		}
		c.send(frame{ID: f.ID, Result: c.srv.executor.Execute(ctx, req.Tool, req.Parameters)})

	case "session/process":
		var params struct {
			Message string `json:"message"`
			Intent  string `json:"intent"`
		}
		if err := json.Unmarshal(f.Params, &params); err != nil {
			c.send(frame{ID: f.ID, Error: &frameError{Code: schema.CodeValidation, Message: "bad session/process params"}})
			return
		}
		reply, err := c.srv.orch.Process(ctx, c.sessionID, c.userID, params.Message, params.Intent)
		if err != nil {
			c.send(frame{ID: f.ID, Error: toFrameError(err)})
			return
		}
		c.send(frame{ID: f.ID, Result: reply})

	case "session/feedback":
		var params struct {
			ExecutionID string `json:"executionId"`
			Value       any    `json:"value"`
		}
		if err := json.Unmarshal(f.Params, &params); err != nil {
			c.send(frame{ID: f.ID, Error: &frameError{Code: schema.CodeValidation, Message: "bad session/feedback params"}})
			return
		}
		reply, err := c.srv.orch.Feedback(ctx, c.sessionID, params.ExecutionID, params.Value)
		if err != nil {
			c.send(frame{ID: f.ID, Error: toFrameError(err)})
			return
		}
		c.send(frame{ID: f.ID, Result: reply})

	case "session/get":
		sum, err := c.srv.orch.GetSession(c.sessionID)
		if err != nil {
			c.send(frame{ID: f.ID, Error: toFrameError(err)})
			return
		}
		c.send(frame{ID: f.ID, Result: sum})

	default:
		c.send(frame{ID: f.ID, Error: &frameError{
			Code: schema.CodeValidation, Message: "unknown method " + f.Method,
		}})
	}
}

// send enqueues a frame for the write pump. A full queue means the client
// is not keeping up; the connection is closed rather than buffering
// without bound.
func (c *wsConn) send(f frame) {
	select {
	case c.out <- f:
	case <-c.done:
	default:
		slog.Warn("ws: outbound queue full, dropping client", "conn", c.id, "session", c.sessionID)
		c.close()
	}
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump is the only goroutine that writes to the socket.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case f := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(f); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			// Flush queued frames so error responses beat the close frame.
			for {
				select {
				case f := <-c.out:
					_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
					_ = c.ws.WriteJSON(f)
				default:
					_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
					_ = c.ws.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "backpressure"))
					return
				}
			}
		}
	}
}
