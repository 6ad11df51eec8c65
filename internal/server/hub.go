package server

import (
	"encoding/json"
	"sync"

	"github.com/tellergate/tellergate/internal/session"
)

// hub tracks which duplex connections are bound to which session so
// unsolicited server→client notifications can be routed. Responses never
// go through the hub; each connection answers only its own requests.
type hub struct {
	mu    sync.Mutex
	conns map[string]map[*wsConn]struct{} // sessionID → connections
}

func newHub() *hub {
	return &hub{conns: make(map[string]map[*wsConn]struct{})}
}

func (h *hub) add(sessionID string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[sessionID] == nil {
		h.conns[sessionID] = make(map[*wsConn]struct{})
	}
	h.conns[sessionID][c] = struct{}{}
}

func (h *hub) remove(sessionID string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[sessionID], c)
	if len(h.conns[sessionID]) == 0 {
		delete(h.conns, sessionID)
	}
}

// notifySessionExpired pushes a notification frame (no correlation id) to
// every connection bound to the session.
func (h *hub) notifySessionExpired(sessionID string, status session.Status) {
	params, _ := json.Marshal(map[string]any{
		"sessionId": sessionID,
		"status":    status,
	})

	h.mu.Lock()
	targets := make([]*wsConn, 0, len(h.conns[sessionID]))
	for c := range h.conns[sessionID] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.send(frame{Method: "notifications/session", Params: params})
	}
}
