// Package gateway runs the chat-facing loop: it consumes inbound messages
// from the bus, drives the orchestrator, and publishes responses. It is a
// consumer of the orchestrator interface, exactly like any external chat
// transport would be.
package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tellergate/tellergate/internal/bus"
	"github.com/tellergate/tellergate/internal/orchestrator"
)

// Conversations is the chat transport's own session table. It never mints
// ids: the bridge pushes the authoritative sessionId in through BindSession,
// and the loop only ever reads from here.
type Conversations struct {
	mu     sync.Mutex
	byUser map[string]string // user key → authoritative session id
}

// NewConversations creates an empty Conversations table.
func NewConversations() *Conversations {
	return &Conversations{byUser: make(map[string]string)}
}

// BindSession implements bridge.ExternalStore.
func (c *Conversations) BindSession(userID, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byUser[userID] = sessionID
	return nil
}

// Lookup returns the known session id for userID, or "".
func (c *Conversations) Lookup(userID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byUser[userID]
}

// Loop bridges the bus and the orchestrator.
type Loop struct {
	bus   bus.Bus
	orch  *orchestrator.Orchestrator
	convs *Conversations
}

// NewLoop creates a Loop. convs must be registered with the bridge so it
// receives authoritative session ids.
func NewLoop(b bus.Bus, orch *orchestrator.Orchestrator, convs *Conversations) *Loop {
	return &Loop{bus: b, orch: orch, convs: convs}
}

// Run consumes inbound messages until ctx is cancelled. Each message is
// handled on its own goroutine; per-session serialization happens inside
// the orchestrator.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("gateway loop started")
	for {
		select {
		case msg := <-l.bus.InboundChan():
			go l.handle(ctx, msg)
		case <-ctx.Done():
			slog.Info("gateway loop stopping")
			return ctx.Err()
		}
	}
}

func (l *Loop) handle(ctx context.Context, msg bus.InboundMessage) {
	userID := msg.UserKey()
	slog.Debug("gateway message", "user", userID, "preview", msg.Preview())

	reply, err := l.orch.Process(ctx, l.convs.Lookup(userID), userID, msg.Content(), "")
	if err != nil {
		slog.Error("gateway process failed", "user", userID, "err", err)
		l.bus.PublishOutbound(bus.NewOutboundMessage(msg.Channel(), msg.ChatID(),
			"Something went wrong handling that request. Please try again."))
		return
	}

	l.bus.PublishOutbound(bus.NewOutboundMessage(msg.Channel(), msg.ChatID(), reply.Response))
}
