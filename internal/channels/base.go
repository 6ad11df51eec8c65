// Package channels provides the chat-platform collaborators. They publish
// inbound messages to the bus and render replies; session identity always
// comes from the orchestrator side, never from here.
package channels

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tellergate/tellergate/internal/bus"
)

// Channel is one chat transport.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
}

// Base holds common state and helpers shared by all channels.
type Base struct {
	channelName bus.ChannelType
	b           bus.Bus
	allowFrom   []string // empty = allow all
}

// NewBase creates a Base with the given channel name, bus, and allowlist.
func NewBase(name bus.ChannelType, b bus.Bus, allowFrom []string) Base {
	return Base{channelName: name, b: b, allowFrom: allowFrom}
}

// IsAllowed checks whether senderID is on the allowlist.
func (b *Base) IsAllowed(senderID string) bool {
	if len(b.allowFrom) == 0 {
		return true
	}
	for _, allowed := range b.allowFrom {
		if allowed == senderID {
			return true
		}
	}
	return false
}

// HandleMessage verifies the sender is allowed, then publishes an
// InboundMessage.
func (b *Base) HandleMessage(senderID, chatID, content string) {
	if !b.IsAllowed(senderID) {
		slog.Warn("access denied", "channel", b.channelName, "sender", senderID)
		return
	}
	b.b.PublishInbound(bus.NewInboundMessage(b.channelName, senderID, chatID, content))
}

// splitMessage splits content into chunks that fit within maxLen,
// preferring newline breaks, then space breaks, then a hard cut.
func splitMessage(content string, maxLen int) []string {
	if len(content) <= maxLen {
		return []string{content}
	}
	var chunks []string
	for len(content) > 0 {
		if len(content) <= maxLen {
			chunks = append(chunks, content)
			break
		}
		cut := content[:maxLen]
		pos := strings.LastIndex(cut, "\n")
		if pos <= 0 {
			pos = strings.LastIndex(cut, " ")
		}
		if pos <= 0 {
			pos = maxLen
		}
		chunks = append(chunks, content[:pos])
		content = strings.TrimLeft(content[pos:], " \t")
	}
	return chunks
}
