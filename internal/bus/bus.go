// Package bus defines the in-process contract between chat channels and the
// gateway loop. Channels publish inbound messages; the loop consumes them,
// drives the orchestrator, and publishes outbound responses for the channel
// manager to route.
package bus

import "time"

// ChannelType names a chat transport.
type ChannelType string

const (
	ChannelTelegram ChannelType = "telegram"
	ChannelSlack    ChannelType = "slack"
)

// InboundMessage is a message received from a chat channel.
type InboundMessage struct {
	channel   ChannelType
	senderID  string
	chatID    string
	content   string
	timestamp time.Time
}

// NewInboundMessage creates an InboundMessage with Timestamp set to now.
func NewInboundMessage(channel ChannelType, senderID, chatID, content string) InboundMessage {
	return InboundMessage{
		channel:   channel,
		senderID:  senderID,
		chatID:    chatID,
		content:   content,
		timestamp: time.Now(),
	}
}

func (m InboundMessage) Channel() ChannelType { return m.channel }
func (m InboundMessage) SenderID() string     { return m.senderID }
func (m InboundMessage) ChatID() string       { return m.chatID }
func (m InboundMessage) Content() string      { return m.content }
func (m InboundMessage) Timestamp() time.Time { return m.timestamp }

// UserKey identifies the user across the whole system: "channel:sender".
func (m InboundMessage) UserKey() string {
	return string(m.channel) + ":" + m.senderID
}

// Preview returns a short snippet of the message content for logging.
func (m InboundMessage) Preview() string {
	if len(m.content) > 80 {
		return m.content[:80] + "..."
	}
	return m.content
}

// OutboundMessage is a response to be sent back through a channel.
type OutboundMessage struct {
	channel ChannelType
	chatID  string
	content string
}

// NewOutboundMessage creates an OutboundMessage.
func NewOutboundMessage(channel ChannelType, chatID, content string) OutboundMessage {
	return OutboundMessage{channel: channel, chatID: chatID, content: content}
}

func (m OutboundMessage) Channel() ChannelType { return m.channel }
func (m OutboundMessage) ChatID() string       { return m.chatID }
func (m OutboundMessage) Content() string      { return m.content }

// Bus is the contract between chat channels and the gateway loop.
type Bus interface {
	PublishInbound(msg InboundMessage)
	PublishOutbound(msg OutboundMessage)
	InboundChan() <-chan InboundMessage
	OutboundChan() <-chan OutboundMessage
}

// MessageBus is the default Bus backed by buffered Go channels. Bursts up
// to the buffer size are absorbed without blocking the sender; once the
// buffer fills, publishers block until the consumer catches up rather
// than dropping messages.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
}

// NewMessageBus creates a MessageBus with the given buffer size.
func NewMessageBus(bufSize int) Bus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, bufSize),
		outbound: make(chan OutboundMessage, bufSize),
	}
}

func (b *MessageBus) PublishInbound(msg InboundMessage)       { b.inbound <- msg }
func (b *MessageBus) PublishOutbound(msg OutboundMessage)     { b.outbound <- msg }
func (b *MessageBus) InboundChan() <-chan InboundMessage      { return b.inbound }
func (b *MessageBus) OutboundChan() <-chan OutboundMessage    { return b.outbound }
