// Package bus defines the message types that flow between channels and the
// command dispatcher, and the in-process bus carrying them.
package bus

import (
	"time"

	"github.com/cmdlink/cmdlink/internal/shared/stringutils"
)

// Origin identifies the conversation a command line came from and where
// captured output should be forwarded.
type Origin struct {
	Channel  string // "cli", "telegram", "gateway", "scheduler"
	ChatID   string // chat / DM / connection identifier within the channel
	SenderID string // user identifier within the channel
}

// SessionKey returns the unique conversation key, "channel:chat_id".
func (o Origin) SessionKey() string {
	return o.Channel + ":" + o.ChatID
}

// InboundMessage is a raw line received from a channel.
type InboundMessage struct {
	Origin    Origin
	Content   string
	Timestamp time.Time
}

// NewInboundMessage creates an InboundMessage with Timestamp set to now.
func NewInboundMessage(origin Origin, content string) InboundMessage {
	return InboundMessage{Origin: origin, Content: content, Timestamp: time.Now()}
}

// Preview returns a short snippet of the message content for logging.
func (m InboundMessage) Preview() string {
	return stringutils.Truncate(m.Content, 80)
}

// OutboundMessage is text to be delivered back through a channel.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}

// MessageBus decouples chat channels from the command dispatcher.
//
// Channels push InboundMessages; the dispatcher consumes them, executes, and
// pushes OutboundMessages back for the channel manager to route.
// Both directions use buffered channels so senders never block on a slow consumer.
type MessageBus struct {
	Inbound  chan InboundMessage  // channels → dispatcher
	Outbound chan OutboundMessage // dispatcher → channels
}

func NewMessageBus(bufSize int) *MessageBus {
	return &MessageBus{
		Inbound:  make(chan InboundMessage, bufSize),
		Outbound: make(chan OutboundMessage, bufSize),
	}
}

// PublishInbound sends an InboundMessage to the dispatcher.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	b.Inbound <- msg
}

// PublishOutbound sends an OutboundMessage to the channel manager.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	b.Outbound <- msg
}
