package websocket

import (
	"time"

	"kelasin/chat/pkg/chatproto"
)

// WSMessage represents an outgoing WebSocket message structure
type WSMessage struct {
	Type      chatproto.EventType `json:"type"`
	Payload   interface{}         `json:"payload"`
	Timestamp time.Time           `json:"timestamp"`
}

// IncomingMessage represents messages received from clients
type IncomingMessage = chatproto.Envelope

// NewMessage stamps an outgoing event with the current time
func NewMessage(t chatproto.EventType, payload interface{}) WSMessage {
	return WSMessage{Type: t, Payload: payload, Timestamp: time.Now()}
}
