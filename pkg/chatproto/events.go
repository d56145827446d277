// Package chatproto defines the class chat wire protocol shared by the
// server hub and the client core: event names, payloads and the JSON
// envelope carried over the WebSocket.
package chatproto

import (
	"encoding/json"
	"time"
)

// EventType represents different WebSocket event types
type EventType string

const (
	// Client -> server
	EventJoinClass     EventType = "join-class"
	EventLeaveClass    EventType = "leave-class"
	EventSendMessage   EventType = "send-message"
	EventEditMessage   EventType = "edit-message"
	EventDeleteMessage EventType = "delete-message"
	EventTypingStart   EventType = "typing-start"
	EventTypingStop    EventType = "typing-stop"

	// Server -> client
	EventNewMessage     EventType = "new-message"
	EventMessageEdited  EventType = "message-edited"
	EventMessageDeleted EventType = "message-deleted"
	EventUserTyping     EventType = "user-typing"
	EventJoinedClass    EventType = "joined-class"
	EventLeftClass      EventType = "left-class"
	EventError          EventType = "error"
)

// Envelope is a single socket frame.
type Envelope struct {
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(t EventType, payload interface{}) (Envelope, error) {
	env := Envelope{Type: t, Timestamp: time.Now()}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return env, err
	}
	env.Payload = raw
	return env, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(e.Payload, v)
}

// ClassPayload is used by join-class, leave-class, joined-class, left-class,
// typing-start and typing-stop.
type ClassPayload struct {
	ClassID string `json:"classId"`
}

// SendMessagePayload is the body of a send-message event.
type SendMessagePayload struct {
	ClassID     string      `json:"classId"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"messageType"`
	ImageData   string      `json:"imageData,omitempty"` // data URL, IMAGE only
	FileURL     string      `json:"fileUrl,omitempty"`   // FILE only, from /upload/file
	FileName    string      `json:"fileName,omitempty"`
	FileSize    int64       `json:"fileSize,omitempty"`
	ReplyToID   string      `json:"replyToId,omitempty"`
}

// EditMessagePayload is the body of an edit-message event.
type EditMessagePayload struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

// MessageRefPayload is used by delete-message and message-deleted.
type MessageRefPayload struct {
	MessageID string `json:"messageId"`
	ClassID   string `json:"classId,omitempty"`
}

// TypingPayload represents typing indicator payload
type TypingPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	ClassID  string `json:"classId"`
	IsTyping bool   `json:"isTyping"`
}

// ErrorPayload represents error event payload
type ErrorPayload struct {
	Message string `json:"message"`
}
