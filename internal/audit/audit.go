// Package audit records chat mutations to an append-only event log so that
// edits and soft deletes keep their history.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"kelasin/chat/pkg/chatproto"
)

// Action names the mutation being recorded.
type Action string

const (
	ActionSent    Action = "message.sent"
	ActionEdited  Action = "message.edited"
	ActionDeleted Action = "message.deleted"
)

// Event is one audit record. Before holds the content prior to an edit or
// delete.
type Event struct {
	Action    Action                 `json:"action"`
	ClassID   string                 `json:"classId"`
	MessageID string                 `json:"messageId"`
	ActorID   string                 `json:"actorId"`
	Before    string                 `json:"before,omitempty"`
	Message   *chatproto.ChatMessage `json:"message,omitempty"`
	At        time.Time              `json:"at"`
}

// Publisher ships audit events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(ctx context.Context, e Event) error { return nil }
func (Nop) Close() error                               { return nil }

func encode(e Event) ([]byte, error) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return json.Marshal(e)
}
