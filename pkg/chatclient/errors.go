package chatclient

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage is returned when a text message or edit has no content.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrNotOwnMessage is returned when editing or deleting a message that is
	// not the viewer's own live text message.
	ErrNotOwnMessage = errors.New("you can only change your own text messages")

	// ErrClosed is returned by operations on a closed socket or chat.
	ErrClosed = errors.New("chat connection closed")

	// ErrNoClass is returned when sending before a class was opened.
	ErrNoClass = errors.New("no class chat is open")
)

// APIError is a non-2xx response from the chat HTTP API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api error %d: %s", e.Status, e.Message)
}
