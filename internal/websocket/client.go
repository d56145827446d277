package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"golang.org/x/time/rate"

	"kelasin/chat/internal/chat"
	"kelasin/chat/internal/metrics"
	"kelasin/chat/pkg/chatproto"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 5 * 1024 * 1024 // 3MB image as base64 plus envelope
	eventTimeout   = 10 * time.Second
)

// Client represents a WebSocket client connection
type Client struct {
	ID   string // User ID
	Name string // Display name, used for typing indicators
	Conn *websocket.Conn
	Hub  *Hub
	Send chan []byte

	limiter *rate.Limiter

	// guarded by Hub.mu
	rooms  map[string]bool
	closed bool
}

// NewClient creates a new WebSocket client allowed eventsPerSecond socket
// events with the given burst
func NewClient(userID, name string, conn *websocket.Conn, hub *Hub, eventsPerSecond float64, burst int) *Client {
	return &Client{
		ID:      userID,
		Name:    name,
		Conn:    conn,
		Hub:     hub,
		Send:    make(chan []byte, 256),
		limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burst),
		rooms:   make(map[string]bool),
	}
}

// ReadPump handles incoming messages from the client
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn().Err(err).Str("user_id", c.ID).Msg("websocket error")
			}
			break
		}

		// Parse incoming message
		var incoming IncomingMessage
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.sendError("", "Malformed event")
			continue
		}

		c.handleIncomingMessage(incoming)
	}
}

// WritePump handles outgoing messages to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Debug().Err(err).Str("user_id", c.ID).Msg("write error")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleIncomingMessage processes different types of incoming messages
func (c *Client) handleIncomingMessage(msg IncomingMessage) {
	metrics.SocketEvents.WithLabelValues(string(msg.Type)).Inc()

	if !c.limiter.Allow() {
		c.sendError(msg.Type, "Too many events, please slow down")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	switch msg.Type {
	case chatproto.EventJoinClass:
		c.handleJoinClass(ctx, msg)
	case chatproto.EventLeaveClass:
		c.handleLeaveClass(msg)
	case chatproto.EventSendMessage:
		c.handleSendMessage(ctx, msg)
	case chatproto.EventEditMessage:
		c.handleEditMessage(ctx, msg)
	case chatproto.EventDeleteMessage:
		c.handleDeleteMessage(ctx, msg)
	case chatproto.EventTypingStart:
		c.handleTyping(msg, true)
	case chatproto.EventTypingStop:
		c.handleTyping(msg, false)
	default:
		c.sendError(msg.Type, "Unknown event type")
	}
}

// handleJoinClass adds the socket to the class room after checking membership
func (c *Client) handleJoinClass(ctx context.Context, msg IncomingMessage) {
	var p chatproto.ClassPayload
	if err := msg.Decode(&p); err != nil || p.ClassID == "" {
		c.sendError(msg.Type, "classId is required")
		return
	}

	if _, err := c.Hub.service.Authorize(ctx, p.ClassID, c.ID); err != nil {
		c.fail(msg.Type, err, "Failed to join class chat")
		return
	}

	c.Hub.JoinRoom(c, p.ClassID)
	c.Hub.SendToClient(c, NewMessage(chatproto.EventJoinedClass, p))
}

// handleLeaveClass removes the socket from the class room
func (c *Client) handleLeaveClass(msg IncomingMessage) {
	var p chatproto.ClassPayload
	if err := msg.Decode(&p); err != nil || p.ClassID == "" {
		c.sendError(msg.Type, "classId is required")
		return
	}

	c.Hub.LeaveRoom(c, p.ClassID)
	c.Hub.SendToClient(c, NewMessage(chatproto.EventLeftClass, p))
}

// handleSendMessage stores the message and broadcasts it to the whole room,
// sender included
func (c *Client) handleSendMessage(ctx context.Context, msg IncomingMessage) {
	var p chatproto.SendMessagePayload
	if err := msg.Decode(&p); err != nil {
		c.sendError(msg.Type, "Invalid message payload")
		return
	}

	out, err := c.Hub.service.Send(ctx, c.ID, p)
	if err != nil {
		c.fail(msg.Type, err, "Failed to send message")
		return
	}

	c.Hub.BroadcastToClass(out.ClassID, NewMessage(chatproto.EventNewMessage, out), "")
}

// handleEditMessage applies an edit and broadcasts the updated message
func (c *Client) handleEditMessage(ctx context.Context, msg IncomingMessage) {
	var p chatproto.EditMessagePayload
	if err := msg.Decode(&p); err != nil {
		c.sendError(msg.Type, "Invalid edit payload")
		return
	}

	out, err := c.Hub.service.Edit(ctx, c.ID, p)
	if err != nil {
		c.fail(msg.Type, err, "Failed to edit message")
		return
	}

	c.Hub.BroadcastToClass(out.ClassID, NewMessage(chatproto.EventMessageEdited, out), "")
}

// handleDeleteMessage soft-deletes and broadcasts the message id
func (c *Client) handleDeleteMessage(ctx context.Context, msg IncomingMessage) {
	var p chatproto.MessageRefPayload
	if err := msg.Decode(&p); err != nil {
		c.sendError(msg.Type, "Invalid delete payload")
		return
	}

	out, err := c.Hub.service.Delete(ctx, c.ID, p.MessageID)
	if err != nil {
		c.fail(msg.Type, err, "Failed to delete message")
		return
	}

	c.Hub.BroadcastToClass(out.ClassID, NewMessage(chatproto.EventMessageDeleted, chatproto.MessageRefPayload{
		MessageID: out.ID,
		ClassID:   out.ClassID,
	}), "")
}

// handleTyping broadcasts typing start/stop to the rest of the room
func (c *Client) handleTyping(msg IncomingMessage, isTyping bool) {
	var p chatproto.ClassPayload
	if err := msg.Decode(&p); err != nil || p.ClassID == "" {
		return
	}

	// Typing is only relayed for rooms this socket joined
	if !c.Hub.InRoom(c, p.ClassID) {
		return
	}

	c.Hub.BroadcastToClass(p.ClassID, NewMessage(chatproto.EventUserTyping, chatproto.TypingPayload{
		UserID:   c.ID,
		UserName: c.Name,
		ClassID:  p.ClassID,
		IsTyping: isTyping,
	}), c.ID)
}

// fail reports err to the socket. Errors caused by the request are shown
// as is; anything else is logged and replaced by fallback.
func (c *Client) fail(event chatproto.EventType, err error, fallback string) {
	if chat.IsUserError(err) {
		c.sendError(event, err.Error())
		return
	}
	c.Hub.logger.Error().Err(err).Str("user_id", c.ID).Str("event", string(event)).Msg("socket event failed")
	c.sendError(event, fallback)
}

// sendError sends an error event to this socket only
func (c *Client) sendError(event chatproto.EventType, message string) {
	metrics.SocketErrors.WithLabelValues(string(event)).Inc()
	c.Hub.SendToClient(c, NewMessage(chatproto.EventError, chatproto.ErrorPayload{Message: message}))
}
