package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kelasin/chat/internal/chat"
	"kelasin/chat/internal/metrics"
)

// Hub maintains the set of active clients and the class rooms they joined
type Hub struct {
	// Connected clients
	clients map[*Client]bool

	// Class rooms: classID -> clients
	rooms map[string]map[*Client]bool

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	service *chat.Service
	fanout  Fanout
	logger  zerolog.Logger

	// instanceID tags the frames this hub publishes to the fanout
	instanceID string
	retryMin   time.Duration
	retryMax   time.Duration

	// Mutex for thread-safe operations
	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub. A nil fanout delivers only to sockets
// connected to this process.
func NewHub(service *chat.Service, fanout Fanout, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		service:    service,
		fanout:     fanout,
		logger:     logger,
		instanceID: uuid.NewString(),
		retryMin:   500 * time.Millisecond,
		retryMax:   30 * time.Second,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	if h.fanout != nil {
		go h.subscribe(ctx)
	}

	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case <-ctx.Done():
			return
		}
	}
}

// subscribe keeps the fanout subscription alive, retrying with exponential
// backoff until ctx is cancelled.
func (h *Hub) subscribe(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.retryMin
	b.MaxInterval = h.retryMax
	b.Reset()

	for {
		started := time.Now()
		err := h.fanout.Subscribe(ctx, h.deliverRemote)
		if ctx.Err() != nil {
			return
		}

		// A subscription that held for a while starts over from the shortest delay
		if time.Since(started) > h.retryMax {
			b.Reset()
		}
		wait := b.NextBackOff()
		metrics.FanoutResubscribes.Inc()
		h.logger.Error().Err(err).Dur("retry_in", wait).Msg("fanout subscription lost")

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	metrics.OpenSockets.Inc()

	h.logger.Info().Str("user_id", client.ID).Msg("client connected")
}

// unregisterClient removes a client from the hub and every room it joined
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for classID := range client.rooms {
		h.removeFromRoom(client, classID)
	}
	client.closed = true
	close(client.Send)
	metrics.OpenSockets.Dec()

	h.logger.Info().Str("user_id", client.ID).Msg("client disconnected")
}

// JoinRoom adds the client to a class room. Joining twice is a no-op.
func (h *Hub) JoinRoom(client *Client, classID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.closed {
		return
	}
	if h.rooms[classID] == nil {
		h.rooms[classID] = make(map[*Client]bool)
	}
	h.rooms[classID][client] = true
	client.rooms[classID] = true
}

// LeaveRoom removes the client from a class room. Leaving a room the client
// is not in is a no-op.
func (h *Hub) LeaveRoom(client *Client, classID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoom(client, classID)
}

// removeFromRoom must be called with h.mu held.
func (h *Hub) removeFromRoom(client *Client, classID string) {
	delete(client.rooms, classID)
	if room, ok := h.rooms[classID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, classID)
		}
	}
}

// InRoom reports whether the client joined the class room.
func (h *Hub) InRoom(client *Client, classID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return client.rooms[classID]
}

// BroadcastToClass sends a message to every socket in a class room except
// those of excludeUserID
func (h *Hub) BroadcastToClass(classID string, message WSMessage, excludeUserID string) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal message")
		return
	}

	// Local sockets never depend on the fanout being healthy
	h.deliverLocal(classID, data, excludeUserID)

	if h.fanout != nil {
		frame := FanoutFrame{Origin: h.instanceID, ClassID: classID, Exclude: excludeUserID, Data: data}
		if err := h.fanout.Publish(context.Background(), frame); err != nil {
			h.logger.Warn().Err(err).Str("class_id", classID).Msg("fanout publish failed, other instances miss this event")
		}
	}
}

// deliverRemote hands a frame from another instance to local sockets.
func (h *Hub) deliverRemote(frame FanoutFrame) {
	if frame.Origin == h.instanceID {
		return
	}
	h.deliverLocal(frame.ClassID, frame.Data, frame.Exclude)
}

// deliverLocal writes data to the sockets of this process in the room
func (h *Hub) deliverLocal(classID string, data []byte, excludeUserID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[classID] {
		// Skip the sender
		if excludeUserID != "" && client.ID == excludeUserID {
			continue
		}
		h.trySend(client, data)
	}
}

// SendToClient sends a message to a single socket
func (h *Hub) SendToClient(client *Client, message WSMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	h.trySend(client, data)
}

// trySend must be called with h.mu held. A client whose buffer is full is
// dropped instead of blocking the room.
func (h *Hub) trySend(client *Client, data []byte) {
	if client.closed {
		return
	}
	select {
	case client.Send <- data:
	default:
		h.logger.Warn().Str("user_id", client.ID).Msg("send buffer full, dropping client")
		go func() { h.Unregister <- client }()
	}
}

// RoomSize returns the number of local sockets in a class room
func (h *Hub) RoomSize(classID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[classID])
}

// GetOnlineCount returns the number of currently connected clients
func (h *Hub) GetOnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// GetRoomCount returns the number of class rooms with at least one socket
func (h *Hub) GetRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms)
}
