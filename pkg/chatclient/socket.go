// Package chatclient is the client side of the class chat: a shared socket,
// the per-class session, the ordered message timeline with backfill paging,
// the composer and the message renderer.
package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"kelasin/chat/pkg/chatproto"
)

// Conn is the part of a WebSocket connection the socket uses.
// *websocket.Conn from gorilla/websocket satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Handler receives one decoded server event.
type Handler func(env chatproto.Envelope)

// Emitter sends client events.
type Emitter interface {
	Emit(event chatproto.EventType, payload interface{}) error
}

// Socket multiplexes server events to handlers over a single connection.
type Socket struct {
	conn   Conn
	logger zerolog.Logger

	writeMu sync.Mutex

	mu       sync.RWMutex
	handlers map[chatproto.EventType]map[uint64]Handler
	nextID   uint64

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial connects to the chat WebSocket endpoint, for example
// ws://localhost:8080/api/v1/ws, authenticating with token.
func Dial(ctx context.Context, url, token string, logger zerolog.Logger) (*Socket, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: "websocket handshake failed"}
		}
		return nil, err
	}

	return NewSocket(conn, logger), nil
}

// NewSocket starts reading events from conn.
func NewSocket(conn Conn, logger zerolog.Logger) *Socket {
	s := &Socket{
		conn:     conn,
		logger:   logger,
		handlers: make(map[chatproto.EventType]map[uint64]Handler),
		done:     make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// On registers fn for event. The returned func detaches it; calling it more
// than once is a no-op.
func (s *Socket) On(event chatproto.EventType, fn Handler) (off func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	if s.handlers[event] == nil {
		s.handlers[event] = make(map[uint64]Handler)
	}
	s.handlers[event][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers[event], id)
	}
}

// Emit writes one event. It does not wait for any reply; failures on the
// server side come back as error events.
func (s *Socket) Emit(event chatproto.EventType, payload interface{}) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	env, err := chatproto.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Done is closed once the socket stops reading.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that stopped the read loop, if any.
func (s *Socket) Err() error {
	<-s.done
	return s.err
}

// Close closes the connection. It is safe to call more than once.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

func (s *Socket) readLoop() {
	defer close(s.done)
	defer s.Close()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.err = err
			s.logger.Debug().Err(err).Msg("socket read stopped")
			return
		}

		var env chatproto.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warn().Err(err).Msg("skipping undecodable frame")
			continue
		}
		s.dispatch(env)
	}
}

// dispatch calls the handlers bound to the event when it arrives.
func (s *Socket) dispatch(env chatproto.Envelope) {
	s.mu.RLock()
	handlers := make([]Handler, 0, len(s.handlers[env.Type]))
	for _, h := range s.handlers[env.Type] {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		h(env)
	}
}
