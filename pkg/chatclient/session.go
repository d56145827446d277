package chatclient

import (
	"errors"
	"sync"

	"kelasin/chat/pkg/chatproto"
)

// SessionHandlers receive the events of the joined class. Nil fields are
// skipped.
type SessionHandlers struct {
	OnMessage func(msg chatproto.ChatMessage)
	OnEdited  func(msg chatproto.ChatMessage)
	OnDeleted func(ref chatproto.MessageRefPayload)
	OnTyping  func(p chatproto.TypingPayload)
	OnJoined  func(classID string)
}

// Session keeps one class room joined on a shared socket and the handlers
// bound for it. Joining another class leaves the current one first.
type Session struct {
	sock     *Socket
	handlers SessionHandlers
	notifier Notifier

	mu      sync.Mutex
	classID string
	offs    []func()
}

// NewSession creates a session on sock.
func NewSession(sock *Socket, handlers SessionHandlers, notifier Notifier) *Session {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Session{sock: sock, handlers: handlers, notifier: notifier}
}

// Join binds the event handlers for classID and emits join-class. Joining
// the class already joined does nothing.
func (s *Session) Join(classID string) error {
	if classID == "" {
		return ErrNoClass
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.classID == classID {
		return nil
	}
	s.leaveLocked()

	s.classID = classID
	s.offs = []func(){
		s.sock.On(chatproto.EventNewMessage, func(env chatproto.Envelope) {
			var msg chatproto.ChatMessage
			if env.Decode(&msg) != nil || msg.ClassID != classID {
				return
			}
			if s.handlers.OnMessage != nil {
				s.handlers.OnMessage(msg)
			}
		}),
		s.sock.On(chatproto.EventMessageEdited, func(env chatproto.Envelope) {
			var msg chatproto.ChatMessage
			if env.Decode(&msg) != nil || msg.ClassID != classID {
				return
			}
			if s.handlers.OnEdited != nil {
				s.handlers.OnEdited(msg)
			}
		}),
		s.sock.On(chatproto.EventMessageDeleted, func(env chatproto.Envelope) {
			var ref chatproto.MessageRefPayload
			if env.Decode(&ref) != nil || (ref.ClassID != "" && ref.ClassID != classID) {
				return
			}
			if s.handlers.OnDeleted != nil {
				s.handlers.OnDeleted(ref)
			}
		}),
		s.sock.On(chatproto.EventUserTyping, func(env chatproto.Envelope) {
			var p chatproto.TypingPayload
			if env.Decode(&p) != nil || (p.ClassID != "" && p.ClassID != classID) {
				return
			}
			if s.handlers.OnTyping != nil {
				s.handlers.OnTyping(p)
			}
		}),
		s.sock.On(chatproto.EventError, func(env chatproto.Envelope) {
			var p chatproto.ErrorPayload
			if env.Decode(&p) != nil || p.Message == "" {
				p.Message = "Something went wrong"
			}
			s.notifier.Notify(errorToast("Chat error", errors.New(p.Message)))
		}),
		s.sock.On(chatproto.EventJoinedClass, func(env chatproto.Envelope) {
			var p chatproto.ClassPayload
			if env.Decode(&p) != nil || p.ClassID != classID {
				return
			}
			if s.handlers.OnJoined != nil {
				s.handlers.OnJoined(p.ClassID)
			}
		}),
	}

	if err := s.sock.Emit(chatproto.EventJoinClass, chatproto.ClassPayload{ClassID: classID}); err != nil {
		s.leaveLocked()
		s.notifier.Notify(errorToast("Failed to join class chat", err))
		return err
	}
	return nil
}

// Leave emits leave-class and detaches every handler. It is safe to call
// when no class is joined.
func (s *Session) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.leaveLocked()
}

func (s *Session) leaveLocked() {
	if s.classID == "" {
		return
	}
	for _, off := range s.offs {
		off()
	}
	// Best effort: the room is dropped server side when the socket closes
	_ = s.sock.Emit(chatproto.EventLeaveClass, chatproto.ClassPayload{ClassID: s.classID})
	s.offs = nil
	s.classID = ""
}

// ClassID returns the joined class, or "".
func (s *Session) ClassID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.classID
}
