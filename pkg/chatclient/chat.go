package chatclient

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kelasin/chat/pkg/chatproto"
)

// RoomAPI is the HTTP surface a Chat reads from.
type RoomAPI interface {
	MessageFetcher
	Uploader
	GetChatRoomInfo(ctx context.Context, classID string) (*chatproto.ChatRoomInfo, error)
}

// Update tells the UI what changed.
type Update struct {
	Type      chatproto.EventType
	Message   *chatproto.ChatMessage // new-message, message-edited
	MessageID string                 // message-deleted
	Typing    []string               // user-typing: names now typing
}

// Config configures a Chat.
type Config struct {
	API      RoomAPI
	Socket   *Socket
	UserID   string
	Notifier Notifier
	Logger   zerolog.Logger

	PageSize   int           // default 20
	TypingIdle time.Duration // default 3s

	// OnUpdate is called from the socket goroutine after the timeline changed
	OnUpdate func(Update)
}

// Chat is one open class chat: the room header, its joined session, the
// timeline with paging, and the composer. Close it when the view goes away.
type Chat struct {
	api      RoomAPI
	userID   string
	notifier Notifier
	logger   zerolog.Logger
	onUpdate func(Update)

	Timeline *Timeline
	Pager    *Pager
	Composer *Composer
	Session  *Session
	Renderer Renderer

	mu      sync.Mutex
	classID string
	info    *chatproto.ChatRoomInfo
	gen     uint64
	closed  bool
}

// NewChat wires the chat components on cfg.Socket.
func NewChat(cfg Config) *Chat {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}

	c := &Chat{
		api:      cfg.API,
		userID:   cfg.UserID,
		notifier: notifier,
		logger:   cfg.Logger,
		onUpdate: cfg.OnUpdate,
		Timeline: NewTimeline(cfg.UserID),
	}
	c.Pager = NewPager(cfg.API, c.Timeline, notifier, cfg.PageSize)
	c.Composer = NewComposer(cfg.Socket, cfg.API, notifier, cfg.UserID, cfg.TypingIdle)
	c.Session = NewSession(cfg.Socket, SessionHandlers{
		OnMessage: func(msg chatproto.ChatMessage) {
			if c.Timeline.Append(msg) {
				m, _ := c.Timeline.Get(msg.ID)
				c.publish(Update{Type: chatproto.EventNewMessage, Message: m})
			}
		},
		OnEdited: func(msg chatproto.ChatMessage) {
			if c.Timeline.ApplyEdit(msg) {
				m, _ := c.Timeline.Get(msg.ID)
				c.publish(Update{Type: chatproto.EventMessageEdited, Message: m})
			}
		},
		OnDeleted: func(ref chatproto.MessageRefPayload) {
			if c.Timeline.ApplyDelete(ref.MessageID) {
				c.publish(Update{Type: chatproto.EventMessageDeleted, MessageID: ref.MessageID})
			}
		},
		OnTyping: func(p chatproto.TypingPayload) {
			if p.UserID == c.userID {
				return
			}
			c.Timeline.SetTyping(p)
			c.publish(Update{Type: chatproto.EventUserTyping, Typing: c.Timeline.TypingUsers()})
		},
	}, notifier)
	return c
}

// Open shows classID: it loads the room header, joins the room and loads
// the newest page. Opening another class while one is open switches to it.
func (c *Chat) Open(ctx context.Context, classID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.gen++
	gen := c.gen
	c.classID = classID
	c.info = nil
	c.mu.Unlock()

	// Leave the previous room before any request, so nothing from it reaches
	// this timeline and nothing is sent until the new room is joined
	c.Composer.SetClass("")
	c.Pager.SetClass("")
	if c.Session.ClassID() != classID {
		c.Session.Leave()
	}
	c.Timeline.Reset(nil)

	info, err := c.api.GetChatRoomInfo(ctx, classID)
	if err != nil {
		if c.current(gen) {
			c.notifier.Notify(errorToast("Failed to load class chat", err))
		}
		return err
	}
	if !c.current(gen) {
		c.logger.Debug().Str("class_id", classID).Msg("dropping stale room info")
		return nil
	}
	c.mu.Lock()
	c.info = info
	c.mu.Unlock()

	if err := c.Session.Join(classID); err != nil {
		return err
	}
	c.Composer.SetClass(classID)
	c.Pager.SetClass(classID)
	return c.Pager.LoadInitial(ctx)
}

// SwitchClass leaves the current class and opens classID.
func (c *Chat) SwitchClass(ctx context.Context, classID string) error {
	return c.Open(ctx, classID)
}

// Close leaves the room and detaches every handler. Responses that arrive
// afterwards are dropped. It is safe to call more than once.
func (c *Chat) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	c.mu.Unlock()

	c.Composer.Close()
	c.Session.Leave()
	c.Pager.SetClass("")
}

// LoadMore fetches the next older page.
func (c *Chat) LoadMore(ctx context.Context) (bool, error) {
	return c.Pager.LoadMore(ctx)
}

// Search reloads history filtered by term.
func (c *Chat) Search(ctx context.Context, term string) error {
	return c.Pager.Search(ctx, term)
}

// Info returns the room header of the open class.
func (c *Chat) Info() *chatproto.ChatRoomInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.info
}

// ClassID returns the open class.
func (c *Chat) ClassID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.classID
}

// Messages returns the timeline snapshot, oldest first.
func (c *Chat) Messages() []*chatproto.ChatMessage {
	return c.Timeline.Messages()
}

// Bubbles renders the timeline for the viewer.
func (c *Chat) Bubbles() []Bubble {
	msgs := c.Timeline.Messages()
	out := make([]Bubble, len(msgs))
	for i, m := range msgs {
		out[i] = c.Renderer.Render(m, c.userID)
	}
	return out
}

func (c *Chat) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return !c.closed && gen == c.gen
}

func (c *Chat) publish(u Update) {
	if c.onUpdate != nil {
		c.onUpdate(u)
	}
}
