package chatclient

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"kelasin/chat/pkg/chatproto"
)

// DefaultTypingIdle is how long after the last keystroke typing-stop is sent.
const DefaultTypingIdle = 3 * time.Second

// Uploader stores an attachment over HTTP and returns where it lives.
type Uploader interface {
	UploadFile(ctx context.Context, name string, r io.Reader) (*UploadResult, error)
}

// Composer turns user input into socket events for the open class.
type Composer struct {
	emitter  Emitter
	uploader Uploader
	notifier Notifier
	self     string
	idle     time.Duration

	mu      sync.Mutex
	classID string
	typing  bool
	timer   *time.Timer
	seq     uint64 // identifies the armed timer; stale firings are ignored
}

// NewComposer creates a composer for the viewer selfID. idle <= 0 uses
// DefaultTypingIdle.
func NewComposer(emitter Emitter, uploader Uploader, notifier Notifier, selfID string, idle time.Duration) *Composer {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Composer{
		emitter:  emitter,
		uploader: uploader,
		notifier: notifier,
		self:     selfID,
		idle:     idle,
	}
}

// SetClass targets another class, stopping typing in the previous one.
func (c *Composer) SetClass(classID string) {
	c.StopTyping()

	c.mu.Lock()
	c.classID = classID
	c.mu.Unlock()
}

// Keystroke emits typing-start and re-arms the idle timer. However many
// keystrokes arrive less than idle apart, one typing-stop follows the last.
func (c *Composer) Keystroke() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.classID == "" {
		return
	}
	c.emit(chatproto.EventTypingStart, chatproto.ClassPayload{ClassID: c.classID})
	c.typing = true

	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
	seq, classID := c.seq, c.classID
	c.timer = time.AfterFunc(c.idle, func() { c.idleStop(seq, classID) })
}

func (c *Composer) idleStop(seq uint64, classID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A newer keystroke or an explicit stop already took over
	if seq != c.seq || !c.typing {
		return
	}
	c.typing = false
	c.timer = nil
	c.emit(chatproto.EventTypingStop, chatproto.ClassPayload{ClassID: classID})
}

// StopTyping cancels the idle timer and emits typing-stop if typing-start
// was sent.
func (c *Composer) StopTyping() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTypingLocked()
}

func (c *Composer) stopTypingLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.seq++
	if !c.typing {
		return
	}
	c.typing = false
	c.emit(chatproto.EventTypingStop, chatproto.ClassPayload{ClassID: c.classID})
}

// SendText sends a text message, optionally as a reply.
func (c *Composer) SendText(content, replyToID string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		c.notifier.Notify(errorToast("Cannot send message", ErrEmptyMessage))
		return ErrEmptyMessage
	}

	return c.send(chatproto.SendMessagePayload{
		Content:     content,
		MessageType: chatproto.MessageTypeText,
		ReplyToID:   replyToID,
	})
}

// SendImage sends an image inline as a data URL. Images over 3MB or with a
// non-image MIME type are rejected before anything is emitted.
func (c *Composer) SendImage(name, mime string, data []byte, caption, replyToID string) error {
	if err := chatproto.ValidateImage(mime, int64(len(data))); err != nil {
		c.notifier.Notify(errorToast("Cannot send image", err))
		return err
	}

	return c.send(chatproto.SendMessagePayload{
		Content:     strings.TrimSpace(caption),
		MessageType: chatproto.MessageTypeImage,
		ImageData:   chatproto.EncodeDataURL(mime, data),
		FileName:    name,
		ReplyToID:   replyToID,
	})
}

// SendFile uploads r over HTTP and sends a FILE message pointing at it.
func (c *Composer) SendFile(ctx context.Context, name string, r io.Reader, replyToID string) error {
	if c.currentClass() == "" {
		return ErrNoClass
	}

	up, err := c.uploader.UploadFile(ctx, name, r)
	if err != nil {
		c.notifier.Notify(errorToast("Failed to upload file", err))
		return err
	}

	return c.send(chatproto.SendMessagePayload{
		MessageType: chatproto.MessageTypeFile,
		FileURL:     up.URL,
		FileName:    up.Filename,
		FileSize:    up.Size,
		ReplyToID:   replyToID,
	})
}

// CanModify reports whether the viewer may edit or delete msg: only their own
// text messages that are not deleted.
func (c *Composer) CanModify(msg *chatproto.ChatMessage) bool {
	return msg != nil &&
		msg.Sender.ID == c.self &&
		msg.MessageType == chatproto.MessageTypeText &&
		!msg.IsDeleted
}

// Edit replaces the content of one of the viewer's own text messages.
func (c *Composer) Edit(msg *chatproto.ChatMessage, content string) error {
	if !c.CanModify(msg) {
		c.notifier.Notify(errorToast("Cannot edit message", ErrNotOwnMessage))
		return ErrNotOwnMessage
	}
	content = strings.TrimSpace(content)
	if content == "" {
		c.notifier.Notify(errorToast("Cannot edit message", ErrEmptyMessage))
		return ErrEmptyMessage
	}

	return c.emitChecked("Failed to edit message", chatproto.EventEditMessage, chatproto.EditMessagePayload{
		MessageID: msg.ID,
		Content:   content,
	})
}

// Delete soft-deletes one of the viewer's own text messages.
func (c *Composer) Delete(msg *chatproto.ChatMessage) error {
	if !c.CanModify(msg) {
		c.notifier.Notify(errorToast("Cannot delete message", ErrNotOwnMessage))
		return ErrNotOwnMessage
	}

	return c.emitChecked("Failed to delete message", chatproto.EventDeleteMessage, chatproto.MessageRefPayload{
		MessageID: msg.ID,
		ClassID:   msg.ClassID,
	})
}

// Close stops typing.
func (c *Composer) Close() {
	c.StopTyping()
}

func (c *Composer) send(p chatproto.SendMessagePayload) error {
	c.mu.Lock()
	p.ClassID = c.classID
	c.stopTypingLocked()
	c.mu.Unlock()

	if p.ClassID == "" {
		return ErrNoClass
	}
	return c.emitChecked("Failed to send message", chatproto.EventSendMessage, p)
}

func (c *Composer) emitChecked(title string, event chatproto.EventType, payload interface{}) error {
	if err := c.emitter.Emit(event, payload); err != nil {
		c.notifier.Notify(errorToast(title, err))
		return err
	}
	return nil
}

// emit is used for typing events; their failures are not worth a toast.
func (c *Composer) emit(event chatproto.EventType, payload interface{}) {
	_ = c.emitter.Emit(event, payload)
}

func (c *Composer) currentClass() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.classID
}
