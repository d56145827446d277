package chatclient

import (
	"sort"
	"sync"

	"kelasin/chat/pkg/chatproto"
)

// Timeline is the ordered list of messages shown for one class, oldest
// first, plus the set of users currently typing.
//
// Entries are never mutated in place: an edit or delete swaps in a new
// *ChatMessage for that id only, so callers holding the previous slice can
// compare pointers to find what changed.
type Timeline struct {
	mu       sync.RWMutex
	self     string
	messages []*chatproto.ChatMessage
	byID     map[string]int
	typing   map[string]string // userID -> name
}

// NewTimeline creates an empty timeline for the viewer selfID. Typing events
// from selfID are ignored.
func NewTimeline(selfID string) *Timeline {
	return &Timeline{
		self:   selfID,
		byID:   make(map[string]int),
		typing: make(map[string]string),
	}
}

// Reset replaces the content with msgs and clears typing users.
func (t *Timeline) Reset(msgs []chatproto.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = t.messages[:0:0]
	t.byID = make(map[string]int, len(msgs))
	t.typing = make(map[string]string)
	t.merge(msgs)
}

// Prepend adds an older page, skipping ids already present, and returns the
// number of messages added.
func (t *Timeline) Prepend(msgs []chatproto.ChatMessage) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.merge(msgs)
}

// merge inserts msgs ahead of equal timestamps already present and restores
// ascending order. Must be called with t.mu held.
func (t *Timeline) merge(msgs []chatproto.ChatMessage) int {
	fresh := make([]*chatproto.ChatMessage, 0, len(msgs))
	seen := make(map[string]bool, len(msgs))
	for i := range msgs {
		id := msgs[i].ID
		if _, ok := t.byID[id]; ok || seen[id] {
			continue
		}
		seen[id] = true
		m := msgs[i]
		fresh = append(fresh, &m)
	}
	if len(fresh) == 0 {
		return 0
	}

	combined := append(fresh, t.messages...)
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].SentAt.Before(combined[j].SentAt)
	})
	t.messages = combined
	t.reindex()
	return len(fresh)
}

// Append inserts a live message after every message sent at or before it.
// It returns false for a duplicate id.
func (t *Timeline) Append(msg chatproto.ChatMessage) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byID[msg.ID]; ok {
		return false
	}

	pos := sort.Search(len(t.messages), func(i int) bool {
		return t.messages[i].SentAt.After(msg.SentAt)
	})
	t.messages = append(t.messages, nil)
	copy(t.messages[pos+1:], t.messages[pos:])
	t.messages[pos] = &msg

	if pos == len(t.messages)-1 {
		t.byID[msg.ID] = pos
	} else {
		t.reindex()
	}

	// A message implies the sender stopped typing
	delete(t.typing, msg.Sender.ID)
	return true
}

// ApplyEdit replaces the content of the matching message. Unknown and
// deleted messages are left alone.
func (t *Timeline) ApplyEdit(msg chatproto.ChatMessage) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.byID[msg.ID]
	if !ok || t.messages[i].IsDeleted {
		return false
	}

	updated := *t.messages[i]
	updated.Content = msg.Content
	updated.IsEdited = true
	t.messages[i] = &updated
	return true
}

// ApplyDelete marks the message deleted and swaps its content for the
// placeholder. The entry stays in the list.
func (t *Timeline) ApplyDelete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.byID[id]
	if !ok || t.messages[i].IsDeleted {
		return false
	}

	updated := *t.messages[i]
	updated.IsDeleted = true
	updated.Content = chatproto.DeletedPlaceholder
	updated.FileURL, updated.FileName, updated.FileSize = nil, nil, nil
	t.messages[i] = &updated
	return true
}

// SetTyping records a user-typing event.
func (t *Timeline) SetTyping(p chatproto.TypingPayload) {
	if p.UserID == t.self {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if p.IsTyping {
		name := p.UserName
		if name == "" {
			name = p.UserID
		}
		t.typing[p.UserID] = name
	} else {
		delete(t.typing, p.UserID)
	}
}

// TypingUsers returns the names of users typing, sorted.
func (t *Timeline) TypingUsers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.typing))
	for _, name := range t.typing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Messages returns a snapshot of the list, oldest first.
func (t *Timeline) Messages() []*chatproto.ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*chatproto.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Get returns the message with id.
func (t *Timeline) Get(id string) (*chatproto.ChatMessage, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return t.messages[i], true
}

// Len returns the number of messages.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.messages)
}

func (t *Timeline) reindex() {
	t.byID = make(map[string]int, len(t.messages))
	for i, m := range t.messages {
		t.byID[m.ID] = i
	}
}
