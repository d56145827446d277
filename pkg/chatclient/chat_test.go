package chatclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kelasin/chat/pkg/chatproto"
)

func newTestChat(t *testing.T, api *fakeAPI) (*Chat, *fakeConn, chan Update, *toasts) {
	t.Helper()
	sock, conn := newTestSocket(t)
	updates := make(chan Update, 16)
	notes := &toasts{}
	c := NewChat(Config{
		API:        api,
		Socket:     sock,
		UserID:     "me",
		Notifier:   notes,
		Logger:     zerolog.Nop(),
		TypingIdle: time.Hour,
		OnUpdate:   func(u Update) { updates <- u },
	})
	t.Cleanup(c.Close)
	return c, conn, updates, notes
}

func nextUpdate(t *testing.T, updates chan Update) Update {
	t.Helper()
	select {
	case u := <-updates:
		return u
	case <-time.After(time.Second):
		t.Fatal("no update")
		return Update{}
	}
}

func TestChatOpenThenLoadMore(t *testing.T) {
	api := &fakeAPI{total: 45, sender: "u1"}
	c, conn, _, _ := newTestChat(t, api)

	require.NoError(t, c.Open(context.Background(), "c1"))

	assert.Equal(t, "c1", c.ClassID())
	require.NotNil(t, c.Info())
	assert.Equal(t, 45, c.Info().TotalMessages)
	assert.Equal(t, []chatproto.EventType{chatproto.EventJoinClass}, conn.sentTypes())

	msgs := c.Messages()
	require.Len(t, msgs, 20)
	assert.Equal(t, "m025", msgs[0].ID)
	assert.Equal(t, "m044", msgs[19].ID)
	assert.True(t, c.Pager.HasMore())

	loaded, err := c.LoadMore(context.Background())
	require.NoError(t, err)
	require.True(t, loaded)

	msgs = c.Messages()
	require.Len(t, msgs, 40)
	assertAscending(t, msgs)
	assertUniqueIDs(t, msgs)
	assert.Equal(t, "m005", msgs[0].ID)
	assert.Equal(t, "m044", msgs[39].ID)
}

func TestChatLiveEvents(t *testing.T) {
	api := &fakeAPI{total: 45, sender: "u1"}
	c, conn, updates, _ := newTestChat(t, api)
	require.NoError(t, c.Open(context.Background(), "c1"))

	live := textMessage("c1", 45, "u2")
	conn.push(t, chatproto.EventNewMessage, live)
	u := nextUpdate(t, updates)
	assert.Equal(t, chatproto.EventNewMessage, u.Type)
	assert.Equal(t, "m045", u.Message.ID)
	require.Len(t, c.Messages(), 21)
	assert.Equal(t, "m045", c.Messages()[20].ID)

	// Echo of the same message is ignored
	conn.push(t, chatproto.EventNewMessage, live)

	edited := textMessage("c1", 30, "u1")
	edited.Content = "diperbaiki"
	conn.push(t, chatproto.EventMessageEdited, edited)
	u = nextUpdate(t, updates)
	assert.Equal(t, chatproto.EventMessageEdited, u.Type)
	m, ok := c.Timeline.Get("m030")
	require.True(t, ok)
	assert.Equal(t, "diperbaiki", m.Content)
	assert.True(t, m.IsEdited)

	conn.push(t, chatproto.EventMessageDeleted, chatproto.MessageRefPayload{MessageID: "m031", ClassID: "c1"})
	u = nextUpdate(t, updates)
	assert.Equal(t, chatproto.EventMessageDeleted, u.Type)
	assert.Equal(t, "m031", u.MessageID)

	conn.push(t, chatproto.EventUserTyping, chatproto.TypingPayload{UserID: "u3", UserName: "Sari", ClassID: "c1", IsTyping: true})
	u = nextUpdate(t, updates)
	assert.Equal(t, []string{"Sari"}, u.Typing)

	assert.Len(t, c.Messages(), 21)
	bubbles := c.Bubbles()
	require.Len(t, bubbles, 21)
	deleted := 0
	for _, b := range bubbles {
		if b.Kind == BodyDeleted {
			deleted++
			assert.Equal(t, "m031", b.ID)
		}
	}
	assert.Equal(t, 1, deleted)
}

func TestChatSwitchClass(t *testing.T) {
	api := &fakeAPI{total: 5, sender: "u1"}
	c, conn, updates, _ := newTestChat(t, api)
	require.NoError(t, c.Open(context.Background(), "c1"))
	require.NoError(t, c.SwitchClass(context.Background(), "c2"))

	assert.Equal(t, []chatproto.EventType{
		chatproto.EventJoinClass,
		chatproto.EventLeaveClass,
		chatproto.EventJoinClass,
	}, conn.sentTypes())

	for _, m := range c.Messages() {
		assert.Equal(t, "c2", m.ClassID)
	}

	// Events for the class left behind are not applied
	conn.push(t, chatproto.EventNewMessage, textMessage("c1", 9, "u2"))
	conn.push(t, chatproto.EventNewMessage, textMessage("c2", 9, "u2"))
	u := nextUpdate(t, updates)
	assert.Equal(t, "c2", u.Message.ClassID)
	assert.Len(t, c.Messages(), 6)
}

func TestChatInfoFailure(t *testing.T) {
	api := &fakeAPI{total: 5, sender: "u1", info: errors.New("boom")}
	c, conn, _, notes := newTestChat(t, api)

	require.Error(t, c.Open(context.Background(), "c1"))
	assert.Empty(t, conn.sentTypes(), "room is not joined")
	assert.Equal(t, 0, c.Timeline.Len())
	require.Len(t, notes.all(), 1)
	assert.Equal(t, "Failed to load class chat", notes.all()[0].Title)
}

func TestChatFailedSwitchLeavesRoom(t *testing.T) {
	api := &fakeAPI{total: 5, sender: "u1"}
	c, conn, updates, notes := newTestChat(t, api)
	require.NoError(t, c.Open(context.Background(), "c1"))

	api.info = errors.New("boom")
	require.Error(t, c.SwitchClass(context.Background(), "c2"))

	assert.Equal(t, []chatproto.EventType{
		chatproto.EventJoinClass,
		chatproto.EventLeaveClass,
	}, conn.sentTypes())
	assert.Equal(t, "", c.Session.ClassID())
	assert.Equal(t, 0, c.Timeline.Len())
	require.Len(t, notes.all(), 1)

	// Live events of the class left behind are not applied
	seen := make(chan struct{})
	c.Session.sock.On(chatproto.EventNewMessage, func(chatproto.Envelope) { close(seen) })
	conn.push(t, chatproto.EventNewMessage, textMessage("c1", 9, "u2"))
	<-seen
	select {
	case u := <-updates:
		t.Fatalf("unexpected update %s", u.Type)
	default:
	}
	assert.Equal(t, 0, c.Timeline.Len())

	// Nothing is sent to a room that was never joined
	assert.ErrorIs(t, c.Composer.SendText("halo", ""), ErrNoClass)
	assert.Empty(t, conn.sentOf(chatproto.EventSendMessage))

	// A later open of another class works
	api.info = nil
	require.NoError(t, c.Open(context.Background(), "c3"))
	assert.Equal(t, "c3", c.Session.ClassID())
	assert.Equal(t, 5, c.Timeline.Len())
}

func TestChatClose(t *testing.T) {
	api := &fakeAPI{total: 5, sender: "u1"}
	c, conn, _, _ := newTestChat(t, api)
	require.NoError(t, c.Open(context.Background(), "c1"))

	c.Close()
	c.Close()

	assert.Len(t, conn.sentOf(chatproto.EventLeaveClass), 1)
	assert.ErrorIs(t, c.Open(context.Background(), "c1"), ErrClosed)
	assert.Equal(t, "", c.Session.ClassID())
}
