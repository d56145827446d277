package chat

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kelasin/chat/internal/audit"
	"kelasin/chat/internal/models"
	"kelasin/chat/internal/storage"
	"kelasin/chat/internal/store"
	"kelasin/chat/pkg/chatproto"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	svc        *Service
	st         *store.MemoryStore
	pub        *recordingPublisher
	files      *storage.LocalStorage
	classID    string
	student    string
	classmate  string
	instructor string
	outsider   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	pub := &recordingPublisher{}

	mkUser := func(name string, role chatproto.Role) string {
		u := &models.User{Email: name + "@kelasin.test", Name: name, Role: role}
		require.NoError(t, st.CreateUser(ctx, u))
		return u.ID
	}

	f := &fixture{
		st:         st,
		pub:        pub,
		student:    mkUser("budi", chatproto.RoleStudent),
		classmate:  mkUser("sari", chatproto.RoleStudent),
		instructor: mkUser("pak-andi", chatproto.RoleInstructor),
		outsider:   mkUser("tono", chatproto.RoleStudent),
	}
	class, err := st.CreateClass(ctx, "Golang Dasar")
	require.NoError(t, err)
	f.classID = class.ID
	require.NoError(t, st.AddMember(ctx, f.classID, f.student, chatproto.RoleStudent))
	require.NoError(t, st.AddMember(ctx, f.classID, f.classmate, chatproto.RoleStudent))
	require.NoError(t, st.AddMember(ctx, f.classID, f.instructor, chatproto.RoleInstructor))

	f.files = storage.NewLocalStorage(t.TempDir(), "http://test")
	f.svc = NewService(st, f.files, pub, zerolog.Nop())
	return f
}

func (f *fixture) sendText(t *testing.T, userID, content string) *chatproto.ChatMessage {
	t.Helper()
	msg, err := f.svc.Send(context.Background(), userID, chatproto.SendMessagePayload{
		ClassID: f.classID, Content: content,
	})
	require.NoError(t, err)
	return msg
}

func TestSendTextMessage(t *testing.T) {
	f := newFixture(t)

	msg := f.sendText(t, f.student, "  halo semua  ")
	assert.Equal(t, "halo semua", msg.Content)
	assert.Equal(t, chatproto.MessageTypeText, msg.MessageType)
	assert.Equal(t, f.student, msg.Sender.ID)
	assert.Equal(t, "budi", msg.Sender.Name)
	assert.Equal(t, chatproto.RoleStudent, msg.Sender.Role)
	assert.False(t, msg.IsEdited)
	assert.False(t, msg.IsDeleted)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, audit.ActionSent, f.pub.events[0].Action)
}

func TestSendRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, f.outsider, chatproto.SendMessagePayload{ClassID: f.classID, Content: "hi"})
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = f.svc.Send(ctx, f.student, chatproto.SendMessagePayload{ClassID: f.classID, Content: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Send(ctx, f.student, chatproto.SendMessagePayload{ClassID: f.classID, Content: "x", MessageType: "VIDEO"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Send(ctx, f.student, chatproto.SendMessagePayload{ClassID: f.classID, Content: "x", ReplyToID: "missing"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Send(ctx, f.student, chatproto.SendMessagePayload{ClassID: f.classID, MessageType: chatproto.MessageTypeFile})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, f.pub.events)
}

func TestSendFileRequiresUploadedURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, link := range []string{
		"javascript:alert(1)",
		"https://evil.test/uploads/files/tugas.pdf",
		"http://test/uploads/files/../../etc/passwd",
		"http://test/elsewhere/tugas.pdf",
	} {
		_, err := f.svc.Send(ctx, f.student, chatproto.SendMessagePayload{
			ClassID: f.classID, MessageType: chatproto.MessageTypeFile, FileURL: link, FileName: "tugas.pdf", FileSize: 3,
		})
		assert.ErrorIs(t, err, ErrInvalidInput, link)
	}
	assert.Empty(t, f.pub.events)

	link, err := f.files.Put(ctx, storage.KindFile, "tugas.pdf", "application/pdf", []byte("pdf"))
	require.NoError(t, err)
	msg, err := f.svc.Send(ctx, f.student, chatproto.SendMessagePayload{
		ClassID: f.classID, MessageType: chatproto.MessageTypeFile, FileURL: link, FileName: "tugas.pdf", FileSize: 3,
	})
	require.NoError(t, err)
	require.NotNil(t, msg.FileURL)
	assert.Equal(t, link, *msg.FileURL)
}

func TestSendImageStoresAttachment(t *testing.T) {
	f := newFixture(t)
	data := bytes.Repeat([]byte{1}, 1024)

	msg, err := f.svc.Send(context.Background(), f.student, chatproto.SendMessagePayload{
		ClassID:     f.classID,
		MessageType: chatproto.MessageTypeImage,
		ImageData:   chatproto.EncodeDataURL("image/png", data),
		Content:     "diagram",
	})
	require.NoError(t, err)
	require.NotNil(t, msg.FileURL)
	assert.Contains(t, *msg.FileURL, "/uploads/images/")
	assert.Equal(t, "image.png", *msg.FileName)
	assert.Equal(t, int64(1024), *msg.FileSize)
}

func TestSendImageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, f.student, chatproto.SendMessagePayload{
		ClassID:     f.classID,
		MessageType: chatproto.MessageTypeImage,
		ImageData:   chatproto.EncodeDataURL("application/pdf", []byte("%PDF")),
	})
	assert.ErrorIs(t, err, chatproto.ErrNotAnImage)
	assert.True(t, IsUserError(err))

	_, err = f.svc.Send(ctx, f.student, chatproto.SendMessagePayload{
		ClassID:     f.classID,
		MessageType: chatproto.MessageTypeImage,
		ImageData:   chatproto.EncodeDataURL("image/jpeg", make([]byte, chatproto.MaxImageSize+1)),
	})
	assert.ErrorIs(t, err, chatproto.ErrImageTooLarge)
}

func TestReplyCarriesQuote(t *testing.T) {
	f := newFixture(t)
	original := f.sendText(t, f.classmate, "kapan deadline tugas?")

	reply, err := f.svc.Send(context.Background(), f.instructor, chatproto.SendMessagePayload{
		ClassID: f.classID, Content: "Jumat", ReplyToID: original.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyTo)
	assert.Equal(t, original.ID, reply.ReplyTo.ID)
	assert.Equal(t, "sari", reply.ReplyTo.SenderName)
	assert.Equal(t, "kapan deadline tugas?", reply.ReplyTo.Content)
	assert.Equal(t, chatproto.RoleInstructor, reply.Sender.Role)
}

func TestEditOwnTextMessage(t *testing.T) {
	f := newFixture(t)
	msg := f.sendText(t, f.student, "typo")

	edited, err := f.svc.Edit(context.Background(), f.student, chatproto.EditMessagePayload{MessageID: msg.ID, Content: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", edited.Content)
	assert.True(t, edited.IsEdited)

	last := f.pub.events[len(f.pub.events)-1]
	assert.Equal(t, audit.ActionEdited, last.Action)
	assert.Equal(t, "typo", last.Before)
}

func TestEditRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := f.sendText(t, f.student, "mine")

	_, err := f.svc.Edit(ctx, f.classmate, chatproto.EditMessagePayload{MessageID: msg.ID, Content: "hijack"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Edit(ctx, f.student, chatproto.EditMessagePayload{MessageID: msg.ID, Content: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Edit(ctx, f.student, chatproto.EditMessagePayload{MessageID: "nope", Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	img, err := f.svc.Send(ctx, f.student, chatproto.SendMessagePayload{
		ClassID:     f.classID,
		MessageType: chatproto.MessageTypeImage,
		ImageData:   chatproto.EncodeDataURL("image/png", []byte{1, 2, 3}),
	})
	require.NoError(t, err)
	_, err = f.svc.Edit(ctx, f.student, chatproto.EditMessagePayload{MessageID: img.ID, Content: "caption"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Delete(ctx, f.student, msg.ID)
	require.NoError(t, err)
	_, err = f.svc.Edit(ctx, f.student, chatproto.EditMessagePayload{MessageID: msg.ID, Content: "again"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteIsSoftAndKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := f.sendText(t, f.student, "rahasia")

	deleted, err := f.svc.Delete(ctx, f.student, msg.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Equal(t, chatproto.DeletedPlaceholder, deleted.Content)

	row, err := f.st.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "rahasia", row.Content)
	require.NotNil(t, row.DeletedBy)
	assert.Equal(t, f.student, *row.DeletedBy)

	page, err := f.svc.Messages(ctx, f.classID, f.student, 1, 20, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.True(t, page.Messages[0].IsDeleted)

	last := f.pub.events[len(f.pub.events)-1]
	assert.Equal(t, audit.ActionDeleted, last.Action)
	assert.Equal(t, "rahasia", last.Before)

	_, err = f.svc.Delete(ctx, f.student, msg.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := f.sendText(t, f.student, "spam")

	_, err := f.svc.Delete(ctx, f.classmate, msg.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Delete(ctx, f.outsider, msg.ID)
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = f.svc.Delete(ctx, f.instructor, msg.ID)
	assert.NoError(t, err)
}

func TestMessagesPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 45; i++ {
		f.sendText(t, f.student, "pesan")
	}

	page1, err := f.svc.Messages(ctx, f.classID, f.student, 1, 20, "")
	require.NoError(t, err)
	assert.Len(t, page1.Messages, 20)
	assert.True(t, page1.Meta.HasNextPage)
	assert.Equal(t, 45, page1.Meta.Total)

	page3, err := f.svc.Messages(ctx, f.classID, f.student, 3, 20, "")
	require.NoError(t, err)
	assert.Len(t, page3.Messages, 5)
	assert.False(t, page3.Meta.HasNextPage)

	// page 2 is strictly older than page 1
	page2, err := f.svc.Messages(ctx, f.classID, f.student, 2, 20, "")
	require.NoError(t, err)
	assert.False(t, page2.Messages[len(page2.Messages)-1].SentAt.After(page1.Messages[0].SentAt))

	for i := 1; i < len(page1.Messages); i++ {
		assert.False(t, page1.Messages[i].SentAt.Before(page1.Messages[i-1].SentAt))
	}

	_, err = f.svc.Messages(ctx, f.classID, f.outsider, 1, 20, "")
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestMessagesSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sendText(t, f.student, "Tugas 1 sudah dikumpulkan")
	f.sendText(t, f.classmate, "oke")
	gone := f.sendText(t, f.student, "tugas 2 draft")
	_, err := f.svc.Delete(ctx, f.student, gone.ID)
	require.NoError(t, err)

	page, err := f.svc.Messages(ctx, f.classID, f.student, 1, 20, "tugas")
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "Tugas 1 sudah dikumpulkan", page.Messages[0].Content)
	assert.Equal(t, 1, page.Meta.Total)
}

func TestRoomInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sendText(t, f.student, "a")
	gone := f.sendText(t, f.student, "b")
	_, err := f.svc.Delete(ctx, f.student, gone.ID)
	require.NoError(t, err)

	info, err := f.svc.RoomInfo(ctx, f.classID, f.classmate)
	require.NoError(t, err)
	assert.Equal(t, "Golang Dasar", info.Name)
	assert.Equal(t, 3, info.TotalMembers)
	assert.Len(t, info.Members, 3)
	assert.Equal(t, 1, info.TotalMessages)

	_, err = f.svc.RoomInfo(ctx, f.classID, f.outsider)
	assert.ErrorIs(t, err, ErrNotMember)
}
