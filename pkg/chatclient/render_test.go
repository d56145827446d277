package chatclient

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kelasin/chat/pkg/chatproto"
)

func TestRender(t *testing.T) {
	r := Renderer{
		Now:      func() time.Time { return baseTime.Add(2 * time.Hour) },
		Location: time.UTC,
	}

	t.Run("own text", func(t *testing.T) {
		msg := textMessage("c1", 5, "me")
		msg.IsEdited = true
		b := r.Render(&msg, "me")

		assert.Equal(t, AlignRight, b.Align)
		assert.True(t, b.Own)
		assert.Equal(t, BodyText, b.Kind)
		assert.Equal(t, "message 5", b.Text)
		assert.True(t, b.Edited)
		assert.Equal(t, "09:05", b.TimeLabel)
		assert.Empty(t, b.RoleBadge)
	})

	t.Run("instructor file", func(t *testing.T) {
		url, name, size := "http://test/uploads/files/modul.pdf", "modul.pdf", int64(1536*1024)
		msg := textMessage("c1", 1, "t1")
		msg.Sender.Role = chatproto.RoleInstructor
		msg.MessageType = chatproto.MessageTypeFile
		msg.Content = ""
		msg.FileURL, msg.FileName, msg.FileSize = &url, &name, &size
		b := r.Render(&msg, "me")

		assert.Equal(t, AlignLeft, b.Align)
		assert.Equal(t, "Instructor", b.RoleBadge)
		assert.Equal(t, BodyFile, b.Kind)
		assert.Equal(t, "1.5 MiB", b.FileSize)
		assert.Equal(t, url, b.FileURL)

		out := r.Format(b)
		assert.Contains(t, out, "[Instructor]")
		assert.Contains(t, out, "[file] modul.pdf (1.5 MiB)")
	})

	t.Run("deleted", func(t *testing.T) {
		msg := textMessage("c1", 1, "me")
		msg.IsDeleted = true
		msg.IsEdited = true
		msg.Content = chatproto.DeletedPlaceholder
		b := r.Render(&msg, "me")

		assert.Equal(t, BodyDeleted, b.Kind)
		assert.Equal(t, chatproto.DeletedPlaceholder, b.Text)
		assert.False(t, b.Edited)
	})

	t.Run("reply quote", func(t *testing.T) {
		msg := textMessage("c1", 3, "u2")
		msg.ReplyTo = &chatproto.ReplySummary{
			ID:          "m001",
			SenderName:  "Budi",
			Content:     strings.Repeat("panjang ", 20),
			MessageType: chatproto.MessageTypeText,
		}
		b := r.Render(&msg, "me")

		assert.Equal(t, "Budi", b.Reply.SenderName)
		assert.True(t, strings.HasSuffix(b.Reply.Text, "..."))
		assert.Equal(t, quoteLength+3, len([]rune(b.Reply.Text)))

		msg.ReplyTo.IsDeleted = true
		b = r.Render(&msg, "me")
		assert.Equal(t, chatproto.DeletedPlaceholder, b.Reply.Text)

		assert.Contains(t, r.Format(b), "  > Budi: "+chatproto.DeletedPlaceholder)
	})

	t.Run("older than today", func(t *testing.T) {
		msg := textMessage("c1", 0, "u2")
		msg.SentAt = baseTime.AddDate(0, 0, -3)
		assert.Equal(t, "01 Mar 09:00", r.Render(&msg, "me").TimeLabel)
	})
}
