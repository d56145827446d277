package models

import (
	"time"

	"kelasin/chat/pkg/chatproto"
)

// Message is a chat message row as persisted. Deleted rows keep their
// original content for the audit trail.
type Message struct {
	ID          string                `json:"id" db:"id"`
	ClassID     string                `json:"classId" db:"class_id"`
	SenderID    string                `json:"senderId" db:"sender_id"`
	Content     string                `json:"content" db:"content"`
	MessageType chatproto.MessageType `json:"messageType" db:"message_type"`
	FileURL     *string               `json:"fileUrl,omitempty" db:"file_url"`
	FileName    *string               `json:"fileName,omitempty" db:"file_name"`
	FileSize    *int64                `json:"fileSize,omitempty" db:"file_size"`
	ReplyToID   *string               `json:"replyToId,omitempty" db:"reply_to_id"`
	IsEdited    bool                  `json:"isEdited" db:"is_edited"`
	IsDeleted   bool                  `json:"isDeleted" db:"is_deleted"`
	DeletedBy   *string               `json:"deletedBy,omitempty" db:"deleted_by"`
	DeletedAt   *time.Time            `json:"deletedAt,omitempty" db:"deleted_at"`
	CreatedAt   time.Time             `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time             `json:"updatedAt" db:"updated_at"`
}

// ToChat converts a persisted message to its wire form. Deleted messages
// expose the placeholder instead of their content and attachment.
func (m *Message) ToChat(sender chatproto.Sender, replyTo *chatproto.ReplySummary) chatproto.ChatMessage {
	msg := chatproto.ChatMessage{
		ID:          m.ID,
		ClassID:     m.ClassID,
		Sender:      sender,
		Content:     m.Content,
		MessageType: m.MessageType,
		FileURL:     m.FileURL,
		FileName:    m.FileName,
		FileSize:    m.FileSize,
		ReplyTo:     replyTo,
		SentAt:      m.CreatedAt,
		IsEdited:    m.IsEdited,
		IsDeleted:   m.IsDeleted,
	}
	if m.IsDeleted {
		msg.Content = chatproto.DeletedPlaceholder
		msg.FileURL = nil
		msg.FileName = nil
		msg.FileSize = nil
	}
	return msg
}

// ReplySummary builds the quoted form of m authored by senderName.
func (m *Message) ReplySummary(senderName string) *chatproto.ReplySummary {
	s := &chatproto.ReplySummary{
		ID:          m.ID,
		Content:     m.Content,
		SenderName:  senderName,
		MessageType: m.MessageType,
		IsDeleted:   m.IsDeleted,
	}
	if m.IsDeleted {
		s.Content = chatproto.DeletedPlaceholder
	}
	return s
}
