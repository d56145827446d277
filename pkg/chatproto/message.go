package chatproto

import "time"

// MessageType is the kind of body a chat message carries.
type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
	MessageTypeFile  MessageType = "FILE"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
		return true
	}
	return false
}

// Role is a member's role within the platform.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
	RoleAdmin      Role = "ADMIN"
)

// CanModerate reports whether the role may delete other members' messages.
func (r Role) CanModerate() bool {
	return r == RoleInstructor || r == RoleAdmin
}

// DeletedPlaceholder replaces the content of a soft-deleted message.
const DeletedPlaceholder = "This message has been deleted"

// Sender is the author summary attached to every message.
type Sender struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Image *string `json:"image,omitempty"`
	Role  Role    `json:"role"`
}

// ReplySummary is the quoted message shown above a reply.
type ReplySummary struct {
	ID          string      `json:"id"`
	Content     string      `json:"content"`
	SenderName  string      `json:"senderName"`
	MessageType MessageType `json:"messageType"`
	IsDeleted   bool        `json:"isDeleted"`
}

// ChatMessage represents a message in a class chat room
type ChatMessage struct {
	ID          string        `json:"id"`
	ClassID     string        `json:"classId"`
	Sender      Sender        `json:"sender"`
	Content     string        `json:"content"`
	MessageType MessageType   `json:"messageType"`
	FileURL     *string       `json:"fileUrl,omitempty"`
	FileName    *string       `json:"fileName,omitempty"`
	FileSize    *int64        `json:"fileSize,omitempty"`
	ReplyTo     *ReplySummary `json:"replyTo,omitempty"`
	SentAt      time.Time     `json:"sentAt"`
	IsEdited    bool          `json:"isEdited"`
	IsDeleted   bool          `json:"isDeleted"`
}

// Summary returns the reply-quote form of m.
func (m *ChatMessage) Summary() *ReplySummary {
	return &ReplySummary{
		ID:          m.ID,
		Content:     m.Content,
		SenderName:  m.Sender.Name,
		MessageType: m.MessageType,
		IsDeleted:   m.IsDeleted,
	}
}

// Member is a participant listed in the room info.
type Member struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Image    *string   `json:"image,omitempty"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// ChatRoomInfo is the header data of a class chat room.
type ChatRoomInfo struct {
	ClassID       string   `json:"classId"`
	Name          string   `json:"name"`
	TotalMembers  int      `json:"totalMembers"`
	TotalMessages int      `json:"totalMessages"`
	Members       []Member `json:"members"`
}

// PageMeta describes where a page sits in the full history.
type PageMeta struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"pageSize"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// NewPageMeta computes pagination metadata. Page 1 is the newest page, so
// "next" means older messages.
func NewPageMeta(page, pageSize, total int) PageMeta {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return PageMeta{
		Page:        page,
		PageSize:    pageSize,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// MessagesPage is one page of history, ascending by SentAt.
type MessagesPage struct {
	Messages []ChatMessage `json:"messages"`
	Meta     PageMeta      `json:"meta"`
}

// ClassSummary is an entry of the user's class list.
type ClassSummary struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Role        Role         `json:"role"`
	MemberCount int          `json:"memberCount"`
	LastMessage *LastMessage `json:"lastMessage,omitempty"`
}

// LastMessage is the preview shown in the class list.
type LastMessage struct {
	Content    string    `json:"content"`
	SenderName string    `json:"senderName"`
	SentAt     time.Time `json:"sentAt"`
}

// DefaultPageSize is the number of messages fetched per page.
const DefaultPageSize = 20
