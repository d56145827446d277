package store

import (
	"context"
	"errors"
	"time"

	"kelasin/chat/internal/models"
	"kelasin/chat/pkg/chatproto"
)

// ErrNotFound is returned when a user, class, member or message does not exist.
var ErrNotFound = errors.New("not found")

// ChatStore defines the persistent storage of users, classes and chat messages.
// Both PostgresStore and MemoryStore implement this interface.
type ChatStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// Class operations
	CreateClass(ctx context.Context, name string) (*models.Class, error)
	GetClass(ctx context.Context, id string) (*models.Class, error)
	AddMember(ctx context.Context, classID, userID string, role chatproto.Role) error
	GetMember(ctx context.Context, classID, userID string) (*models.ClassMember, error)
	ListMembers(ctx context.Context, classID string) ([]chatproto.Member, error)
	ListClassesForUser(ctx context.Context, userID string) ([]chatproto.ClassSummary, error)

	// Message operations
	CreateMessage(ctx context.Context, m *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	GetChatMessage(ctx context.Context, id string) (*chatproto.ChatMessage, error)
	UpdateMessageContent(ctx context.Context, id, content string, at time.Time) error
	SoftDeleteMessage(ctx context.Context, id, deletedBy string, at time.Time) error
	CountMessages(ctx context.Context, classID, search string) (int, error)
	CountActiveMessages(ctx context.Context, classID string) (int, error)
	ListMessages(ctx context.Context, classID, search string, limit, offset int) ([]chatproto.ChatMessage, error)
}
