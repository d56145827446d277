// Package chat implements the class chat operations shared by the socket hub
// and the HTTP handlers: sending, editing and soft-deleting messages, and
// reading room info and message history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"kelasin/chat/internal/audit"
	"kelasin/chat/internal/metrics"
	"kelasin/chat/internal/models"
	"kelasin/chat/internal/storage"
	"kelasin/chat/internal/store"
	"kelasin/chat/pkg/chatproto"
)

var (
	ErrNotMember    = errors.New("you are not a member of this class")
	ErrNotFound     = errors.New("message not found")
	ErrForbidden    = errors.New("you are not allowed to change this message")
	ErrInvalidInput = errors.New("invalid input")
)

// MaxContentLength is the longest message body accepted, in characters.
const MaxContentLength = 4000

// MaxPageSize caps the page size of history requests.
const MaxPageSize = 100

// IsUserError reports whether err is caused by the request rather than by
// the server, so its text can be shown to the user as is.
func IsUserError(err error) bool {
	return errors.Is(err, ErrNotMember) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, chatproto.ErrImageTooLarge) ||
		errors.Is(err, chatproto.ErrNotAnImage) ||
		errors.Is(err, chatproto.ErrInvalidDataURL)
}

// Service holds the chat dependencies.
type Service struct {
	store  store.ChatStore
	files  storage.Storage
	audit  audit.Publisher
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a chat service. A nil publisher disables the audit log.
func NewService(st store.ChatStore, files storage.Storage, pub audit.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = audit.Nop{}
	}
	return &Service{
		store:  st,
		files:  files,
		audit:  pub,
		logger: logger,
		now:    time.Now,
	}
}

// Authorize returns the user's membership in the class.
func (s *Service) Authorize(ctx context.Context, classID, userID string) (*models.ClassMember, error) {
	if classID == "" {
		return nil, fmt.Errorf("%w: class id is required", ErrInvalidInput)
	}
	member, err := s.store.GetMember(ctx, classID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	return member, nil
}

// Send validates and stores a new message. Inline images are decoded from
// their data URL and moved to attachment storage.
func (s *Service) Send(ctx context.Context, userID string, req chatproto.SendMessagePayload) (*chatproto.ChatMessage, error) {
	if _, err := s.Authorize(ctx, req.ClassID, userID); err != nil {
		return nil, err
	}

	if req.MessageType == "" {
		req.MessageType = chatproto.MessageTypeText
	}
	if !req.MessageType.Valid() {
		return nil, fmt.Errorf("%w: message type must be TEXT, IMAGE or FILE", ErrInvalidInput)
	}

	content := strings.TrimSpace(req.Content)
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, fmt.Errorf("%w: message is longer than %d characters", ErrInvalidInput, MaxContentLength)
	}

	msg := &models.Message{
		ClassID:     req.ClassID,
		SenderID:    userID,
		Content:     content,
		MessageType: req.MessageType,
		CreatedAt:   s.now(),
	}

	switch req.MessageType {
	case chatproto.MessageTypeText:
		if content == "" {
			return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
		}

	case chatproto.MessageTypeImage:
		if req.ImageData == "" {
			return nil, fmt.Errorf("%w: image data is required", ErrInvalidInput)
		}
		mime, data, err := chatproto.DecodeDataURL(req.ImageData)
		if err != nil {
			return nil, err
		}
		if err := chatproto.ValidateImage(mime, int64(len(data))); err != nil {
			return nil, err
		}
		url, err := s.files.Put(ctx, storage.KindImage, req.FileName, mime, data)
		if err != nil {
			return nil, fmt.Errorf("store image: %w", err)
		}
		size := int64(len(data))
		name := req.FileName
		if name == "" {
			name = "image" + storage.ExtensionForType(mime)
		}
		msg.FileURL, msg.FileName, msg.FileSize = &url, &name, &size

	case chatproto.MessageTypeFile:
		if req.FileURL == "" || req.FileName == "" {
			return nil, fmt.Errorf("%w: file url and name are required", ErrInvalidInput)
		}
		if req.FileSize < 0 {
			return nil, fmt.Errorf("%w: file size must not be negative", ErrInvalidInput)
		}
		if !s.files.Owns(req.FileURL) {
			return nil, fmt.Errorf("%w: file url must come from /upload/file", ErrInvalidInput)
		}
		url, name, size := req.FileURL, req.FileName, req.FileSize
		msg.FileURL, msg.FileName, msg.FileSize = &url, &name, &size
	}

	if req.ReplyToID != "" {
		target, err := s.store.GetMessage(ctx, req.ReplyToID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && target.ClassID != req.ClassID) {
			return nil, fmt.Errorf("%w: the message you replied to does not exist", ErrInvalidInput)
		}
		if err != nil {
			return nil, fmt.Errorf("load reply target: %w", err)
		}
		replyTo := req.ReplyToID
		msg.ReplyToID = &replyTo
	}

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	out, err := s.store.GetChatMessage(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	metrics.MessagesSent.WithLabelValues(string(out.MessageType)).Inc()
	s.record(ctx, audit.Event{Action: audit.ActionSent, ClassID: out.ClassID, MessageID: out.ID, ActorID: userID, Message: out})
	return out, nil
}

// Edit replaces the content of the caller's own text message.
func (s *Service) Edit(ctx context.Context, userID string, req chatproto.EditMessagePayload) (*chatproto.ChatMessage, error) {
	msg, err := s.load(ctx, req.MessageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, ErrForbidden
	}
	if msg.MessageType != chatproto.MessageTypeText {
		return nil, fmt.Errorf("%w: only text messages can be edited", ErrForbidden)
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, fmt.Errorf("%w: message is longer than %d characters", ErrInvalidInput, MaxContentLength)
	}

	if err := s.store.UpdateMessageContent(ctx, msg.ID, content, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	out, err := s.store.GetChatMessage(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	metrics.MessagesEdited.Inc()
	s.record(ctx, audit.Event{Action: audit.ActionEdited, ClassID: msg.ClassID, MessageID: msg.ID, ActorID: userID, Before: msg.Content, Message: out})
	return out, nil
}

// Delete soft-deletes a message. Senders may delete their own messages;
// instructors and admins of the class may delete any message.
func (s *Service) Delete(ctx context.Context, userID, messageID string) (*chatproto.ChatMessage, error) {
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		member, err := s.Authorize(ctx, msg.ClassID, userID)
		if err != nil {
			return nil, err
		}
		if !member.Role.CanModerate() {
			return nil, ErrForbidden
		}
	}

	if err := s.store.SoftDeleteMessage(ctx, msg.ID, userID, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	out, err := s.store.GetChatMessage(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	metrics.MessagesDeleted.Inc()
	s.record(ctx, audit.Event{Action: audit.ActionDeleted, ClassID: msg.ClassID, MessageID: msg.ID, ActorID: userID, Before: msg.Content})
	return out, nil
}

// load fetches a live message by id.
func (s *Service) load(ctx context.Context, messageID string) (*models.Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("%w: message id is required", ErrInvalidInput)
	}
	msg, err := s.store.GetMessage(ctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, ErrNotFound
	}
	return msg, nil
}

// RoomInfo returns the chat header of a class.
func (s *Service) RoomInfo(ctx context.Context, classID, userID string) (*chatproto.ChatRoomInfo, error) {
	if _, err := s.Authorize(ctx, classID, userID); err != nil {
		return nil, err
	}

	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, classID)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountActiveMessages(ctx, classID)
	if err != nil {
		return nil, err
	}

	return &chatproto.ChatRoomInfo{
		ClassID:       class.ID,
		Name:          class.Name,
		TotalMembers:  len(members),
		TotalMessages: total,
		Members:       members,
	}, nil
}

// Messages returns one page of history, page 1 being the newest.
func (s *Service) Messages(ctx context.Context, classID, userID string, page, pageSize int, search string) (*chatproto.MessagesPage, error) {
	if _, err := s.Authorize(ctx, classID, userID); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = chatproto.DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	search = strings.TrimSpace(search)

	total, err := s.store.CountMessages(ctx, classID, search)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, classID, search, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	return &chatproto.MessagesPage{
		Messages: messages,
		Meta:     chatproto.NewPageMeta(page, pageSize, total),
	}, nil
}

// Classes lists the classes the user belongs to.
func (s *Service) Classes(ctx context.Context, userID string) ([]chatproto.ClassSummary, error) {
	return s.store.ListClassesForUser(ctx, userID)
}

func (s *Service) record(ctx context.Context, e audit.Event) {
	e.At = s.now()
	if err := s.audit.Publish(ctx, e); err != nil {
		s.logger.Warn().Err(err).
			Str("action", string(e.Action)).
			Str("message_id", e.MessageID).
			Msg("failed to publish audit event")
	}
}
