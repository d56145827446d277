package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kelasin/chat/internal/models"
	"kelasin/chat/pkg/chatproto"
)

// MemoryStore is a ChatStore kept entirely in process memory. It backs the
// development server when no DATABASE_URL is configured, and the tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	classes  map[string]*models.Class
	members  map[string]map[string]*models.ClassMember // classID -> userID
	messages map[string]*models.Message
	order    []string // message ids in insertion order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*models.User),
		classes:  make(map[string]*models.Class),
		members:  make(map[string]map[string]*models.ClassMember),
		messages: make(map[string]*models.Message),
	}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = chatproto.RoleStudent
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateClass(ctx context.Context, name string) (*models.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &models.Class{ID: uuid.New().String(), Name: name, CreatedAt: time.Now()}
	s.classes[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) GetClass(ctx context.Context, id string) (*models.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.classes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) AddMember(ctx context.Context, classID, userID string, role chatproto.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.classes[classID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	if s.members[classID] == nil {
		s.members[classID] = make(map[string]*models.ClassMember)
	}
	if existing, ok := s.members[classID][userID]; ok {
		existing.Role = role
		return nil
	}
	s.members[classID][userID] = &models.ClassMember{
		ClassID:  classID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now(),
	}
	return nil
}

func (s *MemoryStore) GetMember(ctx context.Context, classID, userID string) (*models.ClassMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[classID][userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListMembers(ctx context.Context, classID string) ([]chatproto.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := []chatproto.Member{}
	for userID, cm := range s.members[classID] {
		u := s.users[userID]
		members = append(members, chatproto.Member{
			ID:       u.ID,
			Name:     u.Name,
			Image:    u.Image,
			Role:     cm.Role,
			JoinedAt: cm.JoinedAt,
		})
	}
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].ID < members[j].ID
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members, nil
}

func (s *MemoryStore) ListClassesForUser(ctx context.Context, userID string) ([]chatproto.ClassSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	classes := []chatproto.ClassSummary{}
	for classID, members := range s.members {
		cm, ok := members[userID]
		if !ok {
			continue
		}
		summary := chatproto.ClassSummary{
			ID:          classID,
			Name:        s.classes[classID].Name,
			Role:        cm.Role,
			MemberCount: len(members),
		}
		if ids := s.classMessageIDs(classID); len(ids) > 0 {
			last := s.messages[ids[len(ids)-1]]
			summary.LastMessage = &chatproto.LastMessage{
				Content:    last.Content,
				SenderName: s.users[last.SenderID].Name,
				SentAt:     last.CreatedAt,
			}
			if last.IsDeleted {
				summary.LastMessage.Content = chatproto.DeletedPlaceholder
			}
		}
		classes = append(classes, summary)
	}
	sort.SliceStable(classes, func(i, j int) bool {
		a, b := classes[i].LastMessage, classes[j].LastMessage
		switch {
		case a != nil && b != nil:
			return a.SentAt.After(b.SentAt)
		case a != nil:
			return true
		case b != nil:
			return false
		}
		return classes[i].Name < classes[j].Name
	})
	return classes, nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.UpdatedAt = m.CreatedAt
	cp := *m
	s.messages[m.ID] = &cp
	s.order = append(s.order, m.ID)
	return nil
}

func (s *MemoryStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) GetChatMessage(ctx context.Context, id string) (*chatproto.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	msg := s.hydrate(m)
	return &msg, nil
}

func (s *MemoryStore) UpdateMessageContent(ctx context.Context, id, content string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok || m.IsDeleted {
		return ErrNotFound
	}
	m.Content = content
	m.IsEdited = true
	m.UpdatedAt = at
	return nil
}

func (s *MemoryStore) SoftDeleteMessage(ctx context.Context, id, deletedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok || m.IsDeleted {
		return ErrNotFound
	}
	m.IsDeleted = true
	m.DeletedBy = &deletedBy
	m.DeletedAt = &at
	m.UpdatedAt = at
	return nil
}

func (s *MemoryStore) CountMessages(ctx context.Context, classID, search string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.filtered(classID, search)), nil
}

func (s *MemoryStore) CountActiveMessages(ctx context.Context, classID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, id := range s.classMessageIDs(classID) {
		if !s.messages[id].IsDeleted {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, classID, search string, limit, offset int) ([]chatproto.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.filtered(classID, search)
	// Pages are counted from the newest message.
	end := len(ids) - offset
	if end <= 0 {
		return []chatproto.ChatMessage{}, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	messages := make([]chatproto.ChatMessage, 0, end-start)
	for _, id := range ids[start:end] {
		messages = append(messages, s.hydrate(s.messages[id]))
	}
	return messages, nil
}

// classMessageIDs returns the ids of a class ordered by creation time.
// Callers must hold the lock.
func (s *MemoryStore) classMessageIDs(classID string) []string {
	var ids []string
	for _, id := range s.order {
		if s.messages[id].ClassID == classID {
			ids = append(ids, id)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return s.messages[ids[i]].CreatedAt.Before(s.messages[ids[j]].CreatedAt)
	})
	return ids
}

func (s *MemoryStore) filtered(classID, search string) []string {
	ids := s.classMessageIDs(classID)
	if search == "" {
		return ids
	}
	needle := strings.ToLower(search)
	out := ids[:0]
	for _, id := range ids {
		m := s.messages[id]
		if !m.IsDeleted && strings.Contains(strings.ToLower(m.Content), needle) {
			out = append(out, id)
		}
	}
	return out
}

func (s *MemoryStore) hydrate(m *models.Message) chatproto.ChatMessage {
	u := s.users[m.SenderID]
	sender := u.ToSender()
	if cm, ok := s.members[m.ClassID][m.SenderID]; ok {
		sender.Role = cm.Role
	}

	var reply *chatproto.ReplySummary
	if m.ReplyToID != nil {
		if r, ok := s.messages[*m.ReplyToID]; ok {
			reply = r.ReplySummary(s.users[r.SenderID].Name)
		}
	}
	return m.ToChat(sender, reply)
}
