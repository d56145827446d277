package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kelasin/chat/internal/models"
	"kelasin/chat/pkg/chatproto"
)

// PostgresStore implements ChatStore on top of a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already connected pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close closes the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = chatproto.RoleStudent
	}
	now := time.Now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, image, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, u.ID, u.Email, u.Name, u.Password, u.Image, string(u.Role), now)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *PostgresStore) getUser(ctx context.Context, column, value string) (*models.User, error) {
	var u models.User
	var role string
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, image, role, created_at, updated_at
		FROM users WHERE `+column+` = $1
	`, value).Scan(&u.ID, &u.Email, &u.Name, &u.Password, &u.Image, &role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	u.Role = chatproto.Role(role)
	return &u, nil
}

func (s *PostgresStore) CreateClass(ctx context.Context, name string) (*models.Class, error) {
	c := models.Class{ID: uuid.New().String(), Name: name}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO classes (id, name, created_at) VALUES ($1, $2, $3)
		RETURNING created_at
	`, c.ID, c.Name, time.Now()).Scan(&c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert class: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) GetClass(ctx context.Context, id string) (*models.Class, error) {
	var c models.Class
	err := s.pool.QueryRow(ctx, `SELECT id, name, created_at FROM classes WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select class: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) AddMember(ctx context.Context, classID, userID string, role chatproto.Role) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO class_members (class_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (class_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`, classID, userID, string(role), time.Now())
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMember(ctx context.Context, classID, userID string) (*models.ClassMember, error) {
	var m models.ClassMember
	var role string
	err := s.pool.QueryRow(ctx, `
		SELECT class_id, user_id, role, joined_at
		FROM class_members WHERE class_id = $1 AND user_id = $2
	`, classID, userID).Scan(&m.ClassID, &m.UserID, &role, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select member: %w", err)
	}
	m.Role = chatproto.Role(role)
	return &m, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, classID string) ([]chatproto.Member, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.name, u.image, cm.role, cm.joined_at
		FROM class_members cm
		INNER JOIN users u ON u.id = cm.user_id
		WHERE cm.class_id = $1
		ORDER BY cm.joined_at ASC
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	members := []chatproto.Member{}
	for rows.Next() {
		var m chatproto.Member
		var role string
		if err := rows.Scan(&m.ID, &m.Name, &m.Image, &role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Role = chatproto.Role(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *PostgresStore) ListClassesForUser(ctx context.Context, userID string) ([]chatproto.ClassSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			c.id, c.name, cm.role,
			(SELECT COUNT(*) FROM class_members WHERE class_id = c.id) AS member_count,
			lm.content, lm.is_deleted, lm.sender_name, lm.created_at
		FROM classes c
		INNER JOIN class_members cm ON cm.class_id = c.id AND cm.user_id = $1
		LEFT JOIN LATERAL (
			SELECT m.content, m.is_deleted, u.name AS sender_name, m.created_at
			FROM chat_messages m
			INNER JOIN users u ON u.id = m.sender_id
			WHERE m.class_id = c.id
			ORDER BY m.created_at DESC
			LIMIT 1
		) lm ON TRUE
		ORDER BY lm.created_at DESC NULLS LAST, c.name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select classes: %w", err)
	}
	defer rows.Close()

	classes := []chatproto.ClassSummary{}
	for rows.Next() {
		var c chatproto.ClassSummary
		var role string
		var content, senderName *string
		var deleted *bool
		var sentAt *time.Time
		if err := rows.Scan(&c.ID, &c.Name, &role, &c.MemberCount, &content, &deleted, &senderName, &sentAt); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		c.Role = chatproto.Role(role)
		if content != nil && sentAt != nil {
			c.LastMessage = &chatproto.LastMessage{Content: *content, SentAt: *sentAt}
			if senderName != nil {
				c.LastMessage.SenderName = *senderName
			}
			if deleted != nil && *deleted {
				c.LastMessage.Content = chatproto.DeletedPlaceholder
			}
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

func (s *PostgresStore) CreateMessage(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.UpdatedAt = m.CreatedAt
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_messages
			(id, class_id, sender_id, content, message_type, file_url, file_name, file_size, reply_to_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, m.ID, m.ClassID, m.SenderID, m.Content, string(m.MessageType),
		m.FileURL, m.FileName, m.FileSize, m.ReplyToID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	var msgType string
	err := s.pool.QueryRow(ctx, `
		SELECT id, class_id, sender_id, content, message_type, file_url, file_name, file_size,
			reply_to_id, is_edited, is_deleted, deleted_by, deleted_at, created_at, updated_at
		FROM chat_messages WHERE id = $1
	`, id).Scan(&m.ID, &m.ClassID, &m.SenderID, &m.Content, &msgType, &m.FileURL, &m.FileName, &m.FileSize,
		&m.ReplyToID, &m.IsEdited, &m.IsDeleted, &m.DeletedBy, &m.DeletedAt, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select message: %w", err)
	}
	m.MessageType = chatproto.MessageType(msgType)
	return &m, nil
}

// chatMessageSelect joins sender, class role and the replied-to message.
const chatMessageSelect = `
	SELECT
		m.id, m.class_id, m.sender_id, m.content, m.message_type, m.file_url, m.file_name, m.file_size,
		m.reply_to_id, m.is_edited, m.is_deleted, m.created_at,
		u.name, u.image, COALESCE(cm.role, u.role),
		r.content, r.message_type, r.is_deleted, ru.name
	FROM chat_messages m
	INNER JOIN users u ON u.id = m.sender_id
	LEFT JOIN class_members cm ON cm.class_id = m.class_id AND cm.user_id = m.sender_id
	LEFT JOIN chat_messages r ON r.id = m.reply_to_id
	LEFT JOIN users ru ON ru.id = r.sender_id
`

func scanChatMessage(row pgx.Row) (chatproto.ChatMessage, error) {
	var m models.Message
	var msgType, senderName, senderRole string
	var senderImage *string
	var replyContent, replyType, replySender *string
	var replyDeleted *bool

	err := row.Scan(
		&m.ID, &m.ClassID, &m.SenderID, &m.Content, &msgType, &m.FileURL, &m.FileName, &m.FileSize,
		&m.ReplyToID, &m.IsEdited, &m.IsDeleted, &m.CreatedAt,
		&senderName, &senderImage, &senderRole,
		&replyContent, &replyType, &replyDeleted, &replySender,
	)
	if err != nil {
		return chatproto.ChatMessage{}, err
	}
	m.MessageType = chatproto.MessageType(msgType)

	sender := chatproto.Sender{ID: m.SenderID, Name: senderName, Image: senderImage, Role: chatproto.Role(senderRole)}

	var reply *chatproto.ReplySummary
	if m.ReplyToID != nil && replyContent != nil {
		r := models.Message{ID: *m.ReplyToID, Content: *replyContent}
		if replyType != nil {
			r.MessageType = chatproto.MessageType(*replyType)
		}
		if replyDeleted != nil {
			r.IsDeleted = *replyDeleted
		}
		name := ""
		if replySender != nil {
			name = *replySender
		}
		reply = r.ReplySummary(name)
	}
	return m.ToChat(sender, reply), nil
}

func (s *PostgresStore) GetChatMessage(ctx context.Context, id string) (*chatproto.ChatMessage, error) {
	msg, err := scanChatMessage(s.pool.QueryRow(ctx, chatMessageSelect+` WHERE m.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select chat message: %w", err)
	}
	return &msg, nil
}

func (s *PostgresStore) UpdateMessageContent(ctx context.Context, id, content string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE chat_messages SET content = $1, is_edited = TRUE, updated_at = $2
		WHERE id = $3 AND is_deleted = FALSE
	`, content, at, id)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SoftDeleteMessage(ctx context.Context, id, deletedBy string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE chat_messages SET is_deleted = TRUE, deleted_by = $1, deleted_at = $2, updated_at = $2
		WHERE id = $3 AND is_deleted = FALSE
	`, deletedBy, at, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// messageFilter returns the WHERE clause shared by CountMessages and
// ListMessages. A search term only matches live messages.
func messageFilter(search string) string {
	if search == "" {
		return `m.class_id = $1`
	}
	return `m.class_id = $1 AND m.is_deleted = FALSE AND m.content ILIKE '%' || $2 || '%' ESCAPE '\'`
}

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func messageArgs(classID, search string, extra ...interface{}) []interface{} {
	args := []interface{}{classID}
	if search != "" {
		args = append(args, likeEscaper.Replace(search))
	}
	return append(args, extra...)
}

func (s *PostgresStore) CountMessages(ctx context.Context, classID, search string) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chat_messages m WHERE `+messageFilter(search),
		messageArgs(classID, search)...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) CountActiveMessages(ctx context.Context, classID string) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM chat_messages WHERE class_id = $1 AND is_deleted = FALSE
	`, classID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return total, nil
}

// ListMessages returns one page counted from the newest message, in
// ascending order.
func (s *PostgresStore) ListMessages(ctx context.Context, classID, search string, limit, offset int) ([]chatproto.ChatMessage, error) {
	n := 2
	if search != "" {
		n = 3
	}
	query := chatMessageSelect + ` WHERE ` + messageFilter(search) +
		fmt.Sprintf(` ORDER BY m.created_at DESC, m.id DESC LIMIT $%d OFFSET $%d`, n, n+1)

	rows, err := s.pool.Query(ctx, query, messageArgs(classID, search, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	messages := []chatproto.ChatMessage{}
	for rows.Next() {
		msg, err := scanChatMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
