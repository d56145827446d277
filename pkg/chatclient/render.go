package chatclient

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"kelasin/chat/pkg/chatproto"
)

// Align is the side a bubble is drawn on.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// BodyKind selects how a bubble body is drawn.
type BodyKind int

const (
	BodyText BodyKind = iota
	BodyImage
	BodyFile
	BodyDeleted
)

// Quote is the reply block shown above a bubble body.
type Quote struct {
	SenderName string
	Text       string
}

// Bubble is a ChatMessage laid out for display.
type Bubble struct {
	ID         string
	Align      Align
	Own        bool
	SenderName string
	RoleBadge  string // "Instructor", "Admin" or empty
	Reply      *Quote
	Kind       BodyKind
	Text       string
	FileURL    string
	FileName   string
	FileSize   string // human readable, empty when unknown
	Edited     bool
	TimeLabel  string
}

const quoteLength = 60

// Renderer lays out messages. The zero value is ready to use.
type Renderer struct {
	// Now is used for time labels; nil means time.Now
	Now func() time.Time
	// Location for time labels; nil means time.Local
	Location *time.Location
}

// Render lays out msg as seen by viewerID.
func (r Renderer) Render(msg *chatproto.ChatMessage, viewerID string) Bubble {
	own := msg.Sender.ID == viewerID
	b := Bubble{
		ID:         msg.ID,
		Own:        own,
		SenderName: msg.Sender.Name,
		RoleBadge:  roleBadge(msg.Sender.Role),
		Edited:     msg.IsEdited && !msg.IsDeleted,
		TimeLabel:  r.timeLabel(msg.SentAt),
	}
	if own {
		b.Align = AlignRight
	}

	if msg.ReplyTo != nil {
		b.Reply = &Quote{SenderName: msg.ReplyTo.SenderName, Text: quoteText(msg.ReplyTo)}
	}

	switch {
	case msg.IsDeleted:
		b.Kind = BodyDeleted
		b.Text = chatproto.DeletedPlaceholder
		return b
	case msg.MessageType == chatproto.MessageTypeImage:
		b.Kind = BodyImage
	case msg.MessageType == chatproto.MessageTypeFile:
		b.Kind = BodyFile
	default:
		b.Kind = BodyText
	}

	b.Text = msg.Content
	if msg.FileURL != nil {
		b.FileURL = *msg.FileURL
	}
	if msg.FileName != nil {
		b.FileName = *msg.FileName
	}
	if msg.FileSize != nil && *msg.FileSize >= 0 {
		b.FileSize = humanize.IBytes(uint64(*msg.FileSize))
	}
	return b
}

// Format renders a bubble as plain text lines.
func (r Renderer) Format(b Bubble) string {
	var sb strings.Builder

	header := b.SenderName
	if b.Own {
		header = "You"
	}
	if b.RoleBadge != "" {
		header += " [" + b.RoleBadge + "]"
	}
	fmt.Fprintf(&sb, "%s  %s", header, b.TimeLabel)
	if b.Edited {
		sb.WriteString("  (edited)")
	}
	sb.WriteString("\n")

	if b.Reply != nil {
		fmt.Fprintf(&sb, "  > %s: %s\n", b.Reply.SenderName, b.Reply.Text)
	}

	switch b.Kind {
	case BodyDeleted:
		fmt.Fprintf(&sb, "  %s\n", b.Text)
	case BodyImage:
		fmt.Fprintf(&sb, "  [image] %s %s\n", b.FileName, sizeSuffix(b.FileSize))
		if b.Text != "" {
			fmt.Fprintf(&sb, "  %s\n", b.Text)
		}
		fmt.Fprintf(&sb, "  %s\n", b.FileURL)
	case BodyFile:
		fmt.Fprintf(&sb, "  [file] %s %s\n", b.FileName, sizeSuffix(b.FileSize))
		fmt.Fprintf(&sb, "  %s\n", b.FileURL)
	default:
		for _, line := range strings.Split(b.Text, "\n") {
			fmt.Fprintf(&sb, "  %s\n", line)
		}
	}

	out := sb.String()
	if b.Align == AlignRight {
		return indent(out, "        ")
	}
	return out
}

func (r Renderer) timeLabel(t time.Time) string {
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}

	t, now = t.In(loc), now.In(loc)
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("02 Jan 15:04")
}

func roleBadge(role chatproto.Role) string {
	switch role {
	case chatproto.RoleInstructor:
		return "Instructor"
	case chatproto.RoleAdmin:
		return "Admin"
	default:
		return ""
	}
}

func quoteText(rs *chatproto.ReplySummary) string {
	if rs.IsDeleted {
		return chatproto.DeletedPlaceholder
	}
	switch rs.MessageType {
	case chatproto.MessageTypeImage:
		if rs.Content == "" {
			return "[image]"
		}
	case chatproto.MessageTypeFile:
		if rs.Content == "" {
			return "[file]"
		}
	}
	text := strings.ReplaceAll(rs.Content, "\n", " ")
	if utf8.RuneCountInString(text) > quoteLength {
		text = string([]rune(text)[:quoteLength]) + "..."
	}
	return text
}

func sizeSuffix(size string) string {
	if size == "" {
		return ""
	}
	return "(" + size + ")"
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n") + "\n"
}
