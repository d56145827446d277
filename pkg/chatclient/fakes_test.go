package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"kelasin/chat/pkg/chatproto"
)

// fakeConn is an in-memory socket connection. Frames pushed by the test are
// read by the Socket; frames written by the Socket are recorded.
type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent []chatproto.Envelope
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 64), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.in:
		return 1, data, nil
	case <-f.closed:
		return 0, nil, io.EOF
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("use of closed connection")
	default:
	}
	var env chatproto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, env)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) push(t *testing.T, typ chatproto.EventType, payload interface{}) {
	t.Helper()
	env, err := chatproto.NewEnvelope(typ, payload)
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)
	f.in <- data
}

func (f *fakeConn) sentTypes() []chatproto.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]chatproto.EventType, len(f.sent))
	for i, e := range f.sent {
		out[i] = e.Type
	}
	return out
}

func (f *fakeConn) sentOf(typ chatproto.EventType) []chatproto.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chatproto.Envelope
	for _, e := range f.sent {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func newTestSocket(t *testing.T) (*Socket, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	sock := NewSocket(conn, zerolog.Nop())
	t.Cleanup(func() { sock.Close() })
	return sock, conn
}

// recordingEmitter records emitted events without a connection.
type recordingEmitter struct {
	mu     sync.Mutex
	events []chatproto.Envelope
	err    error
}

func (r *recordingEmitter) Emit(event chatproto.EventType, payload interface{}) error {
	if r.err != nil {
		return r.err
	}
	env, err := chatproto.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.events = append(r.events, env)
	r.mu.Unlock()
	return nil
}

func (r *recordingEmitter) count(typ chatproto.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func (r *recordingEmitter) types() []chatproto.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chatproto.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recordingEmitter) last() chatproto.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// toasts records notifications.
type toasts struct {
	mu   sync.Mutex
	list []Toast
}

func (n *toasts) Notify(t Toast) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, t)
}

func (n *toasts) all() []Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Toast(nil), n.list...)
}

var baseTime = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func textMessage(classID string, i int, senderID string) chatproto.ChatMessage {
	return chatproto.ChatMessage{
		ID:          fmt.Sprintf("m%03d", i),
		ClassID:     classID,
		Sender:      chatproto.Sender{ID: senderID, Name: "User " + senderID, Role: chatproto.RoleStudent},
		Content:     fmt.Sprintf("message %d", i),
		MessageType: chatproto.MessageTypeText,
		SentAt:      baseTime.Add(time.Duration(i) * time.Minute),
	}
}

// fakeAPI serves total messages per class the way the server pages them:
// page 1 holds the newest, each page ascending.
type fakeAPI struct {
	total   int
	sender  string
	calls   atomic.Int32
	gate    chan struct{} // when set, GetMessages waits for it
	err     error
	info    error
	uploads []string
}

func (a *fakeAPI) GetMessages(ctx context.Context, classID string, page, pageSize int, search string) (*chatproto.MessagesPage, error) {
	a.calls.Add(1)
	if a.gate != nil {
		select {
		case <-a.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}

	end := a.total - (page-1)*pageSize
	start := end - pageSize
	if start < 0 {
		start = 0
	}
	var msgs []chatproto.ChatMessage
	for i := start; i < end; i++ {
		msgs = append(msgs, textMessage(classID, i, a.sender))
	}
	return &chatproto.MessagesPage{
		Messages: msgs,
		Meta:     chatproto.NewPageMeta(page, pageSize, a.total),
	}, nil
}

func (a *fakeAPI) GetChatRoomInfo(ctx context.Context, classID string) (*chatproto.ChatRoomInfo, error) {
	if a.info != nil {
		return nil, a.info
	}
	return &chatproto.ChatRoomInfo{ClassID: classID, Name: "Class " + classID, TotalMessages: a.total}, nil
}

func (a *fakeAPI) UploadFile(ctx context.Context, name string, r io.Reader) (*UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	a.uploads = append(a.uploads, name)
	return &UploadResult{
		URL:      "http://test/uploads/files/" + name,
		Filename: name,
		Size:     int64(len(data)),
		MimeType: "application/pdf",
	}, nil
}
