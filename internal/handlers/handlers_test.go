package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kelasin/chat/internal/audit"
	"kelasin/chat/internal/chat"
	"kelasin/chat/internal/handlers"
	"kelasin/chat/internal/middleware"
	"kelasin/chat/internal/models"
	"kelasin/chat/internal/routes"
	"kelasin/chat/internal/storage"
	"kelasin/chat/internal/store"
	"kelasin/chat/internal/utils"
	ws "kelasin/chat/internal/websocket"
	"kelasin/chat/pkg/chatproto"
)

const password = "rahasia123"

type testServer struct {
	app      *fiber.App
	st       *store.MemoryStore
	classID  string
	student  *models.User
	outsider *models.User
}

func newTestServer(t *testing.T, opts ...func(*handlers.Handler)) *testServer {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()

	hash, err := utils.HashPassword(password)
	require.NoError(t, err)

	mkUser := func(email, name string) *models.User {
		u := &models.User{Email: email, Name: name, Password: hash, Role: chatproto.RoleStudent}
		require.NoError(t, st.CreateUser(ctx, u))
		return u
	}

	s := &testServer{
		st:       st,
		student:  mkUser("budi@kelasin.test", "Budi"),
		outsider: mkUser("joko@kelasin.test", "Joko"),
	}

	class, err := st.CreateClass(ctx, "Golang Dasar")
	require.NoError(t, err)
	s.classID = class.ID
	require.NoError(t, st.AddMember(ctx, class.ID, s.student.ID, chatproto.RoleStudent))

	local := storage.NewLocalStorage(t.TempDir(), "http://test")
	svc := chat.NewService(st, local, audit.Nop{}, zerolog.Nop())
	h := &handlers.Handler{
		Service:     svc,
		Store:       st,
		Files:       local,
		Local:       local,
		Hub:         ws.NewHub(svc, nil, zerolog.Nop()),
		Logger:      zerolog.Nop(),
		SocketRate:  10,
		SocketBurst: 10,
		Limits:      middleware.DefaultLimits(),
	}
	for _, opt := range opts {
		opt(h)
	}

	s.app = fiber.New()
	routes.SetupRoutes(s.app, h)
	return s
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(body) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(body, &env))
	}
	return resp.StatusCode, env
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	status, env := s.do(t, req)
	require.Equal(t, http.StatusOK, status, env.Error)

	var data struct {
		Token string              `json:"token"`
		User  models.UserResponse `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func (s *testServer) get(t *testing.T, path, token string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.do(t, req)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	t.Run("wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"email":"budi@kelasin.test","password":"salah"}`))
		req.Header.Set("Content-Type", "application/json")
		status, env := s.do(t, req)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.False(t, env.Success)
	})

	t.Run("missing fields", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		status, _ := s.do(t, req)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("me", func(t *testing.T) {
		token := s.login(t, "BUDI@kelasin.test")
		status, env := s.get(t, "/api/v1/auth/me", token)
		require.Equal(t, http.StatusOK, status)

		var me models.UserResponse
		require.NoError(t, json.Unmarshal(env.Data, &me))
		assert.Equal(t, s.student.ID, me.ID)
		assert.Equal(t, "Budi", me.Name)
	})
}

func TestLoginRateLimited(t *testing.T) {
	s := newTestServer(t)

	attempt := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"email":"budi@kelasin.test","password":"salah"}`))
		req.Header.Set("Content-Type", "application/json")
		status, _ := s.do(t, req)
		return status
	}

	for i := 0; i < middleware.DefaultLimits().Auth.Max; i++ {
		assert.Equal(t, http.StatusUnauthorized, attempt())
	}
	assert.Equal(t, http.StatusTooManyRequests, attempt())
}

func TestRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	status, env := s.get(t, "/api/v1/classes", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	refresh, err := utils.GenerateRefreshToken(s.student.ID, s.student.Email, s.student.Name, "STUDENT")
	require.NoError(t, err)
	status, _ = s.get(t, "/api/v1/classes", refresh)
	assert.Equal(t, http.StatusUnauthorized, status, "refresh tokens are not access tokens")
}

func TestClassesAndRoomInfo(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, s.student.Email)

	status, env := s.get(t, "/api/v1/classes", token)
	require.Equal(t, http.StatusOK, status)
	var classes []chatproto.ClassSummary
	require.NoError(t, json.Unmarshal(env.Data, &classes))
	require.Len(t, classes, 1)
	assert.Equal(t, "Golang Dasar", classes[0].Name)

	status, env = s.get(t, "/api/v1/classes/"+s.classID+"/chat/info", token)
	require.Equal(t, http.StatusOK, status)
	var info chatproto.ChatRoomInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, s.classID, info.ClassID)
	assert.Equal(t, 1, info.TotalMembers)
	assert.Equal(t, 0, info.TotalMessages)

	outsider := s.login(t, s.outsider.Email)
	status, _ = s.get(t, "/api/v1/classes/"+s.classID+"/chat/info", outsider)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestGetMessagesPaging(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Hour)
	for i := 0; i < 45; i++ {
		require.NoError(t, s.st.CreateMessage(ctx, &models.Message{
			ClassID:     s.classID,
			SenderID:    s.student.ID,
			Content:     fmt.Sprintf("pesan %d", i),
			MessageType: chatproto.MessageTypeText,
			CreatedAt:   start.Add(time.Duration(i) * time.Second),
		}))
	}
	token := s.login(t, s.student.Email)

	status, env := s.get(t, "/api/v1/classes/"+s.classID+"/chat/messages", token)
	require.Equal(t, http.StatusOK, status)
	var page chatproto.MessagesPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Messages, chatproto.DefaultPageSize)
	assert.Equal(t, "pesan 25", page.Messages[0].Content)
	assert.Equal(t, "pesan 44", page.Messages[19].Content)
	assert.True(t, page.Meta.HasNextPage)
	assert.Equal(t, 45, page.Meta.Total)
	assert.Equal(t, 3, page.Meta.TotalPages)

	status, env = s.get(t, "/api/v1/classes/"+s.classID+"/chat/messages?page=3&pageSize=20", token)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Messages, 5)
	assert.Equal(t, "pesan 0", page.Messages[0].Content)
	assert.False(t, page.Meta.HasNextPage)

	status, env = s.get(t, "/api/v1/classes/"+s.classID+"/chat/messages?search=pesan%204", token)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	// "pesan 4" and "pesan 40".."pesan 44"
	assert.Len(t, page.Messages, 6)

	outsider := s.login(t, s.outsider.Email)
	status, _ = s.get(t, "/api/v1/classes/"+s.classID+"/chat/messages", outsider)
	assert.Equal(t, http.StatusForbidden, status)
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestUploadAndServe(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, s.student.Email)

	body, contentType := multipartUpload(t, "modul-1.pdf", []byte("%PDF-1.4 tugas"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload/file", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	status, env := s.do(t, req)
	require.Equal(t, http.StatusCreated, status, env.Error)

	var data struct {
		URL      string `json:"url"`
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
		MimeType string `json:"mimeType"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "modul-1.pdf", data.Filename)
	assert.Equal(t, int64(14), data.Size)
	assert.Equal(t, "application/pdf", data.MimeType)
	require.True(t, strings.HasPrefix(data.URL, "http://test/uploads/files/"))

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, strings.TrimPrefix(data.URL, "http://test"), nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	served, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 tugas", string(served))
}

func TestUploadRejectsExtension(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, s.student.Email)

	body, contentType := multipartUpload(t, "virus.exe", []byte("MZ"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload/file", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	status, env := s.do(t, req)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error, ".exe")
}

func TestGetFileRejectsTraversal(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/uploads/secrets/passwd", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = s.app.Test(httptest.NewRequest(http.MethodGet, "/uploads/files/missing.pdf", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type fakePresigner struct {
	kind, filename string
	ttl            time.Duration
}

func (p *fakePresigner) PresignGet(ctx context.Context, kind, filename string, ttl time.Duration) (*url.URL, error) {
	p.kind, p.filename, p.ttl = kind, filename, ttl
	return url.Parse("https://bucket.test/kelasin/" + kind + "/" + filename + "?X-Amz-Signature=abc")
}

func TestGetFileRedirectsToSignedObject(t *testing.T) {
	presigner := &fakePresigner{}
	s := newTestServer(t, func(h *handlers.Handler) {
		h.Local = nil
		h.Remote = presigner
	})

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/uploads/images/a.png", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://bucket.test/kelasin/images/a.png?X-Amz-Signature=abc", resp.Header.Get("Location"))
	assert.Equal(t, "images", presigner.kind)
	assert.Equal(t, "a.png", presigner.filename)
	assert.Positive(t, presigner.ttl)

	resp, err = s.app.Test(httptest.NewRequest(http.MethodGet, "/uploads/secrets/passwd", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, s.student.Email)

	status, _ := s.get(t, "/api/v1/ws", token)
	assert.Equal(t, http.StatusUpgradeRequired, status)

	status, env := s.get(t, "/api/v1/ws/stats", token)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"onlineSockets":0,"rooms":0}`, string(env.Data))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}
