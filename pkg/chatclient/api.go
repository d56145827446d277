package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kelasin/chat/pkg/chatproto"
)

// API is a client for the chat HTTP API.
type API struct {
	BaseURL    string // e.g. http://localhost:8080
	Token      string
	HTTPClient *http.Client
}

// NewAPI creates a client for baseURL.
func NewAPI(baseURL, token string) *API {
	return &API{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SocketURL returns the WebSocket endpoint matching BaseURL.
func (a *API) SocketURL() string {
	u := a.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/v1/ws"
}

type response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// do performs a request and decodes the data field of the response into out.
func (a *API) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+"/api/v1"+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var r response
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &r); err != nil && resp.StatusCode < 400 {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	if resp.StatusCode >= 400 {
		msg := r.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, out)
}

// User is the authenticated account.
type User struct {
	ID    string         `json:"id"`
	Email string         `json:"email"`
	Name  string         `json:"name"`
	Image *string        `json:"image,omitempty"`
	Role  chatproto.Role `json:"role"`
}

// Login authenticates and stores the returned token on the client.
func (a *API) Login(ctx context.Context, email, password string) (*User, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	var out struct {
		User  User   `json:"user"`
		Token string `json:"token"`
	}
	if err := a.do(ctx, http.MethodPost, "/auth/login", "application/json", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}

	a.Token = out.Token
	return &out.User, nil
}

// Me returns the authenticated user.
func (a *API) Me(ctx context.Context) (*User, error) {
	var u User
	if err := a.do(ctx, http.MethodGet, "/auth/me", "", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListClasses returns the classes the user belongs to.
func (a *API) ListClasses(ctx context.Context) ([]chatproto.ClassSummary, error) {
	var classes []chatproto.ClassSummary
	if err := a.do(ctx, http.MethodGet, "/classes", "", nil, &classes); err != nil {
		return nil, err
	}
	return classes, nil
}

// GetChatRoomInfo returns the chat header of a class.
func (a *API) GetChatRoomInfo(ctx context.Context, classID string) (*chatproto.ChatRoomInfo, error) {
	var info chatproto.ChatRoomInfo
	path := "/classes/" + url.PathEscape(classID) + "/chat/info"
	if err := a.do(ctx, http.MethodGet, path, "", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetMessages returns one page of history, page 1 being the newest.
func (a *API) GetMessages(ctx context.Context, classID string, page, pageSize int, search string) (*chatproto.MessagesPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	if search != "" {
		q.Set("search", search)
	}

	var result chatproto.MessagesPage
	path := "/classes/" + url.PathEscape(classID) + "/chat/messages?" + q.Encode()
	if err := a.do(ctx, http.MethodGet, path, "", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadResult describes a stored attachment.
type UploadResult struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// UploadFile sends r as a multipart attachment.
func (a *API) UploadFile(ctx context.Context, name string, r io.Reader) (*UploadResult, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var out UploadResult
	if err := a.do(ctx, http.MethodPost, "/upload/file", w.FormDataContentType(), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
