package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStorage writes attachments below a directory served at /uploads.
type LocalStorage struct {
	Dir     string
	BaseURL string // prefix for returned URLs, e.g. http://localhost:8080
}

// NewLocalStorage creates a LocalStorage rooted at dir.
func NewLocalStorage(dir, baseURL string) *LocalStorage {
	return &LocalStorage{Dir: dir, BaseURL: baseURL}
}

func (s *LocalStorage) Put(ctx context.Context, kind Kind, name, contentType string, data []byte) (string, error) {
	// Create upload directory if not exists
	uploadPath := filepath.Join(s.Dir, string(kind))
	if err := os.MkdirAll(uploadPath, 0755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	filename := objectName(name, contentType)
	if err := os.WriteFile(filepath.Join(uploadPath, filename), data, 0644); err != nil {
		return "", fmt.Errorf("save file: %w", err)
	}

	return servedURL(s.BaseURL, kind, filename), nil
}

func (s *LocalStorage) Owns(link string) bool {
	_, _, ok := parseServedURL(s.BaseURL, link)
	return ok
}

// Path resolves a served file back to its location on disk. It returns
// false for unknown kinds or names that try to leave the directory.
func (s *LocalStorage) Path(kind, filename string) (string, bool) {
	if !ValidName(kind, filename) {
		return "", false
	}
	return filepath.Join(s.Dir, kind, filename), true
}
