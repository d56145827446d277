package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPut(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir, "http://localhost:8080")

	url, err := s.Put(context.Background(), KindImage, "", "image/png", []byte("png"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://localhost:8080/uploads/images/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	name := filepath.Base(url)
	path, ok := s.Path("images", name)
	require.True(t, ok)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
}

func TestLocalPathRejects(t *testing.T) {
	s := NewLocalStorage(t.TempDir(), "")

	for _, tt := range []struct{ kind, name string }{
		{"images", "../secret"},
		{"images", ".."},
		{"images", ""},
		{"videos", "a.mp4"},
		{"files", "a/b.pdf"},
	} {
		_, ok := s.Path(tt.kind, tt.name)
		assert.False(t, ok, "%s/%s", tt.kind, tt.name)
	}
}

func TestExtensionForType(t *testing.T) {
	assert.Equal(t, ".jpg", ExtensionForType("IMAGE/JPEG"))
	assert.Equal(t, ".bin", ExtensionForType("application/x-unknown"))
	assert.Equal(t, "application/pdf", ContentType(".PDF"))
}

func TestLocalOwns(t *testing.T) {
	s := NewLocalStorage(t.TempDir(), "http://localhost:8080")

	url, err := s.Put(context.Background(), KindFile, "tugas.pdf", "application/pdf", []byte("pdf"))
	require.NoError(t, err)
	assert.True(t, s.Owns(url))

	assert.False(t, s.Owns("https://evil.test/uploads/files/tugas.pdf"))
	assert.False(t, s.Owns("http://localhost:8080/uploads/files/a.pdf?x=1"))
	assert.False(t, s.Owns("data:text/html,hi"))
}
