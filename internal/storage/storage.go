package storage

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind groups attachments by what they hold.
type Kind string

const (
	KindImage Kind = "images"
	KindFile  Kind = "files"
)

// Storage persists chat attachments and returns the URL clients fetch them from.
type Storage interface {
	Put(ctx context.Context, kind Kind, name, contentType string, data []byte) (string, error)
	// Owns reports whether link is one Put handed out.
	Owns(link string) bool
}

// Presigner hands out temporary direct links to private objects.
type Presigner interface {
	PresignGet(ctx context.Context, kind, filename string, ttl time.Duration) (*url.URL, error)
}

// servedURL is the /uploads address every backend hands out, so attachment
// links stay valid whichever backend holds the bytes.
func servedURL(baseURL string, kind Kind, filename string) string {
	return fmt.Sprintf("%s/uploads/%s/%s", baseURL, kind, filename)
}

// parseServedURL splits a served URL back into kind and filename.
func parseServedURL(baseURL, link string) (string, string, bool) {
	rest, ok := strings.CutPrefix(link, baseURL+"/uploads/")
	if !ok {
		return "", "", false
	}
	kind, filename, ok := strings.Cut(rest, "/")
	if !ok || !ValidName(kind, filename) {
		return "", "", false
	}
	return kind, filename, true
}

// ValidName reports whether kind is a known attachment kind and filename a
// single path element.
func ValidName(kind, filename string) bool {
	if kind != string(KindImage) && kind != string(KindFile) {
		return false
	}
	return filename != "" && filename == filepath.Base(filename) && filename != "." && filename != ".." &&
		!strings.ContainsAny(filename, "?#\\")
}

// objectName generates a unique filename keeping the original extension.
func objectName(name, contentType string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ExtensionForType(contentType)
	}
	return fmt.Sprintf("%s-%d%s", uuid.New().String(), time.Now().Unix(), ext)
}

// ExtensionForType returns the file extension used for a MIME type.
func ExtensionForType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	case "application/pdf":
		return ".pdf"
	case "text/plain":
		return ".txt"
	case "application/zip":
		return ".zip"
	default:
		return ".bin"
	}
}

// ContentType returns content type based on file extension
func ContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".ppt":
		return "application/vnd.ms-powerpoint"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".txt":
		return "text/plain"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
