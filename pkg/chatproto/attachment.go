package chatproto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MaxImageSize is the largest image accepted inline over the socket.
const MaxImageSize = 3 * 1024 * 1024

var (
	ErrImageTooLarge  = errors.New("image exceeds the 3MB limit")
	ErrNotAnImage     = errors.New("only image files are allowed")
	ErrInvalidDataURL = errors.New("invalid data URL")
)

// IsImageMIME reports whether mime names an image type.
func IsImageMIME(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	return strings.HasPrefix(mime, "image/") && len(mime) > len("image/")
}

// ValidateImage checks an image attachment before it is sent.
func ValidateImage(mime string, size int64) error {
	if !IsImageMIME(mime) {
		return ErrNotAnImage
	}
	if size > MaxImageSize {
		return ErrImageTooLarge
	}
	return nil
}

// EncodeDataURL builds a base64 data URL.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL parses a base64 data URL and returns its MIME type and bytes.
func DecodeDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	header, body, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok || mime == "" {
		return "", nil, ErrInvalidDataURL
	}
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mime, data, nil
}
