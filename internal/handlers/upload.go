package handlers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kelasin/chat/internal/storage"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
)

const (
	MaxFileSize      = 10 * 1024 * 1024 // 10MB
	AllowedImageExts = ".jpg,.jpeg,.png,.gif,.webp"
	AllowedFileExts  = ".pdf,.doc,.docx,.ppt,.pptx,.xlsx,.txt,.zip,.mp4,.mp3"
)

// UploadFile handles chat attachment uploads. The returned url is then sent
// in a FILE message over the socket.
func (h *Handler) UploadFile(c *fiber.Ctx) error {
	// Get file from form
	file, err := c.FormFile("file")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "No file uploaded")
	}

	if file.Size > MaxFileSize {
		return fail(c, fiber.StatusBadRequest, fmt.Sprintf("File size exceeds limit of %s (uploaded: %s)",
			humanize.IBytes(MaxFileSize), humanize.IBytes(uint64(file.Size))))
	}

	// Validate file extension
	ext := strings.ToLower(filepath.Ext(file.Filename))
	kind, ok := kindForExtension(ext)
	if !ok {
		return fail(c, fiber.StatusBadRequest, fmt.Sprintf("File extension %s not allowed", ext))
	}

	f, err := file.Open()
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Failed to read file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Failed to read file")
	}

	contentType := storage.ContentType(ext)
	url, err := h.Files.Put(c.UserContext(), kind, file.Filename, contentType, data)
	if err != nil {
		h.Logger.Error().Err(err).Str("filename", file.Filename).Msg("failed to store upload")
		return fail(c, fiber.StatusInternalServerError, "Failed to save file")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"filename": file.Filename,
			"size":     len(data),
			"mimeType": contentType,
			"url":      url,
		},
	})
}

// kindForExtension checks the allow-lists and picks the storage folder
func kindForExtension(ext string) (storage.Kind, bool) {
	if ext == "" {
		return "", false
	}
	if containsExt(AllowedImageExts, ext) {
		return storage.KindImage, true
	}
	if containsExt(AllowedFileExts, ext) {
		return storage.KindFile, true
	}
	return "", false
}

func containsExt(list, ext string) bool {
	for _, e := range strings.Split(list, ",") {
		if e == ext {
			return true
		}
	}
	return false
}

// presignTTL bounds how long a redirect to the bucket stays usable
const presignTTL = 15 * time.Minute

// GetFile serves attachments kept in local storage and redirects to a
// signed bucket link when they live in S3.
func (h *Handler) GetFile(c *fiber.Ctx) error {
	if h.Local == nil {
		return h.redirectToObject(c)
	}

	filename := c.Params("filename")
	filePath, ok := h.Local.Path(c.Params("type"), filename)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid file path")
	}

	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return fail(c, fiber.StatusNotFound, "File not found")
	}
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to open file")
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to get file info")
	}

	c.Set(fiber.HeaderContentType, storage.ContentType(filepath.Ext(filename)))
	c.Set(fiber.HeaderContentLength, fmt.Sprintf("%d", fileInfo.Size()))

	// Stream file to client
	if _, err := io.Copy(c.Response().BodyWriter(), file); err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to send file")
	}

	return nil
}

func (h *Handler) redirectToObject(c *fiber.Ctx) error {
	kind, filename := c.Params("type"), c.Params("filename")
	if h.Remote == nil {
		return fail(c, fiber.StatusNotFound, "File not found")
	}
	if !storage.ValidName(kind, filename) {
		return fail(c, fiber.StatusBadRequest, "Invalid file path")
	}

	u, err := h.Remote.PresignGet(c.UserContext(), kind, filename, presignTTL)
	if err != nil {
		h.Logger.Error().Err(err).Str("kind", kind).Str("file", filename).Msg("presign failed")
		return fail(c, fiber.StatusInternalServerError, "Failed to locate file")
	}
	c.Set(fiber.HeaderCacheControl, "private, max-age=60")
	return c.Redirect(u.String(), fiber.StatusFound)
}
