package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"kelasin/chat/internal/chat"
	"kelasin/chat/internal/middleware"
	"kelasin/chat/internal/storage"
	"kelasin/chat/internal/store"
	ws "kelasin/chat/internal/websocket"
)

// Handler carries the dependencies of the HTTP handlers.
type Handler struct {
	Service *chat.Service
	Store   store.ChatStore
	Files   storage.Storage
	Local   *storage.LocalStorage // nil when attachments live in S3
	Remote  storage.Presigner     // signs bucket links when Local is nil
	Hub     *ws.Hub
	Logger  zerolog.Logger

	// Socket rate limit handed to every client
	SocketRate  float64
	SocketBurst int

	// Per-route HTTP request limits
	Limits middleware.Limits

	// SecureCookies marks auth cookies Secure (production, HTTPS)
	SecureCookies bool
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// chatError maps chat service errors to HTTP responses.
func (h *Handler) chatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, chat.ErrNotMember), errors.Is(err, chat.ErrForbidden):
		return fail(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, chat.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "Not found")
	case chat.IsUserError(err):
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	h.Logger.Error().Err(err).Str("route", c.Route().Path).Msg("request failed")
	return fail(c, fiber.StatusInternalServerError, "Internal server error")
}
