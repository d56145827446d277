package handlers

import (
	"strconv"

	"kelasin/chat/internal/middleware"
	"kelasin/chat/pkg/chatproto"

	"github.com/gofiber/fiber/v2"
)

// GetClasses returns the classes the user belongs to with their latest message
func (h *Handler) GetClasses(c *fiber.Ctx) error {
	classes, err := h.Service.Classes(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return h.chatError(c, err)
	}

	if classes == nil {
		classes = []chatproto.ClassSummary{}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    classes,
	})
}

// GetChatRoomInfo returns the chat header of a class: name, counts and members
func (h *Handler) GetChatRoomInfo(c *fiber.Ctx) error {
	info, err := h.Service.RoomInfo(c.UserContext(), c.Params("classId"), middleware.GetUserID(c))
	if err != nil {
		return h.chatError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    info,
	})
}

// GetMessages returns one page of class chat history, page 1 being the newest
func (h *Handler) GetMessages(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize", strconv.Itoa(chatproto.DefaultPageSize)))

	result, err := h.Service.Messages(c.UserContext(), c.Params("classId"), middleware.GetUserID(c), page, pageSize, c.Query("search"))
	if err != nil {
		return h.chatError(c, err)
	}

	if result.Messages == nil {
		result.Messages = []chatproto.ChatMessage{}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}
