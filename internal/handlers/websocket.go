package handlers

import (
	"kelasin/chat/internal/middleware"
	ws "kelasin/chat/internal/websocket"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// WebSocketUpgrade checks if the request should be upgraded to WebSocket
func WebSocketUpgrade(c *fiber.Ctx) error {
	// Check if this is a WebSocket upgrade request
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}

	return fail(c, fiber.StatusUpgradeRequired, "WebSocket upgrade required")
}

// WebSocketHandler handles WebSocket connections
func (h *Handler) WebSocketHandler(c *websocket.Conn) {
	// User info was set by the auth middleware before the upgrade
	userID, _ := c.Locals("userID").(string)
	name, _ := c.Locals("name").(string)

	client := ws.NewClient(userID, name, c, h.Hub, h.SocketRate, h.SocketBurst)

	h.Hub.Register <- client

	// Start read and write pumps in separate goroutines
	go client.WritePump()
	client.ReadPump() // This blocks until connection closes
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(c *fiber.Ctx) error {
	if h.Hub == nil {
		return fail(c, fiber.StatusServiceUnavailable, "WebSocket hub not initialized")
	}

	data := fiber.Map{
		"onlineSockets": h.Hub.GetOnlineCount(),
		"rooms":         h.Hub.GetRoomCount(),
	}
	if classID := c.Query("classId"); classID != "" {
		data["roomSize"] = h.Hub.RoomSize(classID)
	}

	h.Logger.Debug().Str("user_id", middleware.GetUserID(c)).Msg("socket stats requested")

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}
