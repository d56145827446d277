package routes

import (
	"kelasin/chat/internal/handlers"
	"kelasin/chat/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, h *handlers.Handler) {
	// Prometheus exposition, adapted from net/http onto fasthttp
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	// API v1 group
	api := app.Group("/api/v1")

	// Health check (public)
	api.Get("/health", func(c *fiber.Ctx) error {
		if err := h.Store.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":  "degraded",
				"message": "Store unavailable",
			})
		}
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "Kelasin chat API is running",
		})
	})

	// Auth routes
	auth := api.Group("/auth")
	authLimit := middleware.RateLimiter("auth", h.Limits.Auth)
	auth.Post("/login", authLimit, h.Login)
	auth.Post("/refresh", authLimit, h.RefreshToken)
	auth.Post("/logout", middleware.AuthMiddleware, h.Logout)
	auth.Get("/me", middleware.AuthMiddleware, h.GetMe)

	// Class chat routes (protected)
	classes := api.Group("/classes", middleware.AuthMiddleware)
	classes.Get("/", h.GetClasses)
	classes.Get("/:classId/chat/info", h.GetChatRoomInfo)
	classes.Get("/:classId/chat/messages", middleware.RateLimiter("read", h.Limits.Read), h.GetMessages)

	// Upload routes (protected)
	uploads := api.Group("/upload", middleware.AuthMiddleware)
	uploads.Post("/file", middleware.RateLimiter("upload", h.Limits.Upload), h.UploadFile)

	// Serve uploaded files (public)
	app.Get("/uploads/:type/:filename", h.GetFile)

	// WebSocket route (protected)
	api.Get("/ws", middleware.AuthMiddleware, handlers.WebSocketUpgrade, websocket.New(h.WebSocketHandler, websocket.Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}))

	// WebSocket stats (protected, for debugging)
	api.Get("/ws/stats", middleware.AuthMiddleware, h.GetWebSocketStats)
}
