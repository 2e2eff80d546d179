package router

import (
	"github.com/labstack/echo/v4"

	"oysloe/internal/adapter/api/handler"
	"oysloe/internal/adapter/api/middleware"
	"oysloe/internal/infrastructure/ratelimit"
)

func Setup(e *echo.Echo, h handler.Handlers, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware, limiter *ratelimit.RateLimiter) {
	SetupChatRouter(e, h.Chat, authMiddleware)
	SetupNotificationRouter(e, h.Device, h.Alert, authMiddleware)
	SetupAdminRouter(e, h.Alert, authMiddleware, adminMiddleware)
	SetupWebSocketRouter(e, h.WebSocket, limiter)
	SetupHealthRouter(e, h.Health)
}
