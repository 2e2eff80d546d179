package router

import (
	"github.com/labstack/echo/v4"

	"oysloe/internal/adapter/api/handler"
	"oysloe/internal/adapter/api/middleware"
	"oysloe/internal/infrastructure/ratelimit"
)

// SetupWebSocketRouter sets up WebSocket routes. Auth happens inside the handler
// so failures can be reported as close frames.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler, limiter *ratelimit.RateLimiter) {
	wsGroup := e.Group("/ws")
	wsGroup.Use(middleware.RateLimit(limiter, ratelimit.ActionConnect))

	wsGroup.GET("/chat/:room_id", wsHandler.ServeRoom)
	wsGroup.GET("/chat/:room_id/", wsHandler.ServeRoom)
	wsGroup.GET("/tempchat/:email", wsHandler.ServeRoomWithUser)
	wsGroup.GET("/tempchat/:email/", wsHandler.ServeRoomWithUser)
	wsGroup.GET("/chatrooms", wsHandler.ServeRoomList)
	wsGroup.GET("/chatrooms/", wsHandler.ServeRoomList)
	wsGroup.GET("/unread_count", wsHandler.ServeUnreadCount)
	wsGroup.GET("/unread_count/", wsHandler.ServeUnreadCount)
}
