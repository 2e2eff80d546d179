package router

import (
	"github.com/labstack/echo/v4"

	"oysloe/internal/adapter/api/handler"
	"oysloe/internal/adapter/api/middleware"
)

// SetupChatRouter sets up the request/response chat routes. Live traffic uses the websocket routes.
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	chatGroup := e.Group("/v1/chatrooms")
	chatGroup.Use(authMiddleware.Authenticate)

	chatGroup.POST("", chatHandler.OpenRoom)
	chatGroup.GET("", chatHandler.ListRooms)
	chatGroup.GET("/lookup", chatHandler.OpenRoom)
	chatGroup.GET("/unread-count", chatHandler.TotalUnread)

	chatGroup.GET("/:room_id", chatHandler.GetRoom)
	chatGroup.DELETE("/:room_id", chatHandler.DeleteRoom)
	chatGroup.POST("/:room_id/close", chatHandler.CloseRoom)
	chatGroup.POST("/:room_id/mark-read", chatHandler.MarkRead)

	chatGroup.GET("/:room_id/messages", chatHandler.GetMessages)
	chatGroup.POST("/:room_id/messages", chatHandler.SendMessage)
}
