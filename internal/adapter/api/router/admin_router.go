package router

import (
	"github.com/labstack/echo/v4"

	"oysloe/internal/adapter/api/handler"
	"oysloe/internal/adapter/api/middleware"
)

func SetupAdminRouter(e *echo.Echo, alertHandler *handler.AlertHandler, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware) {
	// Admin routes - require authentication and staff role
	admin := e.Group("/v1/admin")
	admin.Use(authMiddleware.Authenticate)
	admin.Use(adminMiddleware.AdminOnly)

	admin.POST("/alerts", alertHandler.CreateAlert)
}
