package router

import (
	"github.com/labstack/echo/v4"

	"oysloe/internal/adapter/api/handler"
	"oysloe/internal/adapter/api/middleware"
)

func SetupNotificationRouter(e *echo.Echo, deviceHandler *handler.DeviceHandler, alertHandler *handler.AlertHandler, authMiddleware *middleware.AuthMiddleware) {
	notifications := e.Group("/v1/notifications")
	notifications.Use(authMiddleware.Authenticate)
	notifications.POST("/save-fcm-token", deviceHandler.SaveToken)
	notifications.GET("/devices", deviceHandler.ListDevices)
	notifications.DELETE("/devices/:token", deviceHandler.DeleteDevice)

	alerts := e.Group("/v1/alerts")
	alerts.Use(authMiddleware.Authenticate)
	alerts.GET("", alertHandler.ListAlerts)
	alerts.POST("/mark-all-read", alertHandler.MarkAllRead)
	alerts.POST("/:id/mark-read", alertHandler.MarkRead)
	alerts.DELETE("/:id", alertHandler.DeleteAlert)
}
