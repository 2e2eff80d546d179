package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// ConnectionCounter reports live websocket sessions.
type ConnectionCounter interface {
	ActiveCount() int
}

type HealthHandler struct {
	db          *sql.DB
	redis       *redis.Client
	connections ConnectionCounter
}

// NewHealthHandler accepts nil db or redis when that backend is not configured.
func NewHealthHandler(db *sql.DB, redisClient *redis.Client, connections ConnectionCounter) *HealthHandler {
	return &HealthHandler{
		db:          db,
		redis:       redisClient,
		connections: connections,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{
		"database": "memory",
		"redis":    "disabled",
	}
	if h.db != nil {
		checks["database"] = "ok"
		if err := h.db.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if h.redis != nil {
		checks["redis"] = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	body := map[string]interface{}{
		"status": "ok",
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if h.connections != nil {
		body["connections"] = h.connections.ActiveCount()
	}
	return c.JSON(status, body)
}
