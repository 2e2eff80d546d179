package handler

import (
	"context"
	"net/http"
	"net/url"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"oysloe/internal/adapter/api/middleware"
	ws "oysloe/internal/infrastructure/websocket"
	"oysloe/pkg/logger"
)

type WebSocketHandler struct {
	gateway        *ws.Gateway
	authMiddleware *middleware.AuthMiddleware
	upgrader       gorillaws.Upgrader
}

func NewWebSocketHandler(gateway *ws.Gateway, authMiddleware *middleware.AuthMiddleware, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		gateway:        gateway,
		authMiddleware: authMiddleware,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker allows any origin when the list is empty or has "*". Requests
// without an Origin header come from non-browser clients and are allowed.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		if len(set) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeRoom handles /ws/chat/:room_id.
func (h *WebSocketHandler) ServeRoom(c echo.Context) error {
	roomID := c.Param("room_id")
	return h.serve(c, func(ctx context.Context, conn *gorillaws.Conn, userID string) {
		h.gateway.ServeRoom(ctx, conn, userID, roomID)
	})
}

// ServeRoomWithUser handles /ws/tempchat/:email.
func (h *WebSocketHandler) ServeRoomWithUser(c echo.Context) error {
	email, err := url.PathUnescape(c.Param("email"))
	if err != nil {
		email = c.Param("email")
	}
	return h.serve(c, func(ctx context.Context, conn *gorillaws.Conn, userID string) {
		h.gateway.ServeRoomWithUser(ctx, conn, userID, email)
	})
}

// ServeRoomList handles /ws/chatrooms.
func (h *WebSocketHandler) ServeRoomList(c echo.Context) error {
	return h.serve(c, h.gateway.ServeRoomList)
}

// ServeUnreadCount handles /ws/unread_count.
func (h *WebSocketHandler) ServeUnreadCount(c echo.Context) error {
	return h.serve(c, h.gateway.ServeUnreadCount)
}

// serve upgrades first and authenticates second, so a bad token is refused
// with a policy-violation close frame the client can read.
func (h *WebSocketHandler) serve(c echo.Context, session func(ctx context.Context, conn *gorillaws.Conn, userID string)) error {
	userID, authErr := h.authMiddleware.Resolve(c.Request())

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader already wrote the HTTP error.
		logger.Debug("websocket upgrade failed: %v", err)
		return nil
	}

	if authErr != nil {
		logger.Debug("websocket auth failed: %v", authErr)
		ws.Reject(conn, gorillaws.ClosePolicyViolation, "authentication failed")
		return nil
	}

	// The session outlives the request's cancellation once the connection is hijacked.
	session(context.WithoutCancel(c.Request().Context()), conn, userID)
	return nil
}
