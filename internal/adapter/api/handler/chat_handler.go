package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"oysloe/internal/adapter/api/middleware"
	"oysloe/internal/domain/entity"
	"oysloe/internal/usecase"
	"oysloe/pkg/response"
	"oysloe/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type openRoomRequest struct {
	UserID    string `json:"user_id" query:"user_id" validate:"required_without=Email"`
	Email     string `json:"email" query:"email" validate:"omitempty,email"`
	ProductID string `json:"product_id" query:"product_id"`
}

type sendMessageRequest struct {
	Message string `json:"message" validate:"required_without=IsMedia"`
	IsMedia bool   `json:"is_media"`
}

type roomDetail struct {
	*entity.ChatRoom
	UnreadCount int `json:"unread_count"`
}

// OpenRoom gets or creates the private room with another user. POST answers 201
// when the room is new; the GET lookup always answers 200.
func (h *ChatHandler) OpenRoom(c echo.Context) error {
	var req openRoomRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	res, err := h.chatUseCase.FindOrCreatePrivateRoom(c.Request().Context(), usecase.PrivateRoomInput{
		UserID:      middleware.UserID(c),
		OtherUserID: req.UserID,
		OtherEmail:  req.Email,
		ProductID:   req.ProductID,
	})
	if err != nil {
		return response.Error(c, err)
	}

	if res.Created && c.Request().Method == http.MethodPost {
		return response.Created(c, res)
	}
	return response.Success(c, res)
}

func (h *ChatHandler) ListRooms(c echo.Context) error {
	rooms, err := h.chatUseCase.ListRooms(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, rooms)
}

func (h *ChatHandler) TotalUnread(c echo.Context) error {
	n, err := h.chatUseCase.TotalUnread(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"count": n})
}

func (h *ChatHandler) GetRoom(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)
	roomID := c.Param("room_id")

	room, err := h.chatUseCase.GetRoom(ctx, roomID, userID)
	if err != nil {
		return response.Error(c, err)
	}
	unread, err := h.chatUseCase.UnreadCount(ctx, roomID, userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, roomDetail{ChatRoom: room, UnreadCount: unread})
}

func (h *ChatHandler) GetMessages(c echo.Context) error {
	page := utils.GetPaginationParams(c, 50)

	messages, total, err := h.chatUseCase.History(c.Request().Context(), c.Param("room_id"), middleware.UserID(c), page.Limit, page.Offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, messages, total, page.Limit, page.Offset)
}

// SendMessage is the fallback for clients without a socket.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	msg, err := h.chatUseCase.SendMessage(c.Request().Context(), c.Param("room_id"), middleware.UserID(c), req.Message, req.IsMedia, "")
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, msg)
}

func (h *ChatHandler) MarkRead(c echo.Context) error {
	n, err := h.chatUseCase.MarkRoomRead(c.Request().Context(), c.Param("room_id"), middleware.UserID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"updated": n})
}

func (h *ChatHandler) CloseRoom(c echo.Context) error {
	room, err := h.chatUseCase.CloseRoom(c.Request().Context(), c.Param("room_id"), middleware.UserID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, room)
}

func (h *ChatHandler) DeleteRoom(c echo.Context) error {
	roomID := c.Param("room_id")
	if err := h.chatUseCase.DeleteRoom(c.Request().Context(), roomID, middleware.UserID(c)); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]interface{}{"room_id": roomID, "deleted": true})
}
