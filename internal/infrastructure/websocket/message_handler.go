package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"

	"oysloe/internal/domain/entity"
	apperrors "oysloe/pkg/errors"
	"oysloe/pkg/logger"
)

// ChatService is the part of the chat core a session needs.
type ChatService interface {
	GetRoom(ctx context.Context, roomID, userID string) (*entity.ChatRoom, error)
	ResolveRoomWithEmail(ctx context.Context, userID, email string) (*entity.ChatRoom, error)
	SendMessage(ctx context.Context, roomID, senderID, content string, isMedia bool, originID string) (*entity.Message, error)
	History(ctx context.Context, roomID, userID string, limit, offset int) ([]*entity.Message, int64, error)
	MarkRoomRead(ctx context.Context, roomID, userID string) (int, error)
	UnreadCount(ctx context.Context, roomID, userID string) (int, error)
	ListRooms(ctx context.Context, userID string) ([]*entity.RoomSummary, error)
	TotalUnread(ctx context.Context, userID string) (int, error)
}

// Gateway runs per-connection sessions for the three scopes.
type Gateway struct {
	manager *Manager
	chat    ChatService
}

func NewGateway(manager *Manager, chat ChatService) *Gateway {
	return &Gateway{manager: manager, chat: chat}
}

type roomJoinedData struct {
	Room        *entity.ChatRoom `json:"room"`
	UnreadCount int              `json:"unread_count"`
}

// ServeRoom binds the connection to one room until it closes.
func (g *Gateway) ServeRoom(ctx context.Context, conn *websocket.Conn, userID, roomID string) {
	room, err := g.chat.GetRoom(ctx, roomID, userID)
	if err != nil {
		Reject(conn, closeCodeFor(err), closeText(err))
		return
	}
	g.serveRoom(ctx, conn, userID, room)
}

// ServeRoomWithUser resolves, or creates, the private room with the user behind email first.
func (g *Gateway) ServeRoomWithUser(ctx context.Context, conn *websocket.Conn, userID, email string) {
	room, err := g.chat.ResolveRoomWithEmail(ctx, userID, email)
	if err != nil {
		Reject(conn, closeCodeFor(err), closeText(err))
		return
	}
	g.serveRoom(ctx, conn, userID, room)
}

func (g *Gateway) serveRoom(ctx context.Context, conn *websocket.Conn, userID string, room *entity.ChatRoom) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := NewClient(userID, conn)
	if err := g.manager.Register(client); err != nil {
		Reject(conn, websocket.CloseGoingAway, "server shutting down")
		return
	}
	g.manager.Join(client, RoomGroup(room.RoomID))

	unread, err := g.chat.UnreadCount(ctx, room.RoomID, userID)
	if err != nil {
		logger.Warn("unread count for %s in %s: %v", userID, room.RoomID, err)
	}
	client.SendJSON(NewMessage(TypeRoomJoined, room.RoomID, roomJoinedData{Room: room, UnreadCount: unread}))

	go client.WritePump()
	client.ReadPump(func(data []byte) {
		g.handleRoomFrame(ctx, client, room.RoomID, data)
	}, func() {
		g.manager.Unregister(client)
	})
}

func (g *Gateway) handleRoomFrame(ctx context.Context, client *Client, roomID string, data []byte) {
	var in InboundMessage
	if err := json.Unmarshal(data, &in); err != nil {
		sendError(client, roomID, apperrors.InvalidRequest("malformed frame", err))
		return
	}

	switch in.Type {
	case TypePing:
		client.SendJSON(NewMessage(TypePong, roomID, nil))

	case TypeChatMessage:
		msg, err := g.chat.SendMessage(ctx, roomID, client.UserID, in.Message, in.IsMedia, client.ID())
		if err != nil {
			sendError(client, roomID, err)
			return
		}
		client.SendJSON(NewMessage(TypeMessageAck, roomID, AckData{ClientID: in.ClientID, Message: msg}))

	case TypeMarkRead:
		n, err := g.chat.MarkRoomRead(ctx, roomID, client.UserID)
		if err != nil {
			sendError(client, roomID, err)
			return
		}
		client.SendJSON(NewMessage(TypeRead, roomID, ReadData{UserID: client.UserID, Updated: n}))

	case TypeTyping:
		frame := NewMessage(TypeTyping, roomID, TypingData{UserID: client.UserID, IsTyping: in.IsTyping})
		if err := g.manager.Publish(ctx, RoomGroup(roomID), client.ID(), frame); err != nil {
			logger.Debug("typing publish failed in %s: %v", roomID, err)
		}

	case TypeHistory:
		items, total, err := g.chat.History(ctx, roomID, client.UserID, in.Limit, in.Offset)
		if err != nil {
			sendError(client, roomID, err)
			return
		}
		client.SendJSON(NewMessage(TypeHistory, roomID, HistoryData{Items: items, Total: total, Limit: in.Limit, Offset: in.Offset}))

	default:
		sendError(client, roomID, apperrors.InvalidRequest("unknown frame type "+in.Type, nil))
	}
}

// refresher turns any event on the user's group into a recomputed snapshot.
// Pokes coalesce, so a burst of events costs one recompute.
type refresher struct {
	*Client
	poke chan struct{}
}

func (r *refresher) Deliver([]byte) bool {
	select {
	case r.poke <- struct{}{}:
	default:
	}
	return true
}

// ServeRoomList pushes the user's room list on connect and after every change.
func (g *Gateway) ServeRoomList(ctx context.Context, conn *websocket.Conn, userID string) {
	g.serveSnapshot(ctx, conn, userID, func(ctx context.Context) (WSMessage, error) {
		rooms, err := g.chat.ListRooms(ctx, userID)
		if err != nil {
			return WSMessage{}, err
		}
		if rooms == nil {
			rooms = []*entity.RoomSummary{}
		}
		return NewMessage(TypeChatRooms, "", rooms), nil
	})
}

// ServeUnreadCount pushes the user's total unread count on connect and after every change.
func (g *Gateway) ServeUnreadCount(ctx context.Context, conn *websocket.Conn, userID string) {
	g.serveSnapshot(ctx, conn, userID, func(ctx context.Context) (WSMessage, error) {
		n, err := g.chat.TotalUnread(ctx, userID)
		if err != nil {
			return WSMessage{}, err
		}
		return NewMessage(TypeUnreadCount, "", CountData{Count: n}), nil
	})
}

func (g *Gateway) serveSnapshot(ctx context.Context, conn *websocket.Conn, userID string, snapshot func(context.Context) (WSMessage, error)) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := &refresher{Client: NewClient(userID, conn), poke: make(chan struct{}, 1)}
	if err := g.manager.Register(sub); err != nil {
		Reject(conn, websocket.CloseGoingAway, "server shutting down")
		return
	}
	g.manager.Join(sub, UserGroup(userID))

	push := func() {
		frame, err := snapshot(ctx)
		if err != nil {
			if ctx.Err() == nil {
				sendError(sub.Client, "", err)
			}
			return
		}
		sub.SendJSON(frame)
	}
	push()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Done():
				return
			case <-sub.poke:
				push()
			}
		}
	}()

	go sub.WritePump()
	sub.ReadPump(func(data []byte) {
		var in InboundMessage
		if err := json.Unmarshal(data, &in); err == nil && in.Type == TypePing {
			sub.SendJSON(NewMessage(TypePong, "", nil))
		}
	}, func() {
		g.manager.Unregister(sub)
	})
}

func sendError(client *Client, roomID string, err error) {
	code, message := apperrors.CodeInternal, "internal error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code, message = appErr.Code, appErr.Message
	} else {
		logger.Error("websocket session error for %s: %v", client.UserID, err)
	}
	client.SendJSON(NewMessage(TypeError, roomID, ErrorData{Code: code, Message: message}))
}

func closeCodeFor(err error) int {
	switch {
	case apperrors.Is(err, apperrors.CodeNotFound), apperrors.Is(err, apperrors.CodeRoomDeleted):
		return CloseRoomNotFound
	case apperrors.Is(err, apperrors.CodeNotAMember), apperrors.Is(err, apperrors.CodeForbidden):
		return CloseForbidden
	case apperrors.Is(err, apperrors.CodeInvalidRequest):
		return websocket.ClosePolicyViolation
	default:
		return websocket.CloseInternalServerErr
	}
}

func closeText(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
