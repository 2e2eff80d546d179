package websocket

import "time"

// Frame types.
const (
	TypePing         = "ping"
	TypePong         = "pong"
	TypeChatMessage  = "chat_message"
	TypeMessageAck   = "message_ack"
	TypeTyping       = "typing"
	TypeMarkRead     = "mark_read"
	TypeRead         = "read"
	TypeHistory      = "history"
	TypeRoomJoined   = "room_joined"
	TypeChatRooms    = "chatrooms"
	TypeUnreadCount  = "unread_count"
	TypeRoomActivity = "room_activity"
	TypeRoomClosed   = "room_closed"
	TypeRoomDeleted  = "room_deleted"
	TypeError        = "error"
)

// Application close codes.
const (
	CloseForbidden    = 4003
	CloseRoomNotFound = 4004
)

type WSMessage struct {
	Type      string      `json:"type"`
	RoomID    string      `json:"room_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func NewMessage(msgType, roomID string, data interface{}) WSMessage {
	return WSMessage{
		Type:      msgType,
		RoomID:    roomID,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// InboundMessage is any frame a client may send. Fields unused by a type are ignored.
type InboundMessage struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	IsMedia  bool   `json:"is_media"`
	IsTyping bool   `json:"is_typing"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
	ClientID string `json:"client_id,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AckData struct {
	ClientID string      `json:"client_id,omitempty"`
	Message  interface{} `json:"message"`
}

type TypingData struct {
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

type ReadData struct {
	UserID  string `json:"user_id"`
	Updated int    `json:"updated"`
}

type HistoryData struct {
	Items  interface{} `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

type CountData struct {
	Count int `json:"count"`
}

// RoomGroup is the broadcast group of one room's live sessions.
func RoomGroup(roomID string) string { return "room:" + roomID }

// UserGroup reaches a user's room-list and unread-count sessions.
func UserGroup(userID string) string { return "user:" + userID }
