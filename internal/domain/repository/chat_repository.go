package repository

import (
	"context"
	"errors"

	"oysloe/internal/domain/entity"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateRoom means the candidate room_id or name is taken.
	ErrDuplicateRoom = errors.New("room id or name already exists")
	// ErrDuplicatePair means a live private room already exists for the pair key.
	ErrDuplicatePair = errors.New("private room already exists for pair")
	// ErrRoomClosed and ErrRoomDeleted reject a message write that raced a close or delete.
	ErrRoomClosed  = errors.New("room is closed")
	ErrRoomDeleted = errors.New("room is deleted")
)

type ChatRoomRepository interface {
	// CreatePrivateRoom inserts the room and both memberships atomically.
	CreatePrivateRoom(ctx context.Context, room *entity.ChatRoom) error
	FindPrivateRoom(ctx context.Context, key entity.PairKey) (*entity.ChatRoom, error)
	// GetByRoomID returns deleted rooms too, flagged, so callers can tell deleted from absent.
	GetByRoomID(ctx context.Context, roomID string) (*entity.ChatRoom, error)
	// ListByMember excludes deleted rooms.
	ListByMember(ctx context.Context, userID string) ([]*entity.ChatRoom, error)
	MarkClosed(ctx context.Context, roomID string) error
	MarkDeleted(ctx context.Context, roomID string) error
}

type MessageRepository interface {
	// Create assigns ID, CreatedAt and IsRead=false. It fails with ErrRoomClosed or
	// ErrRoomDeleted when the room stopped accepting writes.
	Create(ctx context.Context, message *entity.Message) error
	ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, int64, error)
	LastInRoom(ctx context.Context, roomID string) (*entity.Message, error)
	// CountUnread counts unread messages sent by any of senders. The caller resolves
	// who counts against the user directory.
	CountUnread(ctx context.Context, roomID string, senders []string) (int, error)
	// MarkAllRead flips the same set CountUnread counts and returns how many changed.
	MarkAllRead(ctx context.Context, roomID string, senders []string) (int, error)
}
