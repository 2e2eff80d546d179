package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"oysloe/internal/domain/entity"
	"oysloe/internal/domain/repository"

	"github.com/lib/pq"
)

const roomColumns = `r.id, r.room_id, r.name, r.is_group, r.is_closed, r.is_deleted,
	COALESCE(r.product_id, ''), COALESCE(r.pair_key, ''), r.created_at,
	ARRAY(SELECT m.user_id FROM chat_room_members m WHERE m.room_id = r.id ORDER BY m.user_id)`

type postgresChatRoomRepository struct {
	db *sql.DB
}

func NewPostgresChatRoomRepository(db *sql.DB) repository.ChatRoomRepository {
	return &postgresChatRoomRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(row rowScanner) (*entity.ChatRoom, error) {
	room := &entity.ChatRoom{}
	err := row.Scan(&room.ID, &room.RoomID, &room.Name, &room.IsGroup, &room.IsClosed, &room.IsDeleted,
		&room.ProductID, &room.PairKey, &room.CreatedAt, pq.Array(&room.Members))
	if err != nil {
		return nil, mapPgError(err)
	}
	return room, nil
}

func (r *postgresChatRoomRepository) CreatePrivateRoom(ctx context.Context, room *entity.ChatRoom) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin room tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO chat_rooms (room_id, name, is_group, product_id, pair_key)
		 VALUES ($1, $2, FALSE, $3, $4)
		 RETURNING id, created_at`,
		room.RoomID, room.Name, nullString(room.ProductID), nullString(room.PairKey),
	).Scan(&room.ID, &room.CreatedAt)
	if err != nil {
		return mapPgError(err)
	}

	for _, member := range room.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_room_members (room_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			room.ID, member); err != nil {
			return mapPgError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapPgError(err)
	}
	return nil
}

func (r *postgresChatRoomRepository) FindPrivateRoom(ctx context.Context, key entity.PairKey) (*entity.ChatRoom, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM chat_rooms r
		 WHERE r.pair_key = $1 AND NOT r.is_deleted AND NOT r.is_group`,
		key.String())
	return scanRoom(row)
}

func (r *postgresChatRoomRepository) GetByRoomID(ctx context.Context, roomID string) (*entity.ChatRoom, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM chat_rooms r WHERE r.room_id = $1`, roomID)
	return scanRoom(row)
}

func (r *postgresChatRoomRepository) ListByMember(ctx context.Context, userID string) ([]*entity.ChatRoom, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+roomColumns+` FROM chat_rooms r
		 WHERE NOT r.is_deleted
		   AND EXISTS (SELECT 1 FROM chat_room_members m WHERE m.room_id = r.id AND m.user_id = $1)
		 ORDER BY r.created_at DESC, r.id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*entity.ChatRoom
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (r *postgresChatRoomRepository) setFlag(ctx context.Context, roomID, column string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_rooms SET `+column+` = TRUE WHERE room_id = $1`, roomID)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *postgresChatRoomRepository) MarkClosed(ctx context.Context, roomID string) error {
	return r.setFlag(ctx, roomID, "is_closed")
}

func (r *postgresChatRoomRepository) MarkDeleted(ctx context.Context, roomID string) error {
	return r.setFlag(ctx, roomID, "is_deleted")
}

type postgresMessageRepository struct {
	db *sql.DB
}

func NewPostgresMessageRepository(db *sql.DB) repository.MessageRepository {
	return &postgresMessageRepository{db: db}
}

// Create takes a share lock on the room row, so a concurrent close or delete either
// waits for the insert or is seen by it.
func (r *postgresMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO chat_messages (room_id, sender_id, content, is_media)
		 SELECT r.id, $2, $3, $4 FROM chat_rooms r
		 WHERE r.room_id = $1 AND NOT r.is_closed AND NOT r.is_deleted
		 FOR SHARE OF r
		 RETURNING id, created_at`,
		message.RoomID, message.SenderID, message.Content, message.IsMedia,
	).Scan(&message.ID, &message.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r.whyRejected(ctx, message.RoomID)
	}
	if err != nil {
		return mapPgError(err)
	}
	message.IsRead = false
	return nil
}

// whyRejected explains an insert that matched no writable room.
func (r *postgresMessageRepository) whyRejected(ctx context.Context, roomID string) error {
	var closed, deleted bool
	err := r.db.QueryRowContext(ctx,
		`SELECT is_closed, is_deleted FROM chat_rooms WHERE room_id = $1`, roomID,
	).Scan(&closed, &deleted)
	switch {
	case err != nil:
		return mapPgError(err)
	case deleted:
		return repository.ErrRoomDeleted
	case closed:
		return repository.ErrRoomClosed
	}
	return fmt.Errorf("room %s rejected the write", roomID)
}

const messageColumns = `m.id, r.room_id, m.sender_id, m.content, m.is_media, m.is_read, m.created_at`

func scanMessage(row rowScanner) (*entity.Message, error) {
	m := &entity.Message{}
	if err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.IsMedia, &m.IsRead, &m.CreatedAt); err != nil {
		return nil, mapPgError(err)
	}
	return m, nil
}

func (r *postgresMessageRepository) ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_messages m JOIN chat_rooms r ON r.id = m.room_id WHERE r.room_id = $1`,
		roomID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	// LIMIT NULL is the whole set.
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM chat_messages m JOIN chat_rooms r ON r.id = m.room_id
		 WHERE r.room_id = $1
		 ORDER BY m.created_at ASC, m.id ASC
		 LIMIT $2 OFFSET $3`,
		roomID, lim, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*entity.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, m)
	}
	return messages, total, rows.Err()
}

func (r *postgresMessageRepository) LastInRoom(ctx context.Context, roomID string) (*entity.Message, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM chat_messages m JOIN chat_rooms r ON r.id = m.room_id
		 WHERE r.room_id = $1
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT 1`,
		roomID)
	return scanMessage(row)
}

func (r *postgresMessageRepository) CountUnread(ctx context.Context, roomID string, senders []string) (int, error) {
	if len(senders) == 0 {
		return 0, nil
	}
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_messages m
		 JOIN chat_rooms r ON r.id = m.room_id
		 WHERE r.room_id = $1 AND NOT m.is_read AND m.sender_id = ANY($2)`,
		roomID, pq.Array(senders)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (r *postgresMessageRepository) MarkAllRead(ctx context.Context, roomID string, senders []string) (int, error) {
	if len(senders) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_messages m SET is_read = TRUE
		 FROM chat_rooms r
		 WHERE r.id = m.room_id
		   AND r.room_id = $1 AND NOT m.is_read AND m.sender_id = ANY($2)`,
		roomID, pq.Array(senders))
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
