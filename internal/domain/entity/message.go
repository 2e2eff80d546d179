package entity

import "time"

// Message is immutable after creation except for the false to true IsRead transition.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	IsMedia   bool      `json:"is_media"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
