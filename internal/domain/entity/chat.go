package entity

import (
	"sort"
	"strings"
	"time"
)

// ChatRoom is a persistent chat channel. Private rooms have exactly two members.
type ChatRoom struct {
	ID        int64     `json:"-"`
	RoomID    string    `json:"room_id"`
	Name      string    `json:"name"`
	IsGroup   bool      `json:"is_group"`
	IsClosed  bool      `json:"is_closed"`
	IsDeleted bool      `json:"-"`
	ProductID string    `json:"product_id,omitempty"`
	PairKey   string    `json:"-"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *ChatRoom) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// OtherMembers returns every member except userID.
func (r *ChatRoom) OtherMembers(userID string) []string {
	out := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		if m != userID {
			out = append(out, m)
		}
	}
	return out
}

// PairKey identifies a private room for uniqueness. With scopeProduct set, the
// product id (possibly empty) is part of the key, so "no product" is its own slot.
type PairKey struct {
	UserA        string
	UserB        string
	ProductID    string
	ScopeProduct bool
}

// NewPairKey orders the two user ids so the key is the same for either caller.
func NewPairKey(a, b, productID string, scopeProduct bool) PairKey {
	pair := []string{a, b}
	sort.Strings(pair)
	if !scopeProduct {
		productID = ""
	}
	return PairKey{UserA: pair[0], UserB: pair[1], ProductID: productID, ScopeProduct: scopeProduct}
}

func (k PairKey) String() string {
	var sb strings.Builder
	sb.WriteString(k.UserA)
	sb.WriteByte('|')
	sb.WriteString(k.UserB)
	if k.ScopeProduct {
		sb.WriteString("|p:")
		sb.WriteString(k.ProductID)
	}
	return sb.String()
}

// RoomSummary is a room as shown in a user's room list.
type RoomSummary struct {
	Room         *ChatRoom    `json:"room"`
	Participants []*UserInfo  `json:"participants"`
	LastMessage  *Message     `json:"last_message,omitempty"`
	UnreadCount  int          `json:"unread_count"`
	Product      *ProductInfo `json:"product,omitempty"`
}

func (s *RoomSummary) LastActivity() time.Time {
	if s.LastMessage != nil {
		return s.LastMessage.CreatedAt
	}
	return s.Room.CreatedAt
}
