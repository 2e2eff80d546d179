package usecase

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"oysloe/internal/domain/entity"
	"oysloe/internal/domain/repository"
	"oysloe/internal/infrastructure/ratelimit"
	ws "oysloe/internal/infrastructure/websocket"
	apperrors "oysloe/pkg/errors"
	"oysloe/pkg/logger"
)

const roomLockStripes = 64

// Broadcaster publishes frames to live websocket groups.
type Broadcaster interface {
	Publish(ctx context.Context, group, except string, v interface{}) error
}

type ChatOptions struct {
	// ScopeProduct makes the product part of a private room's identity.
	ScopeProduct   bool
	CreateAttempts int
}

type ChatUseCase struct {
	roomRepo    repository.ChatRoomRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
	broadcaster Broadcaster
	hooks       *EventHooks
	rateLimiter *ratelimit.RateLimiter

	scopeProduct   bool
	createAttempts int
	newSuffix      func() string

	// Striped so persist and publish stay in the same order per room.
	roomLocks [roomLockStripes]sync.Mutex
}

func NewChatUseCase(
	roomRepo repository.ChatRoomRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	broadcaster Broadcaster,
	hooks *EventHooks,
	rateLimiter *ratelimit.RateLimiter,
	opts ChatOptions,
) *ChatUseCase {
	if opts.CreateAttempts <= 0 {
		opts.CreateAttempts = 2
	}
	return &ChatUseCase{
		roomRepo:       roomRepo,
		messageRepo:    messageRepo,
		userRepo:       userRepo,
		productRepo:    productRepo,
		broadcaster:    broadcaster,
		hooks:          hooks,
		rateLimiter:    rateLimiter,
		scopeProduct:   opts.ScopeProduct,
		createAttempts: opts.CreateAttempts,
		newSuffix:      func() string { return uuid.NewString()[:8] },
	}
}

// PrivateRoomInput names the other user by id or by email.
type PrivateRoomInput struct {
	UserID      string
	OtherUserID string
	OtherEmail  string
	ProductID   string
}

type RoomResolution struct {
	Room         *entity.ChatRoom    `json:"-"`
	RoomID       string              `json:"room_id"`
	Name         string              `json:"name"`
	Created      bool                `json:"created"`
	Product      *entity.ProductInfo `json:"product,omitempty"`
	ProductError string              `json:"product_error,omitempty"`
}

// FindOrCreatePrivateRoom returns the live private room for the pair, creating it
// if needed. The pair-key constraint decides concurrent creations; the lookup is a
// fast path only.
func (uc *ChatUseCase) FindOrCreatePrivateRoom(ctx context.Context, input PrivateRoomInput) (*RoomResolution, error) {
	if input.UserID == "" {
		return nil, apperrors.Unauthorized("authentication required", nil)
	}
	other, err := uc.resolveOther(ctx, input)
	if err != nil {
		return nil, err
	}
	if other.ID == input.UserID {
		return nil, apperrors.InvalidRequest("cannot open a chat with yourself", nil)
	}

	res := &RoomResolution{}
	var productID string
	if input.ProductID != "" {
		product, err := uc.lookupProduct(ctx, input.ProductID)
		switch {
		case err == nil:
			productID = product.ID
			res.Product = product.Info()
		case errors.Is(err, repository.ErrNotFound):
			// Product context is optional: the room is still resolved without it.
			logger.Warn("Product %s not found for chat between %s and %s", input.ProductID, input.UserID, other.ID)
			res.ProductError = "product not found"
		default:
			// Resolving without the product here could pick the wrong room.
			logger.Error("Product lookup for %s failed: %v", input.ProductID, err)
			return nil, apperrors.Internal("failed to look up product", err)
		}
	}

	key := entity.NewPairKey(input.UserID, other.ID, productID, uc.scopeProduct)

	room, err := uc.roomRepo.FindPrivateRoom(ctx, key)
	switch {
	case err == nil:
		return res.with(room, false), nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Internal("failed to look up room", err)
	}

	if !uc.rateLimiter.Allow(input.UserID, ratelimit.ActionCreateRoom) {
		return nil, apperrors.TooManyRequests("too many new conversations, try again shortly")
	}

	var lastErr error
	for attempt := 0; attempt < uc.createAttempts; attempt++ {
		candidate := uc.newRoom(key, productID)
		err := uc.roomRepo.CreatePrivateRoom(ctx, candidate)
		switch {
		case err == nil:
			logger.Info("Created private room %s for %s", candidate.RoomID, key.String())
			return res.with(candidate, true), nil

		case errors.Is(err, repository.ErrDuplicatePair):
			// Lost the race to a concurrent creator: the winner's room is the answer.
			winner, findErr := uc.roomRepo.FindPrivateRoom(ctx, key)
			if findErr == nil {
				return res.with(winner, false), nil
			}
			lastErr = err

		case errors.Is(err, repository.ErrDuplicateRoom):
			lastErr = err

		default:
			return nil, apperrors.Internal("failed to create room", err)
		}
		logger.Debug("Room creation attempt %d for %s conflicted: %v", attempt+1, key.String(), lastErr)
	}

	return nil, apperrors.TransientConflict("room creation kept conflicting, retry the request", lastErr)
}

func (r *RoomResolution) with(room *entity.ChatRoom, created bool) *RoomResolution {
	r.Room = room
	r.RoomID = room.RoomID
	r.Name = room.Name
	r.Created = created
	return r
}

func (uc *ChatUseCase) resolveOther(ctx context.Context, input PrivateRoomInput) (*entity.User, error) {
	var (
		user *entity.User
		err  error
	)
	switch {
	case input.OtherUserID != "":
		user, err = uc.userRepo.GetByID(ctx, input.OtherUserID)
	case input.OtherEmail != "":
		user, err = uc.userRepo.GetByEmail(ctx, strings.TrimSpace(input.OtherEmail))
	default:
		return nil, apperrors.InvalidRequest("user_id or email is required", nil)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user", err)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to look up user", err)
	}
	return user, nil
}

// lookupProduct accepts either the internal id or the public pid.
func (uc *ChatUseCase) lookupProduct(ctx context.Context, id string) (*entity.Product, error) {
	product, err := uc.productRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return uc.productRepo.GetByPID(ctx, id)
	}
	return product, err
}

func (uc *ChatUseCase) newRoom(key entity.PairKey, productID string) *entity.ChatRoom {
	roomID := fmt.Sprintf("%s_%s_%s", key.UserA, key.UserB, uc.newSuffix())
	return &entity.ChatRoom{
		RoomID:    roomID,
		Name:      roomID,
		ProductID: productID,
		PairKey:   key.String(),
		Members:   []string{key.UserA, key.UserB},
	}
}

// ResolveRoomWithEmail backs the email-addressed room socket.
func (uc *ChatUseCase) ResolveRoomWithEmail(ctx context.Context, userID, email string) (*entity.ChatRoom, error) {
	res, err := uc.FindOrCreatePrivateRoom(ctx, PrivateRoomInput{UserID: userID, OtherEmail: email})
	if err != nil {
		return nil, err
	}
	return res.Room, nil
}

// loadRoom tells a deleted room apart from one that never existed.
func (uc *ChatUseCase) loadRoom(ctx context.Context, roomID string) (*entity.ChatRoom, error) {
	room, err := uc.roomRepo.GetByRoomID(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("room", err)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load room", err)
	}
	if room.IsDeleted {
		return nil, apperrors.RoomDeleted(roomID)
	}
	return room, nil
}

// GetRoom returns a live room the user belongs to. Closed rooms are readable.
func (uc *ChatUseCase) GetRoom(ctx context.Context, roomID, userID string) (*entity.ChatRoom, error) {
	room, err := uc.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(userID) {
		return nil, apperrors.Forbidden("you are not a member of this room", nil)
	}
	return room, nil
}

// SendMessage persists first, then publishes to the room group, then fires the
// message hooks. Only persistence failures reach the sender.
func (uc *ChatUseCase) SendMessage(ctx context.Context, roomID, senderID, content string, isMedia bool, originID string) (*entity.Message, error) {
	if strings.TrimSpace(content) == "" && !isMedia {
		return nil, apperrors.InvalidRequest("message content is required", nil)
	}
	if !uc.rateLimiter.Allow(senderID, ratelimit.ActionSendMessage) {
		return nil, apperrors.TooManyRequests("sending too fast, slow down")
	}

	room, err := uc.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(senderID) {
		return nil, apperrors.NotAMember(roomID)
	}
	if room.IsClosed {
		return nil, apperrors.RoomClosed(roomID)
	}

	message := &entity.Message{
		RoomID:   roomID,
		SenderID: senderID,
		Content:  content,
		IsMedia:  isMedia,
	}

	lock := uc.roomLock(roomID)
	lock.Lock()
	if err := uc.messageRepo.Create(ctx, message); err != nil {
		lock.Unlock()
		// The snapshot above can predate a concurrent close or delete.
		switch {
		case errors.Is(err, repository.ErrRoomClosed):
			return nil, apperrors.RoomClosed(roomID)
		case errors.Is(err, repository.ErrRoomDeleted):
			return nil, apperrors.RoomDeleted(roomID)
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("room", err)
		}
		return nil, apperrors.Internal("failed to store message", err)
	}
	uc.publish(ctx, ws.RoomGroup(roomID), originID, ws.NewMessage(ws.TypeChatMessage, roomID, message))
	lock.Unlock()

	uc.nudgeMembers(ctx, room)
	uc.hooks.emitMessageCreated(ctx, MessageCreatedEvent{Message: message, Room: room})
	return message, nil
}

// History is ascending by creation. A zero limit returns the whole room.
func (uc *ChatUseCase) History(ctx context.Context, roomID, userID string, limit, offset int) ([]*entity.Message, int64, error) {
	if _, err := uc.GetRoom(ctx, roomID, userID); err != nil {
		return nil, 0, err
	}
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	messages, total, err := uc.messageRepo.ListByRoom(ctx, roomID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to load messages", err)
	}
	return messages, total, nil
}

// MarkRoomRead flips every message the user would count as unread. The flag is
// shared by the room, not kept per member.
func (uc *ChatUseCase) MarkRoomRead(ctx context.Context, roomID, userID string) (int, error) {
	room, err := uc.GetRoom(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}
	senders, err := uc.unreadSenders(ctx, room, userID)
	if err != nil {
		return 0, err
	}
	n, err := uc.messageRepo.MarkAllRead(ctx, roomID, senders)
	if err != nil {
		return 0, apperrors.Internal("failed to mark messages read", err)
	}
	if n > 0 {
		uc.nudgeMembers(ctx, room)
	}
	return n, nil
}

func (uc *ChatUseCase) UnreadCount(ctx context.Context, roomID, userID string) (int, error) {
	room, err := uc.GetRoom(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}
	return uc.countUnread(ctx, room, userID)
}

// TotalUnread sums the user's unread count over every live room.
func (uc *ChatUseCase) TotalUnread(ctx context.Context, userID string) (int, error) {
	rooms, err := uc.roomRepo.ListByMember(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal("failed to list rooms", err)
	}
	total := 0
	for _, room := range rooms {
		n, err := uc.countUnread(ctx, room, userID)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// unreadSenders lists the other members whose messages count as unread for
// userID: the ones the user directory reports active.
func (uc *ChatUseCase) unreadSenders(ctx context.Context, room *entity.ChatRoom, userID string) ([]string, error) {
	others, err := uc.userRepo.GetByIDs(ctx, room.OtherMembers(userID))
	if err != nil {
		return nil, apperrors.Internal("failed to load room members", err)
	}
	return activeIDs(others), nil
}

func activeIDs(users []*entity.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if u.IsActive {
			ids = append(ids, u.ID)
		}
	}
	return ids
}

func (uc *ChatUseCase) countUnread(ctx context.Context, room *entity.ChatRoom, userID string) (int, error) {
	senders, err := uc.unreadSenders(ctx, room, userID)
	if err != nil {
		return 0, err
	}
	n, err := uc.messageRepo.CountUnread(ctx, room.RoomID, senders)
	if err != nil {
		return 0, apperrors.Internal("failed to count unread messages", err)
	}
	return n, nil
}

// ListRooms returns the user's live rooms, most recently active first.
func (uc *ChatUseCase) ListRooms(ctx context.Context, userID string) ([]*entity.RoomSummary, error) {
	rooms, err := uc.roomRepo.ListByMember(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list rooms", err)
	}

	summaries := make([]*entity.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summary, err := uc.summarize(ctx, room, userID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastActivity().After(summaries[j].LastActivity())
	})
	return summaries, nil
}

func (uc *ChatUseCase) summarize(ctx context.Context, room *entity.ChatRoom, userID string) (*entity.RoomSummary, error) {
	summary := &entity.RoomSummary{Room: room, Participants: []*entity.UserInfo{}}

	others, err := uc.userRepo.GetByIDs(ctx, room.OtherMembers(userID))
	if err != nil {
		return nil, apperrors.Internal("failed to load participants", err)
	}
	for _, u := range others {
		summary.Participants = append(summary.Participants, u.Info())
	}

	last, err := uc.messageRepo.LastInRoom(ctx, room.RoomID)
	switch {
	case err == nil:
		summary.LastMessage = last
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Internal("failed to load last message", err)
	}

	summary.UnreadCount, err = uc.messageRepo.CountUnread(ctx, room.RoomID, activeIDs(others))
	if err != nil {
		return nil, apperrors.Internal("failed to count unread messages", err)
	}

	if room.ProductID != "" {
		if product, err := uc.productRepo.GetByID(ctx, room.ProductID); err == nil {
			summary.Product = product.Info()
		}
	}
	return summary, nil
}

// CloseRoom makes the room read-only. Closing twice is not an error.
func (uc *ChatUseCase) CloseRoom(ctx context.Context, roomID, userID string) (*entity.ChatRoom, error) {
	room, err := uc.GetRoom(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !room.IsClosed {
		if err := uc.roomRepo.MarkClosed(ctx, roomID); err != nil {
			return nil, apperrors.Internal("failed to close room", err)
		}
		room.IsClosed = true
		uc.publish(ctx, ws.RoomGroup(roomID), "", ws.NewMessage(ws.TypeRoomClosed, roomID, nil))
		uc.nudgeMembers(ctx, room)
	}
	return room, nil
}

// DeleteRoom soft-deletes the room. It disappears from every read path.
func (uc *ChatUseCase) DeleteRoom(ctx context.Context, roomID, userID string) error {
	room, err := uc.GetRoom(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if err := uc.roomRepo.MarkDeleted(ctx, roomID); err != nil {
		return apperrors.Internal("failed to delete room", err)
	}
	uc.publish(ctx, ws.RoomGroup(roomID), "", ws.NewMessage(ws.TypeRoomDeleted, roomID, nil))
	uc.nudgeMembers(ctx, room)
	return nil
}

// nudgeMembers pokes each member's list and unread sessions to recompute.
func (uc *ChatUseCase) nudgeMembers(ctx context.Context, room *entity.ChatRoom) {
	frame := ws.NewMessage(ws.TypeRoomActivity, room.RoomID, nil)
	for _, member := range room.Members {
		uc.publish(ctx, ws.UserGroup(member), "", frame)
	}
}

// publish is best effort: a broken link never undoes a stored write.
func (uc *ChatUseCase) publish(ctx context.Context, group, except string, frame ws.WSMessage) {
	if uc.broadcaster == nil {
		return
	}
	if err := uc.broadcaster.Publish(ctx, group, except, frame); err != nil {
		logger.Warn("Failed to publish %s to %s: %v", frame.Type, group, err)
	}
}

func (uc *ChatUseCase) roomLock(roomID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return &uc.roomLocks[h.Sum32()%roomLockStripes]
}
