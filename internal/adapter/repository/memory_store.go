package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"oysloe/internal/domain/entity"
	"oysloe/internal/domain/repository"
)

// MemoryStore is the in-process backend used when DATABASE_URL is unset and in tests.
// It enforces the same uniqueness rules as the Postgres schema.
type MemoryStore struct {
	mu sync.RWMutex

	nextRoomID    int64
	nextMessageID int64
	nextDeviceID  int64
	nextAlertID   int64
	lastStamp     time.Time

	rooms    map[string]*entity.ChatRoom
	names    map[string]string
	pairs    map[string]string
	messages map[string][]*entity.Message
	users    map[string]*entity.User
	products map[string]*entity.Product
	devices  map[string]*entity.FCMDevice
	alerts   map[int64]*entity.Alert
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[string]*entity.ChatRoom),
		names:    make(map[string]string),
		pairs:    make(map[string]string),
		messages: make(map[string][]*entity.Message),
		users:    make(map[string]*entity.User),
		products: make(map[string]*entity.Product),
		devices:  make(map[string]*entity.FCMDevice),
		alerts:   make(map[int64]*entity.Alert),
	}
}

// PutUser seeds or replaces a user record.
func (s *MemoryStore) PutUser(u *entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

func (s *MemoryStore) PutProduct(p *entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.products[p.ID] = &cp
}

func (s *MemoryStore) Rooms() repository.ChatRoomRepository   { return memoryRooms{s} }
func (s *MemoryStore) Messages() repository.MessageRepository { return memoryMessages{s} }
func (s *MemoryStore) Users() repository.UserRepository       { return memoryUsers{s} }
func (s *MemoryStore) Products() repository.ProductRepository { return memoryProducts{s} }
func (s *MemoryStore) Devices() repository.DeviceRepository   { return memoryDevices{s} }
func (s *MemoryStore) Alerts() repository.AlertRepository     { return memoryAlerts{s} }

// stamp returns a strictly increasing creation time. s.mu must be held.
func (s *MemoryStore) stamp() time.Time {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = now
	return now
}

func cloneRoom(r *entity.ChatRoom) *entity.ChatRoom {
	cp := *r
	cp.Members = append([]string(nil), r.Members...)
	return &cp
}

func cloneMessage(m *entity.Message) *entity.Message {
	cp := *m
	return &cp
}

func window(n, limit, offset int) (int, int) {
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}

type memoryRooms struct{ s *MemoryStore }

func (r memoryRooms) CreatePrivateRoom(ctx context.Context, room *entity.ChatRoom) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.RoomID]; ok {
		return repository.ErrDuplicateRoom
	}
	if _, ok := s.names[room.Name]; ok {
		return repository.ErrDuplicateRoom
	}
	if room.PairKey != "" && !room.IsGroup {
		if _, ok := s.pairs[room.PairKey]; ok {
			return repository.ErrDuplicatePair
		}
	}

	s.nextRoomID++
	room.ID = s.nextRoomID
	room.CreatedAt = s.stamp()
	stored := cloneRoom(room)
	sort.Strings(stored.Members)

	s.rooms[room.RoomID] = stored
	s.names[room.Name] = room.RoomID
	if room.PairKey != "" && !room.IsGroup {
		s.pairs[room.PairKey] = room.RoomID
	}
	return nil
}

func (r memoryRooms) FindPrivateRoom(ctx context.Context, key entity.PairKey) (*entity.ChatRoom, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	roomID, ok := s.pairs[key.String()]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRoom(s.rooms[roomID]), nil
}

func (r memoryRooms) GetByRoomID(ctx context.Context, roomID string) (*entity.ChatRoom, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRoom(room), nil
}

func (r memoryRooms) ListByMember(ctx context.Context, userID string) ([]*entity.ChatRoom, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.ChatRoom
	for _, room := range s.rooms {
		if !room.IsDeleted && room.HasMember(userID) {
			out = append(out, cloneRoom(room))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memoryRooms) MarkClosed(ctx context.Context, roomID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return repository.ErrNotFound
	}
	room.IsClosed = true
	return nil
}

func (r memoryRooms) MarkDeleted(ctx context.Context, roomID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return repository.ErrNotFound
	}
	room.IsDeleted = true
	if s.pairs[room.PairKey] == roomID {
		delete(s.pairs, room.PairKey)
	}
	return nil
}

type memoryMessages struct{ s *MemoryStore }

func (r memoryMessages) Create(ctx context.Context, message *entity.Message) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[message.RoomID]
	switch {
	case !ok:
		return repository.ErrNotFound
	case room.IsDeleted:
		return repository.ErrRoomDeleted
	case room.IsClosed:
		return repository.ErrRoomClosed
	}

	now := s.stamp()
	s.nextMessageID++
	message.ID = s.nextMessageID
	message.CreatedAt = now
	message.IsRead = false
	s.messages[message.RoomID] = append(s.messages[message.RoomID], cloneMessage(message))
	return nil
}

func (r memoryMessages) ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, int64, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[roomID]
	start, end := window(len(all), limit, offset)
	out := make([]*entity.Message, 0, end-start)
	for _, m := range all[start:end] {
		out = append(out, cloneMessage(m))
	}
	return out, int64(len(all)), nil
}

func (r memoryMessages) LastInRoom(ctx context.Context, roomID string) (*entity.Message, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[roomID]
	if len(all) == 0 {
		return nil, repository.ErrNotFound
	}
	return cloneMessage(all[len(all)-1]), nil
}

func senderSet(senders []string) map[string]bool {
	set := make(map[string]bool, len(senders))
	for _, id := range senders {
		set[id] = true
	}
	return set
}

func (r memoryMessages) CountUnread(ctx context.Context, roomID string, senders []string) (int, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	from := senderSet(senders)
	n := 0
	for _, m := range s.messages[roomID] {
		if !m.IsRead && from[m.SenderID] {
			n++
		}
	}
	return n, nil
}

func (r memoryMessages) MarkAllRead(ctx context.Context, roomID string, senders []string) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	from := senderSet(senders)
	n := 0
	for _, m := range s.messages[roomID] {
		if !m.IsRead && from[m.SenderID] {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memoryUsers) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memoryUsers) GetByIDs(ctx context.Context, ids []string) ([]*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entity.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memoryProducts struct{ s *MemoryStore }

func (r memoryProducts) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r memoryProducts) GetByPID(ctx context.Context, pid string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.products {
		if p.PID == pid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memoryDevices struct{ s *MemoryStore }

func (r memoryDevices) Upsert(ctx context.Context, userID, token string) (*entity.FCMDevice, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	d, ok := s.devices[token]
	if !ok {
		s.nextDeviceID++
		d = &entity.FCMDevice{ID: s.nextDeviceID, Token: token, CreatedAt: now}
		s.devices[token] = d
	}
	d.UserID = userID
	d.UpdatedAt = now
	cp := *d
	return &cp, nil
}

func (r memoryDevices) ListByUser(ctx context.Context, userID string) ([]*entity.FCMDevice, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.FCMDevice
	for _, d := range s.devices {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memoryDevices) DeleteOthers(ctx context.Context, userID, keepToken string) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for token, d := range s.devices {
		if d.UserID == userID && token != keepToken {
			delete(s.devices, token)
			n++
		}
	}
	return n, nil
}

func (r memoryDevices) DeleteToken(ctx context.Context, userID, token string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[token]
	if !ok || d.UserID != userID {
		return repository.ErrNotFound
	}
	delete(s.devices, token)
	return nil
}

func (r memoryDevices) DeleteTokens(ctx context.Context, tokens []string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tokens {
		delete(s.devices, t)
	}
	return nil
}

type memoryAlerts struct{ s *MemoryStore }

func (r memoryAlerts) Create(ctx context.Context, alert *entity.Alert) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAlertID++
	alert.ID = s.nextAlertID
	alert.CreatedAt = time.Now().UTC()
	cp := *alert
	s.alerts[alert.ID] = &cp
	return nil
}

func (r memoryAlerts) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Alert, int64, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*entity.Alert
	for _, a := range s.alerts {
		if a.UserID == userID {
			cp := *a
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	start, end := window(len(all), limit, offset)
	return all[start:end], int64(len(all)), nil
}

func (r memoryAlerts) MarkRead(ctx context.Context, userID string, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok || a.UserID != userID {
		return repository.ErrNotFound
	}
	a.IsRead = true
	return nil
}

func (r memoryAlerts) MarkAllRead(ctx context.Context, userID string) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, a := range s.alerts {
		if a.UserID == userID && !a.IsRead {
			a.IsRead = true
			n++
		}
	}
	return n, nil
}

func (r memoryAlerts) Delete(ctx context.Context, userID string, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok || a.UserID != userID {
		return repository.ErrNotFound
	}
	delete(s.alerts, id)
	return nil
}
