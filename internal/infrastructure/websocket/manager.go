package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"oysloe/pkg/logger"
)

var ErrShuttingDown = errors.New("websocket manager is shutting down")

// Subscriber is one live connection as seen by the broadcast groups.
type Subscriber interface {
	ID() string
	// Deliver must not block. Returning false marks the subscriber as unable to keep up.
	Deliver(payload []byte) bool
	Close(code int, text string)
}

// Envelope is what travels through the channel layer.
type Envelope struct {
	Group   string          `json:"group"`
	Except  string          `json:"except,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Layer carries envelopes between processes. A nil Layer keeps delivery in-process.
type Layer interface {
	Publish(ctx context.Context, env Envelope) error
	Run(ctx context.Context, deliver func(Envelope))
}

// Manager owns the group registry: group name to the subscribers that joined it.
type Manager struct {
	layer Layer

	mutex       sync.RWMutex
	groups      map[string]map[Subscriber]struct{}
	memberships map[Subscriber]map[string]struct{}
	closing     bool
	active      sync.WaitGroup
}

func NewManager(layer Layer) *Manager {
	return &Manager{
		layer:       layer,
		groups:      make(map[string]map[Subscriber]struct{}),
		memberships: make(map[Subscriber]map[string]struct{}),
	}
}

// Start begins consuming the channel layer. It is a no-op without one.
func (m *Manager) Start(ctx context.Context) {
	if m.layer == nil {
		return
	}
	go m.layer.Run(ctx, m.deliverLocal)
}

func (m *Manager) Register(sub Subscriber) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closing {
		return ErrShuttingDown
	}
	if _, ok := m.memberships[sub]; ok {
		return nil
	}
	m.memberships[sub] = make(map[string]struct{})
	m.active.Add(1)
	logger.Debug("Subscriber registered: %s", sub.ID())
	return nil
}

// Join adds a registered subscriber to group.
func (m *Manager) Join(sub Subscriber, group string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	joined, ok := m.memberships[sub]
	if !ok {
		return
	}
	members, ok := m.groups[group]
	if !ok {
		members = make(map[Subscriber]struct{})
		m.groups[group] = members
	}
	members[sub] = struct{}{}
	joined[group] = struct{}{}
}

func (m *Manager) Leave(sub Subscriber, group string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.leaveLocked(sub, group)
}

func (m *Manager) leaveLocked(sub Subscriber, group string) {
	if members, ok := m.groups[group]; ok {
		delete(members, sub)
		if len(members) == 0 {
			delete(m.groups, group)
		}
	}
	if joined, ok := m.memberships[sub]; ok {
		delete(joined, group)
	}
}

// Unregister removes sub from every group it joined. Safe to call more than once.
func (m *Manager) Unregister(sub Subscriber) {
	m.mutex.Lock()
	joined, ok := m.memberships[sub]
	if !ok {
		m.mutex.Unlock()
		return
	}
	for group := range joined {
		m.leaveLocked(sub, group)
	}
	delete(m.memberships, sub)
	m.mutex.Unlock()

	m.active.Done()
	logger.Debug("Subscriber unregistered: %s", sub.ID())
}

// Publish sends v to every subscriber of group except the one whose ID is except.
func (m *Manager) Publish(ctx context.Context, group, except string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	env := Envelope{Group: group, Except: except, Payload: payload}
	if m.layer == nil {
		m.deliverLocal(env)
		return nil
	}
	return m.layer.Publish(ctx, env)
}

func (m *Manager) deliverLocal(env Envelope) {
	var slow []Subscriber

	m.mutex.RLock()
	for sub := range m.groups[env.Group] {
		if sub.ID() == env.Except {
			continue
		}
		if !sub.Deliver(env.Payload) {
			slow = append(slow, sub)
		}
	}
	m.mutex.RUnlock()

	// A subscriber that cannot keep up is dropped so it never holds back the others.
	for _, sub := range slow {
		logger.Warn("Dropping slow subscriber %s from %s", sub.ID(), env.Group)
		m.Unregister(sub)
		sub.Close(websocket.CloseTryAgainLater, "too slow")
	}
}

// GroupSize reports how many local subscribers joined group.
func (m *Manager) GroupSize(group string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.groups[group])
}

func (m *Manager) ActiveCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.memberships)
}

// Shutdown refuses new subscribers, closes every live one with 1001 and waits for
// them to unregister or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mutex.Lock()
	m.closing = true
	subs := make([]Subscriber, 0, len(m.memberships))
	for sub := range m.memberships {
		subs = append(subs, sub)
	}
	m.mutex.Unlock()

	for _, sub := range subs {
		sub.Close(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		m.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
