package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	id       string
	capacity int

	mu        sync.Mutex
	frames    [][]byte
	closeCode int
}

func newFake(id string, capacity int) *fakeSubscriber {
	return &fakeSubscriber{id: id, capacity: capacity}
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Deliver(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) >= f.capacity {
		return false
	}
	f.frames = append(f.frames, payload)
	return true
}

func (f *fakeSubscriber) Close(code int, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCode = code
}

func (f *fakeSubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeSubscriber) closedWith() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCode
}

func joinAll(t *testing.T, m *Manager, group string, subs ...*fakeSubscriber) {
	t.Helper()
	for _, s := range subs {
		require.NoError(t, m.Register(s))
		m.Join(s, group)
	}
}

func TestPublishSkipsOriginAndOtherGroups(t *testing.T) {
	m := NewManager(nil)
	a, b, outsider := newFake("a", 10), newFake("b", 10), newFake("c", 10)
	joinAll(t, m, RoomGroup("r1"), a, b)
	joinAll(t, m, RoomGroup("r2"), outsider)

	require.NoError(t, m.Publish(context.Background(), RoomGroup("r1"), "a", NewMessage(TypeChatMessage, "r1", "hi")))

	assert.Equal(t, 0, a.count())
	assert.Equal(t, 1, b.count())
	assert.Equal(t, 0, outsider.count())

	var frame WSMessage
	require.NoError(t, json.Unmarshal(b.frames[0], &frame))
	assert.Equal(t, TypeChatMessage, frame.Type)
	assert.Equal(t, "r1", frame.RoomID)
}

func TestSlowSubscriberIsDroppedWithoutAffectingOthers(t *testing.T) {
	m := NewManager(nil)
	slow, healthy := newFake("slow", 1), newFake("healthy", 10)
	joinAll(t, m, RoomGroup("r1"), slow, healthy)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Publish(context.Background(), RoomGroup("r1"), "", i))
	}

	assert.Equal(t, 3, healthy.count())
	assert.Equal(t, 1, slow.count())
	assert.Equal(t, websocket.CloseTryAgainLater, slow.closedWith())
	assert.Equal(t, 1, m.GroupSize(RoomGroup("r1")))
}

func TestUnregisterLeavesEveryGroup(t *testing.T) {
	m := NewManager(nil)
	s := newFake("s", 10)
	require.NoError(t, m.Register(s))
	m.Join(s, RoomGroup("r1"))
	m.Join(s, UserGroup("u1"))

	m.Unregister(s)
	m.Unregister(s)

	assert.Equal(t, 0, m.GroupSize(RoomGroup("r1")))
	assert.Equal(t, 0, m.GroupSize(UserGroup("u1")))
	assert.Equal(t, 0, m.ActiveCount())
}

func TestJoinRequiresRegistration(t *testing.T) {
	m := NewManager(nil)
	m.Join(newFake("ghost", 1), RoomGroup("r1"))
	assert.Equal(t, 0, m.GroupSize(RoomGroup("r1")))
}

func TestConcurrentJoinPublishLeave(t *testing.T) {
	m := NewManager(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := newFake(fmt.Sprintf("conn-%d", i), 1000)
			if err := m.Register(s); err != nil {
				return
			}
			m.Join(s, RoomGroup("busy"))
			m.Publish(context.Background(), RoomGroup("busy"), "", i)
			m.Unregister(s)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, m.GroupSize(RoomGroup("busy")))
}

func TestShutdownClosesSubscribersAndRefusesNewOnes(t *testing.T) {
	m := NewManager(nil)
	s := newFake("s", 10)
	require.NoError(t, m.Register(s))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go func() {
		// Unregister once the close arrives, as ReadPump does.
		for s.closedWith() == 0 {
			time.Sleep(time.Millisecond)
		}
		m.Unregister(s)
	}()

	require.NoError(t, m.Shutdown(ctx))
	assert.Equal(t, websocket.CloseGoingAway, s.closedWith())
	assert.ErrorIs(t, m.Register(newFake("late", 1)), ErrShuttingDown)
}

func TestRedisLayerDeliversAcrossManagers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	receiverLayer := NewRedisLayer(client, "oysloe:ws:")
	receiver := NewManager(receiverLayer)
	receiver.Start(ctx)
	sender := NewManager(NewRedisLayer(client, "oysloe:ws:"))

	select {
	case <-receiverLayer.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("redis layer never subscribed")
	}

	s := newFake("remote", 10)
	require.NoError(t, receiver.Register(s))
	receiver.Join(s, RoomGroup("r1"))

	require.NoError(t, sender.Publish(ctx, RoomGroup("r1"), "", NewMessage(TypeChatMessage, "r1", "hello")))

	assert.Eventually(t, func() bool { return s.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}
