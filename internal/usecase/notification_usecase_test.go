package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memrepo "oysloe/internal/adapter/repository"
	"oysloe/internal/domain/entity"
	"oysloe/internal/domain/repository"
	"oysloe/internal/infrastructure/queue"
	"oysloe/internal/infrastructure/worker"
	apperrors "oysloe/pkg/errors"
)

type mockPush struct {
	mu      sync.Mutex
	batches [][]entity.PushMessage
	invalid map[string]bool
	err     error
	// partial returns the result alongside err, as a multi-chunk send does.
	partial bool
}

func (m *mockPush) Send(ctx context.Context, batch []entity.PushMessage) (*entity.PushResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	if m.err != nil && !m.partial {
		return nil, m.err
	}
	res := &entity.PushResult{}
	for _, msg := range batch {
		if m.invalid[msg.Token] {
			res.Failed++
			res.InvalidTokens = append(res.InvalidTokens, msg.Token)
			continue
		}
		res.Sent++
	}
	return res, m.err
}

func (m *mockPush) calls() [][]entity.PushMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]entity.PushMessage(nil), m.batches...)
}

func (m *mockPush) tokens() []string {
	var out []string
	for _, batch := range m.calls() {
		for _, msg := range batch {
			out = append(out, msg.Token)
		}
	}
	return out
}

type mockSMS struct {
	mu         sync.Mutex
	messages   []string
	recipients [][]string
	err        error
}

func (m *mockSMS) Send(ctx context.Context, message string, recipients []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	m.recipients = append(m.recipients, recipients)
	return m.err
}

type mockEmail struct {
	mu  sync.Mutex
	to  []string
	err error
}

func (m *mockEmail) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	return m.err
}

// flakyDevices fails device resolution for one user.
type flakyDevices struct {
	repository.DeviceRepository
	failFor string
}

func (d flakyDevices) ListByUser(ctx context.Context, userID string) ([]*entity.FCMDevice, error) {
	if userID == d.failFor {
		return nil, errors.New("device lookup timed out")
	}
	return d.DeviceRepository.ListByUser(ctx, userID)
}

func seedNotificationStore(t *testing.T) *memrepo.MemoryStore {
	t.Helper()
	store := memrepo.NewMemoryStore()
	store.PutUser(&entity.User{ID: "alice", Name: "Alice", Email: "alice@example.com", IsActive: true})
	store.PutUser(&entity.User{ID: "bob", Name: "Bob", Email: "bob@example.com", IsActive: true})
	store.PutUser(&entity.User{ID: "carol", Name: "Carol", Email: "carol@example.com", IsActive: true})
	store.PutUser(&entity.User{ID: "dave", Name: "Dave", Email: "dave@example.com", IsActive: true})

	ctx := context.Background()
	for _, pair := range [][2]string{{"bob", "tok-bob"}, {"carol", "tok-carol"}, {"dave", "tok-dave"}} {
		_, err := store.Devices().Upsert(ctx, pair[0], pair[1])
		require.NoError(t, err)
	}
	return store
}

func groupMessage(members ...string) MessageNotification {
	return MessageNotification{
		MessageID: 7,
		RoomID:    "room-1",
		SenderID:  "alice",
		Content:   "is the bike still available?",
		Members:   append([]string{"alice"}, members...),
	}
}

func TestMessageDeliveryIsIsolatedPerRecipient(t *testing.T) {
	store := seedNotificationStore(t)
	push := &mockPush{}
	devices := flakyDevices{DeviceRepository: store.Devices(), failFor: "carol"}
	uc := NewNotificationUseCase(store.Users(), devices, push, nil, nil, queue.NewMemoryQueue(8), "")

	err := uc.HandleMessageCreated(context.Background(), groupMessage("bob", "carol", "dave"))
	require.NoError(t, err)

	assert.Len(t, push.calls(), 2)
	assert.ElementsMatch(t, []string{"tok-bob", "tok-dave"}, push.tokens())
}

func TestMessagePushContent(t *testing.T) {
	store := seedNotificationStore(t)
	push := &mockPush{}
	uc := NewNotificationUseCase(store.Users(), store.Devices(), push, nil, nil, queue.NewMemoryQueue(8), "Sent a photo")

	require.NoError(t, uc.HandleMessageCreated(context.Background(), groupMessage("bob")))
	payload := groupMessage("bob")
	payload.IsMedia = true
	require.NoError(t, uc.HandleMessageCreated(context.Background(), payload))

	calls := push.calls()
	require.Len(t, calls, 2)
	text, media := calls[0][0], calls[1][0]
	assert.Equal(t, "New message from Alice", text.Title)
	assert.Equal(t, "is the bike still available?", text.Body)
	assert.Equal(t, "room-1", text.Data["room_id"])
	assert.Equal(t, "7", text.Data["message_id"])
	assert.Equal(t, "Sent a photo", media.Body)
}

func TestMessageSkipsSenderAndInactiveMembers(t *testing.T) {
	store := seedNotificationStore(t)
	store.PutUser(&entity.User{ID: "dave", Name: "Dave", IsActive: false})
	push := &mockPush{}
	uc := NewNotificationUseCase(store.Users(), store.Devices(), push, nil, nil, queue.NewMemoryQueue(8), "")
	_, err := store.Devices().Upsert(context.Background(), "alice", "tok-alice")
	require.NoError(t, err)

	require.NoError(t, uc.HandleMessageCreated(context.Background(), groupMessage("bob", "dave")))
	assert.Equal(t, []string{"tok-bob"}, push.tokens())
}

func TestRecipientWithoutDevicesIsNotAnError(t *testing.T) {
	store := seedNotificationStore(t)
	store.PutUser(&entity.User{ID: "erin", Name: "Erin", IsActive: true})
	push := &mockPush{}
	uc := NewNotificationUseCase(store.Users(), store.Devices(), push, nil, nil, queue.NewMemoryQueue(8), "")

	require.NoError(t, uc.HandleMessageCreated(context.Background(), groupMessage("erin")))
	assert.Empty(t, push.calls())
}

func TestProviderFailureIsSwallowed(t *testing.T) {
	store := seedNotificationStore(t)
	push := &mockPush{err: errors.New("fcm unavailable")}
	uc := NewNotificationUseCase(store.Users(), store.Devices(), push, nil, nil, queue.NewMemoryQueue(8), "")

	assert.NoError(t, uc.HandleMessageCreated(context.Background(), groupMessage("bob", "carol")))
	assert.Len(t, push.calls(), 2)
}

func TestUnregisteredTokensArePruned(t *testing.T) {
	store := seedNotificationStore(t)
	ctx := context.Background()
	_, err := store.Devices().Upsert(ctx, "bob", "tok-bob-old")
	require.NoError(t, err)
	push := &mockPush{invalid: map[string]bool{"tok-bob-old": true}}
	uc := NewNotificationUseCase(store.Users(), store.Devices(), push, nil, nil, queue.NewMemoryQueue(8), "")

	require.NoError(t, uc.HandleMessageCreated(ctx, groupMessage("bob")))

	devices, err := store.Devices().ListByUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "tok-bob", devices[0].Token)
}

func TestUnregisteredTokensArePrunedWhenSendPartlyFails(t *testing.T) {
	store := seedNotificationStore(t)
	ctx := context.Background()
	_, err := store.Devices().Upsert(ctx, "bob", "tok-bob-old")
	require.NoError(t, err)
	push := &mockPush{invalid: map[string]bool{"tok-bob-old": true}, err: errors.New("second chunk timed out"), partial: true}
	uc := NewNotificationUseCase(store.Users(), store.Devices(), push, nil, nil, queue.NewMemoryQueue(8), "")

	err = uc.pushToUser(ctx, "bob", "New message", "hi", nil)
	assert.True(t, apperrors.Is(err, apperrors.CodeDeliveryFailure))

	devices, err := store.Devices().ListByUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "tok-bob", devices[0].Token)
}

func TestAlertDeliversPushSMSAndEmail(t *testing.T) {
	store := seedNotificationStore(t)
	store.PutUser(&entity.User{
		ID: "bob", Name: "Bob", Email: "bob@example.com", IsActive: true,
		Phone: "233200000000", PreferredNotificationPhone: "233244444444",
	})
	push, sms, mail := &mockPush{}, &mockSMS{}, &mockEmail{}
	uc := NewNotificationUseCase(store.Users(), store.Devices(), push, sms, mail, queue.NewMemoryQueue(8), "")

	alert := &entity.Alert{ID: 42, UserID: "bob", Title: "Listing approved", Body: "Your bike is live", Kind: "listing"}
	require.NoError(t, uc.HandleAlertCreated(context.Background(), alert))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, uc.Wait(ctx))

	calls := push.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]string{"kind": "listing", "alert_id": "42"}, calls[0][0].Data)
	assert.Equal(t, [][]string{{"233244444444"}}, sms.recipients)
	assert.Equal(t, []string{"bob@example.com"}, mail.to)
}

func TestAlertSideChannelFailuresDoNotBlockPush(t *testing.T) {
	store := seedNotificationStore(t)
	store.PutUser(&entity.User{ID: "bob", Name: "Bob", Email: "bob@example.com", Phone: "233200000000", IsActive: true})
	push := &mockPush{}
	sms := &mockSMS{err: errors.New("sms gateway down")}
	mail := &mockEmail{err: errors.New("smtp refused")}
	uc := NewNotificationUseCase(store.Users(), store.Devices(), push, sms, mail, queue.NewMemoryQueue(8), "")

	err := uc.HandleAlertCreated(context.Background(), &entity.Alert{ID: 1, UserID: "bob", Title: "Hi", Kind: "general"})
	require.NoError(t, err)
	require.NoError(t, uc.Wait(context.Background()))
	assert.Len(t, push.calls(), 1)
}

func TestHooksQueueJobsForThePool(t *testing.T) {
	store := seedNotificationStore(t)
	push := &mockPush{}
	q := queue.NewMemoryQueue(16)
	notifications := NewNotificationUseCase(store.Users(), store.Devices(), push, nil, nil, q, "")

	hooks := NewEventHooks()
	notifications.Register(hooks)
	pool := worker.NewPool(q, 2)
	notifications.RegisterJobs(pool)

	chat := NewChatUseCase(store.Rooms(), store.Messages(), store.Users(), store.Products(), nil, hooks, nil, ChatOptions{})
	alerts := NewAlertUseCase(store.Alerts(), store.Users(), hooks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := chat.FindOrCreatePrivateRoom(ctx, PrivateRoomInput{UserID: "alice", OtherUserID: "bob"})
	require.NoError(t, err)
	_, err = chat.SendMessage(ctx, res.RoomID, "alice", "hello", false, "")
	require.NoError(t, err)
	_, err = alerts.CreateAlert(ctx, CreateAlertInput{UserID: "carol", Title: "Welcome"})
	require.NoError(t, err)

	// Enqueued before the pool runs: the write path did not wait for delivery.
	assert.Equal(t, 2, q.Len())
	assert.Empty(t, push.calls())

	pool.Start(ctx)
	assert.Eventually(t, func() bool { return len(push.calls()) == 2 }, 2*time.Second, 10*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, pool.Stop(stopCtx))
	assert.ElementsMatch(t, []string{"tok-bob", "tok-carol"}, push.tokens())
	assert.Empty(t, q.DeadLetters())
}
