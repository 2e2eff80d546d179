package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"oysloe/internal/domain/entity"
	"oysloe/internal/domain/repository"
	"oysloe/internal/infrastructure/queue"
	"oysloe/internal/infrastructure/worker"
	apperrors "oysloe/pkg/errors"
	"oysloe/pkg/logger"
)

const (
	JobMessageCreated = "message.created"
	JobAlertCreated   = "alert.created"

	enqueueTimeout     = 2 * time.Second
	sideChannelTimeout = 30 * time.Second
)

// PushSender may return a partial result together with an error.
type PushSender interface {
	Send(ctx context.Context, batch []entity.PushMessage) (*entity.PushResult, error)
}

type SMSSender interface {
	Send(ctx context.Context, message string, recipients []string) error
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NotificationUseCase fans message and alert events out to push, SMS and email.
// Any sender may be nil, which turns that channel off.
type NotificationUseCase struct {
	userRepo   repository.UserRepository
	deviceRepo repository.DeviceRepository
	push       PushSender
	sms        SMSSender
	email      EmailSender
	queue      queue.Queue

	mediaPlaceholder string

	// detached SMS and email sends
	side sync.WaitGroup
}

func NewNotificationUseCase(
	userRepo repository.UserRepository,
	deviceRepo repository.DeviceRepository,
	push PushSender,
	sms SMSSender,
	email EmailSender,
	q queue.Queue,
	mediaPlaceholder string,
) *NotificationUseCase {
	if mediaPlaceholder == "" {
		mediaPlaceholder = "Sent an attachment"
	}
	return &NotificationUseCase{
		userRepo:         userRepo,
		deviceRepo:       deviceRepo,
		push:             push,
		sms:              sms,
		email:            email,
		queue:            q,
		mediaPlaceholder: mediaPlaceholder,
	}
}

// MessageNotification is the queued form of a message-created event.
type MessageNotification struct {
	MessageID int64    `json:"message_id"`
	RoomID    string   `json:"room_id"`
	SenderID  string   `json:"sender_id"`
	Content   string   `json:"content"`
	IsMedia   bool     `json:"is_media"`
	Members   []string `json:"members"`
}

// Register hooks the dispatcher into message and alert creation. The hooks only
// enqueue, so the write path never waits on delivery.
func (uc *NotificationUseCase) Register(hooks *EventHooks) {
	hooks.OnMessageCreated(func(ctx context.Context, event MessageCreatedEvent) {
		uc.enqueue(ctx, JobMessageCreated, MessageNotification{
			MessageID: event.Message.ID,
			RoomID:    event.Message.RoomID,
			SenderID:  event.Message.SenderID,
			Content:   event.Message.Content,
			IsMedia:   event.Message.IsMedia,
			Members:   event.Room.Members,
		})
	})
	hooks.OnAlertCreated(func(ctx context.Context, event AlertCreatedEvent) {
		uc.enqueue(ctx, JobAlertCreated, event.Alert)
	})
}

// RegisterJobs binds the job types to pool workers.
func (uc *NotificationUseCase) RegisterJobs(pool *worker.Pool) {
	pool.Handle(JobMessageCreated, func(ctx context.Context, job queue.Job) error {
		var payload MessageNotification
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", job.Type, err)
		}
		return uc.HandleMessageCreated(ctx, payload)
	})
	pool.Handle(JobAlertCreated, func(ctx context.Context, job queue.Job) error {
		var alert entity.Alert
		if err := json.Unmarshal(job.Payload, &alert); err != nil {
			return fmt.Errorf("decode %s payload: %w", job.Type, err)
		}
		return uc.HandleAlertCreated(ctx, &alert)
	})
}

func (uc *NotificationUseCase) enqueue(ctx context.Context, jobType string, payload any) {
	job, err := queue.NewJob(jobType, payload)
	if err != nil {
		logger.Error("Failed to encode %s job: %v", jobType, err)
		return
	}
	// The request may finish before a slow enqueue does.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	if err := uc.queue.Enqueue(ctx, job); err != nil {
		logger.Get().Warn().Err(err).Str("job_type", jobType).Str("job_id", job.ID).Msg("notification job dropped")
	}
}

// HandleMessageCreated pushes to every active member except the sender. Each
// recipient is delivered independently.
func (uc *NotificationUseCase) HandleMessageCreated(ctx context.Context, payload MessageNotification) error {
	senderName := "someone"
	if sender, err := uc.userRepo.GetByID(ctx, payload.SenderID); err == nil {
		senderName = sender.DisplayName()
	}

	var ids []string
	for _, m := range payload.Members {
		if m != payload.SenderID {
			ids = append(ids, m)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	recipients, err := uc.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load recipients for room %s: %w", payload.RoomID, err)
	}

	title := "New message from " + senderName
	body := payload.Content
	if payload.IsMedia {
		body = uc.mediaPlaceholder
	}
	data := map[string]string{
		"type":       "chat_message",
		"room_id":    payload.RoomID,
		"message_id": strconv.FormatInt(payload.MessageID, 10),
	}

	var wg sync.WaitGroup
	for _, recipient := range recipients {
		if !recipient.IsActive {
			continue
		}
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			if err := uc.pushToUser(ctx, userID, title, body, data); err != nil {
				logDeliveryFailure(err, userID, "push", JobMessageCreated)
			}
		}(recipient.ID)
	}
	wg.Wait()
	return nil
}

// HandleAlertCreated pushes the alert and, when configured, sends SMS and email
// detached from the push path.
func (uc *NotificationUseCase) HandleAlertCreated(ctx context.Context, alert *entity.Alert) error {
	user, err := uc.userRepo.GetByID(ctx, alert.UserID)
	if err != nil {
		return fmt.Errorf("load alert recipient %s: %w", alert.UserID, err)
	}

	if uc.sms != nil {
		if phone := user.NotificationPhone(); phone != "" {
			uc.detach(ctx, func(ctx context.Context) {
				if err := uc.sms.Send(ctx, alert.Title+"\n"+alert.Body, []string{phone}); err != nil {
					logDeliveryFailure(apperrors.DeliveryFailure("sms", err), user.ID, "sms", JobAlertCreated)
				}
			})
		}
	}
	if uc.email != nil {
		if address := user.NotificationEmail(); address != "" {
			uc.detach(ctx, func(ctx context.Context) {
				if err := uc.email.Send(ctx, address, alert.Title, alert.Body); err != nil {
					logDeliveryFailure(apperrors.DeliveryFailure("email", err), user.ID, "email", JobAlertCreated)
				}
			})
		}
	}

	data := map[string]string{
		"kind":     alert.Kind,
		"alert_id": strconv.FormatInt(alert.ID, 10),
	}
	if err := uc.pushToUser(ctx, user.ID, alert.Title, alert.Body, data); err != nil {
		logDeliveryFailure(err, user.ID, "push", JobAlertCreated)
	}
	return nil
}

func (uc *NotificationUseCase) detach(ctx context.Context, fn func(ctx context.Context)) {
	uc.side.Add(1)
	go func() {
		defer uc.side.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideChannelTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until detached SMS and email sends finish or ctx expires.
func (uc *NotificationUseCase) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		uc.side.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pushToUser sends to every device of userID. No devices is a normal no-op.
func (uc *NotificationUseCase) pushToUser(ctx context.Context, userID, title, body string, data map[string]string) error {
	if uc.push == nil {
		return nil
	}
	devices, err := uc.deviceRepo.ListByUser(ctx, userID)
	if err != nil {
		return apperrors.DeliveryFailure("push", fmt.Errorf("resolve devices: %w", err))
	}
	if len(devices) == 0 {
		logger.Debug("No devices registered for %s", userID)
		return nil
	}

	batch := make([]entity.PushMessage, 0, len(devices))
	for _, d := range devices {
		batch = append(batch, entity.PushMessage{Token: d.Token, Title: title, Body: body, Data: data})
	}
	result, err := uc.push.Send(ctx, batch)
	// A partly failed send still reports the tokens it found dead.
	if result != nil && len(result.InvalidTokens) > 0 {
		if pruneErr := uc.deviceRepo.DeleteTokens(ctx, result.InvalidTokens); pruneErr != nil {
			logger.Warn("Failed to prune %d stale tokens for %s: %v", len(result.InvalidTokens), userID, pruneErr)
		} else {
			logger.Info("Pruned %d stale tokens for %s", len(result.InvalidTokens), userID)
		}
	}
	if err != nil {
		return apperrors.DeliveryFailure("push", err)
	}
	logger.Get().Debug().Str("user_id", userID).Int("sent", result.Sent).Int("failed", result.Failed).Msg("push delivered")
	return nil
}

func logDeliveryFailure(err error, userID, channel, event string) {
	logger.Get().Warn().Err(err).
		Str("user_id", userID).
		Str("channel", channel).
		Str("event", event).
		Msg("notification delivery failed")
}
