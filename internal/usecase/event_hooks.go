package usecase

import (
	"context"
	"sync"

	"oysloe/internal/domain/entity"
)

type MessageCreatedEvent struct {
	Message *entity.Message
	Room    *entity.ChatRoom
}

type AlertCreatedEvent struct {
	Alert *entity.Alert
}

// Hooks run on the write path after the record is durable. They must only enqueue.
type MessageHook func(ctx context.Context, event MessageCreatedEvent)

type AlertHook func(ctx context.Context, event AlertCreatedEvent)

// EventHooks is the explicit registry the chat and alert use cases fire into.
type EventHooks struct {
	mutex   sync.RWMutex
	message []MessageHook
	alert   []AlertHook
}

func NewEventHooks() *EventHooks {
	return &EventHooks{}
}

func (h *EventHooks) OnMessageCreated(fn MessageHook) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.message = append(h.message, fn)
}

func (h *EventHooks) OnAlertCreated(fn AlertHook) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.alert = append(h.alert, fn)
}

func (h *EventHooks) emitMessageCreated(ctx context.Context, event MessageCreatedEvent) {
	if h == nil {
		return
	}
	h.mutex.RLock()
	hooks := h.message
	h.mutex.RUnlock()
	for _, fn := range hooks {
		fn(ctx, event)
	}
}

func (h *EventHooks) emitAlertCreated(ctx context.Context, event AlertCreatedEvent) {
	if h == nil {
		return
	}
	h.mutex.RLock()
	hooks := h.alert
	h.mutex.RUnlock()
	for _, fn := range hooks {
		fn(ctx, event)
	}
}
