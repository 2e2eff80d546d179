package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrClosed    = errors.New("job queue is closed")
)

type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	ErrorMsg  string          `json:"error_msg,omitempty"`
	CreatedAt int64           `json:"created_at"`
}

func NewJob(jobType string, payload any) (Job, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Job{}, err
	}
	return Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Payload:   b,
		CreatedAt: time.Now().Unix(),
	}, nil
}

// Queue hands jobs from writers to the worker pool. Enqueue must not block the caller.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks until a job arrives. It returns ErrClosed once the queue is closed and drained.
	Dequeue(ctx context.Context) (Job, error)
	DeadLetter(ctx context.Context, job Job) error
	Close() error
}
