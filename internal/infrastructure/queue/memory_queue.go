package queue

import (
	"context"
	"sync"
)

// MemoryQueue is a bounded in-process queue. Jobs are lost on restart.
type MemoryQueue struct {
	jobs   chan Job
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	dead []Job
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		jobs:   make(chan Job, size),
		closed: make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case <-q.closed:
		// Drain whatever was accepted before Close.
		select {
		case job := <-q.jobs:
			return job, nil
		default:
			return Job{}, ErrClosed
		}
	}
}

func (q *MemoryQueue) DeadLetter(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, job)
	return nil
}

// DeadLetters returns a copy of the jobs that failed.
func (q *MemoryQueue) DeadLetters() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Job(nil), q.dead...)
}

func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.closed) })
	return nil
}
