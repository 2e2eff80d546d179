package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"oysloe/internal/infrastructure/queue"
	"oysloe/pkg/logger"
)

const jobTimeout = 30 * time.Second

type HandlerFunc func(ctx context.Context, job queue.Job) error

// Pool runs a fixed number of workers pulling from one queue.
type Pool struct {
	queue     queue.Queue
	workerNum int
	handlers  map[string]HandlerFunc
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

func NewPool(q queue.Queue, workerNum int) *Pool {
	return &Pool{
		queue:     q,
		workerNum: workerNum,
		handlers:  make(map[string]HandlerFunc),
	}
}

// Handle registers h for jobType. Call before Start.
func (p *Pool) Handle(jobType string, h HandlerFunc) {
	p.handlers[jobType] = h
}

func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	logger.Info("Starting worker pool with %d workers", p.workerNum)
	for i := 0; i < p.workerNum; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				logger.Debug("Worker %d stopping", id)
				return
			}
			logger.Error("Worker %d: dequeue failed: %v", id, err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		p.run(ctx, job)
	}
}

func (p *Pool) run(ctx context.Context, job queue.Job) {
	handler, ok := p.handlers[job.Type]
	if !ok {
		logger.Warn("No handler for job type %s (job %s)", job.Type, job.ID)
		p.deadLetter(ctx, job, fmt.Errorf("unknown job type %q", job.Type))
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return handler(jobCtx, job)
	}()
	if err != nil {
		logger.Get().Error().Err(err).Str("job_id", job.ID).Str("type", job.Type).Msg("job failed")
		p.deadLetter(ctx, job, err)
	}
}

func (p *Pool) deadLetter(ctx context.Context, job queue.Job, cause error) {
	job.ErrorMsg = cause.Error()
	if err := p.queue.DeadLetter(context.WithoutCancel(ctx), job); err != nil {
		logger.Error("Failed to dead-letter job %s: %v", job.ID, err)
	}
}

// Stop closes the queue and waits for workers to finish queued jobs. When ctx expires
// first, in-flight handlers are cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.queue.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if p.cancel != nil {
			p.cancel()
		}
		<-done
		return ctx.Err()
	}
}
