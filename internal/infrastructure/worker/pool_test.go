package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"oysloe/internal/infrastructure/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolDispatchesByTypeAndDrainsOnStop(t *testing.T) {
	q := queue.NewMemoryQueue(16)
	pool := NewPool(q, 2)

	var handled atomic.Int32
	pool.Handle("message.created", func(ctx context.Context, job queue.Job) error {
		handled.Add(1)
		return nil
	})
	pool.Start(context.Background())

	for i := 0; i < 5; i++ {
		job, err := queue.NewJob("message.created", i)
		require.NoError(t, err)
		require.NoError(t, q.Enqueue(context.Background(), job))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pool.Stop(ctx))
	assert.EqualValues(t, 5, handled.Load())
}

func TestPoolDeadLettersFailuresAndPanics(t *testing.T) {
	q := queue.NewMemoryQueue(16)
	pool := NewPool(q, 1)
	pool.Handle("fails", func(ctx context.Context, job queue.Job) error { return errors.New("bad payload") })
	pool.Handle("panics", func(ctx context.Context, job queue.Job) error { panic("boom") })
	pool.Start(context.Background())

	for _, typ := range []string{"fails", "panics", "unknown"} {
		job, _ := queue.NewJob(typ, nil)
		require.NoError(t, q.Enqueue(context.Background(), job))
	}

	require.NoError(t, pool.Stop(context.Background()))

	dead := q.DeadLetters()
	require.Len(t, dead, 3)
	assert.Equal(t, "bad payload", dead[0].ErrorMsg)
	assert.Contains(t, dead[1].ErrorMsg, "panic")
	assert.Contains(t, dead[2].ErrorMsg, "unknown job type")
}
