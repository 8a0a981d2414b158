package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "blob.cleanup"}))
	select {
	case job := <-done:
		assert.Equal(t, "1", job.ID)
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(time.Second):
		t.Fatal("job not processed")
	}
}

func TestQueueRetriesFailures(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("test", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	select {
	case <-done:
		assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	case <-time.After(2 * time.Second):
		t.Fatal("job not retried")
	}
}

func TestQueueEnqueueAfter(t *testing.T) {
	processed := make(chan time.Time, 1)
	q := NewQueue("test", func(_ context.Context, _ Job) error {
		processed <- time.Now()
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	start := time.Now()
	require.NoError(t, q.EnqueueAfter(Job{ID: "later"}, 30*time.Millisecond))
	select {
	case at := <-processed:
		assert.GreaterOrEqual(t, at.Sub(start), 30*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("delayed job not processed")
	}
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{ID: "1"}))
	require.Error(t, q.EnqueueAfter(Job{ID: "1"}, time.Hour))
}

func TestQueueStopDropsDelayedJobs(t *testing.T) {
	var ran int32
	q := NewQueue("test", func(context.Context, Job) error {
		atomic.StoreInt32(&ran, 1)
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	require.NoError(t, q.EnqueueAfter(Job{ID: "1"}, time.Hour))
	q.Stop()
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
}

func TestQueueAbandonsAfterMaxRetries(t *testing.T) {
	var attempts int32
	q := NewQueue("test", func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("permanent")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "doomed"}))
	require.Eventually(t, func() bool { return q.Stats().Abandoned == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, uint64(2), q.Stats().Retried)
	assert.Zero(t, q.Stats().Processed)
}

func TestQueueDelayedJobsRunInDueOrder(t *testing.T) {
	order := make(chan string, 2)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		order <- job.ID
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.EnqueueAfter(Job{ID: "second"}, 60*time.Millisecond))
	require.NoError(t, q.EnqueueAfter(Job{ID: "first"}, 10*time.Millisecond))

	for _, want := range []string{"first", "second"} {
		select {
		case got := <-order:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("job %s not processed", want)
		}
	}
}

func TestQueueBackoffIsCapped(t *testing.T) {
	q := NewQueue("test", nil, QueueConfig{RetryDelay: time.Second, MaxRetryDelay: 5 * time.Second})
	assert.Equal(t, time.Second, q.backoff(1))
	assert.Equal(t, 2*time.Second, q.backoff(2))
	assert.Equal(t, 4*time.Second, q.backoff(3))
	assert.Equal(t, 5*time.Second, q.backoff(4))
	assert.Equal(t, 5*time.Second, q.backoff(10))
}
