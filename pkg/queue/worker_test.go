package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWorker_ProcessesJobs(t *testing.T) {
	q, _ := setupQueueTest(t)
	ctx := context.Background()

	var processed int64
	w := NewWorker(q, 2, 5*time.Second, q.logger, nil)
	w.Register("count", func(ctx context.Context, job *Job) error {
		atomic.AddInt64(&processed, 1)
		return nil
	})

	require.NoError(t, w.Start(ctx))
	defer w.Stop(5 * time.Second)

	for i := 0; i < 5; i++ {
		_, err := q.Enqueue(ctx, "count", testPayload{N: i}, PriorityNormal)
		require.NoError(t, err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return atomic.LoadInt64(&processed) == 5
	})
}

func TestWorker_RetriesFailedJob(t *testing.T) {
	q, _ := setupQueueTest(t)
	ctx := context.Background()

	var mu sync.Mutex
	var attempts []int
	w := NewWorker(q, 1, 5*time.Second, q.logger, nil)
	w.Register("flaky", func(ctx context.Context, job *Job) error {
		mu.Lock()
		attempts = append(attempts, job.Attempts)
		mu.Unlock()
		if job.Attempts < 1 {
			return fmt.Errorf("transient failure")
		}
		return nil
	})

	require.NoError(t, w.Start(ctx))
	defer w.Stop(5 * time.Second)

	_, err := q.Enqueue(ctx, "flaky", testPayload{GuildID: "g1"}, PriorityNormal)
	require.NoError(t, err)

	// First attempt fails, retry is promoted after ~1s, second succeeds
	waitFor(t, 10*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(attempts) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1}, attempts)
}

func TestWorker_ParksUnroutableJob(t *testing.T) {
	q, _ := setupQueueTest(t)
	ctx := context.Background()

	w := NewWorker(q, 1, 5*time.Second, q.logger, nil)
	w.Register("known", func(ctx context.Context, job *Job) error { return nil })

	require.NoError(t, w.Start(ctx))
	defer w.Stop(5 * time.Second)

	_, err := q.Enqueue(ctx, "unknown", testPayload{}, PriorityNormal)
	require.NoError(t, err)

	waitFor(t, 5*time.Second, func() bool {
		dead, err := q.DeadLetters(ctx, 10)
		return err == nil && len(dead) == 1
	})
}

func TestWorker_RecoversFromPanic(t *testing.T) {
	q, _ := setupQueueTest(t)
	ctx := context.Background()

	var calls int64
	w := NewWorker(q, 1, 5*time.Second, q.logger, nil)
	w.Register("panicky", func(ctx context.Context, job *Job) error {
		atomic.AddInt64(&calls, 1)
		panic("boom")
	})

	require.NoError(t, w.Start(ctx))
	defer w.Stop(5 * time.Second)

	_, err := q.Enqueue(ctx, "panicky", testPayload{}, PriorityNormal)
	require.NoError(t, err)

	// The panic becomes a failure and is retried until parked
	waitFor(t, 20*time.Second, func() bool {
		dead, err := q.DeadLetters(ctx, 10)
		return err == nil && len(dead) == 1
	})
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestWorker_StartTwiceFails(t *testing.T) {
	q, _ := setupQueueTest(t)
	ctx := context.Background()

	w := NewWorker(q, 1, time.Second, q.logger, nil)
	require.NoError(t, w.Start(ctx))
	defer w.Stop(5 * time.Second)

	assert.Error(t, w.Start(ctx))
}

func TestWorker_StopWithoutStart(t *testing.T) {
	q, _ := setupQueueTest(t)
	w := NewWorker(q, 1, time.Second, q.logger, nil)
	assert.NoError(t, w.Stop(time.Second))
}
