package queue

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildpulse/guildpulse/pkg/observability"
)

func setupQueueTest(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	q := New(client, NewRetryPolicy(DefaultRetryConfig()), logger, nil, "test")
	return q, mr
}

type testPayload struct {
	GuildID string `json:"guild_id"`
	N       int    `json:"n"`
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	q, _ := setupQueueTest(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "process-message", testPayload{GuildID: "g1", N: 1}, PriorityNormal)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	job, err := q.Dequeue(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, job)

	assert.Equal(t, "process-message", job.Name)
	assert.Equal(t, PriorityNormal, job.Priority)
	assert.Equal(t, 0, job.Attempts)

	var payload testPayload
	require.NoError(t, job.DecodePayload(&payload))
	assert.Equal(t, "g1", payload.GuildID)
}

func TestQueue_Dequeue_Empty(t *testing.T) {
	q, _ := setupQueueTest(t)

	job, err := q.Dequeue(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestQueue_PriorityOrdering(t *testing.T) {
	q, _ := setupQueueTest(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "low-job", testPayload{N: 3}, PriorityLow)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "normal-job", testPayload{N: 2}, PriorityNormal)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "high-job", testPayload{N: 1}, PriorityHigh)
	require.NoError(t, err)

	var names []string
	for i := 0; i < 3; i++ {
		job, err := q.Dequeue(ctx, 100*time.Millisecond)
		require.NoError(t, err)
		require.NotNil(t, job)
		names = append(names, job.Name)
	}

	assert.Equal(t, []string{"high-job", "normal-job", "low-job"}, names)
}

func TestQueue_RetrySchedulesDelayed(t *testing.T) {
	q, _ := setupQueueTest(t)
	ctx := context.Background()

	job, err := NewJob("aggregate-5min", testPayload{GuildID: "g1"}, PriorityNormal)
	require.NoError(t, err)

	require.NoError(t, q.Retry(ctx, job, assert.AnError))
	assert.Equal(t, 1, job.Attempts)

	// Not due yet
	promoted, err := q.PromoteDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, promoted)

	// Due after the first backoff delay
	promoted, err = q.PromoteDue(ctx, time.Now().Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	got, err := q.Dequeue(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, 1, got.Attempts)
	assert.NotEmpty(t, got.LastError)
}

func TestQueue_ParksAfterExhaustion(t *testing.T) {
	q, _ := setupQueueTest(t)
	ctx := context.Background()

	job, err := NewJob("aggregate-hourly", testPayload{GuildID: "g1"}, PriorityNormal)
	require.NoError(t, err)
	job.Attempts = 2 // one short of the 3-attempt limit

	require.NoError(t, q.Retry(ctx, job, assert.AnError))

	dead, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, job.ID, dead[0].ID)
	assert.Equal(t, 3, dead[0].Attempts)

	// Nothing was scheduled for retry
	promoted, err := q.PromoteDue(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, promoted)
}

func TestQueue_ReplayDead(t *testing.T) {
	q, _ := setupQueueTest(t)
	ctx := context.Background()

	job, err := NewJob("aggregate-daily", testPayload{GuildID: "g1"}, PriorityNormal)
	require.NoError(t, err)
	job.Attempts = 3
	require.NoError(t, q.park(ctx, job))

	replayed, err := q.ReplayDead(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)

	got, err := q.Dequeue(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, 0, got.Attempts)
	assert.Empty(t, got.LastError)
}

func TestQueue_Depths(t *testing.T) {
	q, _ := setupQueueTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(ctx, "j", testPayload{N: i}, PriorityLow)
		require.NoError(t, err)
	}
	_, err := q.Enqueue(ctx, "j", testPayload{}, PriorityHigh)
	require.NoError(t, err)

	depths, err := q.Depths(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depths[PriorityHigh])
	assert.Equal(t, int64(0), depths[PriorityNormal])
	assert.Equal(t, int64(3), depths[PriorityLow])
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := NewRetryPolicy(DefaultRetryConfig())

	assert.Equal(t, 1*time.Second, p.NextRetryDelay(1))
	assert.Equal(t, 2*time.Second, p.NextRetryDelay(2))
	assert.Equal(t, 4*time.Second, p.NextRetryDelay(3))

	// Capped
	assert.Equal(t, 30*time.Second, p.NextRetryDelay(10))

	assert.True(t, p.ShouldRetry(1))
	assert.True(t, p.ShouldRetry(2))
	assert.False(t, p.ShouldRetry(3))
}

func TestRetryPolicy_Defaults(t *testing.T) {
	p := NewRetryPolicy(RetryConfig{})

	assert.Equal(t, 1*time.Second, p.NextRetryDelay(0))
	assert.False(t, p.ShouldRetry(3))
}
