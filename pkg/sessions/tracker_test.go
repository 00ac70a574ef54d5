package sessions

import (
	"bytes"
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

func newTestTracker(t *testing.T) (*Tracker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewTracker(client, logger, "guildpulse", 24*time.Hour), mr
}

func TestTracker_JoinThenLeave(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	closed, err := tr.Transition(ctx, "g1", "u1", "vc1", 1_000_000)
	require.NoError(t, err)
	assert.Nil(t, closed)

	sess, err := tr.Current(ctx, "g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "vc1", sess.ChannelID)

	// Leave 5m30s later: 5 whole minutes
	closed, err = tr.Transition(ctx, "g1", "u1", "", 1_000_000+330_000)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, "vc1", closed.ChannelID)
	assert.EqualValues(t, 5, closed.Minutes)

	sess, err = tr.Current(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestTracker_ChannelSwitchClosesOldSession(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.Transition(ctx, "g1", "u1", "vc1", 0)
	require.NoError(t, err)

	closed, err := tr.Transition(ctx, "g1", "u1", "vc2", 120_000)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, "vc1", closed.ChannelID)
	assert.EqualValues(t, 2, closed.Minutes)

	sess, err := tr.Current(ctx, "g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "vc2", sess.ChannelID)
	assert.EqualValues(t, 120_000, sess.JoinedAtMs)
}

func TestTracker_DuplicateJoinKeepsOriginalStart(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.Transition(ctx, "g1", "u1", "vc1", 0)
	require.NoError(t, err)

	closed, err := tr.Transition(ctx, "g1", "u1", "vc1", 60_000)
	require.NoError(t, err)
	assert.Nil(t, closed)

	closed, err = tr.Transition(ctx, "g1", "u1", "", 180_000)
	require.NoError(t, err)
	require.NotNil(t, closed)
	// Counted from the first join, not the duplicate
	assert.EqualValues(t, 3, closed.Minutes)
}

func TestTracker_LeaveWithoutSessionIsNoop(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	var logs bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, &logs)
	tr := NewTracker(client, logger, "guildpulse", 24*time.Hour)

	closed, err := tr.Transition(context.Background(), "g1", "u1", "", 60_000)
	require.NoError(t, err)
	assert.Nil(t, closed)
	// The ignored leave is visible in the logs, not silent
	assert.Contains(t, logs.String(), "leave with no open session")
	assert.Contains(t, logs.String(), "u1")
}

func TestTracker_SubMinuteSessionCountsZero(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.Transition(ctx, "g1", "u1", "vc1", 0)
	require.NoError(t, err)

	closed, err := tr.Transition(ctx, "g1", "u1", "", 59_000)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.EqualValues(t, 0, closed.Minutes)
}

func TestTracker_SessionsAreIsolatedPerMember(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.Transition(ctx, "g1", "u1", "vc1", 0)
	require.NoError(t, err)
	_, err = tr.Transition(ctx, "g1", "u2", "vc1", 0)
	require.NoError(t, err)
	_, err = tr.Transition(ctx, "g2", "u1", "vc9", 0)
	require.NoError(t, err)

	closed, err := tr.Transition(ctx, "g1", "u1", "", 60_000)
	require.NoError(t, err)
	require.NotNil(t, closed)

	// The other sessions are untouched
	sess, err := tr.Current(ctx, "g1", "u2")
	require.NoError(t, err)
	assert.NotNil(t, sess)
	sess, err = tr.Current(ctx, "g2", "u1")
	require.NoError(t, err)
	assert.NotNil(t, sess)
}

func TestTracker_SessionKeysExpire(t *testing.T) {
	tr, mr := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.Transition(ctx, "g1", "u1", "vc1", 0)
	require.NoError(t, err)

	mr.FastForward(25 * time.Hour)

	sess, err := tr.Current(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestTracker_Sweep(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.Transition(ctx, "g1", "u1", "vc1", 1_000)
	require.NoError(t, err)
	_, err = tr.Transition(ctx, "g1", "u2", "vc1", 2_000)
	require.NoError(t, err)
	_, err = tr.Transition(ctx, "g1", "u3", "vc1", 90_000)
	require.NoError(t, err)

	swept, err := tr.Sweep(ctx, 10_000)
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	sess, err := tr.Current(ctx, "g1", "u3")
	require.NoError(t, err)
	assert.NotNil(t, sess)
}

func TestTracker_LockReleasedAfterTransition(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	// Back-to-back transitions would deadlock if the lock leaked
	for i := 0; i < 5; i++ {
		_, err := tr.Transition(ctx, "g1", "u1", "vc1", int64(i)*60_000)
		require.NoError(t, err)
	}
}
