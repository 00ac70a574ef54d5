package aggregation

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildpulse/guildpulse/pkg/events"
	"github.com/guildpulse/guildpulse/pkg/observability"
	"github.com/guildpulse/guildpulse/pkg/sessions"
	"github.com/guildpulse/guildpulse/pkg/store"
)

func newTestCleaner(t *testing.T, s *store.Store) (*Cleaner, *sessions.Tracker) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	tracker := sessions.NewTracker(client, logger, "guildpulse", 24*time.Hour)
	cleaner := NewCleaner(s, tracker, logger, nil, 30*24*time.Hour, 90*24*time.Hour, 24*time.Hour)
	return cleaner, tracker
}

func TestCleaner_CleanupRawEvents(t *testing.T) {
	s := newTestStore(t)
	cleaner, _ := newTestCleaner(t, s)
	ctx := context.Background()

	now := time.Date(2026, 8, 31, 2, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -31).UnixMilli()
	recent := now.AddDate(0, 0, -5).UnixMilli()

	_, err := s.InsertRawEvents(ctx, []events.Event{
		{Type: events.TypeMessageCreate, GuildID: "g1", UserID: "u1", MessageID: "old", Timestamp: old},
		{Type: events.TypeMessageCreate, GuildID: "g1", UserID: "u1", MessageID: "new", Timestamp: recent},
	})
	require.NoError(t, err)

	pruned, err := cleaner.CleanupRawEvents(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	n, err := s.CountRawEvents(ctx, "g1", 0, now.UnixMilli())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCleaner_CleanupDailyStatsHonorsRollupGuard(t *testing.T) {
	s := newTestStore(t)
	cleaner, _ := newTestCleaner(t, s)
	ctx := context.Background()

	now := time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC)

	// Both days are past the 90-day retention window
	require.NoError(t, s.RecordMessageSent(ctx, "g1", "u1", "2026-04-10", "c1", 1000, 1))
	require.NoError(t, s.RecordMessageSent(ctx, "g1", "u1", "2026-05-10", "c1", 2000, 2))
	// Only April has been compacted
	require.NoError(t, s.MarkRollupComplete(ctx, "g1", "2026-04", now.UnixMilli()))

	pruned, err := cleaner.CleanupDailyStats(ctx, []string{"g1"}, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	kept, err := s.GetDailyChannelStats(ctx, "g1", "u1", "2026-05-10", "c1")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestCleaner_SweepSessions(t *testing.T) {
	s := newTestStore(t)
	cleaner, tracker := newTestCleaner(t, s)
	ctx := context.Background()

	now := time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC)
	stale := now.Add(-25 * time.Hour).UnixMilli()
	fresh := now.Add(-1 * time.Hour).UnixMilli()

	_, err := tracker.Transition(ctx, "g1", "u1", "vc1", stale)
	require.NoError(t, err)
	_, err = tracker.Transition(ctx, "g1", "u2", "vc1", fresh)
	require.NoError(t, err)

	swept, err := cleaner.SweepSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	sess, err := tracker.Current(ctx, "g1", "u2")
	require.NoError(t, err)
	assert.NotNil(t, sess)
}
