package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildpulse/guildpulse/pkg/events"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// In-memory SQLite loses the schema if the pool opens a second connection
	db.SetMaxOpenConns(1)

	s := New(db, 5*time.Second)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestInsertRawEvents_SkipsDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := []events.Event{
		{Type: events.TypeMessageCreate, GuildID: "g1", UserID: "u1", ChannelID: "c1", MessageID: "m1", Timestamp: 1700000000000},
		{Type: events.TypeMessageCreate, GuildID: "g1", UserID: "u1", ChannelID: "c1", MessageID: "m2", Timestamp: 1700000001000},
	}

	inserted, err := s.InsertRawEvents(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// Re-sending the same batch inserts nothing
	inserted, err = s.InsertRawEvents(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	n, err := s.CountRawEvents(ctx, "g1", 0, 2000000000000)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestInsertRawEvents_PartialDuplicateBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []events.Event{
		{Type: events.TypeMessageCreate, GuildID: "g1", UserID: "u1", ChannelID: "c1", MessageID: "m1", Timestamp: 1700000000000},
	}
	_, err := s.InsertRawEvents(ctx, first)
	require.NoError(t, err)

	mixed := append(first, events.Event{
		Type: events.TypeMessageCreate, GuildID: "g1", UserID: "u1", ChannelID: "c1", MessageID: "m2", Timestamp: 1700000002000,
	})
	inserted, err := s.InsertRawEvents(ctx, mixed)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestMemberStats_UpsertIncrements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IncrementMessages(ctx, "g1", "u1", 1000))
	require.NoError(t, s.IncrementMessages(ctx, "g1", "u1", 3000))
	require.NoError(t, s.AddVoiceMinutes(ctx, "g1", "u1", 5, 2000))
	require.NoError(t, s.AddReactionsGiven(ctx, "g1", "u1", 2, 4000))
	require.NoError(t, s.AddReactionsReceived(ctx, "g1", "u1", 3))

	m, err := s.GetMemberStats(ctx, "g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.EqualValues(t, 2, m.TotalMessages)
	assert.EqualValues(t, 5, m.TotalVoiceMinutes)
	assert.EqualValues(t, 2, m.TotalReactionsGiven)
	assert.EqualValues(t, 3, m.TotalReactionsReceived)
	assert.EqualValues(t, 3000, m.LastMessageMs)
	assert.EqualValues(t, 2000, m.LastVoiceMs)
	assert.EqualValues(t, 4000, m.LastSeenMs)
}

func TestMemberStats_WatermarksNeverRegress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IncrementMessages(ctx, "g1", "u1", 5000))
	// An older event arriving late must not move watermarks backwards
	require.NoError(t, s.IncrementMessages(ctx, "g1", "u1", 1000))

	m, err := s.GetMemberStats(ctx, "g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.EqualValues(t, 2, m.TotalMessages)
	assert.EqualValues(t, 5000, m.LastMessageMs)
	assert.EqualValues(t, 5000, m.LastSeenMs)
}

func TestGetMemberStats_Unknown(t *testing.T) {
	s := newTestStore(t)

	m, err := s.GetMemberStats(context.Background(), "g1", "nobody")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestDailyChannelStats_MessageLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordMessageSent(ctx, "g1", "u1", "2026-08-30", "c1", 1000, 14))
	require.NoError(t, s.RecordMessageSent(ctx, "g1", "u1", "2026-08-30", "c1", 3000, 15))
	require.NoError(t, s.RecordMessageEdited(ctx, "g1", "u1", "2026-08-30", "c1"))
	require.NoError(t, s.RecordMessageDeleted(ctx, "g1", "u1", "2026-08-30", "c1", true))
	require.NoError(t, s.RecordMessageDeleted(ctx, "g1", "u1", "2026-08-30", "c1", false))

	d, err := s.GetDailyChannelStats(ctx, "g1", "u1", "2026-08-30", "c1")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.EqualValues(t, 2, d.MessagesSent)
	assert.EqualValues(t, 1, d.MessagesEdited)
	assert.EqualValues(t, 2, d.MessagesDeleted)
	assert.EqualValues(t, 1, d.DeletedBySelf)
	assert.EqualValues(t, 1, d.DeletedByMod)
	assert.EqualValues(t, 1000, d.FirstMessageMs)
	assert.EqualValues(t, 3000, d.LastMessageMs)
	// Last write wins until the daily pass corrects it
	assert.Equal(t, 15, d.PeakHour)
}

func TestDailyChannelStats_VoiceAndReactions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddDailyVoiceMinutes(ctx, "g1", "u1", "2026-08-30", "vc1", 12))
	require.NoError(t, s.AddDailyVoiceMinutes(ctx, "g1", "u1", "2026-08-30", "vc1", 8))
	require.NoError(t, s.AddDailyReactionsGiven(ctx, "g1", "u1", "2026-08-30", "c1", 1))
	require.NoError(t, s.AddDailyReactionsReceived(ctx, "g1", "u1", "2026-08-30", "c1", 4))

	vc, err := s.GetDailyChannelStats(ctx, "g1", "u1", "2026-08-30", "vc1")
	require.NoError(t, err)
	require.NotNil(t, vc)
	assert.EqualValues(t, 20, vc.VoiceMinutes)

	c1, err := s.GetDailyChannelStats(ctx, "g1", "u1", "2026-08-30", "c1")
	require.NoError(t, err)
	require.NotNil(t, c1)
	assert.EqualValues(t, 1, c1.ReactionsGiven)
	assert.EqualValues(t, 4, c1.ReactionsReceived)
}

func TestSetPeakHour_CoversAllChannels(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordMessageSent(ctx, "g1", "u1", "2026-08-30", "c1", 1000, 3))
	require.NoError(t, s.RecordMessageSent(ctx, "g1", "u1", "2026-08-30", "c2", 2000, 4))
	require.NoError(t, s.SetPeakHour(ctx, "g1", "u1", "2026-08-30", 20))

	for _, ch := range []string{"c1", "c2"} {
		d, err := s.GetDailyChannelStats(ctx, "g1", "u1", "2026-08-30", ch)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, 20, d.PeakHour)
	}
}

func TestListDailyStatsForMonth(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordMessageSent(ctx, "g1", "u1", "2026-07-01", "c1", 1000, 1))
	require.NoError(t, s.RecordMessageSent(ctx, "g1", "u1", "2026-07-15", "c1", 2000, 2))
	require.NoError(t, s.RecordMessageSent(ctx, "g1", "u2", "2026-07-15", "c2", 3000, 3))
	// Next month must not appear
	require.NoError(t, s.RecordMessageSent(ctx, "g1", "u1", "2026-08-01", "c1", 4000, 4))

	rows, err := s.ListDailyStatsForMonth(ctx, "g1", "2026-07")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "u1", rows[0].UserID)
	assert.Equal(t, "2026-07-01", rows[0].Date)
}

func TestMonthlyStats_UpsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := MonthlyStats{
		GuildID:           "g1",
		UserID:            "u1",
		Month:             "2026-07",
		TotalMessages:     120,
		TotalVoiceMinutes: 300,
		ActiveDays:        14,
		AvgMessagesPerDay: 120.0 / 31.0,
		TopChannels: []ChannelActivity{
			{ChannelID: "c1", Messages: 90},
			{ChannelID: "c2", Messages: 30},
		},
	}
	require.NoError(t, s.UpsertMonthlyStats(ctx, m))

	// Re-running the rollup with corrected numbers replaces the row
	m.TotalMessages = 121
	require.NoError(t, s.UpsertMonthlyStats(ctx, m))

	got, err := s.GetMonthlyStats(ctx, "g1", "u1", "2026-07")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 121, got.TotalMessages)
	assert.Equal(t, 14, got.ActiveDays)
	require.Len(t, got.TopChannels, 2)
	assert.Equal(t, "c1", got.TopChannels[0].ChannelID)
}

func TestSnapshots_WriteOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := MetricsSnapshot{
		GuildID:           "g1",
		PeriodStartMs:     1700000000000,
		PeriodEndMs:       1700000300000,
		PeriodType:        "5min",
		TotalMessages:     10,
		UniqueActiveUsers: 3,
		EventCounts:       map[string]int64{"MESSAGE_CREATE": 10},
		CreatedAtMs:       1700000301000,
	}

	written, err := s.InsertSnapshot(ctx, snap)
	require.NoError(t, err)
	assert.True(t, written)

	// A replayed job must not overwrite the original snapshot
	snap.TotalMessages = 999
	written, err = s.InsertSnapshot(ctx, snap)
	require.NoError(t, err)
	assert.False(t, written)

	got, err := s.GetSnapshot(ctx, "g1", 1700000000000, 1700000300000, "5min")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 10, got.TotalMessages)
	assert.EqualValues(t, 10, got.EventCounts["MESSAGE_CREATE"])
}

func TestListSnapshots_OrderedByWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, start := range []int64{1700000600000, 1700000000000, 1700000300000} {
		_, err := s.InsertSnapshot(ctx, MetricsSnapshot{
			GuildID: "g1", PeriodStartMs: start, PeriodEndMs: start + 300000, PeriodType: "5min",
		})
		require.NoError(t, err)
	}

	snaps, err := s.ListSnapshots(ctx, "g1", "5min", 1700000000000, 1700000900000)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.EqualValues(t, 1700000000000, snaps[0].PeriodStartMs)
	assert.EqualValues(t, 1700000600000, snaps[2].PeriodStartMs)
}

func TestDeleteRawEventsBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertRawEvents(ctx, []events.Event{
		{Type: events.TypeMessageCreate, GuildID: "g1", UserID: "u1", MessageID: "old", Timestamp: 1000},
		{Type: events.TypeMessageCreate, GuildID: "g1", UserID: "u1", MessageID: "new", Timestamp: 9000},
	})
	require.NoError(t, err)

	pruned, err := s.DeleteRawEventsBefore(ctx, 5000)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	n, err := s.CountRawEvents(ctx, "g1", 0, 10000)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDeleteDailyStatsBefore_RequiresRollup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordMessageSent(ctx, "g1", "u1", "2026-05-10", "c1", 1000, 1))
	require.NoError(t, s.RecordMessageSent(ctx, "g1", "u1", "2026-06-10", "c1", 2000, 2))

	// Neither month rolled up yet: nothing may be pruned
	pruned, err := s.DeleteDailyStatsBefore(ctx, "g1", "2026-07-01")
	require.NoError(t, err)
	assert.EqualValues(t, 0, pruned)

	require.NoError(t, s.MarkRollupComplete(ctx, "g1", "2026-05", 1700000000000))

	pruned, err = s.DeleteDailyStatsBefore(ctx, "g1", "2026-07-01")
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	// June survives until its rollup completes
	d, err := s.GetDailyChannelStats(ctx, "g1", "u1", "2026-06-10", "c1")
	require.NoError(t, err)
	assert.NotNil(t, d)
}

func TestRollupMarkers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	done, err := s.IsRollupComplete(ctx, "g1", "2026-07")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, s.MarkRollupComplete(ctx, "g1", "2026-07", 1700000000000))
	require.NoError(t, s.MarkRollupComplete(ctx, "g1", "2026-07", 1700000100000))

	done, err = s.IsRollupComplete(ctx, "g1", "2026-07")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestWindowAggregationQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertRawEvents(ctx, []events.Event{
		{Type: events.TypeMessageCreate, GuildID: "g1", UserID: "u1", MessageID: "m1", Timestamp: 1000},
		{Type: events.TypeMessageCreate, GuildID: "g1", UserID: "u2", MessageID: "m2", Timestamp: 2000},
		{Type: events.TypeReactionAdd, GuildID: "g1", UserID: "u1", MessageID: "m1", Timestamp: 3000},
		{Type: events.TypeMemberJoin, GuildID: "g1", Timestamp: 4000},
		// Outside the window
		{Type: events.TypeMessageCreate, GuildID: "g1", UserID: "u3", MessageID: "m3", Timestamp: 99000},
	})
	require.NoError(t, err)

	counts, err := s.WindowEventCounts(ctx, "g1", 0, 10000)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts["MESSAGE_CREATE"])
	assert.EqualValues(t, 1, counts["REACTION_ADD"])
	assert.EqualValues(t, 1, counts["MEMBER_JOIN"])

	// MEMBER_JOIN carried no user id and must not count as active
	users, err := s.CountUniqueActiveUsers(ctx, "g1", 0, 10000)
	require.NoError(t, err)
	assert.EqualValues(t, 2, users)
}

func TestMessageHourCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hour := func(h int) int64 { return int64(h) * 3600000 }
	_, err := s.InsertRawEvents(ctx, []events.Event{
		{Type: events.TypeMessageCreate, GuildID: "g1", UserID: "u1", MessageID: "a", Timestamp: hour(9) + 100},
		{Type: events.TypeMessageCreate, GuildID: "g1", UserID: "u1", MessageID: "b", Timestamp: hour(9) + 200},
		{Type: events.TypeMessageCreate, GuildID: "g1", UserID: "u1", MessageID: "c", Timestamp: hour(14)},
		{Type: events.TypeReactionAdd, GuildID: "g1", UserID: "u1", MessageID: "a", Timestamp: hour(20)},
	})
	require.NoError(t, err)

	rows, err := s.MessageHourCounts(ctx, "g1", 0, hour(24))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, UserHour{UserID: "u1", Hour: 9, Count: 2}, rows[0])
	assert.Equal(t, UserHour{UserID: "u1", Hour: 14, Count: 1}, rows[1])
}
