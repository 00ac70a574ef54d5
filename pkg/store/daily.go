package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DailyChannelStats is one member's activity in one channel on one UTC
// day. Rows with an empty channel_id hold activity that has no channel
// dimension (voice totals recorded per day, reactions received).
type DailyChannelStats struct {
	GuildID           string
	UserID            string
	Date              string
	ChannelID         string
	MessagesSent      int64
	MessagesDeleted   int64
	MessagesEdited    int64
	DeletedBySelf     int64
	DeletedByMod      int64
	VoiceMinutes      int64
	ReactionsGiven    int64
	ReactionsReceived int64
	PeakHour          int
	FirstMessageMs    int64
	LastMessageMs     int64
}

// RecordMessageSent increments the per-day per-channel message counter
// and tracks the first/last message timestamps for the day. hour is the
// UTC hour of the message and becomes the provisional peak hour; the
// daily aggregation pass later corrects it to the true busiest hour.
func (s *Store) RecordMessageSent(ctx context.Context, guildID, userID, date, channelID string, tsMs int64, hour int) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_channel_stats (
			guild_id, user_id, date, channel_id,
			messages_sent, peak_hour, first_message_ms, last_message_ms
		) VALUES ($1, $2, $3, $4, 1, $5, $6, $6)
		ON CONFLICT (guild_id, user_id, date, channel_id) DO UPDATE SET
			messages_sent = daily_channel_stats.messages_sent + 1,
			peak_hour = excluded.peak_hour,
			first_message_ms = CASE WHEN daily_channel_stats.first_message_ms = 0
					OR excluded.first_message_ms < daily_channel_stats.first_message_ms
				THEN excluded.first_message_ms ELSE daily_channel_stats.first_message_ms END,
			last_message_ms = CASE WHEN excluded.last_message_ms > daily_channel_stats.last_message_ms
				THEN excluded.last_message_ms ELSE daily_channel_stats.last_message_ms END
	`, guildID, userID, date, channelID, hour, tsMs)
	if err != nil {
		return fmt.Errorf("failed to record message sent for %s/%s: %w", guildID, userID, err)
	}
	return nil
}

// RecordMessageEdited increments the per-day edit counter
func (s *Store) RecordMessageEdited(ctx context.Context, guildID, userID, date, channelID string) error {
	return s.bumpDailyCounter(ctx, guildID, userID, date, channelID, "messages_edited", 1)
}

// RecordMessageDeleted increments the per-day delete counter, splitting
// self-deletions from moderator deletions.
func (s *Store) RecordMessageDeleted(ctx context.Context, guildID, userID, date, channelID string, bySelf bool) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	selfInc, modInc := int64(0), int64(1)
	if bySelf {
		selfInc, modInc = 1, 0
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_channel_stats (
			guild_id, user_id, date, channel_id,
			messages_deleted, deleted_by_self, deleted_by_mod
		) VALUES ($1, $2, $3, $4, 1, $5, $6)
		ON CONFLICT (guild_id, user_id, date, channel_id) DO UPDATE SET
			messages_deleted = daily_channel_stats.messages_deleted + 1,
			deleted_by_self = daily_channel_stats.deleted_by_self + excluded.deleted_by_self,
			deleted_by_mod = daily_channel_stats.deleted_by_mod + excluded.deleted_by_mod
	`, guildID, userID, date, channelID, selfInc, modInc)
	if err != nil {
		return fmt.Errorf("failed to record message deleted for %s/%s: %w", guildID, userID, err)
	}
	return nil
}

// AddDailyVoiceMinutes adds closed-session minutes to the member's
// per-day row. Voice time is recorded against the channel the session
// was held in.
func (s *Store) AddDailyVoiceMinutes(ctx context.Context, guildID, userID, date, channelID string, minutes int64) error {
	if minutes <= 0 {
		return nil
	}
	return s.bumpDailyCounter(ctx, guildID, userID, date, channelID, "voice_minutes", minutes)
}

// AddDailyReactionsGiven adds to the reactor's per-day counter
func (s *Store) AddDailyReactionsGiven(ctx context.Context, guildID, userID, date, channelID string, count int64) error {
	if count <= 0 {
		return nil
	}
	return s.bumpDailyCounter(ctx, guildID, userID, date, channelID, "reactions_given", count)
}

// AddDailyReactionsReceived adds to the message author's per-day
// counter. Reactions received have no channel dimension of their own so
// they accumulate on the channel the reacted message lives in.
func (s *Store) AddDailyReactionsReceived(ctx context.Context, guildID, userID, date, channelID string, count int64) error {
	if count <= 0 {
		return nil
	}
	return s.bumpDailyCounter(ctx, guildID, userID, date, channelID, "reactions_received", count)
}

// bumpDailyCounter upserts a single additive counter column. column is
// always one of our own identifiers, never caller input.
func (s *Store) bumpDailyCounter(ctx context.Context, guildID, userID, date, channelID, column string, delta int64) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO daily_channel_stats (guild_id, user_id, date, channel_id, %s)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guild_id, user_id, date, channel_id) DO UPDATE SET
			%s = daily_channel_stats.%s + excluded.%s
	`, column, column, column, column)

	if _, err := s.db.ExecContext(ctx, query, guildID, userID, date, channelID, delta); err != nil {
		return fmt.Errorf("failed to bump %s for %s/%s: %w", column, guildID, userID, err)
	}
	return nil
}

// SetPeakHour overwrites the peak hour on every channel row a member
// has for the day. Called by the daily aggregation pass with the true
// busiest hour computed from raw events.
func (s *Store) SetPeakHour(ctx context.Context, guildID, userID, date string, hour int) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE daily_channel_stats SET peak_hour = $4
		WHERE guild_id = $1 AND user_id = $2 AND date = $3
	`, guildID, userID, date, hour)
	if err != nil {
		return fmt.Errorf("failed to set peak hour for %s/%s: %w", guildID, userID, err)
	}
	return nil
}

// GetDailyChannelStats fetches one (member, day, channel) row.
// Returns (nil, nil) when no activity was recorded.
func (s *Store) GetDailyChannelStats(ctx context.Context, guildID, userID, date, channelID string) (*DailyChannelStats, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var d DailyChannelStats
	err := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, date, channel_id,
			messages_sent, messages_deleted, messages_edited,
			deleted_by_self, deleted_by_mod, voice_minutes,
			reactions_given, reactions_received, peak_hour,
			first_message_ms, last_message_ms
		FROM daily_channel_stats
		WHERE guild_id = $1 AND user_id = $2 AND date = $3 AND channel_id = $4
	`, guildID, userID, date, channelID).Scan(
		&d.GuildID, &d.UserID, &d.Date, &d.ChannelID,
		&d.MessagesSent, &d.MessagesDeleted, &d.MessagesEdited,
		&d.DeletedBySelf, &d.DeletedByMod, &d.VoiceMinutes,
		&d.ReactionsGiven, &d.ReactionsReceived, &d.PeakHour,
		&d.FirstMessageMs, &d.LastMessageMs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get daily stats for %s/%s: %w", guildID, userID, err)
	}
	return &d, nil
}

// ListDailyStatsForMonth streams every daily row a guild accumulated in
// a month (dates matching the YYYY-MM prefix), ordered for the rollup.
func (s *Store) ListDailyStatsForMonth(ctx context.Context, guildID, month string) ([]DailyChannelStats, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, user_id, date, channel_id,
			messages_sent, messages_deleted, messages_edited,
			deleted_by_self, deleted_by_mod, voice_minutes,
			reactions_given, reactions_received, peak_hour,
			first_message_ms, last_message_ms
		FROM daily_channel_stats
		WHERE guild_id = $1 AND date LIKE $2
		ORDER BY user_id, date, channel_id
	`, guildID, month+"-%")
	if err != nil {
		return nil, fmt.Errorf("failed to list daily stats for %s/%s: %w", guildID, month, err)
	}
	defer rows.Close()

	var out []DailyChannelStats
	for rows.Next() {
		var d DailyChannelStats
		if err := rows.Scan(
			&d.GuildID, &d.UserID, &d.Date, &d.ChannelID,
			&d.MessagesSent, &d.MessagesDeleted, &d.MessagesEdited,
			&d.DeletedBySelf, &d.DeletedByMod, &d.VoiceMinutes,
			&d.ReactionsGiven, &d.ReactionsReceived, &d.PeakHour,
			&d.FirstMessageMs, &d.LastMessageMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GuildsWithDailyStats returns the distinct guilds holding daily rows
// in a YYYY-MM month, regardless of their registry state.
func (s *Store) GuildsWithDailyStats(ctx context.Context, month string) ([]string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT guild_id FROM daily_channel_stats
		WHERE date LIKE $1
		ORDER BY guild_id
	`, month+"-%")
	if err != nil {
		return nil, fmt.Errorf("failed to list guilds with daily stats for %s: %w", month, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var guildID string
		if err := rows.Scan(&guildID); err != nil {
			return nil, fmt.Errorf("failed to scan guild id: %w", err)
		}
		out = append(out, guildID)
	}
	return out, rows.Err()
}
