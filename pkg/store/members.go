package store

import (
	"context"
	"database/sql"
	"fmt"
)

// MemberStats is the running cumulative counters for one guild member.
// Counters are never decremented.
type MemberStats struct {
	GuildID                string
	UserID                 string
	TotalMessages          int64
	TotalVoiceMinutes      int64
	TotalReactionsGiven    int64
	TotalReactionsReceived int64
	LastSeenMs             int64
	LastMessageMs          int64
	LastVoiceMs            int64
}

// IncrementMessages atomically adds one message to a member's running
// total and advances last-message/last-seen watermarks.
func (s *Store) IncrementMessages(ctx context.Context, guildID, userID string, tsMs int64) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO member_stats (guild_id, user_id, total_messages, last_message_ms, last_seen_ms)
		VALUES ($1, $2, 1, $3, $3)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			total_messages = member_stats.total_messages + 1,
			last_message_ms = CASE WHEN excluded.last_message_ms > member_stats.last_message_ms
				THEN excluded.last_message_ms ELSE member_stats.last_message_ms END,
			last_seen_ms = CASE WHEN excluded.last_seen_ms > member_stats.last_seen_ms
				THEN excluded.last_seen_ms ELSE member_stats.last_seen_ms END
	`, guildID, userID, tsMs)
	if err != nil {
		return fmt.Errorf("failed to increment messages for %s/%s: %w", guildID, userID, err)
	}
	return nil
}

// AddVoiceMinutes atomically adds closed-session minutes to a member's
// running total and advances last-voice/last-seen watermarks.
func (s *Store) AddVoiceMinutes(ctx context.Context, guildID, userID string, minutes int64, tsMs int64) error {
	if minutes <= 0 {
		return nil
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO member_stats (guild_id, user_id, total_voice_minutes, last_voice_ms, last_seen_ms)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			total_voice_minutes = member_stats.total_voice_minutes + excluded.total_voice_minutes,
			last_voice_ms = CASE WHEN excluded.last_voice_ms > member_stats.last_voice_ms
				THEN excluded.last_voice_ms ELSE member_stats.last_voice_ms END,
			last_seen_ms = CASE WHEN excluded.last_seen_ms > member_stats.last_seen_ms
				THEN excluded.last_seen_ms ELSE member_stats.last_seen_ms END
	`, guildID, userID, minutes, tsMs)
	if err != nil {
		return fmt.Errorf("failed to add voice minutes for %s/%s: %w", guildID, userID, err)
	}
	return nil
}

// AddReactionsGiven atomically adds to a member's reactions-given total
func (s *Store) AddReactionsGiven(ctx context.Context, guildID, userID string, count int64, tsMs int64) error {
	if count <= 0 {
		return nil
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO member_stats (guild_id, user_id, total_reactions_given, last_seen_ms)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			total_reactions_given = member_stats.total_reactions_given + excluded.total_reactions_given,
			last_seen_ms = CASE WHEN excluded.last_seen_ms > member_stats.last_seen_ms
				THEN excluded.last_seen_ms ELSE member_stats.last_seen_ms END
	`, guildID, userID, count, tsMs)
	if err != nil {
		return fmt.Errorf("failed to add reactions given for %s/%s: %w", guildID, userID, err)
	}
	return nil
}

// AddReactionsReceived atomically adds to a member's reactions-received
// total. Receiving a reaction does not advance last-seen.
func (s *Store) AddReactionsReceived(ctx context.Context, guildID, userID string, count int64) error {
	if count <= 0 {
		return nil
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO member_stats (guild_id, user_id, total_reactions_received)
		VALUES ($1, $2, $3)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			total_reactions_received = member_stats.total_reactions_received + excluded.total_reactions_received
	`, guildID, userID, count)
	if err != nil {
		return fmt.Errorf("failed to add reactions received for %s/%s: %w", guildID, userID, err)
	}
	return nil
}

// TouchLastSeen advances a member's last-seen watermark
func (s *Store) TouchLastSeen(ctx context.Context, guildID, userID string, tsMs int64) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO member_stats (guild_id, user_id, last_seen_ms)
		VALUES ($1, $2, $3)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			last_seen_ms = CASE WHEN excluded.last_seen_ms > member_stats.last_seen_ms
				THEN excluded.last_seen_ms ELSE member_stats.last_seen_ms END
	`, guildID, userID, tsMs)
	if err != nil {
		return fmt.Errorf("failed to touch last seen for %s/%s: %w", guildID, userID, err)
	}
	return nil
}

// GetMemberStats fetches one member's cumulative counters.
// Returns (nil, nil) when the member has no stats yet.
func (s *Store) GetMemberStats(ctx context.Context, guildID, userID string) (*MemberStats, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var m MemberStats
	err := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, total_messages, total_voice_minutes,
			total_reactions_given, total_reactions_received,
			last_seen_ms, last_message_ms, last_voice_ms
		FROM member_stats
		WHERE guild_id = $1 AND user_id = $2
	`, guildID, userID).Scan(
		&m.GuildID, &m.UserID, &m.TotalMessages, &m.TotalVoiceMinutes,
		&m.TotalReactionsGiven, &m.TotalReactionsReceived,
		&m.LastSeenMs, &m.LastMessageMs, &m.LastVoiceMs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get member stats for %s/%s: %w", guildID, userID, err)
	}
	return &m, nil
}
