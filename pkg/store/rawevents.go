package store

import (
	"context"
	"fmt"

	"github.com/guildpulse/guildpulse/pkg/events"
)

// InsertRawEvents persists a batch of accepted events append-only inside
// one transaction. Exact duplicates (same dedupe key) are silently
// skipped. Returns the number of rows actually inserted.
func (s *Store) InsertRawEvents(ctx context.Context, batch []events.Event) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin raw event insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO raw_events (
			event_key, event_type, guild_id, user_id, channel_id,
			message_id, role_id, timestamp_ms, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_key) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare raw event insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range batch {
		ev := &batch[i]
		res, err := stmt.ExecContext(ctx,
			ev.DedupeKey(), string(ev.Type), ev.GuildID, ev.UserID,
			ev.ChannelID, ev.MessageID, ev.RoleID, ev.Timestamp, string(ev.Data),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert raw event: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit raw event insert: %w", err)
	}
	return inserted, nil
}

// CountRawEvents returns the number of raw events stored for a guild
// within [startMs, endMs).
func (s *Store) CountRawEvents(ctx context.Context, guildID string, startMs, endMs int64) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM raw_events
		WHERE guild_id = $1 AND timestamp_ms >= $2 AND timestamp_ms < $3
	`, guildID, startMs, endMs).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count raw events: %w", err)
	}
	return n, nil
}
