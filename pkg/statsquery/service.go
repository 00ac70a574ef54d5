package statsquery

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/guildpulse/guildpulse/pkg/cache"
	"github.com/guildpulse/guildpulse/pkg/observability"
)

// Service composes read-only views over the materialized stats tables.
// It never touches raw events and never mutates anything.
type Service struct {
	db        *sql.DB
	cache     *cache.Cache
	logger    *observability.Logger
	opTimeout time.Duration
	now       func() time.Time
}

// NewService builds the query service. cache may be nil to disable
// result caching.
func NewService(db *sql.DB, c *cache.Cache, logger *observability.Logger, opTimeout time.Duration) *Service {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &Service{db: db, cache: c, logger: logger, opTimeout: opTimeout, now: time.Now}
}

func (s *Service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// DayStats is one day of guild or member activity
type DayStats struct {
	Date              string `json:"date"`
	Messages          int64  `json:"messages"`
	VoiceMinutes      int64  `json:"voiceMinutes"`
	ReactionsGiven    int64  `json:"reactionsGiven"`
	ReactionsReceived int64  `json:"reactionsReceived"`
	ActiveMembers     int64  `json:"activeMembers"`
}

// PeriodTotals sums activity over a date range
type PeriodTotals struct {
	Messages          int64 `json:"messages"`
	VoiceMinutes      int64 `json:"voiceMinutes"`
	ReactionsGiven    int64 `json:"reactionsGiven"`
	ReactionsReceived int64 `json:"reactionsReceived"`
	ActiveMembers     int64 `json:"activeMembers"`
}

// Timeline returns per-day guild activity for dates in [fromDate,
// toDate], oldest first. Days with no activity are filled with zero
// rows so charts have no gaps.
func (s *Service) Timeline(ctx context.Context, guildID, fromDate, toDate string) ([]DayStats, error) {
	days, err := enumerateDays(fromDate, toDate)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, SUM(messages_sent), SUM(voice_minutes),
			SUM(reactions_given), SUM(reactions_received),
			COUNT(DISTINCT user_id)
		FROM daily_channel_stats
		WHERE guild_id = $1 AND date >= $2 AND date <= $3
		GROUP BY date
		ORDER BY date
	`, guildID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline for %s: %w", guildID, err)
	}
	defer rows.Close()

	byDate := map[string]DayStats{}
	for rows.Next() {
		var d DayStats
		if err := rows.Scan(&d.Date, &d.Messages, &d.VoiceMinutes,
			&d.ReactionsGiven, &d.ReactionsReceived, &d.ActiveMembers); err != nil {
			return nil, fmt.Errorf("failed to scan timeline row: %w", err)
		}
		byDate[d.Date] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]DayStats, len(days))
	for i, date := range days {
		if d, ok := byDate[date]; ok {
			out[i] = d
		} else {
			out[i] = DayStats{Date: date}
		}
	}
	return out, nil
}

// periodTotals sums one date range for a guild
func (s *Service) periodTotals(ctx context.Context, guildID, fromDate, toDate string) (PeriodTotals, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var t PeriodTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(messages_sent), 0), COALESCE(SUM(voice_minutes), 0),
			COALESCE(SUM(reactions_given), 0), COALESCE(SUM(reactions_received), 0),
			COUNT(DISTINCT user_id)
		FROM daily_channel_stats
		WHERE guild_id = $1 AND date >= $2 AND date <= $3
	`, guildID, fromDate, toDate).Scan(
		&t.Messages, &t.VoiceMinutes, &t.ReactionsGiven, &t.ReactionsReceived, &t.ActiveMembers)
	if err != nil {
		return t, fmt.Errorf("failed to sum period for %s: %w", guildID, err)
	}
	return t, nil
}

// enumerateDays lists every YYYY-MM-DD date in [fromDate, toDate]
func enumerateDays(fromDate, toDate string) ([]string, error) {
	from, err := time.Parse("2006-01-02", fromDate)
	if err != nil {
		return nil, fmt.Errorf("invalid from date %q: %w", fromDate, err)
	}
	to, err := time.Parse("2006-01-02", toDate)
	if err != nil {
		return nil, fmt.Errorf("invalid to date %q: %w", toDate, err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("date range %s..%s is inverted", fromDate, toDate)
	}

	var days []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("2006-01-02"))
	}
	return days, nil
}
