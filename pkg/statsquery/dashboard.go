package statsquery

import (
	"context"
	"fmt"
	"time"
)

// Health labels derived from period-over-period message deltas
const (
	HealthGrowing   = "growing"
	HealthSteady    = "steady"
	HealthDeclining = "declining"
)

// TopMember is one entry of the dashboard's most-active list
type TopMember struct {
	UserID       string `json:"userId"`
	Messages     int64  `json:"messages"`
	VoiceMinutes int64  `json:"voiceMinutes"`
}

// Dashboard is the guild overview: the current period, deltas against
// the previous period of equal length, a per-day timeline, the most
// active members, and a coarse health label.
type Dashboard struct {
	GuildID        string       `json:"guildId"`
	Days           int          `json:"days"`
	Current        PeriodTotals `json:"current"`
	Previous       PeriodTotals `json:"previous"`
	MessagesDelta  float64      `json:"messagesDeltaPct"`
	ActivityDelta  float64      `json:"activityDeltaPct"`
	Timeline       []DayStats   `json:"timeline"`
	TopMembers     []TopMember  `json:"topMembers"`
	Health         string       `json:"health"`
	GeneratedAtMs  int64        `json:"generatedAtMs"`
}

// GuildDashboard composes the dashboard for the trailing days window
// ending yesterday (the last fully-aggregated day). Results are cached.
func (s *Service) GuildDashboard(ctx context.Context, guildID string, days int) (*Dashboard, error) {
	if days <= 0 {
		days = 7
	}

	cacheKey := fmt.Sprintf("dashboard:%s:%d", guildID, days)
	if s.cache != nil {
		var cached Dashboard
		if s.cache.Get(ctx, cacheKey, &cached) {
			return &cached, nil
		}
	}

	today := s.now().UTC()
	curTo := today.AddDate(0, 0, -1)
	curFrom := curTo.AddDate(0, 0, -(days - 1))
	prevTo := curFrom.AddDate(0, 0, -1)
	prevFrom := prevTo.AddDate(0, 0, -(days - 1))

	current, err := s.periodTotals(ctx, guildID, fmtDate(curFrom), fmtDate(curTo))
	if err != nil {
		return nil, err
	}
	previous, err := s.periodTotals(ctx, guildID, fmtDate(prevFrom), fmtDate(prevTo))
	if err != nil {
		return nil, err
	}
	timeline, err := s.Timeline(ctx, guildID, fmtDate(curFrom), fmtDate(curTo))
	if err != nil {
		return nil, err
	}
	topMembers, err := s.topMembers(ctx, guildID, fmtDate(curFrom), fmtDate(curTo), 5)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		GuildID:       guildID,
		Days:          days,
		Current:       current,
		Previous:      previous,
		MessagesDelta: deltaPct(current.Messages, previous.Messages),
		ActivityDelta: deltaPct(current.ActiveMembers, previous.ActiveMembers),
		Timeline:      timeline,
		TopMembers:    topMembers,
		GeneratedAtMs: s.now().UnixMilli(),
	}
	d.Health = healthLabel(d.MessagesDelta)

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, d)
	}
	return d, nil
}

func (s *Service) topMembers(ctx context.Context, guildID, fromDate, toDate string, limit int) ([]TopMember, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, SUM(messages_sent), SUM(voice_minutes)
		FROM daily_channel_stats
		WHERE guild_id = $1 AND date >= $2 AND date <= $3
		GROUP BY user_id
		ORDER BY SUM(messages_sent) DESC, user_id
		LIMIT $4
	`, guildID, fromDate, toDate, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top members for %s: %w", guildID, err)
	}
	defer rows.Close()

	var out []TopMember
	for rows.Next() {
		var m TopMember
		if err := rows.Scan(&m.UserID, &m.Messages, &m.VoiceMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan top member row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// deltaPct is the percentage change from prev to cur. A previous period
// of zero reports +100% when there is any current activity.
func deltaPct(cur, prev int64) float64 {
	if prev == 0 {
		if cur == 0 {
			return 0
		}
		return 100
	}
	return float64(cur-prev) / float64(prev) * 100
}

func healthLabel(messagesDeltaPct float64) string {
	switch {
	case messagesDeltaPct >= 10:
		return HealthGrowing
	case messagesDeltaPct <= -10:
		return HealthDeclining
	default:
		return HealthSteady
	}
}

func fmtDate(t time.Time) string {
	return t.Format("2006-01-02")
}
