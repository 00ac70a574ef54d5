package statsquery

import (
	"context"
	"database/sql"
	"fmt"
)

// ChannelBreakdown is one channel's share of a member's messages
type ChannelBreakdown struct {
	ChannelID string `json:"channelId"`
	Messages  int64  `json:"messages"`
}

// MemberProfile is the full read-side view of one member
type MemberProfile struct {
	GuildID                string             `json:"guildId"`
	UserID                 string             `json:"userId"`
	TotalMessages          int64              `json:"totalMessages"`
	TotalVoiceMinutes      int64              `json:"totalVoiceMinutes"`
	TotalReactionsGiven    int64              `json:"totalReactionsGiven"`
	TotalReactionsReceived int64              `json:"totalReactionsReceived"`
	LastSeenMs             int64              `json:"lastSeenMs"`
	Period                 PeriodTotals       `json:"period"`
	Timeline               []DayStats         `json:"timeline"`
	Channels               []ChannelBreakdown `json:"channels"`
	Rank                   int64              `json:"rank"`
	Consistency            float64            `json:"consistency"`
}

// MemberProfile composes one member's profile over the trailing days
// window: cumulative totals, period activity, per-day timeline, channel
// breakdown, guild rank by total messages, and the consistency ratio
// (days active / days in period). Returns (nil, nil) for unknown members.
func (s *Service) MemberProfile(ctx context.Context, guildID, userID string, days int) (*MemberProfile, error) {
	if days <= 0 {
		days = 30
	}

	cumulative, err := s.memberCumulative(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	if cumulative == nil {
		return nil, nil
	}
	p := *cumulative

	today := s.now().UTC()
	toDate := fmtDate(today.AddDate(0, 0, -1))
	fromDate := fmtDate(today.AddDate(0, 0, -days))

	timeline, err := s.memberTimeline(ctx, guildID, userID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	p.Timeline = timeline

	activeDays := 0
	for _, d := range timeline {
		p.Period.Messages += d.Messages
		p.Period.VoiceMinutes += d.VoiceMinutes
		p.Period.ReactionsGiven += d.ReactionsGiven
		p.Period.ReactionsReceived += d.ReactionsReceived
		if d.Messages > 0 || d.VoiceMinutes > 0 || d.ReactionsGiven > 0 {
			activeDays++
		}
	}
	p.Consistency = float64(activeDays) / float64(days)

	p.Channels, err = s.memberChannels(ctx, guildID, userID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	p.Rank, err = s.memberRank(ctx, guildID, p.TotalMessages)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) memberCumulative(ctx context.Context, guildID, userID string) (*MemberProfile, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var p MemberProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, total_messages, total_voice_minutes,
			total_reactions_given, total_reactions_received, last_seen_ms
		FROM member_stats
		WHERE guild_id = $1 AND user_id = $2
	`, guildID, userID).Scan(
		&p.GuildID, &p.UserID, &p.TotalMessages, &p.TotalVoiceMinutes,
		&p.TotalReactionsGiven, &p.TotalReactionsReceived, &p.LastSeenMs)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load member %s/%s: %w", guildID, userID, err)
	}
	return &p, nil
}

func (s *Service) memberTimeline(ctx context.Context, guildID, userID, fromDate, toDate string) ([]DayStats, error) {
	days, err := enumerateDays(fromDate, toDate)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, SUM(messages_sent), SUM(voice_minutes),
			SUM(reactions_given), SUM(reactions_received)
		FROM daily_channel_stats
		WHERE guild_id = $1 AND user_id = $2 AND date >= $3 AND date <= $4
		GROUP BY date
		ORDER BY date
	`, guildID, userID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query member timeline for %s/%s: %w", guildID, userID, err)
	}
	defer rows.Close()

	byDate := map[string]DayStats{}
	for rows.Next() {
		var d DayStats
		if err := rows.Scan(&d.Date, &d.Messages, &d.VoiceMinutes,
			&d.ReactionsGiven, &d.ReactionsReceived); err != nil {
			return nil, fmt.Errorf("failed to scan member timeline row: %w", err)
		}
		d.ActiveMembers = 1
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

func (s *Service) memberChannels(ctx context.Context, guildID, userID, fromDate, toDate string) ([]ChannelBreakdown, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_id, SUM(messages_sent)
		FROM daily_channel_stats
		WHERE guild_id = $1 AND user_id = $2 AND date >= $3 AND date <= $4
			AND channel_id <> ''
		GROUP BY channel_id
		HAVING SUM(messages_sent) > 0
		ORDER BY SUM(messages_sent) DESC, channel_id
	`, guildID, userID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query member channels for %s/%s: %w", guildID, userID, err)
	}
	defer rows.Close()

	var out []ChannelBreakdown
	for rows.Next() {
		var c ChannelBreakdown
		if err := rows.Scan(&c.ChannelID, &c.Messages); err != nil {
			return nil, fmt.Errorf("failed to scan channel breakdown row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// memberRank counts members with strictly more total messages, plus one
func (s *Service) memberRank(ctx context.Context, guildID string, totalMessages int64) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var ahead int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM member_stats
		WHERE guild_id = $1 AND total_messages > $2
	`, guildID, totalMessages).Scan(&ahead)
	if err != nil {
		return 0, fmt.Errorf("failed to rank member in %s: %w", guildID, err)
	}
	return ahead + 1, nil
}
