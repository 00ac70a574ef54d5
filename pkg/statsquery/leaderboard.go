package statsquery

import (
	"context"
	"fmt"
)

// Sortable member list columns
const (
	SortByMessages  = "messages"
	SortByVoice     = "voice"
	SortByReactions = "reactions"
	SortByLastSeen  = "last_seen"
)

// sortColumns whitelists ORDER BY targets; never interpolate caller input
var sortColumns = map[string]string{
	SortByMessages:  "total_messages",
	SortByVoice:     "total_voice_minutes",
	SortByReactions: "total_reactions_given",
	SortByLastSeen:  "last_seen_ms",
}

// MemberListOptions controls pagination, ordering and filtering of the
// member list.
type MemberListOptions struct {
	SortBy      string
	Limit       int
	Offset      int
	MinMessages int64
}

// MemberSummary is one row of the member list or leaderboard
type MemberSummary struct {
	UserID                 string `json:"userId"`
	TotalMessages          int64  `json:"totalMessages"`
	TotalVoiceMinutes      int64  `json:"totalVoiceMinutes"`
	TotalReactionsGiven    int64  `json:"totalReactionsGiven"`
	TotalReactionsReceived int64  `json:"totalReactionsReceived"`
	LastSeenMs             int64  `json:"lastSeenMs"`
	Rank                   int    `json:"rank,omitempty"`
	Badge                  string `json:"badge,omitempty"`
}

// Badges awarded to the leaderboard's top three
var badges = []string{"gold", "silver", "bronze"}

// ListMembers returns one page of a guild's members ordered by the
// requested column, descending, user id ascending on ties.
func (s *Service) ListMembers(ctx context.Context, guildID string, opts MemberListOptions) ([]MemberSummary, error) {
	column, ok := sortColumns[opts.SortBy]
	if !ok {
		if opts.SortBy != "" {
			return nil, fmt.Errorf("unknown sort column %q", opts.SortBy)
		}
		column = sortColumns[SortByMessages]
	}
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT user_id, total_messages, total_voice_minutes,
			total_reactions_given, total_reactions_received, last_seen_ms
		FROM member_stats
		WHERE guild_id = $1 AND total_messages >= $2
		ORDER BY %s DESC, user_id
		LIMIT $3 OFFSET $4
	`, column)

	rows, err := s.db.QueryContext(ctx, query, guildID, opts.MinMessages, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list members for %s: %w", guildID, err)
	}
	defer rows.Close()

	var out []MemberSummary
	for rows.Next() {
		var m MemberSummary
		if err := rows.Scan(&m.UserID, &m.TotalMessages, &m.TotalVoiceMinutes,
			&m.TotalReactionsGiven, &m.TotalReactionsReceived, &m.LastSeenMs); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Leaderboard ranks a guild's members by the given metric. The top
// three carry gold, silver and bronze badges.
func (s *Service) Leaderboard(ctx context.Context, guildID, sortBy string, limit int) ([]MemberSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	members, err := s.ListMembers(ctx, guildID, MemberListOptions{SortBy: sortBy, Limit: limit})
	if err != nil {
		return nil, err
	}
	for i := range members {
		members[i].Rank = i + 1
		if i < len(badges) {
			members[i].Badge = badges[i]
		}
	}
	return members, nil
}
