package aggregation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guildpulse/guildpulse/pkg/observability"
	"github.com/guildpulse/guildpulse/pkg/store"
)

const topChannelCount = 5

// RollupStore is the slice of the stats store the monthly rollup uses
type RollupStore interface {
	GuildsWithDailyStats(ctx context.Context, month string) ([]string, error)
	ListDailyStatsForMonth(ctx context.Context, guildID, month string) ([]store.DailyChannelStats, error)
	UpsertMonthlyStats(ctx context.Context, m store.MonthlyStats) error
	MarkRollupComplete(ctx context.Context, guildID, month string, completedAtMs int64) error
}

// Roller compacts a month of daily rows into per-member monthly rows
type Roller struct {
	store       RollupStore
	logger      *observability.Logger
	concurrency int
	now         func() time.Time
}

// NewRoller builds the monthly rollup runner. concurrency bounds how
// many guilds roll up in parallel.
func NewRoller(s RollupStore, logger *observability.Logger, concurrency int) *Roller {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Roller{store: s, logger: logger, concurrency: concurrency, now: time.Now}
}

// RollupMonth compacts one month for every given guild plus any guild
// holding daily rows for that month, so deactivated or unregistered
// guilds with data still get compacted. Guild failures are isolated;
// the first error is returned after all guilds finish.
func (r *Roller) RollupMonth(ctx context.Context, guildIDs []string, month string) error {
	days, err := daysInMonth(month)
	if err != nil {
		return err
	}

	withData, err := r.store.GuildsWithDailyStats(ctx, month)
	if err != nil {
		return err
	}
	targets := unionGuilds(guildIDs, withData)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, guildID := range targets {
		guildID := guildID
		g.Go(func() error {
			if err := r.rollupGuild(ctx, guildID, month, days); err != nil {
				r.logger.WithError(err).WithFields(map[string]interface{}{
					"guild_id": guildID,
					"month":    month,
				}).Error("monthly rollup failed")
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Roller) rollupGuild(ctx context.Context, guildID, month string, daysInMonth int) error {
	daily, err := r.store.ListDailyStatsForMonth(ctx, guildID, month)
	if err != nil {
		return err
	}

	type userAgg struct {
		stats       store.MonthlyStats
		activeDates map[string]struct{}
		byChannel   map[string]int64
	}

	users := map[string]*userAgg{}
	for i := range daily {
		d := &daily[i]
		agg, ok := users[d.UserID]
		if !ok {
			agg = &userAgg{
				stats: store.MonthlyStats{
					GuildID: guildID,
					UserID:  d.UserID,
					Month:   month,
				},
				activeDates: map[string]struct{}{},
				byChannel:   map[string]int64{},
			}
			users[d.UserID] = agg
		}

		agg.stats.TotalMessages += d.MessagesSent
		agg.stats.TotalVoiceMinutes += d.VoiceMinutes
		agg.stats.TotalReactionsGiven += d.ReactionsGiven
		agg.stats.TotalReactionsReceived += d.ReactionsReceived
		if d.MessagesSent > 0 || d.VoiceMinutes > 0 || d.ReactionsGiven > 0 {
			agg.activeDates[d.Date] = struct{}{}
		}
		// The empty channel holds activity without a channel dimension;
		// it counts toward totals but never ranks as a top channel.
		if d.ChannelID != "" {
			agg.byChannel[d.ChannelID] += d.MessagesSent
		}
	}

	for _, agg := range users {
		agg.stats.ActiveDays = len(agg.activeDates)
		agg.stats.AvgMessagesPerDay = float64(agg.stats.TotalMessages) / float64(daysInMonth)
		agg.stats.AvgVoiceMinutesPerDay = float64(agg.stats.TotalVoiceMinutes) / float64(daysInMonth)
		agg.stats.TopChannels = topChannels(agg.byChannel, topChannelCount)

		if err := r.store.UpsertMonthlyStats(ctx, agg.stats); err != nil {
			return err
		}
	}

	return r.store.MarkRollupComplete(ctx, guildID, month, r.now().UnixMilli())
}

// unionGuilds merges two guild id lists, first occurrence order, no
// duplicates.
func unionGuilds(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, ids := range [][]string{a, b} {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// topChannels ranks channels by message count, descending, channel id
// ascending on ties for a deterministic result.
func topChannels(byChannel map[string]int64, limit int) []store.ChannelActivity {
	ranked := make([]store.ChannelActivity, 0, len(byChannel))
	for channelID, messages := range byChannel {
		if messages > 0 {
			ranked = append(ranked, store.ChannelActivity{ChannelID: channelID, Messages: messages})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Messages != ranked[j].Messages {
			return ranked[i].Messages > ranked[j].Messages
		}
		return ranked[i].ChannelID < ranked[j].ChannelID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// daysInMonth returns the calendar length of a YYYY-MM month
func daysInMonth(month string) (int, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return 0, fmt.Errorf("invalid month %q: %w", month, err)
	}
	return t.AddDate(0, 1, -1).Day(), nil
}

// PreviousMonth returns the YYYY-MM month before the given time in UTC
func PreviousMonth(now time.Time) string {
	t := now.UTC()
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -1, 0).Format("2006-01")
}
