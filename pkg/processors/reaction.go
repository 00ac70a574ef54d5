package processors

import (
	"context"
	"fmt"

	"github.com/guildpulse/guildpulse/pkg/events"
	"github.com/guildpulse/guildpulse/pkg/observability"
	"github.com/guildpulse/guildpulse/pkg/queue"
)

// ReactionStore is the slice of the stats store reaction processing writes to
type ReactionStore interface {
	AddReactionsGiven(ctx context.Context, guildID, userID string, count int64, tsMs int64) error
	AddReactionsReceived(ctx context.Context, guildID, userID string, count int64) error
	AddDailyReactionsGiven(ctx context.Context, guildID, userID, date, channelID string, count int64) error
	AddDailyReactionsReceived(ctx context.Context, guildID, userID, date, channelID string, count int64) error
}

// ReactionProcessor handles REACTION_ADD jobs. The reactor is always
// credited a reaction given; the message author is credited a reaction
// received only when known and distinct from the reactor, so
// self-reactions count one side only.
type ReactionProcessor struct {
	store  ReactionStore
	logger *observability.Logger
}

// NewReactionProcessor builds the reaction job handler
func NewReactionProcessor(store ReactionStore, logger *observability.Logger) *ReactionProcessor {
	return &ReactionProcessor{store: store, logger: logger}
}

// Handle processes one reaction
func (p *ReactionProcessor) Handle(ctx context.Context, job *queue.Job) error {
	var ev events.Event
	if err := job.DecodePayload(&ev); err != nil {
		return err
	}
	if ev.Type != events.TypeReactionAdd {
		return fmt.Errorf("reaction processor cannot handle %s", ev.Type)
	}
	return p.apply(ctx, &ev, 1, ev.Timestamp)
}

// ProcessBatch applies a burst of reactions with one store write per
// (member, side) instead of one per event. Timestamps advance to the
// newest event in each group.
func (p *ReactionProcessor) ProcessBatch(ctx context.Context, batch []events.Event) error {
	type key struct {
		guildID   string
		userID    string
		date      string
		channelID string
	}
	type group struct {
		count int64
		tsMs  int64
	}

	given := map[key]*group{}
	received := map[key]*group{}

	for i := range batch {
		ev := &batch[i]
		if ev.Type != events.TypeReactionAdd {
			return fmt.Errorf("reaction processor cannot handle %s", ev.Type)
		}

		g := key{ev.GuildID, ev.UserID, ev.Date(), ev.ChannelID}
		if cur, ok := given[g]; ok {
			cur.count++
			if ev.Timestamp > cur.tsMs {
				cur.tsMs = ev.Timestamp
			}
		} else {
			given[g] = &group{count: 1, tsMs: ev.Timestamp}
		}

		data, err := ev.ReactionAddData()
		if err != nil {
			return err
		}
		if data.MessageAuthorID == "" || data.MessageAuthorID == ev.UserID {
			continue
		}
		r := key{ev.GuildID, data.MessageAuthorID, ev.Date(), ev.ChannelID}
		if cur, ok := received[r]; ok {
			cur.count++
		} else {
			received[r] = &group{count: 1}
		}
	}

	for k, g := range given {
		if err := p.store.AddReactionsGiven(ctx, k.guildID, k.userID, g.count, g.tsMs); err != nil {
			return err
		}
		if err := p.store.AddDailyReactionsGiven(ctx, k.guildID, k.userID, k.date, k.channelID, g.count); err != nil {
			return err
		}
	}
	for k, g := range received {
		if err := p.store.AddReactionsReceived(ctx, k.guildID, k.userID, g.count); err != nil {
			return err
		}
		if err := p.store.AddDailyReactionsReceived(ctx, k.guildID, k.userID, k.date, k.channelID, g.count); err != nil {
			return err
		}
	}
	return nil
}

func (p *ReactionProcessor) apply(ctx context.Context, ev *events.Event, count int64, tsMs int64) error {
	if err := p.store.AddReactionsGiven(ctx, ev.GuildID, ev.UserID, count, tsMs); err != nil {
		return err
	}
	if err := p.store.AddDailyReactionsGiven(ctx, ev.GuildID, ev.UserID, ev.Date(), ev.ChannelID, count); err != nil {
		return err
	}

	data, err := ev.ReactionAddData()
	if err != nil {
		return err
	}
	if data.MessageAuthorID == "" || data.MessageAuthorID == ev.UserID {
		return nil
	}

	if err := p.store.AddReactionsReceived(ctx, ev.GuildID, data.MessageAuthorID, count); err != nil {
		return err
	}
	return p.store.AddDailyReactionsReceived(ctx, ev.GuildID, data.MessageAuthorID, ev.Date(), ev.ChannelID, count)
}
