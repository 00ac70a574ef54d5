package processors

import (
	"context"
	"fmt"

	"github.com/guildpulse/guildpulse/pkg/events"
	"github.com/guildpulse/guildpulse/pkg/observability"
	"github.com/guildpulse/guildpulse/pkg/queue"
)

// MembershipStore is the slice of the stats store membership processing touches
type MembershipStore interface {
	TouchLastSeen(ctx context.Context, guildID, userID string, tsMs int64) error
}

// MembershipProcessor handles member join/remove/ban/unban jobs. Joins
// seed a last-seen watermark; removals and bans are logged but keep the
// member's historical counters intact.
type MembershipProcessor struct {
	store  MembershipStore
	logger *observability.Logger
}

// NewMembershipProcessor builds the membership job handler
func NewMembershipProcessor(store MembershipStore, logger *observability.Logger) *MembershipProcessor {
	return &MembershipProcessor{store: store, logger: logger}
}

// Handle processes one membership event
func (p *MembershipProcessor) Handle(ctx context.Context, job *queue.Job) error {
	var ev events.Event
	if err := job.DecodePayload(&ev); err != nil {
		return err
	}

	logger := p.logger.WithFields(map[string]interface{}{
		"guild_id": ev.GuildID,
		"user_id":  ev.UserID,
	})

	switch ev.Type {
	case events.TypeMemberJoin:
		if ev.UserID == "" {
			return fmt.Errorf("member join missing userId")
		}
		return p.store.TouchLastSeen(ctx, ev.GuildID, ev.UserID, ev.Timestamp)
	case events.TypeMemberRemove:
		logger.Info("member left guild")
		return nil
	case events.TypeMemberBan:
		logger.Info("member banned")
		return nil
	case events.TypeMemberUnban:
		logger.Info("member unbanned")
		return nil
	default:
		return fmt.Errorf("membership processor cannot handle %s", ev.Type)
	}
}
