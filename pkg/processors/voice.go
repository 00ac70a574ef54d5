package processors

import (
	"context"
	"fmt"

	"github.com/guildpulse/guildpulse/pkg/events"
	"github.com/guildpulse/guildpulse/pkg/observability"
	"github.com/guildpulse/guildpulse/pkg/queue"
	"github.com/guildpulse/guildpulse/pkg/sessions"
)

// VoiceStore is the slice of the stats store voice processing writes to
type VoiceStore interface {
	AddVoiceMinutes(ctx context.Context, guildID, userID string, minutes int64, tsMs int64) error
	AddDailyVoiceMinutes(ctx context.Context, guildID, userID, date, channelID string, minutes int64) error
}

// SessionTracker transitions ephemeral voice sessions
type SessionTracker interface {
	Transition(ctx context.Context, guildID, userID, channelID string, tsMs int64) (*sessions.ClosedSession, error)
}

// VoiceProcessor handles VOICE_STATE_UPDATE jobs. Joins and switches
// only touch session state; durable minutes are written when a session
// closes.
type VoiceProcessor struct {
	tracker SessionTracker
	store   VoiceStore
	logger  *observability.Logger
}

// NewVoiceProcessor builds the voice job handler
func NewVoiceProcessor(tracker SessionTracker, store VoiceStore, logger *observability.Logger) *VoiceProcessor {
	return &VoiceProcessor{tracker: tracker, store: store, logger: logger}
}

// Handle processes one voice state update
func (p *VoiceProcessor) Handle(ctx context.Context, job *queue.Job) error {
	var ev events.Event
	if err := job.DecodePayload(&ev); err != nil {
		return err
	}
	if ev.Type != events.TypeVoiceStateUpdate {
		return fmt.Errorf("voice processor cannot handle %s", ev.Type)
	}
	if ev.UserID == "" {
		return fmt.Errorf("voice state update missing userId")
	}

	closed, err := p.tracker.Transition(ctx, ev.GuildID, ev.UserID, ev.ChannelID, ev.Timestamp)
	if err != nil {
		return err
	}
	if closed == nil {
		return nil
	}

	if err := p.store.AddVoiceMinutes(ctx, ev.GuildID, ev.UserID, closed.Minutes, closed.LeftAtMs); err != nil {
		return err
	}
	// Minutes land on the day the session ended
	return p.store.AddDailyVoiceMinutes(ctx, ev.GuildID, ev.UserID, ev.Date(), closed.ChannelID, closed.Minutes)
}
