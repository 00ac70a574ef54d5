package processors

import (
	"context"
	"fmt"

	"github.com/guildpulse/guildpulse/pkg/events"
	"github.com/guildpulse/guildpulse/pkg/observability"
	"github.com/guildpulse/guildpulse/pkg/queue"
)

// MessageStore is the slice of the stats store message processing writes to
type MessageStore interface {
	IncrementMessages(ctx context.Context, guildID, userID string, tsMs int64) error
	RecordMessageSent(ctx context.Context, guildID, userID, date, channelID string, tsMs int64, hour int) error
	RecordMessageEdited(ctx context.Context, guildID, userID, date, channelID string) error
	RecordMessageDeleted(ctx context.Context, guildID, userID, date, channelID string, bySelf bool) error
	TouchLastSeen(ctx context.Context, guildID, userID string, tsMs int64) error
}

// MessageProcessor handles MESSAGE_CREATE, MESSAGE_UPDATE and
// MESSAGE_DELETE jobs.
type MessageProcessor struct {
	store  MessageStore
	logger *observability.Logger
}

// NewMessageProcessor builds the message job handler
func NewMessageProcessor(store MessageStore, logger *observability.Logger) *MessageProcessor {
	return &MessageProcessor{store: store, logger: logger}
}

// Handle processes one message job
func (p *MessageProcessor) Handle(ctx context.Context, job *queue.Job) error {
	var ev events.Event
	if err := job.DecodePayload(&ev); err != nil {
		return err
	}

	switch ev.Type {
	case events.TypeMessageCreate:
		return p.handleCreate(ctx, &ev)
	case events.TypeMessageUpdate:
		return p.handleUpdate(ctx, &ev)
	case events.TypeMessageDelete:
		return p.handleDelete(ctx, &ev)
	default:
		return fmt.Errorf("message processor cannot handle %s", ev.Type)
	}
}

func (p *MessageProcessor) handleCreate(ctx context.Context, ev *events.Event) error {
	if err := p.store.IncrementMessages(ctx, ev.GuildID, ev.UserID, ev.Timestamp); err != nil {
		return err
	}
	return p.store.RecordMessageSent(ctx, ev.GuildID, ev.UserID, ev.Date(), ev.ChannelID, ev.Timestamp, ev.Hour())
}

// handleUpdate counts the edit and refreshes the member's last-seen
// watermark; an edit proves presence but is not a new message.
func (p *MessageProcessor) handleUpdate(ctx context.Context, ev *events.Event) error {
	if err := p.store.RecordMessageEdited(ctx, ev.GuildID, ev.UserID, ev.Date(), ev.ChannelID); err != nil {
		return err
	}
	return p.store.TouchLastSeen(ctx, ev.GuildID, ev.UserID, ev.Timestamp)
}

func (p *MessageProcessor) handleDelete(ctx context.Context, ev *events.Event) error {
	data, err := ev.MessageDeleteData()
	if err != nil {
		return err
	}

	author := data.AuthorID
	if author == "" {
		author = ev.UserID
	}
	if author == "" {
		// Deleted message was never cached upstream; nothing to attribute
		observability.FromContext(ctx).
			WithField("guild_id", ev.GuildID).
			Debug("dropping deletion for unknown author")
		return nil
	}

	bySelf := data.DeletedBy != "" && data.DeletedBy == author
	return p.store.RecordMessageDeleted(ctx, ev.GuildID, author, ev.Date(), ev.ChannelID, bySelf)
}
