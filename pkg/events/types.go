package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/guildpulse/guildpulse/pkg/queue"
)

// EventType identifies a gateway event forwarded by the bot transport
type EventType string

const (
	TypeMessageCreate    EventType = "MESSAGE_CREATE"
	TypeMessageUpdate    EventType = "MESSAGE_UPDATE"
	TypeMessageDelete    EventType = "MESSAGE_DELETE"
	TypeVoiceStateUpdate EventType = "VOICE_STATE_UPDATE"
	TypeReactionAdd      EventType = "REACTION_ADD"
	TypeMemberJoin       EventType = "MEMBER_JOIN"
	TypeMemberRemove     EventType = "MEMBER_REMOVE"
	TypeMemberBan        EventType = "MEMBER_BAN"
	TypeMemberUnban      EventType = "MEMBER_UNBAN"
)

// Class groups event types for queue prioritization
type Class int

const (
	ClassOther Class = iota
	ClassEngagement
	ClassModeration
)

// Class returns the prioritization class for the event type
func (t EventType) Class() Class {
	switch t {
	case TypeMemberBan, TypeMemberUnban, TypeMemberRemove:
		return ClassModeration
	case TypeMessageCreate, TypeVoiceStateUpdate, TypeReactionAdd:
		return ClassEngagement
	default:
		return ClassOther
	}
}

// QueuePriority maps the event class to a queue priority:
// moderation > engagement > other.
func (t EventType) QueuePriority() queue.Priority {
	switch t.Class() {
	case ClassModeration:
		return queue.PriorityHigh
	case ClassEngagement:
		return queue.PriorityNormal
	default:
		return queue.PriorityLow
	}
}

// JobName returns the queue job name routing the event to its processor
func (t EventType) JobName() string {
	switch t {
	case TypeMessageCreate, TypeMessageUpdate, TypeMessageDelete:
		return "process-message"
	case TypeVoiceStateUpdate:
		return "process-voice"
	case TypeReactionAdd:
		return "process-reaction"
	case TypeMemberJoin, TypeMemberRemove, TypeMemberBan, TypeMemberUnban:
		return "process-membership"
	default:
		return "process-event"
	}
}

// guildScoped reports whether the type requires a guild ID. Unknown types
// are accepted as-is and cannot be held to the requirement.
func (t EventType) guildScoped() bool {
	switch t {
	case TypeMessageCreate, TypeMessageUpdate, TypeMessageDelete,
		TypeVoiceStateUpdate, TypeReactionAdd,
		TypeMemberJoin, TypeMemberRemove, TypeMemberBan, TypeMemberUnban:
		return true
	}
	return false
}

// MessageDeleteData is the typed payload of MESSAGE_DELETE events
type MessageDeleteData struct {
	// DeletedBy is the user who deleted the message; empty when the
	// deleter is unknown (message was not cached upstream).
	DeletedBy string `json:"deletedBy,omitempty"`
	// AuthorID is the original message author, when known
	AuthorID string `json:"authorId,omitempty"`
}

// ReactionAddData is the typed payload of REACTION_ADD events
type ReactionAddData struct {
	// MessageAuthorID is the author of the message reacted to, when known
	MessageAuthorID string `json:"messageAuthorId,omitempty"`
	Emoji           string `json:"emoji,omitempty"`
}

// Event is a single gateway occurrence delivered as a flat record.
// Field names follow the inbound wire shape from the bot transport.
type Event struct {
	Type      EventType       `json:"type"`
	GuildID   string          `json:"guildId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	ChannelID string          `json:"channelId,omitempty"`
	MessageID string          `json:"messageId,omitempty"`
	RoleID    string          `json:"roleId,omitempty"`
	Timestamp int64           `json:"timestamp"` // epoch milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// Validation drop reasons, used for logging and metrics labels
const (
	DropReasonMissingType   = "missing_type"
	DropReasonBadTimestamp  = "bad_timestamp"
	DropReasonMissingGuild  = "missing_guild"
	DropReasonMalformedData = "malformed_data"
)

// Validate checks the invariants enforced at the intake boundary.
// It returns the drop reason and an error for rejected events.
func (e *Event) Validate() (string, error) {
	if e.Type == "" {
		return DropReasonMissingType, fmt.Errorf("event missing type")
	}
	if e.Timestamp <= 0 {
		return DropReasonBadTimestamp, fmt.Errorf("event %s has non-positive timestamp %d", e.Type, e.Timestamp)
	}
	if e.Type.guildScoped() && e.GuildID == "" {
		return DropReasonMissingGuild, fmt.Errorf("guild-scoped event %s missing guildId", e.Type)
	}
	if len(e.Data) > 0 && !json.Valid(e.Data) {
		return DropReasonMalformedData, fmt.Errorf("event %s carries invalid data payload", e.Type)
	}
	return "", nil
}

// MessageDeleteData decodes the typed MESSAGE_DELETE payload.
// Returns the zero value when no payload was attached.
func (e *Event) MessageDeleteData() (MessageDeleteData, error) {
	var data MessageDeleteData
	if len(e.Data) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return data, fmt.Errorf("failed to decode MESSAGE_DELETE data: %w", err)
	}
	return data, nil
}

// ReactionAddData decodes the typed REACTION_ADD payload.
// Returns the zero value when no payload was attached.
func (e *Event) ReactionAddData() (ReactionAddData, error) {
	var data ReactionAddData
	if len(e.Data) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return data, fmt.Errorf("failed to decode REACTION_ADD data: %w", err)
	}
	return data, nil
}

// DedupeKey builds the deterministic primary key used to skip duplicate
// raw-event inserts.
func (e *Event) DedupeKey() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:%d",
		e.Type, e.GuildID, e.UserID, e.ChannelID, e.MessageID, e.Timestamp)
}

// Time returns the event timestamp as UTC time
func (e *Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

// Date returns the event's UTC calendar date as YYYY-MM-DD
func (e *Event) Date() string {
	return e.Time().Format("2006-01-02")
}

// Hour returns the event's UTC hour of day (0-23)
func (e *Event) Hour() int {
	return e.Time().Hour()
}
