package processors

import (
	"github.com/guildpulse/guildpulse/pkg/queue"
)

// Job names routed by the event dispatcher
const (
	JobProcessMessage    = "process-message"
	JobProcessVoice      = "process-voice"
	JobProcessReaction   = "process-reaction"
	JobProcessMembership = "process-membership"
)

// RegisterAll binds every processor to its job name on the worker
func RegisterAll(w *queue.Worker, msg *MessageProcessor, voice *VoiceProcessor, reaction *ReactionProcessor, membership *MembershipProcessor) {
	w.Register(JobProcessMessage, msg.Handle)
	w.Register(JobProcessVoice, voice.Handle)
	w.Register(JobProcessReaction, reaction.Handle)
	w.Register(JobProcessMembership, membership.Handle)
}
