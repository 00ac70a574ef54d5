// Package events defines the gateway event model and the intake boundary.
//
// Events arrive in batches from bot processes as flat records. Intake
// validates each event (type present, positive timestamp, guild ID for
// guild-scoped types, well-formed data payload), drops offenders with a
// logged reason, persists the rest append-only with duplicate skipping,
// and fans the batch out to the job queue with one job per event.
// Moderation events (bans, removals) ride the high-priority list;
// engagement events (messages, voice, reactions) ride normal; everything
// else rides low.
//
// Event payloads are typed per event type (MessageDeleteData,
// ReactionAddData) and decoded through accessors rather than handled as
// free-form maps.
package events
