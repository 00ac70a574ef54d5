// Package processors holds the per-event-type job handlers that turn
// queued gateway events into durable counter updates. Handlers are
// idempotent-at-the-counter level only; exactly-once delivery comes
// from intake deduplication upstream.
package processors
