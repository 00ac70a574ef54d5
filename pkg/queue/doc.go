// Package queue provides an at-least-once Redis job queue with priorities,
// exponential-backoff retries, and a dead-letter list.
//
// # Layout
//
// Jobs live on three Redis lists (high, normal, low) consumed by a single
// blocking BRPOP so moderation work always runs before engagement work.
// Failed jobs move to a delayed sorted set scored by their retry time; a
// promoter loop pushes due entries back onto their priority list. Jobs that
// exhaust the retry policy park on a dead-letter list for manual replay.
//
// # Usage
//
//	q := queue.New(client, queue.NewRetryPolicy(queue.DefaultRetryConfig()), logger, metrics, "guildpulse")
//	q.Enqueue(ctx, "process-message", event, queue.PriorityNormal)
//
//	w := queue.NewWorker(q, 8, time.Minute, logger, metrics)
//	w.Register("process-message", handler)
//	w.Start(ctx)
//	defer w.Stop(10 * time.Second)
package queue
