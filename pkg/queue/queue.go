package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/guildpulse/guildpulse/pkg/observability"
)

// Queue is a Redis-backed job queue with three priority lists, a delayed
// retry bucket, and a dead-letter list for parked jobs.
type Queue struct {
	client    *redis.Client
	policy    *RetryPolicy
	logger    *observability.Logger
	metrics   *observability.Metrics
	keyPrefix string
}

// New creates a queue on top of the given Redis client
func New(client *redis.Client, policy *RetryPolicy, logger *observability.Logger, metrics *observability.Metrics, keyPrefix string) *Queue {
	if keyPrefix == "" {
		keyPrefix = "guildpulse"
	}
	return &Queue{
		client:    client,
		policy:    policy,
		logger:    logger,
		metrics:   metrics,
		keyPrefix: keyPrefix,
	}
}

func (q *Queue) listKey(p Priority) string {
	return fmt.Sprintf("%s:queue:%s", q.keyPrefix, p)
}

func (q *Queue) delayedKey() string {
	return fmt.Sprintf("%s:queue:delayed", q.keyPrefix)
}

func (q *Queue) deadKey() string {
	return fmt.Sprintf("%s:queue:dead", q.keyPrefix)
}

// Enqueue adds a named job with the given payload and priority
func (q *Queue) Enqueue(ctx context.Context, name string, payload interface{}, priority Priority) (string, error) {
	job, err := NewJob(name, payload, priority)
	if err != nil {
		return "", fmt.Errorf("failed to build job %s: %w", name, err)
	}

	if err := q.push(ctx, job); err != nil {
		return "", err
	}

	if q.metrics != nil {
		q.metrics.JobsEnqueued.WithLabelValues(job.Name, string(job.Priority)).Inc()
	}
	return job.ID, nil
}

// push serializes a job onto its priority list
func (q *Queue) push(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	if err := q.client.LPush(ctx, q.listKey(job.Priority), data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// Dequeue pops the next job, highest priority first, blocking up to timeout.
// Returns (nil, nil) when the timeout elapses with no job available.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, timeout,
		q.listKey(PriorityHigh),
		q.listKey(PriorityNormal),
		q.listKey(PriorityLow),
	).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	// BRPOP returns [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply length %d", len(res))
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Retry schedules a failed job for another attempt with backoff, or parks
// it on the dead-letter list once attempts are exhausted.
func (q *Queue) Retry(ctx context.Context, job *Job, cause error) error {
	job.Attempts++
	if cause != nil {
		job.LastError = cause.Error()
	}

	if !q.policy.ShouldRetry(job.Attempts) {
		return q.park(ctx, job)
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s for retry: %w", job.ID, err)
	}

	readyAt := q.policy.NextRetryTime(time.Now(), job.Attempts)
	err = q.client.ZAdd(ctx, q.delayedKey(), &redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule retry for job %s: %w", job.ID, err)
	}

	if q.metrics != nil {
		q.metrics.JobsRetried.WithLabelValues(job.Name).Inc()
	}
	q.logger.WithFields(map[string]interface{}{
		"job_id":   job.ID,
		"job_name": job.Name,
		"attempts": job.Attempts,
		"ready_at": readyAt.UTC().Format(time.RFC3339),
	}).Warn("job failed, retry scheduled")
	return nil
}

// park moves an exhausted job to the dead-letter list for manual inspection
func (q *Queue) park(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s for parking: %w", job.ID, err)
	}

	if err := q.client.LPush(ctx, q.deadKey(), data).Err(); err != nil {
		return fmt.Errorf("failed to park job %s: %w", job.ID, err)
	}

	if q.metrics != nil {
		q.metrics.JobsParked.WithLabelValues(job.Name).Inc()
	}
	q.logger.WithFields(map[string]interface{}{
		"job_id":     job.ID,
		"job_name":   job.Name,
		"attempts":   job.Attempts,
		"last_error": job.LastError,
	}).Error("job exhausted retries, parked on dead-letter list")
	return nil
}

// PromoteDue moves delayed jobs whose retry time has passed back onto
// their priority lists. Returns the number of jobs promoted.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read delayed jobs: %w", err)
	}

	promoted := 0
	for _, member := range members {
		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			// Corrupt entry, drop it rather than block the bucket
			q.client.ZRem(ctx, q.delayedKey(), member)
			q.logger.WithError(err).Error("dropping corrupt delayed job")
			continue
		}

		removed, err := q.client.ZRem(ctx, q.delayedKey(), member).Result()
		if err != nil {
			return promoted, fmt.Errorf("failed to remove delayed job %s: %w", job.ID, err)
		}
		if removed == 0 {
			// Another worker promoted it first
			continue
		}

		if err := q.push(ctx, &job); err != nil {
			return promoted, err
		}
		promoted++
	}

	return promoted, nil
}

// Depths returns the current length of each priority list
func (q *Queue) Depths(ctx context.Context) (map[Priority]int64, error) {
	depths := make(map[Priority]int64, 3)
	for _, p := range []Priority{PriorityHigh, PriorityNormal, PriorityLow} {
		n, err := q.client.LLen(ctx, q.listKey(p)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to measure %s queue depth: %w", p, err)
		}
		depths[p] = n
	}
	return depths, nil
}

// DeadLetters returns up to limit parked jobs without removing them
func (q *Queue) DeadLetters(ctx context.Context, limit int64) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}
	entries, err := q.client.LRange(ctx, q.deadKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead-letter list: %w", err)
	}

	jobs := make([]*Job, 0, len(entries))
	for _, entry := range entries {
		var job Job
		if err := json.Unmarshal([]byte(entry), &job); err != nil {
			q.logger.WithError(err).Error("skipping corrupt dead-letter entry")
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// ReplayDead re-enqueues up to max parked jobs with their attempt counters
// reset. Returns the number of jobs replayed.
func (q *Queue) ReplayDead(ctx context.Context, max int) (int, error) {
	replayed := 0
	for replayed < max {
		entry, err := q.client.RPop(ctx, q.deadKey()).Result()
		if err == redis.Nil {
			break
		} else if err != nil {
			return replayed, fmt.Errorf("failed to pop dead-letter entry: %w", err)
		}

		var job Job
		if err := json.Unmarshal([]byte(entry), &job); err != nil {
			q.logger.WithError(err).Error("dropping corrupt dead-letter entry")
			continue
		}

		job.Attempts = 0
		job.LastError = ""
		if err := q.push(ctx, &job); err != nil {
			return replayed, err
		}
		replayed++
	}
	return replayed, nil
}
