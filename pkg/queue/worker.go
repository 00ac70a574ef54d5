package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/guildpulse/guildpulse/pkg/observability"
)

// HandlerFunc processes one dequeued job
type HandlerFunc func(ctx context.Context, job *Job) error

// Worker runs a pool of goroutines pulling jobs off the queue and
// dispatching them to registered handlers by job name.
type Worker struct {
	queue      *Queue
	handlers   map[string]HandlerFunc
	workers    int
	jobTimeout time.Duration
	logger     *observability.Logger
	metrics    *observability.Metrics

	mu      sync.RWMutex
	cancel  context.CancelFunc
	doneCh  chan struct{}
	started bool
}

// NewWorker creates a worker pool over the queue
func NewWorker(q *Queue, workers int, jobTimeout time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Worker {
	if workers <= 0 {
		workers = 4
	}
	if jobTimeout <= 0 {
		jobTimeout = 60 * time.Second
	}
	return &Worker{
		queue:      q,
		handlers:   make(map[string]HandlerFunc),
		workers:    workers,
		jobTimeout: jobTimeout,
		logger:     logger,
		metrics:    metrics,
	}
}

// Register binds a handler to a job name. Must be called before Start.
func (w *Worker) Register(name string, fn HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[name] = fn
}

// Start launches the worker goroutines and the retry promoter loop
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return fmt.Errorf("worker already started")
	}
	w.started = true

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.doneCh = make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.run(ctx, id)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.promote(ctx)
	}()

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop cancels the workers and waits up to timeout for them to drain
func (w *Worker) Stop(timeout time.Duration) error {
	w.mu.Lock()
	cancel := w.cancel
	doneCh := w.doneCh
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-doneCh:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("worker shutdown timed out after %v", timeout)
	}
}

// run is one worker goroutine's dequeue loop
func (w *Worker) run(ctx context.Context, id int) {
	logger := w.logger.WithField("worker", id)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, 2*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Error("dequeue failed")
			// Back off briefly so a dead Redis doesn't spin the loop
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}

		w.process(ctx, job)
	}
}

// process dispatches a job to its handler with timeout and panic recovery
func (w *Worker) process(ctx context.Context, job *Job) {
	w.mu.RLock()
	handler, ok := w.handlers[job.Name]
	w.mu.RUnlock()

	jobCtx := observability.WithJobID(ctx, job.ID)
	logger := observability.FromContext(observability.WithLogger(jobCtx, w.logger)).WithField("job_name", job.Name)

	if !ok {
		logger.Error("no handler registered for job, parking")
		if err := w.queue.park(jobCtx, job); err != nil {
			logger.WithError(err).Error("failed to park unroutable job")
		}
		return
	}

	start := time.Now()
	err := w.invoke(jobCtx, handler, job)
	duration := time.Since(start)

	if w.metrics != nil {
		w.metrics.JobDuration.WithLabelValues(job.Name).Observe(duration.Seconds())
	}

	if err != nil {
		if w.metrics != nil {
			w.metrics.JobsProcessed.WithLabelValues(job.Name, "failure").Inc()
		}
		if retryErr := w.queue.Retry(jobCtx, job, err); retryErr != nil {
			logger.WithError(retryErr).Error("failed to schedule job retry")
		}
		return
	}

	if w.metrics != nil {
		w.metrics.JobsProcessed.WithLabelValues(job.Name, "success").Inc()
	}
	logger.WithField("duration_ms", duration.Milliseconds()).Debug("job processed")
}

// invoke runs a handler with a per-job timeout and panic recovery
func (w *Worker) invoke(ctx context.Context, handler HandlerFunc, job *Job) (err error) {
	ctx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler for %s: %v\n%s", job.Name, r, debug.Stack())
		}
	}()

	return handler(ctx, job)
}

// promote periodically moves due retries back onto the priority lists
// and refreshes queue depth gauges.
func (w *Worker) promote(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := w.queue.PromoteDue(ctx, now); err != nil && ctx.Err() == nil {
				w.logger.WithError(err).Error("retry promotion failed")
			}
			if w.metrics != nil {
				if depths, err := w.queue.Depths(ctx); err == nil {
					for p, n := range depths {
						w.metrics.QueueDepth.WithLabelValues(string(p)).Set(float64(n))
					}
				}
			}
		}
	}
}
