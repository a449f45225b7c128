package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// Errors for the job queue
var (
	ErrQueueNotRunning = errors.New("queue: not running")
	ErrQueueFull       = errors.New("queue: buffer full")
	ErrNoHandler       = errors.New("queue: no handler registered for job type")
)

// Handler processes one job payload. A returned error triggers retry with
// exponential backoff unless wrapped in backoff.Permanent.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Job is one unit of queued work.
type Job struct {
	ID        uuid.UUID
	Type      integration.JobType
	Payload   json.RawMessage
	Attempts  int
	CreatedAt time.Time
}

// Config holds queue configuration
type Config struct {
	Workers     int
	BufferSize  int
	MaxRetries  int
	RetryDelay  time.Duration
	MaxInterval time.Duration
	JobTimeout  time.Duration
}

// DefaultConfig returns default queue configuration
func DefaultConfig() Config {
	return Config{
		Workers:     5,
		BufferSize:  100,
		MaxRetries:  5,
		RetryDelay:  5 * time.Second,
		MaxInterval: 2 * time.Minute,
		JobTimeout:  5 * time.Minute,
	}
}

// Queue is an in-process job queue with a worker pool and per-job retry.
// Delivery is at least once: a handler that fails mid-flight is retried
// from the start, so handlers must tolerate partial prior effects.
type Queue struct {
	config  Config
	logger  *zap.Logger
	jobs    chan *Job
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	pending sync.WaitGroup

	mu        sync.Mutex
	handlers  map[integration.JobType]Handler
	isRunning bool
}

// New creates a new queue instance
func New(config Config, logger *zap.Logger) *Queue {
	if config.Workers <= 0 {
		config.Workers = 5
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 100
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 5 * time.Minute
	}
	return &Queue{
		config:   config,
		logger:   logger,
		jobs:     make(chan *Job, config.BufferSize),
		handlers: make(map[integration.JobType]Handler),
	}
}

// Register binds a handler to a job type. Must be called before Start.
func (q *Queue) Register(jobType integration.JobType, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Start starts the worker pool
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.isRunning = true
	q.mu.Unlock()

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	q.logger.Info("Job queue started",
		zap.Int("workers", q.config.Workers),
		zap.Int("buffer_size", q.config.BufferSize),
	)

	return nil
}

// Stop gracefully stops the queue
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	if q.cancel != nil {
		q.cancel()
	}
	// Closed under the same lock that guards the running check in
	// Enqueue, so no sender can slip between the check and the close.
	close(q.jobs)
	q.mu.Unlock()

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("Job queue stopped gracefully")
		return nil
	case <-ctx.Done():
		q.logger.Warn("Job queue stop timed out")
		return ctx.Err()
	}
}

// Enqueue hands off a job for asynchronous processing. The payload is
// serialized at enqueue time so later mutation by the caller is safe.
func (q *Queue) Enqueue(ctx context.Context, jobType integration.JobType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("queue: failed to encode payload: %w", err)
	}

	job := &Job{
		ID:        uuid.New(),
		Type:      jobType,
		Payload:   raw,
		CreatedAt: time.Now(),
	}

	// The lock is held across the send so Stop cannot close the channel
	// between the running check and the handoff. The send never blocks,
	// so holding the lock here is safe.
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.isRunning {
		return ErrQueueNotRunning
	}
	if _, ok := q.handlers[jobType]; !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, jobType)
	}

	q.pending.Add(1)
	select {
	case q.jobs <- job:
		q.logger.Debug("Job enqueued",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(jobType)),
		)
		return nil
	default:
		q.pending.Done()
		return ErrQueueFull
	}
}

// Wait blocks until every enqueued job has finished processing. Intended
// for tests and shutdown draining.
func (q *Queue) Wait() {
	q.pending.Wait()
}

// worker processes jobs from the queue
func (q *Queue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.processJob(ctx, job, workerID)
			q.pending.Done()
		}
	}
}

// processJob runs a single job through its handler with retry
func (q *Queue) processJob(ctx context.Context, job *Job, workerID int) {
	q.mu.Lock()
	handler := q.handlers[job.Type]
	q.mu.Unlock()
	if handler == nil {
		q.logger.Error("No handler for job", zap.String("job_type", string(job.Type)))
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, q.config.JobTimeout)
	defer cancel()

	operation := func() (struct{}, error) {
		job.Attempts++
		err := handler(jobCtx, job.Payload)
		if err != nil && errors.Is(err, integration.ErrValidation) {
			// Malformed payloads never become valid; don't retry.
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = q.config.RetryDelay
	policy.MaxInterval = q.config.MaxInterval

	_, err := backoff.Retry(jobCtx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(q.config.MaxRetries)),
	)
	if err != nil {
		q.logger.Error("Job failed permanently",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Int("attempts", job.Attempts),
			zap.Error(err),
		)
		return
	}

	q.logger.Info("Job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Int("attempts", job.Attempts),
	)
}

// Ensure Queue implements the JobQueue port
var _ integration.JobQueue = (*Queue)(nil)
