package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoTasks is returned when the trigger is started without tasks
var ErrNoTasks = errors.New("scheduler: no tasks registered")

// Task is one periodic synchronization routine.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// SyncTrigger runs registered tasks on their intervals, each on its own
// ticker goroutine. A slow task skips ticks rather than stacking runs.
type SyncTrigger struct {
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	tasks     []Task
	isRunning bool
}

// NewSyncTrigger creates a new sync trigger
func NewSyncTrigger(logger *zap.Logger) *SyncTrigger {
	return &SyncTrigger{logger: logger}
}

// AddTask registers a task. Must be called before Start.
func (s *SyncTrigger) AddTask(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

// Start starts one ticker loop per registered task
func (s *SyncTrigger) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return ErrNoTasks
	}
	s.isRunning = true
	tasks := make([]Task, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, task := range tasks {
		s.wg.Add(1)
		go s.runLoop(ctx, task)
	}

	s.logger.Info("Sync trigger started", zap.Int("tasks", len(tasks)))
	return nil
}

// Stop gracefully stops all task loops
func (s *SyncTrigger) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync trigger stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync trigger stop timed out")
		return ctx.Err()
	}
}

// runLoop runs one task on its interval until the context is cancelled
func (s *SyncTrigger) runLoop(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runTask(ctx, task)
		}
	}
}

// runTask executes one task run and logs the outcome
func (s *SyncTrigger) runTask(ctx context.Context, task Task) {
	start := time.Now()
	if err := task.Run(ctx); err != nil {
		s.logger.Error("Scheduled sync failed",
			zap.String("task", task.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Scheduled sync completed",
		zap.String("task", task.Name),
		zap.Duration("elapsed", time.Since(start)),
	)
}
