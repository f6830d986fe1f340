package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// Task is a deferred action. ctx is cancelled when the task is cancelled or
// the scheduler shuts down.
type Task func(ctx context.Context)

// Scheduler runs delayed tasks on their own goroutines so callers never wait
// for the delay. Panics inside a task are recovered and logged on shutdown.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	wg      conc.WaitGroup
	mu      sync.Mutex
	pending map[string]context.CancelFunc
	closed  bool
}

// New creates a scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		pending: make(map[string]context.CancelFunc),
	}
}

// After schedules task to run once delay has elapsed and returns its id.
// An empty id means the scheduler is already shut down.
func (s *Scheduler) After(delay time.Duration, name string, task Task) string {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("Scheduler closed, dropping task", zap.String("task", name))
		return ""
	}
	id := uuid.NewString()
	taskCtx, cancel := context.WithCancel(s.ctx)
	s.pending[id] = cancel
	s.mu.Unlock()

	s.wg.Go(func() {
		defer s.forget(id)
		defer cancel()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-taskCtx.Done():
			s.logger.Debug("Scheduled task cancelled",
				zap.String("task", name),
				zap.String("id", id),
			)
			return
		}

		task(taskCtx)
	})

	return id
}

// Cancel aborts a pending task. It reports whether the task was still pending.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	cancel, ok := s.pending[id]
	s.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Pending returns the number of tasks that have not finished yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Shutdown cancels every pending task and waits for running ones to return.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if recovered := s.wg.WaitAndRecover(); recovered != nil {
			s.logger.Error("Scheduled task panicked",
				zap.Any("panic", recovered.Value),
				zap.String("stack", string(recovered.Stack)),
			)
		}
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}

func (s *Scheduler) forget(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}
