package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkerRepository is the storage side of task processing.
type WorkerRepository interface {
	// ClaimTask atomically locks the next due task from queues, returning
	// ErrNoTaskToClaim when there is none.
	ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error)

	CompleteTask(ctx context.Context, taskID uuid.UUID) error

	// FailTask records the error and increments the retry count. While
	// retries remain the task is rescheduled as pending with a backoff,
	// otherwise it is marked failed.
	FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error

	MoveToDLQ(ctx context.Context, taskID uuid.UUID) error

	ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error
}

// Worker polls the repository and runs claimed tasks on a bounded pool.
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex // guards stopping and wg.Add

	pullInterval time.Duration
	lockTimeout  time.Duration
	logger       *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a Worker that claims tasks from repo. Register handlers
// before Start.
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		queues:             []string{DefaultQueueName},
		pullInterval:       5 * time.Second,
		lockTimeout:        5 * time.Minute,
		maxConcurrentTasks: 1,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		repo:         repo,
		handlers:     make(map[string]Handler),
		queues:       options.queues,
		workerID:     uuid.New(),
		sem:          make(chan struct{}, options.maxConcurrentTasks),
		pullInterval: options.pullInterval,
		lockTimeout:  options.lockTimeout,
		logger:       options.logger,
	}, nil
}

// RegisterHandler adds handler under handler.Name(). Registering the same
// name twice returns ErrTaskAlreadyRegistered.
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.handlers[handler.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrTaskAlreadyRegistered, handler.Name())
	}
	w.handlers[handler.Name()] = handler
	return nil
}

// RegisterHandlers registers each handler, stopping at the first error.
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the polling loop in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrWorkerAlreadyStarted
	}
	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)
	go w.run()

	w.logger.LogAttrs(ctx, slog.LevelInfo, "worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.sem)))

	return nil
}

// Stop cancels polling and waits for in-flight tasks to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotStarted
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.Info("worker stopping, waiting for active tasks",
		slog.String("worker_id", w.workerID.String()))
	w.wg.Wait()
	w.logger.Info("worker stopped",
		slog.String("worker_id", w.workerID.String()))

	return nil
}

// Run returns a function suitable for errgroup: it starts the worker and
// stops it once ctx is done.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				w.stopMu.Lock()
				if w.stopping.Load() {
					w.stopMu.Unlock()
					<-w.sem
					return
				}
				w.wg.Add(1)
				w.stopMu.Unlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()

					if err := w.pullAndProcess(); err != nil && !errors.Is(err, ErrHandlerNotFound) {
						w.logger.Error("failed to process task",
							slog.String("worker_id", w.workerID.String()),
							slog.String("error", err.Error()))
					}
				}()
			default:
				w.logger.Debug("all worker slots busy, skipping tick",
					slog.String("worker_id", w.workerID.String()))
			}
		}
	}
}

func (w *Worker) pullAndProcess() error {
	task, err := w.repo.ClaimTask(w.ctx, w.workerID, w.queues, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoTaskToClaim) || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed to claim task: %w", err)
	}
	if task == nil {
		return nil
	}

	w.logger.Debug("claimed task",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("queue", task.Queue))

	return w.processTask(task)
}

// processTask runs the handler for task. Storage updates use a context
// detached from the worker so tasks finishing during shutdown are recorded.
func (w *Worker) processTask(task *Task) (retErr error) {
	start := time.Now()
	storeCtx := context.WithoutCancel(w.ctx)

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("handler panicked",
				slog.String("worker_id", w.workerID.String()),
				slog.String("task_id", task.ID.String()),
				slog.String("task_name", task.TaskName),
				slog.Any("panic", r))
			retErr = w.handleTaskFailure(storeCtx, task, fmt.Errorf("panic in handler: %v", r), time.Since(start))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[task.TaskName]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(storeCtx, task)
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.lockTimeout)
	defer cancel()

	if err := handler.Handle(ctx, task.Payload); err != nil {
		return w.handleTaskFailure(storeCtx, task, err, time.Since(start))
	}

	return w.handleTaskSuccess(storeCtx, task, time.Since(start))
}

// handleMissingHandler sends the task straight to the DLQ; retrying cannot
// help until a handler is deployed.
func (w *Worker) handleMissingHandler(ctx context.Context, task *Task) error {
	w.logger.Error("no handler registered for task type",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName))

	if err := w.deadLetter(ctx, task, "no handler registered for task type: "+task.TaskName); err != nil {
		return err
	}
	return ErrHandlerNotFound
}

func (w *Worker) handleTaskFailure(ctx context.Context, task *Task, execErr error, duration time.Duration) error {
	permanent := IsPermanent(execErr)

	w.logger.Error("task failed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.Int("retry_count", int(task.RetryCount)),
		slog.Int("max_retries", int(task.MaxRetries)),
		slog.Bool("permanent", permanent),
		slog.Duration("duration", duration),
		slog.String("error", execErr.Error()))

	// The stored retry count is one higher after FailTask.
	if permanent || task.RetryCount+1 >= task.MaxRetries {
		if err := w.deadLetter(ctx, task, execErr.Error()); err != nil {
			return err
		}
		w.logger.Warn("task moved to dead letter queue",
			slog.String("worker_id", w.workerID.String()),
			slog.String("task_id", task.ID.String()),
			slog.String("task_name", task.TaskName))
		return nil
	}

	if err := w.repo.FailTask(ctx, task.ID, execErr.Error()); err != nil {
		return fmt.Errorf("failed to update task %s status to failed: %w", task.ID, err)
	}
	return nil
}

func (w *Worker) deadLetter(ctx context.Context, task *Task, reason string) error {
	if err := w.repo.FailTask(ctx, task.ID, reason); err != nil {
		return fmt.Errorf("failed to mark task %s as failed: %w", task.ID, err)
	}
	if err := w.repo.MoveToDLQ(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to move task %s to DLQ: %w", task.ID, err)
	}
	return nil
}

func (w *Worker) handleTaskSuccess(ctx context.Context, task *Task, duration time.Duration) error {
	if err := w.repo.CompleteTask(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to mark task %s as completed: %w", task.ID, err)
	}

	w.logger.Debug("task completed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("queue", task.Queue),
		slog.Duration("duration", duration))

	return nil
}

// ExtendLockForTask extends the lock of a long-running task.
func (w *Worker) ExtendLockForTask(ctx context.Context, taskID uuid.UUID, extension time.Duration) error {
	return w.repo.ExtendLock(ctx, taskID, extension)
}

// ID returns the worker's lock owner id.
func (w *Worker) ID() uuid.UUID {
	return w.workerID
}
