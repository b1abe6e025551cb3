package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements every queue repository in process memory.
// It is intended for tests and single-process development setups.
type MemoryStorage struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task
	dlq   map[uuid.UUID]*TasksDlq

	byStatus map[TaskStatus][]uuid.UUID

	retryBackoff time.Duration
	lockTicker   *time.Ticker
	done         chan struct{}
	closeOnce    sync.Once
}

// NewMemoryStorage creates an in-process task store for tests and single
// binary setups. Close releases its background state.
func NewMemoryStorage(opts ...StorageOption) *MemoryStorage {
	o := defaultStorageOptions()
	for _, opt := range opts {
		opt(o)
	}

	ms := &MemoryStorage{
		tasks:        make(map[uuid.UUID]*Task),
		dlq:          make(map[uuid.UUID]*TasksDlq),
		byStatus:     make(map[TaskStatus][]uuid.UUID),
		retryBackoff: o.retryBackoff,
		lockTicker:   time.NewTicker(time.Second),
		done:         make(chan struct{}),
	}
	go ms.lockExpirationManager()

	return ms
}

// Close stops the lock expiration goroutine.
func (ms *MemoryStorage) Close() error {
	ms.closeOnce.Do(func() {
		close(ms.done)
		ms.lockTicker.Stop()
	})
	return nil
}

func (ms *MemoryStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %s already exists", task.ID)
	}

	taskCopy := *task
	ms.tasks[task.ID] = &taskCopy
	ms.byStatus[task.Status] = append(ms.byStatus[task.Status], task.ID)

	return nil
}

// ClaimTask picks the highest priority due task, earliest schedule first.
func (ms *MemoryStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var best *Task

	for _, taskID := range ms.byStatus[TaskStatusPending] {
		task := ms.tasks[taskID]

		if !slices.Contains(queues, task.Queue) || task.ScheduledAt.After(now) {
			continue
		}
		if task.LockedUntil != nil && task.LockedUntil.After(now) {
			continue
		}

		if best == nil ||
			task.Priority > best.Priority ||
			(task.Priority == best.Priority && task.ScheduledAt.Before(best.ScheduledAt)) {
			best = task
		}
	}

	if best == nil {
		return nil, ErrNoTaskToClaim
	}

	lockUntil := now.Add(lockDuration)
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID
	ms.setStatus(best, TaskStatusProcessing)

	taskCopy := *best
	return &taskCopy, nil
}

func (ms *MemoryStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processing(taskID)
	if err != nil {
		return err
	}

	now := time.Now()
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil
	ms.setStatus(task, TaskStatusCompleted)

	return nil
}

func (ms *MemoryStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processing(taskID)
	if err != nil {
		return err
	}

	task.RetryCount++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	if task.RetryCount >= task.MaxRetries {
		ms.setStatus(task, TaskStatusFailed)
		return nil
	}

	task.ScheduledAt = time.Now().Add(time.Duration(task.RetryCount) * ms.retryBackoff)
	ms.setStatus(task, TaskStatusPending)

	return nil
}

func (ms *MemoryStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	now := time.Now()
	entry := &TasksDlq{
		ID:         uuid.New(),
		TaskID:     task.ID,
		Queue:      task.Queue,
		TaskType:   task.TaskType,
		TaskName:   task.TaskName,
		Payload:    task.Payload,
		Priority:   task.Priority,
		RetryCount: task.RetryCount,
		FailedAt:   now,
		CreatedAt:  now,
	}
	if task.Error != nil {
		entry.Error = *task.Error
	}
	ms.dlq[entry.ID] = entry

	ms.removeFromStatusIndex(taskID, task.Status)
	delete(ms.tasks, taskID)

	return nil
}

func (ms *MemoryStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processing(taskID)
	if err != nil {
		return err
	}

	lockUntil := time.Now().Add(duration)
	task.LockedUntil = &lockUntil
	return nil
}

// GetPendingTaskByName implements SchedulerRepository.
func (ms *MemoryStorage) GetPendingTaskByName(ctx context.Context, taskName string) (*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, id := range ms.byStatus[TaskStatusPending] {
		if task := ms.tasks[id]; task.TaskName == taskName {
			taskCopy := *task
			return &taskCopy, nil
		}
	}
	return nil, ErrTaskNotFound
}

// GetTask returns a copy of a stored task.
func (ms *MemoryStorage) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	task, ok := ms.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	taskCopy := *task
	return &taskCopy, nil
}

// ListTasks returns copies of all tasks with the given status.
func (ms *MemoryStorage) ListTasks(ctx context.Context, status TaskStatus) ([]Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]Task, 0, len(ms.byStatus[status]))
	for _, id := range ms.byStatus[status] {
		out = append(out, *ms.tasks[id])
	}
	return out, nil
}

// ListDLQ returns copies of all dead-lettered tasks.
func (ms *MemoryStorage) ListDLQ(ctx context.Context) ([]TasksDlq, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]TasksDlq, 0, len(ms.dlq))
	for _, entry := range ms.dlq {
		out = append(out, *entry)
	}
	return out, nil
}

// processing returns the task if it exists and is being processed.
// Callers must hold ms.mu.
func (ms *MemoryStorage) processing(taskID uuid.UUID) (*Task, error) {
	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if task.Status != TaskStatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}
	return task, nil
}

func (ms *MemoryStorage) setStatus(task *Task, status TaskStatus) {
	ms.removeFromStatusIndex(task.ID, task.Status)
	task.Status = status
	ms.byStatus[status] = append(ms.byStatus[status], task.ID)
}

func (ms *MemoryStorage) removeFromStatusIndex(taskID uuid.UUID, status TaskStatus) {
	ms.byStatus[status] = slices.DeleteFunc(ms.byStatus[status], func(id uuid.UUID) bool {
		return id == taskID
	})
}

// lockExpirationManager returns tasks locked by dead workers to pending.
func (ms *MemoryStorage) lockExpirationManager() {
	for {
		select {
		case <-ms.lockTicker.C:
			ms.expireLocks()
		case <-ms.done:
			return
		}
	}
}

func (ms *MemoryStorage) expireLocks() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	for _, taskID := range slices.Clone(ms.byStatus[TaskStatusProcessing]) {
		task := ms.tasks[taskID]
		if task.LockedUntil != nil && task.LockedUntil.Before(now) {
			task.LockedUntil = nil
			task.LockedBy = nil
			ms.setStatus(task, TaskStatusPending)
		}
	}
}
