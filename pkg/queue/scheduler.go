package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SchedulerRepository is the storage side of periodic scheduling.
type SchedulerRepository interface {
	CreateTask(ctx context.Context, task *Task) error

	// GetPendingTaskByName returns ErrTaskNotFound when no pending task
	// with the name exists.
	GetPendingTaskByName(ctx context.Context, taskName string) (*Task, error)
}

// Scheduler creates periodic tasks as they come due. At most one pending
// instance of each periodic task exists at a time.
type Scheduler struct {
	repo     SchedulerRepository
	tasks    map[string]*scheduledTask
	mu       sync.RWMutex
	interval time.Duration
	logger   *slog.Logger
}

type scheduledTask struct {
	name            string
	schedule        Schedule
	queue           string
	priority        Priority
	maxRetries      int8
	lastScheduledAt *time.Time
}

// NewScheduler creates a Scheduler that enqueues periodic tasks into repo.
func NewScheduler(repo SchedulerRepository, opts ...SchedulerOption) (*Scheduler, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &schedulerOptions{
		checkInterval: 30 * time.Second,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		repo:     repo,
		tasks:    make(map[string]*scheduledTask),
		interval: options.checkInterval,
		logger:   options.logger,
	}, nil
}

// AddTask registers a periodic task. Register the matching handler on a
// Worker with NewPeriodicTaskHandler(name, ...).
func (s *Scheduler) AddTask(name string, schedule Schedule, opts ...SchedulerTaskOption) error {
	taskOpts := &schedulerTaskOptions{
		queue:      DefaultQueueName,
		priority:   PriorityDefault,
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(taskOpts)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("%w: %s", ErrTaskAlreadyRegistered, name)
	}

	s.tasks[name] = &scheduledTask{
		name:       name,
		schedule:   schedule,
		queue:      taskOpts.queue,
		priority:   taskOpts.priority,
		maxRetries: taskOpts.maxRetries,
	}

	s.logger.Info("registered periodic task",
		slog.String("task_name", name),
		slog.String("schedule", schedule.String()))

	return nil
}

// Start checks for due tasks immediately and then every check interval
// until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.RLock()
	taskCount := len(s.tasks)
	s.mu.RUnlock()

	if taskCount == 0 {
		return ErrSchedulerNotConfigured
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.checkTasks(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return nil
		case <-ticker.C:
			s.checkTasks(ctx)
		}
	}
}

// Run returns a function suitable for errgroup.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		return s.Start(ctx)
	}
}

func (s *Scheduler) checkTasks(ctx context.Context) {
	s.mu.RLock()
	tasks := make([]*scheduledTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	s.mu.RUnlock()

	now := time.Now()
	for _, task := range tasks {
		if err := s.scheduleTaskIfNeeded(ctx, task, now); err != nil {
			s.logger.Error("failed to schedule task",
				slog.String("task_name", task.name),
				slog.String("error", err.Error()))
		}
	}
}

func (s *Scheduler) scheduleTaskIfNeeded(ctx context.Context, task *scheduledTask, now time.Time) error {
	s.mu.RLock()
	last := task.lastScheduledAt
	s.mu.RUnlock()

	var nextRun time.Time
	if last == nil {
		nextRun = task.schedule.Next(now)
	} else {
		nextRun = task.schedule.Next(*last)
		if nextRun.After(now) {
			return nil
		}
	}

	existing, err := s.repo.GetPendingTaskByName(ctx, task.name)
	switch {
	case err == nil && existing != nil:
		s.setLastScheduled(task.name, existing.ScheduledAt)
		return nil
	case err != nil && !errors.Is(err, ErrTaskNotFound):
		return fmt.Errorf("failed to look up pending task: %w", err)
	}

	if err := s.repo.CreateTask(ctx, &Task{
		ID:          uuid.New(),
		Queue:       task.queue,
		TaskType:    TaskTypePeriodic,
		TaskName:    task.name,
		Status:      TaskStatusPending,
		Priority:    task.priority,
		MaxRetries:  task.maxRetries,
		ScheduledAt: nextRun,
		CreatedAt:   time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to create periodic task: %w", err)
	}

	s.setLastScheduled(task.name, nextRun)
	s.logger.Info("created periodic task",
		slog.String("task_name", task.name),
		slog.Time("scheduled_for", nextRun))

	return nil
}

func (s *Scheduler) setLastScheduled(name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tasks[name]; ok {
		t.lastScheduledAt = &at
	}
}

// ListTasks returns the names of registered periodic tasks.
func (s *Scheduler) ListTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	return names
}
