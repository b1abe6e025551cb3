package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// WeeklySummaryTaskName is the periodic queue task running WeeklySummaryJob.
const WeeklySummaryTaskName = "notifications.weekly_summary"

// Payload keys set on weekly_summary events.
const (
	KeyNotificationCount = "notification_count"
	KeyWeekStart         = "week_start"
	KeyWeekEnd           = "week_end"
)

// WeeklySummaryJob sends each active user a summary of their recent notifications.
type WeeklySummaryJob struct {
	directory  UserDirectory
	storage    NotificationStorage
	dispatcher *Dispatcher
	window     time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// WeeklySummaryOption configures a WeeklySummaryJob.
type WeeklySummaryOption func(*WeeklySummaryJob)

// WithSummaryWindow sets how far back notifications are counted.
// Defaults to seven days.
func WithSummaryWindow(d time.Duration) WeeklySummaryOption {
	return func(j *WeeklySummaryJob) {
		if d > 0 {
			j.window = d
		}
	}
}

// WithSummaryLogger sets the logger. Defaults to slog.Default().
func WithSummaryLogger(l *slog.Logger) WeeklySummaryOption {
	return func(j *WeeklySummaryJob) {
		j.logger = l
	}
}

// NewWeeklySummaryJob creates the job. storage is used for counting only;
// summaries are sent through dispatcher.
func NewWeeklySummaryJob(directory UserDirectory, storage NotificationStorage, dispatcher *Dispatcher, opts ...WeeklySummaryOption) *WeeklySummaryJob {
	j := &WeeklySummaryJob{
		directory:  directory,
		storage:    storage,
		dispatcher: dispatcher,
		window:     7 * 24 * time.Hour,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run dispatches weekly_summary to every active user, one at a time. The
// count is taken before dispatch, so it excludes the summary itself.
func (j *WeeklySummaryJob) Run(ctx context.Context) error {
	userIDs, err := j.directory.ListActiveUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active users: %w", err)
	}

	end := j.now()
	start := end.Add(-j.window)
	sent := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		count, err := j.storage.CountNotificationsSince(ctx, userID, start)
		if err != nil {
			j.logger.LogAttrs(ctx, slog.LevelError, "failed to count notifications",
				logger.UserID(userID),
				logger.Error(err),
			)
			continue
		}
		created, err := j.dispatcher.Dispatch(ctx, EventWeeklySummary, map[string]any{
			KeyNotificationCount: count,
			KeyWeekStart:         start.Format(time.DateOnly),
			KeyWeekEnd:           end.Format(time.DateOnly),
		}, WithTargetUsers(userID))
		if err != nil {
			return err
		}
		sent += len(created)
	}

	j.logger.LogAttrs(ctx, slog.LevelInfo, "weekly summaries sent",
		slog.Int("users", len(userIDs)),
		slog.Int("notifications", sent),
	)
	return nil
}

// PeriodicScheduler is the subset of queue.Scheduler used to schedule the job.
type PeriodicScheduler interface {
	AddTask(name string, schedule queue.Schedule, opts ...queue.SchedulerTaskOption) error
}

// RegisterWeeklySummary schedules the job on s and routes it to r.
func RegisterWeeklySummary(s PeriodicScheduler, r HandlerRegistry, job *WeeklySummaryJob, schedule queue.Schedule, opts ...queue.SchedulerTaskOption) error {
	if err := r.RegisterHandler(queue.NewPeriodicTaskHandler(WeeklySummaryTaskName, job.Run)); err != nil {
		return fmt.Errorf("failed to register weekly summary handler: %w", err)
	}
	if err := s.AddTask(WeeklySummaryTaskName, schedule, opts...); err != nil {
		return fmt.Errorf("failed to schedule weekly summary: %w", err)
	}
	return nil
}
