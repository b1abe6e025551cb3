package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifykit/pkg/pg"
)

// PostgresStorage implements every queue repository on the queue_tasks and
// queue_tasks_dlq tables. Claiming uses FOR UPDATE SKIP LOCKED so any number
// of workers can share the tables.
type PostgresStorage struct {
	pool         *pgxpool.Pool
	retryBackoff time.Duration
}

// NewPostgresStorage stores tasks in the queue_tasks tables. Workers claim
// tasks with FOR UPDATE SKIP LOCKED.
func NewPostgresStorage(pool *pgxpool.Pool, opts ...StorageOption) (*PostgresStorage, error) {
	if pool == nil {
		return nil, ErrRepositoryNil
	}

	o := defaultStorageOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &PostgresStorage{pool: pool, retryBackoff: o.retryBackoff}, nil
}

const taskColumns = `id, queue, task_type, task_name, payload, status, priority, retry_count,
	max_retries, scheduled_at, locked_until, locked_by, processed_at, error, created_at`

func (s *PostgresStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO queue_tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		task.ID, task.Queue, string(task.TaskType), task.TaskName, payloadOrNil(task.Payload),
		string(task.Status), int16(task.Priority), int16(task.RetryCount), int16(task.MaxRetries),
		task.ScheduledAt, task.LockedUntil, task.LockedBy, task.ProcessedAt, task.Error, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// ClaimTask also reclaims processing tasks whose lock expired, which covers
// workers that died mid-task.
func (s *PostgresStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE queue_tasks
		SET status = 'processing', locked_until = now() + $3 * interval '1 second', locked_by = $1
		WHERE id = (
			SELECT id FROM queue_tasks
			WHERE queue = ANY($2)
			  AND scheduled_at <= now()
			  AND (status = 'pending' OR (status = 'processing' AND locked_until < now()))
			ORDER BY priority DESC, scheduled_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+taskColumns,
		workerID, queues, lockDuration.Seconds(),
	)

	task, err := scanTask(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNoTaskToClaim
		}
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return task, nil
}

func (s *PostgresStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_tasks
		SET status = 'completed', processed_at = now(), locked_until = NULL, locked_by = NULL
		WHERE id = $1 AND status = 'processing'`, taskID)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}
	return nil
}

// FailTask records errorMsg, increments the retry count and reschedules the
// task with linear backoff.
func (s *PostgresStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_tasks
		SET retry_count = retry_count + 1,
		    error = $2,
		    locked_until = NULL,
		    locked_by = NULL,
		    status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
		    scheduled_at = CASE
		        WHEN retry_count + 1 >= max_retries THEN scheduled_at
		        ELSE now() + (retry_count + 1) * $3 * interval '1 second'
		    END
		WHERE id = $1 AND status = 'processing'`,
		taskID, errorMsg, s.retryBackoff.Seconds())
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}
	return nil
}

// MoveToDLQ copies the task into queue_tasks_dlq and deletes it in one transaction.
func (s *PostgresStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	return pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO queue_tasks_dlq
				(id, task_id, queue, task_type, task_name, payload, priority, error, retry_count, failed_at, created_at)
			SELECT $2, id, queue, task_type, task_name, payload, priority, coalesce(error, ''), retry_count, now(), now()
			FROM queue_tasks WHERE id = $1`, taskID, uuid.New())
		if err != nil {
			return fmt.Errorf("insert dlq entry: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM queue_tasks WHERE id = $1`, taskID); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
}

func (s *PostgresStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_tasks SET locked_until = now() + $2 * interval '1 second'
		WHERE id = $1 AND status = 'processing'`, taskID, duration.Seconds())
	if err != nil {
		return fmt.Errorf("extend lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}
	return nil
}

func (s *PostgresStorage) GetPendingTaskByName(ctx context.Context, taskName string) (*Task, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM queue_tasks
		WHERE task_name = $1 AND status = 'pending'
		ORDER BY scheduled_at ASC
		LIMIT 1`, taskName)

	task, err := scanTask(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get pending task: %w", err)
	}
	return task, nil
}

// PurgeCompleted deletes completed tasks processed before olderThan ago.
func (s *PostgresStorage) PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM queue_tasks
		WHERE status = 'completed' AND processed_at < now() - $1 * interval '1 second'`,
		olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("purge completed tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var (
		t                              Task
		taskType, status               string
		priority, retryCount, maxRetry int16
	)
	if err := row.Scan(
		&t.ID, &t.Queue, &taskType, &t.TaskName, &t.Payload, &status, &priority, &retryCount,
		&maxRetry, &t.ScheduledAt, &t.LockedUntil, &t.LockedBy, &t.ProcessedAt, &t.Error, &t.CreatedAt,
	); err != nil {
		return nil, err
	}

	t.TaskType = TaskType(taskType)
	t.Status = TaskStatus(status)
	t.Priority = Priority(priority)
	t.RetryCount = int8(retryCount)
	t.MaxRetries = int8(maxRetry)
	return &t, nil
}

// payloadOrNil keeps empty payloads NULL in the jsonb column.
func payloadOrNil(p []byte) any {
	if len(p) == 0 {
		return nil
	}
	return string(p)
}
