package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is used when no queue is specified.
const DefaultQueueName = "default"

// TaskType distinguishes one-off tasks from scheduler-created ones.
type TaskType string

const (
	TaskTypeOneTime  TaskType = "one-time"
	TaskTypePeriodic TaskType = "periodic"
)

// TaskStatus is the lifecycle state of a stored task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Priority ranges 0-100, higher runs first.
type Priority int8

// Priority levels. PriorityDefault is used when none is given.
const (
	PriorityMin     Priority = 0
	PriorityLow     Priority = 25
	PriorityMedium  Priority = 50
	PriorityHigh    Priority = 75
	PriorityMax     Priority = 100
	PriorityDefault Priority = PriorityMedium
)

// Valid reports whether p is within PriorityMin..PriorityMax.
func (p Priority) Valid() bool {
	return p >= PriorityMin && p <= PriorityMax
}

// Task is a unit of work stored in the queue. Payload holds the JSON-encoded
// handler argument; LockedUntil and LockedBy are set while a worker owns it.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Queue       string     `json:"queue"`
	TaskType    TaskType   `json:"task_type"`
	TaskName    string     `json:"task_name"`
	Payload     []byte     `json:"payload,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	RetryCount  int8       `json:"retry_count"`
	MaxRetries  int8       `json:"max_retries"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TasksDlq is a task that exhausted its retries or failed permanently,
// kept for manual inspection.
type TasksDlq struct {
	ID         uuid.UUID `json:"id"`
	TaskID     uuid.UUID `json:"task_id"`
	Queue      string    `json:"queue"`
	TaskType   TaskType  `json:"task_type"`
	TaskName   string    `json:"task_name"`
	Payload    []byte    `json:"payload,omitempty"`
	Priority   Priority  `json:"priority"`
	Error      string    `json:"error"`
	RetryCount int8      `json:"retry_count"`
	FailedAt   time.Time `json:"failed_at"`
	CreatedAt  time.Time `json:"created_at"`
}
