package queue

import "errors"

var (
	ErrRepositoryNil          = errors.New("repository cannot be nil")
	ErrPayloadNil             = errors.New("payload cannot be nil")
	ErrInvalidPriority        = errors.New("priority must be between 0 and 100")
	ErrHandlerNotFound        = errors.New("no handler registered for task type")
	ErrNoHandlers             = errors.New("no task handlers registered")
	ErrTaskAlreadyRegistered  = errors.New("task already registered")
	ErrSchedulerNotConfigured = errors.New("scheduler has no registered tasks")
	ErrNoTaskToClaim          = errors.New("no task available to claim")
	ErrTaskNotFound           = errors.New("task not found")
	ErrTaskNotProcessing      = errors.New("task is not in processing state")
	ErrWorkerAlreadyStarted   = errors.New("worker already started")
	ErrWorkerNotStarted       = errors.New("worker not started")
)

// permanentError marks a handler error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the worker moves the task straight to the dead
// letter queue instead of scheduling a retry. A nil err yields nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or any error it wraps, was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
