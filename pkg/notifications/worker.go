package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// AttemptResult describes the outcome of one delivery attempt.
type AttemptResult struct {
	Record DeliveryRecord
	// Attempted is false when the record was already terminal.
	Attempted bool
	// RetryAfter is set when the attempt failed and another one is allowed.
	RetryAfter time.Duration
}

// DeliveryWorker runs delivery attempts and drives DeliveryRecord state.
type DeliveryWorker struct {
	storage    Storage
	directory  UserDirectory
	templates  *Templates
	backends   *Backends
	queue      TaskQueue
	maxRetries int
	baseDelay  time.Duration
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// DeliveryWorkerOption configures a DeliveryWorker.
type DeliveryWorkerOption func(*DeliveryWorker)

// WithMaxRetries sets how many failed attempts a delivery may accumulate
// before it is terminal. Defaults to DefaultMaxRetries.
func WithMaxRetries(n int) DeliveryWorkerOption {
	return func(w *DeliveryWorker) {
		if n > 0 {
			w.maxRetries = n
		}
	}
}

// WithRetryBaseDelay sets the base of the exponential retry delay.
// Defaults to DefaultRetryBaseDelay.
func WithRetryBaseDelay(d time.Duration) DeliveryWorkerOption {
	return func(w *DeliveryWorker) {
		if d > 0 {
			w.baseDelay = d
		}
	}
}

// WithWorkerConfig applies the retry settings from cfg.
func WithWorkerConfig(cfg Config) DeliveryWorkerOption {
	return func(w *DeliveryWorker) {
		WithMaxRetries(cfg.MaxRetries)(w)
		WithRetryBaseDelay(cfg.RetryBaseDelay)(w)
	}
}

// WithWorkerMetrics records delivery outcomes and latency on m.
func WithWorkerMetrics(m *Metrics) DeliveryWorkerOption {
	return func(w *DeliveryWorker) {
		w.metrics = m
	}
}

// WithWorkerLogger sets the logger. Defaults to slog.Default().
func WithWorkerLogger(l *slog.Logger) DeliveryWorkerOption {
	return func(w *DeliveryWorker) {
		w.logger = l
	}
}

// NewDeliveryWorker creates a DeliveryWorker. Every dependency is required;
// a missing one yields ErrMissingDependency. queue receives the retries.
func NewDeliveryWorker(
	storage Storage,
	directory UserDirectory,
	templates *Templates,
	backends *Backends,
	queue TaskQueue,
	opts ...DeliveryWorkerOption,
) (*DeliveryWorker, error) {
	switch {
	case storage == nil:
		return nil, fmt.Errorf("%w: storage", ErrMissingDependency)
	case directory == nil:
		return nil, fmt.Errorf("%w: user directory", ErrMissingDependency)
	case templates == nil:
		return nil, fmt.Errorf("%w: templates", ErrMissingDependency)
	case backends == nil:
		return nil, fmt.Errorf("%w: backends", ErrMissingDependency)
	case queue == nil:
		return nil, fmt.Errorf("%w: task queue", ErrMissingDependency)
	}

	w := &DeliveryWorker{
		storage:    storage,
		directory:  directory,
		templates:  templates,
		backends:   backends,
		queue:      queue,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultRetryBaseDelay,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Handle is the queue entry point. A failed attempt that may be retried is
// re-enqueued with its backoff delay. Unknown channels and vanished
// notifications are returned as permanent errors.
func (w *DeliveryWorker) Handle(ctx context.Context, task DeliveryTask) error {
	res, err := w.Attempt(ctx, task)
	if err != nil {
		if errors.Is(err, ErrUnknownChannel) || errors.Is(err, ErrNotificationNotFound) {
			return queue.Permanent(err)
		}
		return err
	}
	if res.RetryAfter <= 0 {
		return nil
	}

	if err := w.queue.EnqueueDelivery(ctx, task, res.RetryAfter); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}
	w.metrics.retryScheduled(task.Channel)
	w.logger.LogAttrs(ctx, slog.LevelInfo, "delivery retry scheduled",
		logger.NotificationID(task.NotificationID),
		logger.Channel(task.Channel.String()),
		logger.RetryCount(res.Record.RetryCount),
		logger.Duration(res.RetryAfter),
	)
	return nil
}

// Attempt runs at most one send for the task. The delivery record is
// written on every path once it exists. A send failure is not an error: it
// is reported through the record and RetryAfter.
func (w *DeliveryWorker) Attempt(ctx context.Context, task DeliveryTask) (res AttemptResult, err error) {
	backend, err := w.backends.Get(task.Channel)
	if err != nil {
		w.logger.LogAttrs(ctx, slog.LevelError, "delivery for unknown channel",
			logger.NotificationID(task.NotificationID),
			logger.Channel(task.Channel.String()),
		)
		return AttemptResult{}, err
	}

	notif, err := w.storage.GetNotification(ctx, task.NotificationID)
	if err != nil {
		return AttemptResult{}, fmt.Errorf("failed to load notification %s: %w", task.NotificationID, err)
	}

	rec, _, err := w.storage.GetOrCreateDelivery(ctx, DeliveryRecord{
		ID:             uuid.NewString(),
		NotificationID: notif.ID,
		Channel:        task.Channel,
		Status:         DeliveryPending,
	})
	if err != nil {
		return AttemptResult{}, fmt.Errorf("failed to get delivery record: %w", err)
	}
	if rec.IsTerminal(w.maxRetries) {
		w.logger.LogAttrs(ctx, slog.LevelDebug, "delivery already finished",
			logger.NotificationID(notif.ID),
			logger.Channel(task.Channel.String()),
			slog.String("status", string(rec.Status)),
		)
		return AttemptResult{Record: rec}, nil
	}

	now := w.now()
	if rec.Status == DeliveryFailed {
		if err := rec.markRetrying(ctx, w.maxRetries, now); err != nil {
			return AttemptResult{Record: rec}, err
		}
	}
	rec.markAttempted(now)
	if err := w.storage.SaveDelivery(ctx, rec); err != nil {
		return AttemptResult{Record: rec}, fmt.Errorf("failed to save delivery record: %w", err)
	}

	defer func() {
		if saveErr := w.storage.SaveDelivery(context.WithoutCancel(ctx), rec); saveErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to save delivery record: %w", saveErr))
		}
		res.Record = rec
	}()

	started := w.now()
	sendErr := w.send(ctx, backend, notif)
	finished := w.now()

	if sendErr == nil {
		if err := rec.markSent(ctx, finished); err != nil {
			return AttemptResult{Attempted: true}, err
		}
		w.metrics.deliveryFinished(task.Channel, DeliverySent, finished.Sub(started))
		w.logger.LogAttrs(ctx, slog.LevelInfo, "notification delivered",
			logger.UserID(notif.UserID),
			logger.NotificationID(notif.ID),
			logger.Channel(task.Channel.String()),
		)
		return AttemptResult{Attempted: true}, nil
	}

	if err := rec.markFailed(ctx, finished, sendErr); err != nil {
		return AttemptResult{Attempted: true}, err
	}
	w.metrics.deliveryFinished(task.Channel, DeliveryFailed, finished.Sub(started))

	res = AttemptResult{Attempted: true}
	if rec.RetryCount < w.maxRetries {
		res.RetryAfter = RetryDelay(w.baseDelay, rec.RetryCount)
	}
	w.logger.LogAttrs(ctx, slog.LevelWarn, "notification delivery failed",
		logger.UserID(notif.UserID),
		logger.NotificationID(notif.ID),
		logger.Channel(task.Channel.String()),
		logger.RetryCount(rec.RetryCount),
		slog.Bool("final", res.RetryAfter == 0),
		logger.Error(sendErr),
	)
	return res, nil
}

// send builds the channel message and calls the backend. Panics are
// converted to errors.
func (w *DeliveryWorker) send(ctx context.Context, backend Backend, notif Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrBackendPanic, r)
		}
	}()

	user, err := w.directory.GetUser(ctx, notif.UserID)
	if err != nil {
		return fmt.Errorf("failed to get recipient: %w", err)
	}
	et, err := w.storage.GetEventType(ctx, notif.EventTypeID)
	if err != nil {
		return fmt.Errorf("failed to get event type: %w", err)
	}

	msg := Message{Notification: notif, User: user}
	if backend.Channel() == ChannelInApp {
		msg.Title, msg.Body = notif.Title, notif.Body
	} else {
		tpl, err := w.templates.Resolve(ctx, et, backend.Channel())
		if err != nil {
			return err
		}
		msg.Title, msg.Body = Render(tpl, RenderContext(notif.Data, et, user))
	}
	return backend.Send(ctx, msg)
}
