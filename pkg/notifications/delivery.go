package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/statemachine"
)

// DeliveryStatus is the state of one (notification, channel) delivery.
type DeliveryStatus string

const (
	DeliveryPending  DeliveryStatus = "pending"
	DeliveryRetrying DeliveryStatus = "retrying"
	DeliverySent     DeliveryStatus = "sent"
	DeliveryFailed   DeliveryStatus = "failed"
)

// DeliveryEvent moves a DeliveryRecord between statuses.
type DeliveryEvent string

const (
	// DeliveryEventSucceed records a successful backend send.
	DeliveryEventSucceed DeliveryEvent = "succeed"
	// DeliveryEventFail records a failed backend send.
	DeliveryEventFail DeliveryEvent = "fail"
	// DeliveryEventRetry reopens a failed record while retries remain.
	DeliveryEventRetry DeliveryEvent = "retry"
)

var deliveryEvents = [...]DeliveryEvent{DeliveryEventSucceed, DeliveryEventFail, DeliveryEventRetry}

// retryBudget is the guard data for DeliveryEventRetry.
type retryBudget struct {
	retryCount int
	maxRetries int
}

var withinRetryBudget statemachine.Guard[DeliveryStatus, DeliveryEvent] = func(_ context.Context, _ DeliveryStatus, _ DeliveryEvent, data any) bool {
	b, ok := data.(retryBudget)
	return ok && b.retryCount < b.maxRetries
}

// deliveryMachine: sent has no outgoing edges.
var deliveryMachine = statemachine.MustNew(
	statemachine.WithTransition(DeliveryPending, DeliverySent, DeliveryEventSucceed),
	statemachine.WithTransition(DeliveryPending, DeliveryFailed, DeliveryEventFail),
	statemachine.WithTransition(DeliveryFailed, DeliveryRetrying, DeliveryEventRetry,
		statemachine.WithGuard(withinRetryBudget),
	),
	statemachine.WithTransition(DeliveryRetrying, DeliverySent, DeliveryEventSucceed),
	statemachine.WithTransition(DeliveryRetrying, DeliveryFailed, DeliveryEventFail),
)

// DeliveryRecord tracks one delivery attempt series. RetryCount only grows.
type DeliveryRecord struct {
	ID             string         `json:"id"`
	NotificationID string         `json:"notification_id"`
	Channel        Channel        `json:"channel"`
	Status         DeliveryStatus `json:"status"`
	AttemptedAt    *time.Time     `json:"attempted_at,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	FailedAt       *time.Time     `json:"failed_at,omitempty"`
	Error          string         `json:"error,omitempty"`
	RetryCount     int            `json:"retry_count"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// CanFire reports whether event is allowed from the record's status given
// the retry limit.
func (r DeliveryRecord) CanFire(event DeliveryEvent, maxRetries int) bool {
	return deliveryMachine.CanFire(context.Background(), r.Status, event, retryBudget{r.RetryCount, maxRetries})
}

// IsTerminal reports whether no further attempts will be made.
func (r DeliveryRecord) IsTerminal(maxRetries int) bool {
	for _, event := range deliveryEvents {
		if r.CanFire(event, maxRetries) {
			return false
		}
	}
	return true
}

func (r *DeliveryRecord) fire(ctx context.Context, event DeliveryEvent, maxRetries int, at time.Time) error {
	next, err := deliveryMachine.Fire(ctx, r.Status, event, retryBudget{r.RetryCount, maxRetries})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	}
	r.Status = next
	r.UpdatedAt = at
	return nil
}

func (r *DeliveryRecord) markRetrying(ctx context.Context, maxRetries int, at time.Time) error {
	return r.fire(ctx, DeliveryEventRetry, maxRetries, at)
}

func (r *DeliveryRecord) markAttempted(at time.Time) {
	r.AttemptedAt = &at
	r.UpdatedAt = at
}

func (r *DeliveryRecord) markSent(ctx context.Context, at time.Time) error {
	if err := r.fire(ctx, DeliveryEventSucceed, 0, at); err != nil {
		return err
	}
	r.DeliveredAt = &at
	r.Error = ""
	return nil
}

func (r *DeliveryRecord) markFailed(ctx context.Context, at time.Time, cause error) error {
	if err := r.fire(ctx, DeliveryEventFail, 0, at); err != nil {
		return err
	}
	r.FailedAt = &at
	r.Error = cause.Error()
	r.RetryCount++
	return nil
}

func (r DeliveryRecord) clone() DeliveryRecord {
	r.AttemptedAt = cloneTime(r.AttemptedAt)
	r.DeliveredAt = cloneTime(r.DeliveredAt)
	r.FailedAt = cloneTime(r.FailedAt)
	return r
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// RetryDelay is base * 2^retryCount, where retryCount is the count after the
// failed attempt was recorded.
func RetryDelay(base time.Duration, retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	return base << uint(retryCount)
}
