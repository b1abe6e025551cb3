package notifications_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

var discard = slog.New(slog.DiscardHandler)

type queuedTask struct {
	Task  notifications.DeliveryTask
	Delay time.Duration
}

// recordingQueue collects enqueued delivery tasks instead of running them.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []queuedTask
	err   error
}

func (q *recordingQueue) EnqueueDelivery(_ context.Context, task notifications.DeliveryTask, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, queuedTask{Task: task, Delay: delay})
	return nil
}

func (q *recordingQueue) drain() []queuedTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.tasks
	q.tasks = nil
	return out
}

func (q *recordingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// recordingBackend stores sent messages. fail, when set, decides the
// outcome of the n-th call (1-based).
type recordingBackend struct {
	ch   notifications.Channel
	mu   sync.Mutex
	msgs []notifications.Message
	fail func(n int) error
	call int
}

func (b *recordingBackend) Channel() notifications.Channel { return b.ch }

func (b *recordingBackend) Send(_ context.Context, msg notifications.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.call++
	if b.fail != nil {
		if err := b.fail(b.call); err != nil {
			return err
		}
	}
	b.msgs = append(b.msgs, msg)
	return nil
}

func (b *recordingBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.call
}

func (b *recordingBackend) sent() []notifications.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]notifications.Message(nil), b.msgs...)
}

type fixture struct {
	store      *notifications.MemoryStorage
	users      *notifications.MemoryUserDirectory
	prefs      *notifications.Preferences
	templates  *notifications.Templates
	eventTypes *notifications.EventTypes
	queue      *recordingQueue
	dispatcher *notifications.Dispatcher
	worker     *notifications.DeliveryWorker
	inApp      *recordingBackend
	email      *recordingBackend
	sms        *recordingBackend
}

func newFixture(t *testing.T, users ...notifications.User) *fixture {
	t.Helper()

	f := &fixture{
		store: notifications.NewMemoryStorage(),
		users: notifications.NewMemoryUserDirectory(users...),
		queue: &recordingQueue{},
		inApp: &recordingBackend{ch: notifications.ChannelInApp},
		email: &recordingBackend{ch: notifications.ChannelEmail},
		sms:   &recordingBackend{ch: notifications.ChannelSMS},
	}
	f.prefs = notifications.NewPreferences(f.store, notifications.WithPreferencesLogger(discard))
	f.eventTypes = notifications.NewEventTypes(f.store, f.users, notifications.WithEventTypesLogger(discard))

	var err error
	f.templates, err = notifications.NewTemplates(f.store, notifications.WithTemplatesLogger(discard))
	require.NoError(t, err)

	f.dispatcher, err = notifications.NewDispatcher(f.store, f.users, f.prefs, f.templates, f.queue,
		notifications.WithDispatcherLogger(discard))
	require.NoError(t, err)

	backends, err := notifications.NewBackends(f.inApp, f.email, f.sms)
	require.NoError(t, err)
	f.worker, err = notifications.NewDeliveryWorker(f.store, f.users, f.templates, backends, f.queue,
		notifications.WithWorkerLogger(discard),
		notifications.WithRetryBaseDelay(time.Second))
	require.NoError(t, err)

	return f
}

func (f *fixture) seedEventType(t *testing.T, params notifications.EventTypeParams) notifications.EventType {
	t.Helper()
	et, _, err := f.eventTypes.Create(context.Background(), params)
	require.NoError(t, err)
	return et
}

// runQueue handles queued tasks, including retries, until the queue is
// empty or limit handles were made. It returns the handled tasks.
func (f *fixture) runQueue(t *testing.T, limit int) []queuedTask {
	t.Helper()
	var handled []queuedTask
	for len(handled) < limit {
		batch := f.queue.drain()
		if len(batch) == 0 {
			break
		}
		for _, qt := range batch {
			require.NoError(t, f.worker.Handle(context.Background(), qt.Task))
			handled = append(handled, qt)
		}
	}
	return handled
}

func activeUser(id string) notifications.User {
	return notifications.User{
		ID:       id,
		Username: "user_" + id,
		Name:     "User " + id,
		Email:    id + "@example.com",
		Phone:    "+1555000" + id,
		Active:   true,
	}
}

func boolPtr(b bool) *bool { return &b }
