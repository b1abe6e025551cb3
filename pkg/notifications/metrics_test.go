package notifications_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

func TestMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	metrics, err := notifications.NewMetrics(reg)
	require.NoError(t, err)

	again, err := notifications.NewMetrics(reg)
	require.NoError(t, err, "registering twice reuses collectors")
	require.NotNil(t, again)

	f := newFixture(t, activeUser("1"))
	f.seedEventType(t, notifications.EventTypeParams{Code: "promo", DefaultEnabled: true})
	f.email.fail = func(int) error { return errors.New("down") }

	dispatcher, err := notifications.NewDispatcher(f.store, f.users, f.prefs, f.templates, f.queue,
		notifications.WithDispatcherLogger(discard),
		notifications.WithDispatcherMetrics(metrics))
	require.NoError(t, err)
	backends, err := notifications.NewBackends(f.inApp, f.email, f.sms)
	require.NoError(t, err)
	worker, err := notifications.NewDeliveryWorker(f.store, f.users, f.templates, backends, f.queue,
		notifications.WithWorkerLogger(discard),
		notifications.WithWorkerMetrics(metrics))
	require.NoError(t, err)

	_, err = dispatcher.Dispatch(ctx, "promo", nil, notifications.WithTargetUsers("1", "ghost"))
	require.NoError(t, err)
	for _, qt := range f.queue.drain() {
		require.NoError(t, worker.Handle(ctx, qt.Task))
	}

	expected := `
# HELP notifykit_notifications_dispatched_total Notifications created by dispatch, by event type.
# TYPE notifykit_notifications_dispatched_total counter
notifykit_notifications_dispatched_total{event_type="promo"} 1
# HELP notifykit_dispatch_skipped_total Dispatch candidates skipped, by event type and reason.
# TYPE notifykit_dispatch_skipped_total counter
notifykit_dispatch_skipped_total{event_type="promo",reason="user_not_found"} 1
# HELP notifykit_deliveries_total Delivery attempt outcomes, by channel and status.
# TYPE notifykit_deliveries_total counter
notifykit_deliveries_total{channel="email",status="failed"} 1
notifykit_deliveries_total{channel="in_app",status="sent"} 1
# HELP notifykit_delivery_retries_scheduled_total Delivery retries scheduled, by channel.
# TYPE notifykit_delivery_retries_scheduled_total counter
notifykit_delivery_retries_scheduled_total{channel="email"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"notifykit_notifications_dispatched_total",
		"notifykit_dispatch_skipped_total",
		"notifykit_deliveries_total",
		"notifykit_delivery_retries_scheduled_total",
	))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t, activeUser("1"))
	f.seedEventType(t, notifications.EventTypeParams{Code: "promo", DefaultEnabled: true})
	_, err := f.dispatcher.Dispatch(context.Background(), "promo", nil, notifications.WithTargetUsers("1"))
	assert.NoError(t, err)
}
