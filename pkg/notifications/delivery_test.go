package notifications_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

func TestDeliveryRecord_CanFire(t *testing.T) {
	t.Parallel()

	const (
		pending  = notifications.DeliveryPending
		retrying = notifications.DeliveryRetrying
		sent     = notifications.DeliverySent
		failed   = notifications.DeliveryFailed

		succeed = notifications.DeliveryEventSucceed
		fail    = notifications.DeliveryEventFail
		retry   = notifications.DeliveryEventRetry
	)

	tests := []struct {
		status  notifications.DeliveryStatus
		retries int
		event   notifications.DeliveryEvent
		want    bool
	}{
		{pending, 0, succeed, true},
		{pending, 0, fail, true},
		{pending, 0, retry, false},
		{failed, 1, retry, true},
		{failed, 2, retry, true},
		{failed, 3, retry, false},
		{failed, 1, succeed, false},
		{failed, 1, fail, false},
		{retrying, 1, succeed, true},
		{retrying, 1, fail, true},
		{retrying, 1, retry, false},
		{sent, 0, succeed, false},
		{sent, 0, fail, false},
		{sent, 0, retry, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d/%s", tt.status, tt.retries, tt.event), func(t *testing.T) {
			t.Parallel()
			rec := notifications.DeliveryRecord{Status: tt.status, RetryCount: tt.retries}
			assert.Equal(t, tt.want, rec.CanFire(tt.event, 3))
		})
	}
}

func TestDeliveryRecord_IsTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		record notifications.DeliveryRecord
		want   bool
	}{
		{"pending", notifications.DeliveryRecord{Status: notifications.DeliveryPending}, false},
		{"retrying", notifications.DeliveryRecord{Status: notifications.DeliveryRetrying, RetryCount: 2}, false},
		{"sent", notifications.DeliveryRecord{Status: notifications.DeliverySent}, true},
		{"failed below limit", notifications.DeliveryRecord{Status: notifications.DeliveryFailed, RetryCount: 2}, false},
		{"failed at limit", notifications.DeliveryRecord{Status: notifications.DeliveryFailed, RetryCount: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.record.IsTerminal(3))
		})
	}
}

func TestParseChannel(t *testing.T) {
	t.Parallel()

	ch, err := notifications.ParseChannel("sms")
	assert.NoError(t, err)
	assert.Equal(t, notifications.ChannelSMS, ch)

	_, err = notifications.ParseChannel("push")
	assert.ErrorIs(t, err, notifications.ErrUnknownChannel)
}
