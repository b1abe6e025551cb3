package notifications_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/broadcast"
	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/sms"
)

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, params email.SendEmailParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) SendSMS(ctx context.Context, params sms.SendSMSParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func TestNewBackends(t *testing.T) {
	t.Parallel()

	inApp := &recordingBackend{ch: notifications.ChannelInApp}
	mail := &recordingBackend{ch: notifications.ChannelEmail}
	text := &recordingBackend{ch: notifications.ChannelSMS}

	tests := []struct {
		name     string
		backends []notifications.Backend
		wantErr  error
	}{
		{"complete", []notifications.Backend{inApp, mail, text}, nil},
		{"missing sms", []notifications.Backend{inApp, mail}, notifications.ErrMissingBackend},
		{"duplicate", []notifications.Backend{inApp, mail, text, mail}, notifications.ErrDuplicateBackend},
		{"unknown channel", []notifications.Backend{inApp, mail, text, &recordingBackend{ch: "fax"}}, notifications.ErrUnknownChannel},
		{"nil backend", []notifications.Backend{inApp, nil}, notifications.ErrMissingDependency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := notifications.NewBackends(tt.backends...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, ch := range notifications.Channels {
				got, err := b.Get(ch)
				require.NoError(t, err)
				assert.Equal(t, ch, got.Channel())
			}
			_, err = b.Get("fax")
			assert.ErrorIs(t, err, notifications.ErrUnknownChannel)
		})
	}
}

func TestEmailBackend_Send(t *testing.T) {
	t.Parallel()

	t.Run("sends text email", func(t *testing.T) {
		t.Parallel()
		sender := &MockEmailSender{}
		sender.On("SendEmail", mock.Anything, email.SendEmailParams{
			SendTo:   "ann@example.com",
			Subject:  "Subject",
			BodyText: "Body",
			Tag:      "promo",
		}).Return(nil).Once()

		err := notifications.NewEmailBackend(sender).Send(context.Background(), notifications.Message{
			Notification: notifications.Notification{EventTypeCode: "promo"},
			User:         notifications.User{Email: "ann@example.com"},
			Title:        "Subject",
			Body:         "Body",
		})
		require.NoError(t, err)
		sender.AssertExpectations(t)
	})

	t.Run("falls back to notification title for empty subject", func(t *testing.T) {
		t.Parallel()
		sender := &MockEmailSender{}
		sender.On("SendEmail", mock.Anything, mock.MatchedBy(func(p email.SendEmailParams) bool {
			return p.Subject == "Stored title"
		})).Return(nil).Once()

		err := notifications.NewEmailBackend(sender).Send(context.Background(), notifications.Message{
			Notification: notifications.Notification{Title: "Stored title"},
			User:         notifications.User{Email: "ann@example.com"},
			Body:         "Body",
		})
		require.NoError(t, err)
		sender.AssertExpectations(t)
	})

	t.Run("no address", func(t *testing.T) {
		t.Parallel()
		sender := &MockEmailSender{}
		err := notifications.NewEmailBackend(sender).Send(context.Background(), notifications.Message{})
		assert.ErrorIs(t, err, notifications.ErrNoRecipientAddress)
		sender.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
	})

	t.Run("transport error is returned", func(t *testing.T) {
		t.Parallel()
		sender := &MockEmailSender{}
		sender.On("SendEmail", mock.Anything, mock.Anything).Return(email.ErrFailedToSendEmail)

		err := notifications.NewEmailBackend(sender).Send(context.Background(), notifications.Message{
			User: notifications.User{Email: "ann@example.com"},
		})
		assert.ErrorIs(t, err, email.ErrFailedToSendEmail)
	})
}

func TestSMSBackend_Send(t *testing.T) {
	t.Parallel()

	t.Run("truncates to one segment", func(t *testing.T) {
		t.Parallel()
		sender := &MockSMSSender{}
		sender.On("SendSMS", mock.Anything, mock.MatchedBy(func(p sms.SendSMSParams) bool {
			return p.To == "+15550001" && len([]rune(p.Body)) == sms.MaxBodyLength
		})).Return(nil).Once()

		err := notifications.NewSMSBackend(sender).Send(context.Background(), notifications.Message{
			User: notifications.User{Phone: "+15550001"},
			Body: strings.Repeat("x", 500),
		})
		require.NoError(t, err)
		sender.AssertExpectations(t)
	})

	t.Run("fails without phone number", func(t *testing.T) {
		t.Parallel()
		sender := &MockSMSSender{}
		err := notifications.NewSMSBackend(sender).Send(context.Background(), notifications.Message{Body: "hi"})
		assert.ErrorIs(t, err, notifications.ErrNoRecipientAddress)
		sender.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything)
	})
}

type failingBroadcaster struct {
	broadcast.Broadcaster[notifications.Notification]
}

func (failingBroadcaster) Publish(context.Context, string, notifications.Notification) error {
	return errors.New("redis down")
}

func TestInAppBackend_Send(t *testing.T) {
	t.Parallel()

	t.Run("publishes to the user topic", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		b := broadcast.NewMemoryBroadcaster[notifications.Notification](4)
		defer b.Close()

		sub, err := b.Subscribe(ctx, notifications.UserTopic("1"))
		require.NoError(t, err)

		backend := notifications.NewInAppBackend(notifications.WithRealtime(b), notifications.WithInAppLogger(discard))
		n := notifications.Notification{ID: "n1", UserID: "1", Title: "hi"}
		require.NoError(t, backend.Send(ctx, notifications.Message{Notification: n}))

		msg := <-sub.Receive()
		assert.Equal(t, "user:1", msg.Topic)
		assert.Equal(t, n, msg.Data)
	})

	t.Run("publish failure does not fail delivery", func(t *testing.T) {
		t.Parallel()
		backend := notifications.NewInAppBackend(
			notifications.WithRealtime(failingBroadcaster{}),
			notifications.WithInAppLogger(discard),
		)
		err := backend.Send(context.Background(), notifications.Message{
			Notification: notifications.Notification{ID: "n1", UserID: "1"},
		})
		assert.NoError(t, err)
	})

	t.Run("works without a broadcaster", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, notifications.NewInAppBackend().Send(context.Background(), notifications.Message{}))
	})
}
