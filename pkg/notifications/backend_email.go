package notifications

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/email"
)

// EmailBackend sends through an email.EmailSender.
type EmailBackend struct {
	sender email.EmailSender
}

// NewEmailBackend sends through sender, which is a Postmark client or a
// DevSender depending on configuration.
func NewEmailBackend(sender email.EmailSender) *EmailBackend {
	return &EmailBackend{sender: sender}
}

func (b *EmailBackend) Channel() Channel { return ChannelEmail }

// Send mails the rendered message to the user's address. Users without an
// email address fail with ErrNoRecipientAddress.
func (b *EmailBackend) Send(ctx context.Context, msg Message) error {
	if msg.User.Email == "" {
		return fmt.Errorf("%w: email", ErrNoRecipientAddress)
	}
	subject := msg.Title
	if subject == "" {
		subject = msg.Notification.Title
	}
	return b.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   msg.User.Email,
		Subject:  subject,
		BodyText: msg.Body,
		Tag:      msg.Notification.EventTypeCode,
	})
}
