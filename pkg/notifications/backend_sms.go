package notifications

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/sms"
)

// SMSBackend sends through an sms.Sender. Bodies are cut to one segment.
type SMSBackend struct {
	sender sms.Sender
}

// NewSMSBackend sends through sender, a Twilio client or a logging DevSender.
func NewSMSBackend(sender sms.Sender) *SMSBackend {
	return &SMSBackend{sender: sender}
}

func (b *SMSBackend) Channel() Channel { return ChannelSMS }

// Send texts the body, truncated to sms.MaxBodyLength runes. Users without
// a phone number fail with ErrNoRecipientAddress.
func (b *SMSBackend) Send(ctx context.Context, msg Message) error {
	if msg.User.Phone == "" {
		return fmt.Errorf("%w: sms", ErrNoRecipientAddress)
	}
	return b.sender.SendSMS(ctx, sms.SendSMSParams{
		To:   msg.User.Phone,
		Body: sms.Truncate(msg.Body),
	})
}
