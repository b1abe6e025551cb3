package sms

import (
	"context"
	"log/slog"
)

// DevSender logs messages instead of sending them.
type DevSender struct {
	log *slog.Logger
}

// NewDevSender creates a sender that logs messages instead of sending them.
func NewDevSender(log *slog.Logger) *DevSender {
	if log == nil {
		log = slog.Default()
	}
	return &DevSender{log: log}
}

// SendSMS validates params and logs the message.
func (d *DevSender) SendSMS(ctx context.Context, params SendSMSParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	d.log.LogAttrs(ctx, slog.LevelInfo, "sms (dev sender)",
		slog.String("to", NormalizePhone(params.To)),
		slog.String("body", params.Body),
	)
	return nil
}
