package sms

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// MaxBodyLength is the length of a single GSM-7 SMS segment.
const MaxBodyLength = 160

// Sender sends a single text message.
type Sender interface {
	SendSMS(ctx context.Context, params SendSMSParams) error
}

type SendSMSParams struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

var phoneRegex = regexp.MustCompile(`^\+?[1-9][0-9]{6,14}$`)

// Validate checks that To looks like an E.164 number and Body is not empty.
func (p SendSMSParams) Validate() error {
	to := NormalizePhone(p.To)
	switch {
	case to == "":
		return fmt.Errorf("%w: phone number is required", ErrInvalidParams)
	case !phoneRegex.MatchString(to):
		return fmt.Errorf("%w: %q is not a valid phone number", ErrInvalidParams, p.To)
	case strings.TrimSpace(p.Body) == "":
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}

// NormalizePhone strips spaces, dashes, dots and parentheses.
func NormalizePhone(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// Truncate shortens body to MaxBodyLength runes.
func Truncate(body string) string {
	runes := []rune(body)
	if len(runes) <= MaxBodyLength {
		return body
	}
	return string(runes[:MaxBodyLength])
}

// New returns a Twilio sender when credentials are configured and a
// DevSender logging to log otherwise.
func New(cfg Config, log *slog.Logger) (Sender, error) {
	if cfg.UseTwilio() {
		return NewTwilioSender(cfg)
	}
	return NewDevSender(log), nil
}
