package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the part of the Twilio REST API used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends messages through the Twilio Messages API.
type TwilioSender struct {
	api  messageCreator
	from string
}

// NewTwilioSender creates a Twilio sender. Credentials and FromNumber are required.
func NewTwilioSender(cfg Config) (*TwilioSender, error) {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		return nil, fmt.Errorf("%w: twilio account sid and auth token are required", ErrInvalidConfig)
	}
	if !phoneRegex.MatchString(NormalizePhone(cfg.FromNumber)) {
		return nil, fmt.Errorf("%w: sender phone number %q is invalid", ErrInvalidConfig, cfg.FromNumber)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})

	return &TwilioSender{api: client.Api, from: NormalizePhone(cfg.FromNumber)}, nil
}

// SendSMS validates params and creates the message. The Twilio client has no
// context support, so ctx is only checked before the call.
func (s *TwilioSender) SendSMS(ctx context.Context, params SendSMSParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrFailedToSendSMS, err)
	}

	req := &twilioApi.CreateMessageParams{}
	req.SetTo(NormalizePhone(params.To))
	req.SetFrom(s.from)
	req.SetBody(params.Body)

	resp, err := s.api.CreateMessage(req)
	if err != nil {
		return errors.Join(ErrFailedToSendSMS, err)
	}
	if resp != nil && resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return errors.Join(ErrFailedToSendSMS, fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg))
	}
	return nil
}
