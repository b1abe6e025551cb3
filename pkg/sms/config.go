package sms

// Config holds SMS delivery settings. Without Twilio credentials New falls
// back to a DevSender that only logs messages.
type Config struct {
	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	FromNumber       string `env:"TWILIO_PHONE_NUMBER"`
}

// UseTwilio reports whether Twilio credentials are configured.
func (c Config) UseTwilio() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}
