package email

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// EmailSender sends a single transactional email.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams describes one outbound email. At least one of BodyHTML
// and BodyText must be set.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html,omitempty"`
	BodyText string `json:"body_text,omitempty"`
	Tag      string `json:"tag,omitempty"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+(\.[a-zA-Z]{2,})?$`)

// Validate checks the recipient, subject and body.
func (p SendEmailParams) Validate() error {
	switch {
	case strings.TrimSpace(p.SendTo) == "":
		return fmt.Errorf("%w: recipient is required", ErrInvalidParams)
	case !emailRegex.MatchString(p.SendTo):
		return fmt.Errorf("%w: recipient %q is not a valid email address", ErrInvalidParams, p.SendTo)
	case strings.TrimSpace(p.Subject) == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	case p.BodyHTML == "" && p.BodyText == "":
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}

// New returns a Postmark sender when credentials are configured and a
// DevSender otherwise.
func New(cfg Config) (EmailSender, error) {
	if cfg.UsePostmark() {
		return NewPostmarkClient(cfg)
	}
	return NewDevSender(cfg.DevOutputDir), nil
}
