package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DevSender writes emails to a directory instead of sending them.
type DevSender struct {
	dir string
}

// NewDevSender creates a DevSender; dir is created on first send.
func NewDevSender(dir string) EmailSender {
	return &DevSender{dir: dir}
}

// emailMetadata is the JSON sidecar written next to each body.
type emailMetadata struct {
	Timestamp string `json:"timestamp"`
	SendTo    string `json:"send_to"`
	Subject   string `json:"subject"`
	Tag       string `json:"tag,omitempty"`
	BodyText  string `json:"body_text,omitempty"`
}

// SendEmail writes <timestamp>_<tag>.html (when an HTML body is present)
// and a .json metadata file.
func (d *DevSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrFailedToSendEmail, err)
	}

	now := time.Now()
	timestamp := now.Format("2006_01_02_150405.000000")

	identifier := params.Tag
	if identifier == "" {
		identifier = params.Subject
	}

	baseFilename := fmt.Sprintf("%s_%s", timestamp, sanitizeFilename(identifier))

	if params.BodyHTML != "" {
		htmlPath := filepath.Join(d.dir, baseFilename+".html")
		if err := os.WriteFile(htmlPath, []byte(params.BodyHTML), 0644); err != nil {
			return fmt.Errorf("%w: failed to write HTML file: %v", ErrFailedToSendEmail, err)
		}
	}

	metadata := emailMetadata{
		Timestamp: now.Format(time.RFC3339),
		SendTo:    params.SendTo,
		Subject:   params.Subject,
		Tag:       params.Tag,
		BodyText:  params.BodyText,
	}

	jsonData, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal metadata: %v", ErrFailedToSendEmail, err)
	}

	jsonPath := filepath.Join(d.dir, baseFilename+".json")
	if err := os.WriteFile(jsonPath, jsonData, 0644); err != nil {
		return fmt.Errorf("%w: failed to write JSON file: %v", ErrFailedToSendEmail, err)
	}

	return nil
}

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// sanitizeFilename lowercases s, keeps [a-z0-9-_.] and caps the length.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = sanitizeRegex.ReplaceAllString(s, "")

	const maxLength = 100
	if len(s) > maxLength {
		s = s[:maxLength]
	}

	if s == "" {
		s = "email"
	}

	return strings.ToLower(s)
}
