package email

// Config holds email delivery settings. The Postmark tokens may be left empty
// in development, in which case New falls back to a DevSender writing to DevOutputDir.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"notifications@localhost"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@localhost"`
	DevOutputDir         string `env:"EMAIL_DEV_OUTPUT_DIR" envDefault:"./tmp/emails"`
}

// UsePostmark reports whether Postmark credentials are configured.
func (c Config) UsePostmark() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}
