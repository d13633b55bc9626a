package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mrz1836/postmark"

	"github.com/dmitrymomot/ridekit/pkg/dispatch"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// EmailConfig holds Postmark adapter configuration. Tokens are optional so
// development environments can fall back to the dev sender.
type EmailConfig struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
}

// PostmarkAdapter delivers email payloads through Postmark's transactional
// API.
type PostmarkAdapter struct {
	client *postmark.Client
	config EmailConfig
}

// NewPostmarkAdapter creates a Postmark-backed email adapter.
func NewPostmarkAdapter(cfg EmailConfig) (*PostmarkAdapter, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}

	return &PostmarkAdapter{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

func (a *PostmarkAdapter) Send(ctx context.Context, payload dispatch.Payload) (dispatch.SendResult, error) {
	email, ok := payload.(dispatch.EmailPayload)
	if !ok {
		return dispatch.SendResult{}, Permanent(fmt.Errorf("%w: %T", ErrUnexpectedPayload, payload))
	}
	if !emailRegex.MatchString(email.To) {
		return dispatch.SendResult{}, Permanent(fmt.Errorf("%w: %q", ErrInvalidRecipient, email.To))
	}

	resp, err := a.client.SendEmail(ctx, postmark.Email{
		From:       a.config.SenderEmail,
		To:         email.To,
		Subject:    email.Subject,
		HTMLBody:   email.BodyHTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return dispatch.SendResult{}, Transient(fmt.Errorf("%w: %w", ErrSendFailed, err))
	}
	if resp.ErrorCode > 0 {
		// Postmark 300-series codes are request errors that retries cannot fix.
		wrapped := fmt.Errorf("%w: postmark error %d: %s", ErrSendFailed, resp.ErrorCode, resp.Message)
		if resp.ErrorCode >= 300 && resp.ErrorCode < 400 {
			return dispatch.SendResult{}, Permanent(wrapped)
		}
		return dispatch.SendResult{}, Transient(wrapped)
	}

	return dispatch.SendResult{ProviderMessageID: resp.MessageID}, nil
}

// DevEmailSender writes outbound emails to disk instead of a provider.
// Useful for local development and integration tests.
type DevEmailSender struct {
	dir string
}

// NewDevEmailSender creates a dev sender saving emails under dir.
func NewDevEmailSender(dir string) *DevEmailSender {
	return &DevEmailSender{dir: dir}
}

type devEmailMetadata struct {
	Timestamp string `json:"timestamp"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
}

func (d *DevEmailSender) Send(ctx context.Context, payload dispatch.Payload) (dispatch.SendResult, error) {
	email, ok := payload.(dispatch.EmailPayload)
	if !ok {
		return dispatch.SendResult{}, Permanent(fmt.Errorf("%w: %T", ErrUnexpectedPayload, payload))
	}
	if !emailRegex.MatchString(email.To) {
		return dispatch.SendResult{}, Permanent(fmt.Errorf("%w: %q", ErrInvalidRecipient, email.To))
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return dispatch.SendResult{}, Transient(fmt.Errorf("%w: %w", ErrSendFailed, err))
	}

	now := time.Now()
	base := fmt.Sprintf("%s_%s", now.Format("2006_01_02_150405"), sanitizeFilename(email.Subject))

	if err := os.WriteFile(filepath.Join(d.dir, base+".html"), []byte(email.BodyHTML), 0644); err != nil {
		return dispatch.SendResult{}, Transient(fmt.Errorf("%w: %w", ErrSendFailed, err))
	}

	meta, err := json.MarshalIndent(devEmailMetadata{
		Timestamp: now.Format(time.RFC3339),
		To:        email.To,
		Subject:   email.Subject,
	}, "", "  ")
	if err != nil {
		return dispatch.SendResult{}, Transient(fmt.Errorf("%w: %w", ErrSendFailed, err))
	}
	if err := os.WriteFile(filepath.Join(d.dir, base+".json"), meta, 0644); err != nil {
		return dispatch.SendResult{}, Transient(fmt.Errorf("%w: %w", ErrSendFailed, err))
	}

	return dispatch.SendResult{ProviderMessageID: base}, nil
}

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

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
