package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/config"
)

// Mailer delivers HTML email
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// New returns a SendGrid mailer when an API key is configured, otherwise a LogMailer
func New(cfg *config.Config, logger *slog.Logger) Mailer {
	if cfg.SendGridAPIKey == "" {
		logger.Warn("⚠️ [Mailer] SENDGRID_API_KEY not set, emails will only be logged")
		return NewLogMailer(logger)
	}
	return NewSendGridMailer(cfg.SendGridBaseURL, cfg.SendGridAPIKey, cfg.MailFromEmail, cfg.MailFromName, logger)
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// SendGridMailer sends mail through the SendGrid v3 API
type SendGridMailer struct {
	httpClient *resty.Client
	from       sendGridAddress
	logger     *slog.Logger
}

// NewSendGridMailer creates a SendGrid client
func NewSendGridMailer(baseURL, apiKey, fromEmail, fromName string, logger *slog.Logger) *SendGridMailer {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")

	return &SendGridMailer{
		httpClient: client,
		from:       sendGridAddress{Email: fromEmail, Name: fromName},
		logger:     logger,
	}
}

// Send delivers one HTML message
func (m *SendGridMailer) Send(ctx context.Context, to, subject, html string) error {
	request := sendGridRequest{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: to}}}},
		From:             m.from,
		Subject:          subject,
		Content:          []sendGridContent{{Type: "text/html", Value: html}},
	}

	resp, err := m.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		Post("/v3/mail/send")
	if err != nil {
		m.logger.Error("❌ [Mailer] SendGrid call failed", "error", err)
		return fmt.Errorf("failed to call SendGrid: %w", err)
	}
	if resp.IsError() {
		m.logger.Error("❌ [Mailer] SendGrid rejected message", "status_code", resp.StatusCode())
		return fmt.Errorf("SendGrid returned status %d", resp.StatusCode())
	}

	m.logger.Info("📧 [Mailer] Email sent", "subject", subject)
	return nil
}

// LogMailer records outgoing mail in the log without delivering it
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that only logs
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the recipient and subject; the body may hold a reset link and is not logged
func (m *LogMailer) Send(ctx context.Context, to, subject, html string) error {
	m.logger.Info("📧 [Mailer] Email delivery disabled, message dropped",
		"to", to,
		"subject", subject,
		"body_bytes", len(html),
	)
	return nil
}
