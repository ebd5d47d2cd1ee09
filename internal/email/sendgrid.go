package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// =============================================================================
// SendGrid Sender Implementation
// =============================================================================

// SendGridSender sends emails through the SendGrid v3 API.
type SendGridSender struct {
	client   *sendgrid.Client
	from     string
	fromName string
	logger   *slog.Logger
}

// NewSendGridSender creates a sender using the given API key.
func NewSendGridSender(config SendGridConfig, logger *slog.Logger) *SendGridSender {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}
	return &SendGridSender{
		client:   sendgrid.NewSendClient(config.APIKey),
		from:     config.From,
		fromName: config.FromName,
		logger:   logger,
	}
}

// Send delivers msg to all recipients in one personalization.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	to := msg.recipients()
	if len(to) == 0 {
		return ErrNoRecipients
	}

	response, err := s.client.SendWithContext(ctx, s.buildMail(to, msg))
	if err != nil {
		s.logger.Error("failed to send email", "to", strings.Join(to, ","), "subject", msg.Subject, "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 300 {
		s.logger.Error("sendgrid rejected email",
			"to", strings.Join(to, ","),
			"subject", msg.Subject,
			"status", response.StatusCode,
			"body", response.Body,
		)
		return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent",
		"to", strings.Join(to, ","),
		"subject", msg.Subject,
		"status", response.StatusCode,
	)
	return nil
}

// Close is a no-op: the SendGrid client is stateless.
func (s *SendGridSender) Close() error {
	return nil
}

func (s *SendGridSender) buildMail(to []string, msg Message) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.fromName, s.from))
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	for _, addr := range to {
		p.AddTos(mail.NewEmail("", addr))
	}
	m.AddPersonalizations(p)

	// SendGrid requires text/plain before text/html.
	if msg.TextBody != "" {
		m.AddContent(mail.NewContent("text/plain", msg.TextBody))
	}
	m.AddContent(mail.NewContent("text/html", msg.HTMLBody))

	for _, a := range msg.Attachments {
		if len(a.Data) == 0 {
			continue
		}
		m.AddAttachment(buildAttachment(a))
	}
	return m
}

func buildAttachment(a Attachment) *mail.Attachment {
	attachment := mail.NewAttachment()
	attachment.SetContent(base64.StdEncoding.EncodeToString(a.Data))
	attachment.SetType(a.ContentType)
	attachment.SetFilename(a.Filename)
	if a.Inline() {
		attachment.SetDisposition("inline")
		attachment.SetContentID(a.ContentID)
	} else {
		attachment.SetDisposition("attachment")
	}
	return attachment
}

var _ Sender = (*SendGridSender)(nil)
