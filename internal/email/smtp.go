package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"
)

const smtpDialTimeout = 10 * time.Second

// =============================================================================
// SMTP Sender Implementation
// =============================================================================

// SMTPSender sends emails via SMTP.
//
// This implementation works with:
// - Mailpit or Mailhog (development): no authentication required
// - Any standard SMTP relay, with STARTTLS when the server offers it
type SMTPSender struct {
	config SMTPConfig
	logger *slog.Logger
}

// NewSMTPSender creates a new SMTP-based sender.
func NewSMTPSender(config SMTPConfig, logger *slog.Logger) *SMTPSender {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}
	return &SMTPSender{config: config, logger: logger}
}

// Send delivers msg in one SMTP transaction.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	to := msg.recipients()
	if len(to) == 0 {
		return ErrNoRecipients
	}

	raw, err := buildMessage(s.fromHeader(), to, msg)
	if err != nil {
		return fmt.Errorf("failed to build email: %w", err)
	}

	if err := s.deliver(ctx, to, raw); err != nil {
		s.logger.Error("failed to send email",
			"to", strings.Join(to, ","),
			"subject", msg.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		"to", strings.Join(to, ","),
		"subject", msg.Subject,
		"attachments", len(msg.Attachments),
	)
	return nil
}

// Close is a no-op: each Send uses its own connection.
func (s *SMTPSender) Close() error {
	return nil
}

func (s *SMTPSender) fromHeader() string {
	return (&mail.Address{Name: s.config.FromName, Address: s.config.From}).String()
}

func (s *SMTPSender) deliver(ctx context.Context, to []string, raw []byte) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))

	d := net.Dialer{Timeout: smtpDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	// Create auth if credentials are provided (not needed for Mailpit)
	if s.config.Username != "" && s.config.Password != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(s.config.From); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// =============================================================================
// MIME Encoding
// =============================================================================

// buildMessage encodes msg as MIME. The layout is
//
//	multipart/mixed
//	├── multipart/related
//	│   ├── multipart/alternative (text, html)
//	│   └── inline attachments
//	└── regular attachments
//
// with levels collapsed when they would hold a single part.
func buildMessage(from string, to []string, msg Message) ([]byte, error) {
	var inline, attached []Attachment
	for _, a := range msg.Attachments {
		if len(a.Data) == 0 {
			continue
		}
		if a.Inline() {
			inline = append(inline, a)
		} else {
			attached = append(attached, a)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("From: " + from + "\r\n")
	buf.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	buf.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")

	body, bodyType, err := relatedPart(msg, inline)
	if err != nil {
		return nil, err
	}
	if len(attached) == 0 {
		buf.WriteString("Content-Type: " + bodyType + "\r\n\r\n")
		buf.Write(body)
		return buf.Bytes(), nil
	}

	mixed := multipart.NewWriter(&buf)
	buf.WriteString("Content-Type: multipart/mixed; boundary=\"" + mixed.Boundary() + "\"\r\n\r\n")
	if err := writePart(mixed, textproto.MIMEHeader{"Content-Type": {bodyType}}, body); err != nil {
		return nil, err
	}
	for _, a := range attached {
		if err := writeAttachment(mixed, a, "attachment"); err != nil {
			return nil, err
		}
	}
	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// relatedPart returns the body and its content type: the alternative part
// alone, or wrapped in multipart/related with the inline images.
func relatedPart(msg Message, inline []Attachment) ([]byte, string, error) {
	alt, altType, err := alternativePart(msg)
	if err != nil {
		return nil, "", err
	}
	if len(inline) == 0 {
		return alt, altType, nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := writePart(w, textproto.MIMEHeader{"Content-Type": {altType}}, alt); err != nil {
		return nil, "", err
	}
	for _, a := range inline {
		if err := writeAttachment(w, a, "inline"); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), `multipart/related; boundary="` + w.Boundary() + `"`, nil
}

func alternativePart(msg Message) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range []struct{ ctype, body string }{
		{"text/plain; charset=utf-8", msg.TextBody},
		{"text/html; charset=utf-8", msg.HTMLBody},
	} {
		pw, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.ctype},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, "", err
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := io.WriteString(qp, p.body); err != nil {
			return nil, "", err
		}
		if err := qp.Close(); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), `multipart/alternative; boundary="` + w.Boundary() + `"`, nil
}

func writePart(w *multipart.Writer, h textproto.MIMEHeader, body []byte) error {
	pw, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = pw.Write(body)
	return err
}

func writeAttachment(w *multipart.Writer, a Attachment, disposition string) error {
	ctype := a.ContentType
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	h := textproto.MIMEHeader{
		"Content-Type":              {ctype},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType(disposition, map[string]string{"filename": a.Filename})},
	}
	if a.ContentID != "" {
		h.Set("Content-ID", "<"+a.ContentID+">")
	}
	pw, err := w.CreatePart(h)
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(a.Data)
	for len(encoded) > 76 {
		if _, err := io.WriteString(pw, encoded[:76]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err = io.WriteString(pw, encoded+"\r\n")
	return err
}

// =============================================================================
// Compile-time interface check
// =============================================================================

var _ Sender = (*SMTPSender)(nil)
