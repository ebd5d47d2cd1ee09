// Package email sends the notifications of the constat workflow.
//
// A Sender is the transport: SMTP, SendGrid, or a logging sender for
// development. The Dispatcher composes the five notification kinds from
// embedded templates and hands each message to a Sender.
package email

import (
	"context"
	"errors"
	"strings"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Sender delivers composed messages. The process entry point owns its
// lifecycle and calls Close on shutdown.
type Sender interface {
	// Send delivers msg to every address in msg.To as a single message.
	Send(ctx context.Context, msg Message) error

	// Close releases the transport.
	Close() error
}

// ErrNoRecipients is returned when a message has no valid recipient.
var ErrNoRecipients = errors.New("email has no recipients")

// =============================================================================
// Email Data Types
// =============================================================================

// Message is a single email, possibly with attachments.
type Message struct {
	To          []string
	Subject     string
	HTMLBody    string
	TextBody    string
	Attachments []Attachment
}

// Attachment is a file sent with a message. An attachment with a ContentID
// is inline and is referenced from the HTML body as "cid:<ContentID>".
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
	ContentID   string
}

// Inline reports whether the attachment is referenced from the body.
func (a Attachment) Inline() bool {
	return a.ContentID != ""
}

// recipients trims and drops empty addresses.
func (m Message) recipients() []string {
	out := make([]string, 0, len(m.To))
	for _, to := range m.To {
		if to = strings.TrimSpace(to); to != "" {
			out = append(out, to)
		}
	}
	return out
}

// =============================================================================
// Configuration Types
// =============================================================================

// Providers selectable with EMAIL_PROVIDER.
const (
	ProviderSMTP     = "smtp"
	ProviderSendGrid = "sendgrid"
	ProviderLog      = "log"
)

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailpit)
	Port     int    // SMTP server port (e.g., 1025 for Mailpit)
	Username string // empty disables authentication
	Password string
	From     string
	FromName string
}

// SendGridConfig holds SendGrid API configuration.
type SendGridConfig struct {
	APIKey   string
	From     string
	FromName string
}

// =============================================================================
// Common Constants
// =============================================================================

const (
	// DefaultFromEmail is the default sender email for notifications.
	DefaultFromEmail = "ne-pas-repondre@constat.culture.gouv.fr"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "Constat d'état"
)
