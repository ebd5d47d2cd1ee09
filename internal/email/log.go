package email

import (
	"context"
	"log/slog"
	"strings"
)

// LogSender logs messages instead of sending them. For development only.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	to := msg.recipients()
	if len(to) == 0 {
		return ErrNoRecipients
	}
	s.logger.Info("email not sent (log provider)",
		"to", strings.Join(to, ","),
		"subject", msg.Subject,
		"attachments", len(msg.Attachments),
	)
	s.logger.Debug("email body", "text", msg.TextBody)
	return nil
}

func (s *LogSender) Close() error {
	return nil
}

var _ Sender = (*LogSender)(nil)
