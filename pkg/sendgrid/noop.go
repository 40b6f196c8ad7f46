package sendgrid

import (
	"context"

	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
)

// LogMailer records messages in the log instead of sending them. Used in dev
// when no API key is configured.
type LogMailer struct {
	logg *logger.Logger
}

func NewLogMailer(logg *logger.Logger) *LogMailer {
	return &LogMailer{logg: logg}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if m.logg == nil {
		return nil
	}
	logCtx := m.logg.WithFields(ctx, map[string]any{
		"email_to":          msg.ToEmail,
		"email_subject":     msg.Subject,
		"email_attachments": len(msg.Attachments),
	})
	m.logg.Info(logCtx, "email suppressed (log mailer)")
	return nil
}
