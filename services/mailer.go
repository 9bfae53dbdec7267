package services

import (
	"context"

	"go.uber.org/zap"
)

// Mailer delivers account emails.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, username, link string) error
}

// LogMailer writes the message to the log instead of sending it.
type LogMailer struct {
	from   string
	logger *zap.Logger
}

func NewLogMailer(from string, logger *zap.Logger) *LogMailer {
	return &LogMailer{from: from, logger: logger}
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, to, username, link string) error {
	m.logger.Info("verification email",
		zap.String("from", m.from),
		zap.String("to", to),
		zap.String("subject", "Verify your SlangMaster account"),
		zap.String("username", username),
		zap.String("link", link),
	)
	return nil
}
