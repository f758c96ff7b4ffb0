package email

import (
	"context"
	"log/slog"
)

// Sender is responsible for actually sending an email.
// Delivery providers live behind this interface, the rest of the app
// only ever hands secrets to a Sender.
type Sender interface {
	Send(ctx context.Context, from, recipient Address, subject, body string) error
}

// LogSender is a Sender that logs the email to the logger instead of sending it.
// Note that this is not meant for production use as it logs the email addresses
// and all email contents. Resulting in sensitive information being logged.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{
		logger: logger,
	}
}

// Send logs the email to the logger.
func (s *LogSender) Send(_ context.Context, from, recipient Address, subject, body string) error {
	s.logger.Info("send email",
		"from", from,
		"recipient", recipient,
		"subject", subject,
		"body", body,
	)
	return nil
}

// Message is a sent email captured by a MemorySender.
type Message struct {
	From      Address
	Recipient Address
	Subject   string
	Body      string
}

// MemorySender collects emails in memory, for tests.
type MemorySender struct {
	Emails []Message
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (s *MemorySender) Send(_ context.Context, from, recipient Address, subject, body string) error {
	s.Emails = append(s.Emails, Message{
		From:      from,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
	return nil
}
