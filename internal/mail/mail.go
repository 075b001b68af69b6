// Package mail sends transactional email.
package mail

import (
	"context"
	"fmt"
	"log/slog"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds SMTP settings. An empty Host selects the log sender.
type Config struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" envDefault:"no-reply@storefront.local"`
}

// LogSender writes messages to the log instead of delivering them. It is
// meant for local development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email not delivered, no SMTP host configured",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}

// PasswordResetMessage tells the user where to reset their password.
func PasswordResetMessage(to, resetURL string) Message {
	return Message{
		To:      to,
		Subject: "Storefront password recovery",
		Body: fmt.Sprintf("Your password reset link is:\n\n%s\n\n"+
			"It expires in 5 minutes. If you did not request it, ignore this email.", resetURL),
	}
}

// WelcomeMessage greets a newly registered user.
func WelcomeMessage(to, name string) Message {
	return Message{
		To:      to,
		Subject: "Welcome to Storefront",
		Body:    fmt.Sprintf("Hi %s,\n\nyour account is ready. Happy shopping!", name),
	}
}

// OrderStatusMessage tells a customer their order moved on.
func OrderStatusMessage(to, orderID, status string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your order is %s", status),
		Body:    fmt.Sprintf("Order %s is now %s.", orderID, status),
	}
}
