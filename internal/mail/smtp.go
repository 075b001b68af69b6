package mail

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/utafrali/storefront/pkg/breaker"
)

// Dialer is the subset of *gomail.Dialer used by SMTPSender.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender delivers mail over SMTP behind a circuit breaker, so a dead
// mail server fails fast instead of holding requests.
type SMTPSender struct {
	dialer  Dialer
	from    string
	breaker *breaker.Breaker[struct{}]
	logger  *slog.Logger
}

// NewSMTPSender creates a sender for cfg. metrics may be nil.
func NewSMTPSender(cfg Config, metrics *breaker.Metrics, logger *slog.Logger) *SMTPSender {
	return NewSMTPSenderWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password), cfg.From, metrics, logger)
}

// NewSMTPSenderWithDialer creates a sender over an arbitrary dialer.
func NewSMTPSenderWithDialer(d Dialer, from string, metrics *breaker.Metrics, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{
		dialer:  d,
		from:    from,
		breaker: breaker.New[struct{}](breaker.DefaultConfig("smtp"), metrics, logger),
		logger:  logger,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	_, err := s.breaker.Execute(ctx, func(context.Context) (struct{}, error) {
		return struct{}{}, s.dialer.DialAndSend(m)
	})
	if err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}

	s.logger.DebugContext(ctx, "email sent",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}
