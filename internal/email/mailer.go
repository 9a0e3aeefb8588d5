package email

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"

	"github.com/joao-fontenele/bakery-checkout/internal/notification"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends confirmation messages over SMTP.
type Mailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	send     SendFunc
	logger   *slog.Logger
}

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func NewMailer(cfg Config, logger *slog.Logger) *Mailer {
	return &Mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		send:     smtp.SendMail,
		logger:   logger,
	}
}

// WithSendFunc replaces the SMTP transport.
func (m *Mailer) WithSendFunc(fn SendFunc) *Mailer {
	m.send = fn
	return m
}

func (m *Mailer) Send(ctx context.Context, c notification.Confirmation) error {
	if c.RecipientEmail == "" {
		return fmt.Errorf("confirmation %s has no recipient", c.OrderNumber)
	}

	body, err := RenderConfirmation(c)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	msg := buildMessage(m.from, c.RecipientEmail, Subject(c), body)
	if err := m.send(net.JoinHostPort(m.host, m.port), auth, m.from, []string{c.RecipientEmail}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", c.RecipientEmail, err)
	}

	m.logger.InfoContext(ctx, "email sent", "to", c.RecipientEmail, "order_number", c.OrderNumber)
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", encodeHeader(subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
