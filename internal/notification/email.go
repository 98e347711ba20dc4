package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"github.com/zatyrani/zatyrani-backend/config"
)

// Channel delivers a message over one medium.
type Channel interface {
	Send(ctx context.Context, msg Message) error
}

// NewEmailChannel picks SendGrid when an API key is configured, then SMTP,
// and finally a channel that only logs (local development).
func NewEmailChannel(cfg *config.Config) Channel {
	switch {
	case cfg.SendGridAPIKey != "":
		return &SendGridSender{
			client:   sendgrid.NewSendClient(cfg.SendGridAPIKey),
			FromName: cfg.SendGridFromName,
			FromAddr: cfg.SendGridFromEmail,
		}
	case cfg.SMTPHost != "":
		return NewEmailSender(cfg)
	default:
		logrus.Warn("⚠️ No e-mail provider configured, e-mails will only be logged")
		return logChannel{name: ChannelEmail}
	}
}

// SendGridSender implements Channel using the SendGrid v3 API.
type SendGridSender struct {
	client   *sendgrid.Client
	FromName string
	FromAddr string
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(s.FromName, s.FromAddr)
	for _, to := range msg.To {
		m := mail.NewSingleEmail(from, msg.Subject, mail.NewEmail("", to), msg.Text, msg.HTML)
		resp, err := s.client.SendWithContext(ctx, m)
		if err != nil {
			return fmt.Errorf("sendgrid send to %s: %w", to, err)
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("sendgrid send to %s: status %d: %s", to, resp.StatusCode, resp.Body)
		}
	}
	return nil
}

// EmailSender implements Channel using SMTP with STARTTLS.
type EmailSender struct {
	Host     string
	Port     string
	Username string
	Password string
	FromName string
	FromAddr string
}

func NewEmailSender(cfg *config.Config) *EmailSender {
	from := cfg.SMTPFromEmail
	if from == "" {
		from = cfg.SMTPUsername
	}
	return &EmailSender{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		FromName: cfg.SMTPFromName,
		FromAddr: from,
	}
}

func (e *EmailSender) Send(_ context.Context, msg Message) error {
	body, contentType := msg.HTML, `text/html; charset="UTF-8"`
	if body == "" {
		body, contentType = msg.Text, `text/plain; charset="UTF-8"`
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", e.FromName), e.FromAddr)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s\r\n\r\n", contentType)
	b.WriteString(body)

	if err := e.sendMailWithTLS(fmt.Sprintf("%s:%s", e.Host, e.Port), msg.To, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (e *EmailSender) sendMailWithTLS(addr string, to []string, message []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to dial SMTP server: %w", err)
	}
	defer client.Close()

	if err = client.StartTLS(&tls.Config{ServerName: e.Host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if err = client.Auth(smtp.PlainAuth("", e.Username, e.Password, e.Host)); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	if err = client.Mail(e.FromAddr); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, recipient := range to {
		if err = client.Rcpt(recipient); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", recipient, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = writer.Write(message); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	return client.Quit()
}

type logChannel struct {
	name string
}

func (l logChannel) Send(_ context.Context, msg Message) error {
	logrus.WithFields(logrus.Fields{
		"channel": l.name,
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("📭 Notification not delivered (no provider)\n" + msg.Text)
	return nil
}
