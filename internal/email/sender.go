package email

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"luxemap/estates/internal/config"
	"luxemap/estates/internal/logging"
)

// Message is a plain-text email. Kind labels what the email is about
// (e.g. "enquiry") and is used by mock senders to key stored mail.
type Message struct {
	To      []string
	ReplyTo string
	Subject string
	Body    string
	Kind    string
}

// Sender delivers email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSenderFromConfig builds the sender chain for the process:
// SendGrid when an API key is configured, otherwise SMTP (or logging when
// no SMTP host is set). extra senders, such as the Redis mock or the file
// log, are fanned out to as well.
func NewSenderFromConfig(cfg *config.Config, extra ...Sender) Sender {
	var primary Sender
	if cfg.SendGridAPIKey != "" {
		primary = NewSendGridSender(cfg)
	} else {
		primary = NewSMTPSender(cfg)
	}
	if len(extra) == 0 {
		return primary
	}
	composite := NewCompositeEmailSender(primary)
	for _, s := range extra {
		composite.AddSender(s)
	}
	return composite
}

// SMTPSender implements Sender over net/smtp.
type SMTPSender struct {
	from string
	auth smtp.Auth
	addr string
}

// NewSMTPSender returns an SMTP sender, or a LoggingSender when no SMTP
// host is configured.
func NewSMTPSender(cfg *config.Config) Sender {
	if cfg.SmtpHost == "" {
		logging.Logger.Info("SMTP host not configured, using logging email sender.")
		return &LoggingSender{from: cfg.SmtpFromAddress}
	}

	return &SMTPSender{
		from: cfg.SmtpFromAddress,
		auth: smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost),
		addr: fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort),
	}
}

// buildRawMessage renders msg as an RFC 5322 message.
func buildRawMessage(from string, msg Message, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	if msg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", msg.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return b.Bytes()
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw := buildRawMessage(s.from, msg, time.Now())
	if err := smtp.SendMail(s.addr, s.auth, s.from, msg.To, raw); err != nil {
		logging.Logger.Errorf("Failed to send email via SMTP to %v: %v", msg.To, err)
		return fmt.Errorf("smtp error: %w", err)
	}
	logging.Logger.Infof("Email sent via SMTP to %v (Subject: %s)", msg.To, msg.Subject)
	return nil
}

// LoggingSender only logs what would have been sent.
type LoggingSender struct {
	from string
}

func (s *LoggingSender) Send(ctx context.Context, msg Message) error {
	logging.Logger.WithFields(map[string]interface{}{
		"from":    s.from,
		"to":      strings.Join(msg.To, ", "),
		"subject": msg.Subject,
		"kind":    msg.Kind,
	}).Infof("Email (logged, not sent):\n%s", msg.Body)
	return nil
}
