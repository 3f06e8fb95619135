package channels

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/grigta/sentinel/internal/config"
	"github.com/grigta/sentinel/internal/models"
)

// EmailChannel sends alerts over SMTP.
type EmailChannel struct {
	cfg config.EmailConfig
}

func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, alert *models.Alert) error {
	if c.cfg.SMTPHost == "" || c.cfg.From == "" || len(c.cfg.To) == 0 {
		return fmt.Errorf("email channel is not configured: smtp host, sender and recipients are required")
	}

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Title)

	var body strings.Builder
	body.WriteString(fmt.Sprintf("From: %s\r\n", c.cfg.From))
	body.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(c.cfg.To, ", ")))
	body.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	body.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	body.WriteString(alert.Message)
	body.WriteString(fmt.Sprintf("\r\n\r\nType: %s\r\nSeverity: %s\r\nCreated: %s\r\n",
		alert.Type, alert.Severity, alert.CreatedAt.Format("2006-01-02 15:04:05")))

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.SMTPHost)
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.SMTPHost, c.cfg.SMTPPort)
	if err := smtp.SendMail(addr, auth, c.cfg.From, c.cfg.To, []byte(body.String())); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	return nil
}
