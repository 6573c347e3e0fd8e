// Package notify delivers the persisted dataset by email.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
)

// Config holds SMTP settings. Sender, Password and Recipient come from
// the environment; their absence is reported at send time, never at
// startup.
type Config struct {
	Host           string
	Port           int
	Sender         string
	Password       string
	Recipient      string
	AttachmentName string
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "smtp.gmail.com"
	}
	if c.Port <= 0 {
		c.Port = 587
	}
	if c.AttachmentName == "" {
		c.AttachmentName = "stocks.csv"
	}
	return c
}

// Mailer sends the sink contents as a CSV attachment.
type Mailer struct {
	cfg Config
}

// NewMailer builds a Mailer.
func NewMailer(cfg Config) *Mailer {
	return &Mailer{cfg: cfg.withDefaults()}
}

// Send emails the attachment with a date-templated subject and body.
func (m *Mailer) Send(ctx context.Context, attachment []byte, generatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send canceled: %w", err)
	}
	if m.cfg.Sender == "" || m.cfg.Password == "" || m.cfg.Recipient == "" {
		return fmt.Errorf("smtp credentials not configured")
	}

	date := generatedAt.Format("2006-01-02")
	msg := email.NewEmail()
	msg.From = m.cfg.Sender
	msg.To = []string{m.cfg.Recipient}
	msg.Subject = fmt.Sprintf("Stock Data Report - %s", date)
	msg.Text = []byte(fmt.Sprintf("Please find attached the stock data report for %s.", date))

	if _, err := msg.Attach(bytes.NewReader(attachment), m.cfg.AttachmentName, "text/csv"); err != nil {
		return fmt.Errorf("attach report: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Sender, m.cfg.Password, m.cfg.Host)
	if err := msg.Send(addr, auth); err != nil {
		return fmt.Errorf("send report to %s: %w", m.cfg.Recipient, err)
	}
	return nil
}
