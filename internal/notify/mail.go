// Package notify delivers emails and text messages to users, either right
// away or through a Redis backed task queue
package notify

import (
	"bitwise74/cardio-api/config"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var ErrNoRecipient = errors.New("no recipient")

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends email over SMTP. When SMTP isn't configured it only logs what
// it would have sent.
type Mailer struct {
	cfg  config.MailConfig
	dev  bool
	send func(m *gomail.Message) error
}

func NewMailer(cfg config.MailConfig, dev bool) *Mailer {
	m := &Mailer{cfg: cfg, dev: dev}

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	m.send = func(msg *gomail.Message) error {
		return d.DialAndSend(msg)
	}

	return m
}

func (m *Mailer) Configured() bool {
	return m.cfg.Configured()
}

// Send delivers msg. simulated is true when nothing left the process.
func (m *Mailer) Send(ctx context.Context, msg Message) (simulated bool, err error) {
	if strings.TrimSpace(msg.To) == "" {
		return false, ErrNoRecipient
	}

	if strings.EqualFold(msg.To, m.cfg.Sender) {
		return false, errors.New("refusing to send mail to the sender address")
	}

	if !m.Configured() {
		fields := []zap.Field{
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
		}
		// Codes and links only end up in logs on development machines
		if m.dev {
			fields = append(fields, zap.String("body", msg.Text))
		}

		zap.L().Info("Email delivery simulated, SMTP is not configured", fields...)
		return true, nil
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.cfg.Sender)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		gm.AddAlternative("text/html", msg.HTML)
	}

	if err := m.send(gm); err != nil {
		return false, fmt.Errorf("failed to send email, %w", err)
	}

	zap.L().Debug("Email sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return false, nil
}
