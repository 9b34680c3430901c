package notify

import (
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/pkg/metrics"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Notification is a channel agnostic message. For SMS only Text is sent,
// email uses every field.
type Notification struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
	// FallbackEmail receives the message by email when SMS delivery fails
	FallbackEmail string `json:"fallbackEmail,omitempty"`

	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}

// Notifier is what the HTTP layer talks to. Dispatcher delivers inline,
// Queue hands the work to a background worker.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type EmailSender interface {
	Send(ctx context.Context, msg Message) (bool, error)
}

type TextSender interface {
	Send(ctx context.Context, to, body string) (bool, error)
}

// Result tells which channel finally carried a notification
type Result struct {
	Channel   string
	Simulated bool
	FellBack  bool
}

type Dispatcher struct {
	mail EmailSender
	sms  TextSender
}

func NewDispatcher(mail EmailSender, sms TextSender) *Dispatcher {
	return &Dispatcher{mail: mail, sms: sms}
}

func (d *Dispatcher) Notify(ctx context.Context, n Notification) error {
	_, err := d.Deliver(ctx, n)
	return err
}

// Deliver sends n over its channel. A failed SMS is retried as an email
// when n carries a fallback address.
func (d *Dispatcher) Deliver(ctx context.Context, n Notification) (Result, error) {
	switch n.Channel {
	case model.ChannelEmail:
		return d.email(ctx, n.To, n)
	case model.ChannelSMS:
		simulated, err := d.sms.Send(ctx, n.To, n.Text)
		if err == nil {
			metrics.Notification(model.ChannelSMS, resultLabel(simulated))
			return Result{Channel: model.ChannelSMS, Simulated: simulated}, nil
		}

		metrics.Notification(model.ChannelSMS, "failed")

		if n.FallbackEmail == "" {
			return Result{}, err
		}

		zap.L().Warn("SMS delivery failed, falling back to email", zap.Error(err))

		r, mailErr := d.email(ctx, n.FallbackEmail, n)
		if mailErr != nil {
			return Result{}, errors.Join(err, mailErr)
		}

		r.FellBack = true
		return r, nil
	default:
		return Result{}, fmt.Errorf("unknown notification channel %q", n.Channel)
	}
}

func (d *Dispatcher) email(ctx context.Context, to string, n Notification) (Result, error) {
	simulated, err := d.mail.Send(ctx, Message{
		To:      to,
		Subject: n.Subject,
		Text:    n.Text,
		HTML:    n.HTML,
	})
	if err != nil {
		metrics.Notification(model.ChannelEmail, "failed")
		return Result{}, err
	}

	metrics.Notification(model.ChannelEmail, resultLabel(simulated))
	return Result{Channel: model.ChannelEmail, Simulated: simulated}, nil
}

func resultLabel(simulated bool) string {
	if simulated {
		return "simulated"
	}

	return "sent"
}
