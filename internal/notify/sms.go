package notify

import (
	"bitwise74/cardio-api/config"
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// SMS sends text messages through Twilio. Like Mailer it falls back to
// logging when no credentials are configured.
type SMS struct {
	cfg  config.SMSConfig
	dev  bool
	send func(to, body string) error
}

func NewSMS(cfg config.SMSConfig, dev bool) *SMS {
	s := &SMS{cfg: cfg, dev: dev}

	if cfg.Configured() {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})

		s.send = func(to, body string) error {
			params := &twilioApi.CreateMessageParams{}
			params.SetTo(to)
			params.SetFrom(cfg.From)
			params.SetBody(body)

			_, err := client.Api.CreateMessage(params)
			return err
		}
	}

	return s
}

func (s *SMS) Configured() bool {
	return s.send != nil
}

// Send delivers body to the E.164 number to
func (s *SMS) Send(ctx context.Context, to, body string) (simulated bool, err error) {
	if strings.TrimSpace(to) == "" {
		return false, ErrNoRecipient
	}

	if !s.Configured() {
		fields := []zap.Field{zap.String("to", maskPhone(to))}
		if s.dev {
			fields = append(fields, zap.String("body", body))
		}

		zap.L().Info("SMS delivery simulated, Twilio is not configured", fields...)
		return true, nil
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	if err := s.send(to, body); err != nil {
		return false, fmt.Errorf("failed to send sms, %w", err)
	}

	zap.L().Debug("SMS sent", zap.String("to", maskPhone(to)))
	return false, nil
}

// maskPhone keeps the last 4 digits, enough to tell numbers apart in logs
func maskPhone(p string) string {
	if len(p) <= 4 {
		return "****"
	}

	return strings.Repeat("*", len(p)-4) + p[len(p)-4:]
}
