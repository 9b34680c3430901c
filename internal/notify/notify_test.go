package notify

import (
	"bitwise74/cardio-api/config"
	"bitwise74/cardio-api/internal/model"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeMail struct {
	sent []Message
	err  error
}

func (f *fakeMail) Send(_ context.Context, msg Message) (bool, error) {
	if f.err != nil {
		return false, f.err
	}

	f.sent = append(f.sent, msg)
	return false, nil
}

type fakeSMS struct {
	sent []string
	err  error
}

func (f *fakeSMS) Send(_ context.Context, to, body string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}

	f.sent = append(f.sent, to+":"+body)
	return false, nil
}

func TestMailerSimulatesWithoutSMTP(t *testing.T) {
	m := NewMailer(config.MailConfig{}, true)
	assert.False(t, m.Configured())

	simulated, err := m.Send(context.Background(), Message{To: "a@example.com", Subject: "hi", Text: "code 123456"})
	require.NoError(t, err)
	assert.True(t, simulated)

	_, err = m.Send(context.Background(), Message{To: " "})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestMailerSends(t *testing.T) {
	m := NewMailer(config.MailConfig{Host: "smtp.example.com", Port: 587, Sender: "noreply@example.com"}, false)

	var got *gomail.Message
	m.send = func(msg *gomail.Message) error {
		got = msg
		return nil
	}

	simulated, err := m.Send(context.Background(), Message{To: "a@example.com", Subject: "Subject", Text: "text", HTML: "<p>html</p>"})
	require.NoError(t, err)
	assert.False(t, simulated)
	require.NotNil(t, got)
	assert.Equal(t, []string{"a@example.com"}, got.GetHeader("To"))
	assert.Equal(t, []string{"noreply@example.com"}, got.GetHeader("From"))

	_, err = m.Send(context.Background(), Message{To: "NoReply@example.com"})
	assert.Error(t, err, "mail to the sender address is refused")

	m.send = func(*gomail.Message) error { return errors.New("connection refused") }
	_, err = m.Send(context.Background(), Message{To: "a@example.com"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestSMSSimulatesWithoutTwilio(t *testing.T) {
	s := NewSMS(config.SMSConfig{}, false)
	assert.False(t, s.Configured())

	simulated, err := s.Send(context.Background(), "+15555550100", "code")
	require.NoError(t, err)
	assert.True(t, simulated)
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "********0100", maskPhone("+15555550100"))
	assert.Equal(t, "****", maskPhone("123"))
}

func TestDispatcherEmail(t *testing.T) {
	mail := &fakeMail{}
	d := NewDispatcher(mail, &fakeSMS{})

	r, err := d.Deliver(context.Background(), Notification{Channel: model.ChannelEmail, To: "a@example.com", Subject: "s", Text: "t"})
	require.NoError(t, err)
	assert.Equal(t, model.ChannelEmail, r.Channel)
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "a@example.com", mail.sent[0].To)
}

func TestDispatcherSMSFallback(t *testing.T) {
	mail := &fakeMail{}
	sms := &fakeSMS{err: errors.New("twilio down")}
	d := NewDispatcher(mail, sms)

	n := Notification{
		Channel:       model.ChannelSMS,
		To:            "+15555550100",
		FallbackEmail: "a@example.com",
		Subject:       "Reset",
		Text:          "link",
	}

	r, err := d.Deliver(context.Background(), n)
	require.NoError(t, err)
	assert.True(t, r.FellBack)
	assert.Equal(t, model.ChannelEmail, r.Channel)
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "a@example.com", mail.sent[0].To)

	// Without a fallback the SMS error is returned
	n.FallbackEmail = ""
	_, err = d.Deliver(context.Background(), n)
	assert.ErrorContains(t, err, "twilio down")

	// Both failing reports both
	mail.err = errors.New("smtp down")
	n.FallbackEmail = "a@example.com"
	_, err = d.Deliver(context.Background(), n)
	assert.ErrorContains(t, err, "twilio down")
	assert.ErrorContains(t, err, "smtp down")
}

func TestDispatcherSMS(t *testing.T) {
	sms := &fakeSMS{}
	d := NewDispatcher(&fakeMail{}, sms)

	require.NoError(t, d.Notify(context.Background(), Notification{Channel: model.ChannelSMS, To: "+15555550100", Text: "hello"}))
	assert.Equal(t, []string{"+15555550100:hello"}, sms.sent)

	assert.Error(t, d.Notify(context.Background(), Notification{Channel: "pigeon"}))
}

func TestTemplates(t *testing.T) {
	c := VerificationCode("CardioCheck", "042917", 10*time.Minute)
	assert.Contains(t, c.Text, "042917")
	assert.Contains(t, c.Text, "10 minutes")
	assert.Contains(t, c.HTML, "042917")

	c = ResetLink("CardioCheck", "https://example.com/reset?token=abc&x=1", time.Hour)
	assert.Contains(t, c.Text, "https://example.com/reset?token=abc&x=1")
	assert.Contains(t, c.HTML, "token=abc&amp;x=1")

	c = Welcome("CardioCheck", "<script>")
	assert.NotContains(t, c.HTML, "<script>")
	assert.True(t, strings.HasPrefix(c.Subject, "Welcome"))

	n := PasswordChanged("CardioCheck", time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)).To(model.ChannelEmail, "a@example.com")
	assert.Equal(t, "a@example.com", n.To)
	assert.Contains(t, n.Text, "2025-01-02 03:04 UTC")
}

func TestQueueHandle(t *testing.T) {
	mail := &fakeMail{}
	q := &Queue{d: NewDispatcher(mail, &fakeSMS{})}

	payload, err := json.Marshal(Notification{Channel: model.ChannelEmail, To: "a@example.com", Subject: "s", Text: "t"})
	require.NoError(t, err)

	require.NoError(t, q.handle(context.Background(), asynq.NewTask(TaskDeliver, payload)))
	require.Len(t, mail.sent, 1)

	err = q.handle(context.Background(), asynq.NewTask(TaskDeliver, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
