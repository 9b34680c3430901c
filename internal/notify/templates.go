package notify

import (
	"fmt"
	"html"
	"time"
)

// Content is a rendered message ready to be put into a Notification
type Content struct {
	Subject string
	Text    string
	HTML    string
}

// To addresses c to a single channel
func (c Content) To(channel, to string) Notification {
	return Notification{
		Channel: channel,
		To:      to,
		Subject: c.Subject,
		Text:    c.Text,
		HTML:    c.HTML,
	}
}

const layout = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background: #f6f7fb; color: #1f2937;">
  <div style="max-width: 520px; margin: 24px auto; background: #ffffff; border-radius: 12px; border: 1px solid #e5e7eb; padding: 20px;">
    <h2 style="color: #b91c1c;">%s</h2>
    %s
    <p style="margin-top: 20px; font-size: 12px; color: #6b7280;">If you didn't request this, you can ignore this message.</p>
  </div>
</body>
</html>`

func page(app, body string) string {
	return fmt.Sprintf(layout, html.EscapeString(app), body)
}

func VerificationCode(app, code string, ttl time.Duration) Content {
	mins := int(ttl.Minutes())

	return Content{
		Subject: fmt.Sprintf("[%s] Your verification code", app),
		Text:    fmt.Sprintf("Your %s verification code is %s. It expires in %d minutes.", app, code, mins),
		HTML: page(app, fmt.Sprintf(`<p>Your verification code is:</p>
    <div style="font-size: 28px; font-weight: bold; letter-spacing: 4px;">%s</div>
    <p>The code expires in %d minutes.</p>`, html.EscapeString(code), mins)),
	}
}

func ResetLink(app, link string, ttl time.Duration) Content {
	mins := int(ttl.Minutes())

	return Content{
		Subject: fmt.Sprintf("[%s] Reset your password", app),
		Text:    fmt.Sprintf("Reset your %s password here: %s (valid for %d minutes)", app, link, mins),
		HTML: page(app, fmt.Sprintf(`<p>Someone asked to reset the password of your account.</p>
    <p><a href="%s" style="display: inline-block; padding: 12px 20px; background: #b91c1c; color: #fff; text-decoration: none; border-radius: 8px;">Reset password</a></p>
    <p>The link is valid for %d minutes and can only be used once.</p>`, html.EscapeString(link), mins)),
	}
}

func Welcome(app, name string) Content {
	if name == "" {
		name = "there"
	}

	return Content{
		Subject: fmt.Sprintf("Welcome to %s", app),
		Text:    fmt.Sprintf("Hi %s, your %s account is ready. You can now run your first heart health assessment.", name, app),
		HTML: page(app, fmt.Sprintf(`<p>Hi %s,</p>
    <p>Your account is verified and ready. You can now run your first heart health assessment.</p>`, html.EscapeString(name))),
	}
}

func PasswordChanged(app string, at time.Time) Content {
	when := at.UTC().Format("2006-01-02 15:04 MST")

	return Content{
		Subject: fmt.Sprintf("[%s] Your password was changed", app),
		Text:    fmt.Sprintf("The password of your %s account was changed at %s. All other sessions were signed out. Contact support if this wasn't you.", app, when),
		HTML: page(app, fmt.Sprintf(`<p>The password of your account was changed at <b>%s</b>.</p>
    <p>All other sessions were signed out. Contact support right away if this wasn't you.</p>`, when)),
	}
}
