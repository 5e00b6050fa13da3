package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"

	"taskory/config"
)

type EmailData struct {
	Subject  string
	To       []string
	Template string
	Data     interface{}
	Year     int
}

// Embedded email templates
var emailTemplates = map[string]string{
	"invitation": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .button { display: inline-block; padding: 12px 24px; background: #3498db; color: #fff; text-decoration: none; border-radius: 4px; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>You've been invited</h2>
    </div>

    <div class="content">
        <p>Hello,</p>
        <p>{{.Data.InviterName}} has invited you to join{{if .Data.ProjectName}} the project <strong>{{.Data.ProjectName}}</strong>{{else}} the workspace{{end}} as <strong>{{.Data.Role}}</strong>.</p>

        <p style="text-align:center;margin:30px 0;">
            <a class="button" href="{{.Data.AcceptURL}}">Accept Invitation</a>
        </p>

        <p>This invitation expires on {{.Data.ExpiresAt}}. If the button does not work, copy this link into your browser:</p>
        <p>{{.Data.AcceptURL}}</p>
    </div>

    <div class="footer">
        <p>If you weren't expecting this invitation, you can safely ignore this email.</p>
        <p>© {{.Year}} Taskory. All rights reserved.</p>
    </div>
</body>
</html>`,
}

// SendInvitationEmail delivers the invitation link. Delivery is best-effort:
// callers log failures and keep the invitation row as the source of truth.
func SendInvitationEmail(to, inviterName, projectName, role, token string, expiresAt time.Time) error {
	acceptURL := fmt.Sprintf("%s/invitations/accept?token=%s", config.AppConfig.FrontendURL, token)

	data := EmailData{
		Subject:  "You've been invited to Taskory",
		To:       []string{to},
		Template: "invitation",
		Data: map[string]string{
			"InviterName": inviterName,
			"ProjectName": projectName,
			"Role":        role,
			"AcceptURL":   acceptURL,
			"ExpiresAt":   expiresAt.Format("January 2, 2006"),
		},
		Year: time.Now().Year(),
	}

	return sendEmail(data)
}

func sendEmail(data EmailData) error {
	cfg := config.AppConfig
	if cfg.SMTPHost == "" {
		return fmt.Errorf("SMTP is not configured")
	}

	tmplText, ok := emailTemplates[data.Template]
	if !ok {
		return fmt.Errorf("unknown email template %q", data.Template)
	}

	tmpl, err := template.New(data.Template).Parse(tmplText)
	if err != nil {
		return fmt.Errorf("failed to parse email template: %w", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", cfg.FromEmail)
	m.SetHeader("To", data.To...)
	m.SetHeader("Subject", data.Subject)
	m.SetBody("text/html", body.String())

	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}

	return nil
}
