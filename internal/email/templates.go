package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
)

var markdown = goldmark.New()

type VerificationData struct {
	AppName         string
	UserName        string
	VerificationURL string
}

type PasswordResetData struct {
	AppName  string
	UserName string
	ResetURL string
}

type InvitationData struct {
	AppName       string
	To            string
	WorkspaceName string
	InviterName   string
	Role          string
	InviteURL     string
	ExpiresAt     time.Time
}

type NotificationData struct {
	AppName  string
	To       string
	UserName string
	Title    string
	Body     string
	BodyHTML template.HTML
	Link     string
}

func (s *Service) SendVerificationEmail(ctx context.Context, to, userName, verificationURL string) error {
	data := VerificationData{AppName: s.appName, UserName: userName, VerificationURL: verificationURL}
	html, err := render(verificationTemplate, data)
	if err != nil {
		return fmt.Errorf("render verification template: %w", err)
	}
	return s.Send(ctx, Message{
		To:      []string{to},
		Subject: "Verify your " + s.appName + " account",
		Text:    fmt.Sprintf("Hi %s,\n\nVerify your email address: %s\n\nThe link expires in 24 hours.\n", userName, verificationURL),
		HTML:    html,
	})
}

func (s *Service) SendPasswordResetEmail(ctx context.Context, to, userName, resetURL string) error {
	data := PasswordResetData{AppName: s.appName, UserName: userName, ResetURL: resetURL}
	html, err := render(passwordResetTemplate, data)
	if err != nil {
		return fmt.Errorf("render password reset template: %w", err)
	}
	return s.Send(ctx, Message{
		To:      []string{to},
		Subject: "Reset your " + s.appName + " password",
		Text:    fmt.Sprintf("Hi %s,\n\nReset your password: %s\n\nThe link expires in 1 hour.\n", userName, resetURL),
		HTML:    html,
	})
}

func (s *Service) SendInvitationEmail(ctx context.Context, data InvitationData) error {
	data.AppName = s.appName
	html, err := render(invitationTemplate, data)
	if err != nil {
		return fmt.Errorf("render invitation template: %w", err)
	}
	return s.Send(ctx, Message{
		To:      []string{data.To},
		Subject: fmt.Sprintf("%s invited you to %s on %s", data.InviterName, data.WorkspaceName, s.appName),
		Text: fmt.Sprintf("%s invited you to join %s as %s.\n\nAccept the invitation: %s\n\nThis invitation expires on %s.\n",
			data.InviterName, data.WorkspaceName, data.Role, data.InviteURL, data.ExpiresAt.UTC().Format("January 2, 2006")),
		HTML: html,
	})
}

// SendNotificationEmail renders Body as Markdown. Raw HTML in the body is
// escaped by goldmark's default renderer.
func (s *Service) SendNotificationEmail(ctx context.Context, data NotificationData) error {
	data.AppName = s.appName
	bodyHTML, err := RenderMarkdown(data.Body)
	if err != nil {
		return fmt.Errorf("render notification body: %w", err)
	}
	data.BodyHTML = bodyHTML
	html, err := render(notificationTemplate, data)
	if err != nil {
		return fmt.Errorf("render notification template: %w", err)
	}
	text := data.Title + "\n\n" + data.Body
	if data.Link != "" {
		text += "\n\nOpen in " + s.appName + ": " + data.Link
	}
	return s.Send(ctx, Message{
		To:      []string{data.To},
		Subject: data.Title,
		Text:    text + "\n",
		HTML:    html,
	})
}

func (s *Service) SendTestEmail(ctx context.Context, to string) error {
	sentAt := s.now().UTC().Format(time.RFC3339)
	return s.Send(ctx, Message{
		To:      []string{to},
		Subject: s.appName + " email test",
		Text:    fmt.Sprintf("This is a test message sent in %s mode at %s.\n", s.mode, sentAt),
		HTML:    fmt.Sprintf("<p>This is a test message sent in <strong>%s</strong> mode at %s.</p>", template.HTMLEscapeString(string(s.mode)), sentAt),
	})
}

func RenderMarkdown(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return template.HTML(strings.TrimSpace(buf.String())), nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const layoutStyle = `<style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #1d1c1d; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #4a154b; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #4a154b; color: #ffffff; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .quote { border-left: 4px solid #ddd; padding-left: 12px; color: #444; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #1264a3; }
    </style>`

var verificationTemplate = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Verify your {{.AppName}} account</title>
    ` + layoutStyle + `
</head>
<body>
    <div class="header"><h1>{{.AppName}}</h1></div>
    <h2>Welcome, {{.UserName}}!</h2>
    <p>Confirm your email address to start chatting with your team.</p>
    <p><a href="{{.VerificationURL}}" class="button">Verify Email Address</a></p>
    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.VerificationURL}}</p>
    <p>This verification link will expire in 24 hours.</p>
    <div class="footer"><p>If you didn't create a {{.AppName}} account, you can ignore this email.</p></div>
</body>
</html>`))

var passwordResetTemplate = template.Must(template.New("password-reset").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Reset your {{.AppName}} password</title>
    ` + layoutStyle + `
</head>
<body>
    <div class="header"><h1>{{.AppName}}</h1></div>
    <h2>Password reset</h2>
    <p>Hi {{.UserName}}, we received a request to reset your password.</p>
    <p><a href="{{.ResetURL}}" class="button">Reset Password</a></p>
    <p class="link">{{.ResetURL}}</p>
    <p>This link will expire in 1 hour.</p>
    <div class="footer"><p>If you didn't request a reset, no action is needed.</p></div>
</body>
</html>`))

var invitationTemplate = template.Must(template.New("invitation").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Join {{.WorkspaceName}} on {{.AppName}}</title>
    ` + layoutStyle + `
</head>
<body>
    <div class="header"><h1>{{.AppName}}</h1></div>
    <h2>{{.InviterName}} invited you to {{.WorkspaceName}}</h2>
    <p>You have been invited to join <strong>{{.WorkspaceName}}</strong> as a {{.Role}}.</p>
    <p><a href="{{.InviteURL}}" class="button">Accept Invitation</a></p>
    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.InviteURL}}</p>
    <p>This invitation was sent to {{.To}} and expires on {{.ExpiresAt.UTC.Format "January 2, 2006"}}.</p>
    <div class="footer"><p>If you weren't expecting this invitation, you can ignore this email.</p></div>
</body>
</html>`))

var notificationTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    ` + layoutStyle + `
</head>
<body>
    <div class="header"><h1>{{.AppName}}</h1></div>
    <p>Hi {{.UserName}},</p>
    <h2>{{.Title}}</h2>
    <div class="quote">{{.BodyHTML}}</div>
    {{if .Link}}<p><a href="{{.Link}}" class="button">Open in {{.AppName}}</a></p>{{end}}
    <div class="footer"><p>You can change which emails you receive in your notification preferences.</p></div>
</body>
</html>`))
