package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/quickshelf/api/internal/config"
	"github.com/quickshelf/api/internal/logging"
)

// ErrMailNotConfigured is returned when the effective configuration has no
// usable SMTP transport. This happens when the settings overlay is missing
// and the environment carries no mail credentials either.
var ErrMailNotConfigured = errors.New("mail transport not configured")

// Service sends transactional mail over SMTP. Transport credentials and link
// base URLs come from the config cache on every send, so an admin settings
// edit takes effect without a restart.
type Service struct {
	cache  *config.Cache
	logger *logging.Logger
}

func NewService(cache *config.Cache, logger *logging.Logger) *Service {
	return &Service{
		cache:  cache,
		logger: logger,
	}
}

// SendVerificationEmail sends an email verification link to the user.
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	rt, err := s.cache.Current()
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/verify?token=%s", rt.FrontendURL, token)

	subject := fmt.Sprintf("Verify your %s email address", rt.SiteName)
	body, err := renderTemplate(verificationTemplate, templateData{
		SiteName:     rt.SiteName,
		Link:         link,
		SupportEmail: rt.SupportEmail,
	})
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(rt, toEmail, subject, body); err != nil {
		s.logger.Error("failed to send verification email", "email", toEmail, "error", err.Error())
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info("verification email sent", "email", toEmail)
	return nil
}

// SendPasswordResetEmail sends a password reset link to the user.
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	rt, err := s.cache.Current()
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", rt.FrontendURL, token)

	subject := fmt.Sprintf("Reset your %s password", rt.SiteName)
	body, err := renderTemplate(passwordResetTemplate, templateData{
		SiteName:     rt.SiteName,
		Link:         link,
		SupportEmail: rt.SupportEmail,
	})
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(rt, toEmail, subject, body); err != nil {
		s.logger.Error("failed to send password reset email", "email", toEmail, "error", err.Error())
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info("password reset email sent", "email", toEmail)
	return nil
}

func (s *Service) sendEmail(rt *config.Runtime, to, subject, body string) error {
	if !rt.MailConfigured() {
		return ErrMailNotConfigured
	}

	auth := smtp.PlainAuth("", rt.SMTPUser, rt.SMTPPassword, rt.SMTPHost)
	fromEmail := rt.SMTPUser

	// Build message
	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		fromEmail, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", rt.SMTPHost, rt.SMTPPort)
	return smtp.SendMail(addr, auth, fromEmail, []string{to}, msg)
}

type templateData struct {
	SiteName     string
	Link         string
	SupportEmail string
}

func renderTemplate(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

var verificationTemplate = template.Must(template.New("verification").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #4F46E5;
            color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 0 0 5px 5px;
        }
        .button {
            display: inline-block;
            background-color: #4F46E5;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
            text-align: center;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>Welcome to {{.SiteName}}!</h1>
    </div>
    <div class="content">
        <h2>Verify your email address</h2>
        <p>Thank you for signing up! Please click the button below to verify your email address and unlock your full account.</p>

        <a href="{{.Link}}" class="button" style="color: white !important;">Verify Email Address</a>

        <p>Or copy and paste this link into your browser:</p>
        <p style="word-break: break-all; color: #4F46E5;">{{.Link}}</p>

        <p style="margin-top: 30px;">If you didn't create an account, you can safely ignore this email.</p>
    </div>
    <div class="footer">
        <p>This link will expire in 1 hour.</p>
        {{if .SupportEmail}}<p>Questions? Contact us at {{.SupportEmail}}.</p>{{end}}
        <p>&copy; {{.SiteName}}. All rights reserved.</p>
    </div>
</body>
</html>
`))

var passwordResetTemplate = template.Must(template.New("passwordReset").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #4F46E5;
            color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 0 0 5px 5px;
        }
        .button {
            display: inline-block;
            background-color: #4F46E5;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
            text-align: center;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>Password Reset Request</h1>
    </div>
    <div class="content">
        <h2>Reset your {{.SiteName}} password</h2>
        <p>You requested to reset your password. Click the button below to create a new password.</p>

        <a href="{{.Link}}" class="button" style="color: white !important;">Reset Password</a>

        <p>Or copy and paste this link into your browser:</p>
        <p style="word-break: break-all; color: #4F46E5;">{{.Link}}</p>

        <p style="margin-top: 30px;">If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.</p>
    </div>
    <div class="footer">
        <p>This link will expire in 1 hour.</p>
        {{if .SupportEmail}}<p>Questions? Contact us at {{.SupportEmail}}.</p>{{end}}
        <p>&copy; {{.SiteName}}. All rights reserved.</p>
    </div>
</body>
</html>
`))
