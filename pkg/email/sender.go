package email

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/angelmondragon/ecobuy/pkg/config"
	"github.com/angelmondragon/ecobuy/pkg/logger"
	"github.com/resendlabs/resend-go"
)

// Sender delivers the account service's transactional mail.
type Sender interface {
	SendVerificationCode(ctx context.Context, msg VerificationMessage) error
	SendPasswordReset(ctx context.Context, msg PasswordResetMessage) error
}

type VerificationMessage struct {
	To        string
	FirstName string
	Code      string
	ExpiresIn string
}

type PasswordResetMessage struct {
	To        string
	FirstName string
	Code      string
	ExpiresIn string
}

// emailAPI is the slice of the Resend client used here.
type emailAPI interface {
	Send(*resend.SendEmailRequest) (resend.SendEmailResponse, error)
}

// ResendSender sends through the Resend API.
type ResendSender struct {
	emails    emailAPI
	fromEmail string
	fromName  string
	verifyURL string
	resetURL  string
}

// NewSender returns a Resend-backed sender, or a LogSender when no API key
// is configured.
func NewSender(cfg config.EmailConfig, logg *logger.Logger) Sender {
	if strings.TrimSpace(cfg.ResendAPIKey) == "" {
		return &LogSender{logg: logg}
	}
	client := resend.NewClient(cfg.ResendAPIKey)
	return newResendSender(client.Emails, cfg)
}

func newResendSender(emails emailAPI, cfg config.EmailConfig) *ResendSender {
	return &ResendSender{
		emails:    emails,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		verifyURL: cfg.VerifyURL,
		resetURL:  cfg.ResetURL,
	}
}

func (s *ResendSender) SendVerificationCode(ctx context.Context, msg VerificationMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail),
		To:      []string{msg.To},
		Subject: "Your EcoBuy verification code",
		Html:    codeHTML(msg.FirstName, "verification", msg.Code, msg.ExpiresIn, linkFor(s.verifyURL, msg.To), "Verify your account"),
		Text:    fmt.Sprintf("Your EcoBuy verification code is %s.", msg.Code),
	}
	if _, err := s.emails.Send(req); err != nil {
		return fmt.Errorf("send verification email via resend: %w", err)
	}
	return nil
}

func (s *ResendSender) SendPasswordReset(ctx context.Context, msg PasswordResetMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail),
		To:      []string{msg.To},
		Subject: "Reset your EcoBuy password",
		Html:    codeHTML(msg.FirstName, "password reset", msg.Code, msg.ExpiresIn, linkFor(s.resetURL, msg.To), "Choose a new password"),
		Text:    fmt.Sprintf("Your EcoBuy password reset code is %s.", msg.Code),
	}
	if _, err := s.emails.Send(req); err != nil {
		return fmt.Errorf("send password reset email via resend: %w", err)
	}
	return nil
}

// linkFor appends the recipient to base so the page can prefill the form.
func linkFor(base, to string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("email", to)
	u.RawQuery = q.Encode()
	return u.String()
}

func codeHTML(firstName, kind, code, expiresIn, link, linkText string) string {
	name := firstName
	if name == "" {
		name = "there"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(name))
	fmt.Fprintf(&b, "<p>Your EcoBuy %s code is <strong>%s</strong>.</p>", kind, html.EscapeString(code))
	if expiresIn != "" {
		fmt.Fprintf(&b, "<p>It expires in %s.</p>", html.EscapeString(expiresIn))
	}
	if link != "" {
		fmt.Fprintf(&b, `<p><a href="%s">%s</a></p>`, html.EscapeString(link), linkText)
	}
	return b.String()
}

// LogSender writes codes to the log instead of mailing them. Local
// development only.
type LogSender struct {
	logg *logger.Logger
}

func (s *LogSender) SendVerificationCode(ctx context.Context, msg VerificationMessage) error {
	if s.logg == nil {
		return nil
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"to": msg.To, "code": msg.Code})
	s.logg.Info(ctx, "email.verification.logged")
	return nil
}

func (s *LogSender) SendPasswordReset(ctx context.Context, msg PasswordResetMessage) error {
	if s.logg == nil {
		return nil
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"to": msg.To, "code": msg.Code})
	s.logg.Info(ctx, "email.password_reset.logged")
	return nil
}
