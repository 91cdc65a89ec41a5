package services

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer delivers account emails.
type Mailer interface {
	SendPasswordResetEmail(email, token string)
	SendVerificationEmail(email, token string)
}

type MailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type MailService struct {
	cfg     MailConfig
	enabled bool
	log     *slog.Logger
	send    func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailService(cfg MailConfig, log *slog.Logger) *MailService {
	enabled := cfg.Host != "" && cfg.Port != "" && cfg.Username != "" && cfg.Password != "" && cfg.From != ""
	if !enabled {
		log.Warn("mail service disabled: missing SMTP settings")
	}
	return &MailService{cfg: cfg, enabled: enabled, log: log, send: smtp.SendMail}
}

var (
	resetTemplate = template.Must(template.New("reset").Parse(
		`<p>A password reset was requested for your Paperboard account.</p>
<p>Use this token to choose a new password. It expires in one hour.</p>
<pre>{{.Token}}</pre>
<p>If you did not ask for this you can ignore this email.</p>`))

	verifyTemplate = template.Must(template.New("verify").Parse(
		`<p>Welcome to Paperboard.</p>
<p>Confirm your email address with this token:</p>
<pre>{{.Token}}</pre>`))
)

func (s *MailService) sendAsync(to []string, subject string, body string) {
	if !s.enabled {
		return
	}

	go func() {
		if err := s.deliver(to, subject, body); err != nil {
			s.log.Error("failed to send email", "to", to, "subject", subject, "error", err)
			return
		}
		s.log.Info("email sent", "to", to, "subject", subject)
	}()
}

func (s *MailService) deliver(to []string, subject, body string) error {
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)

	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"From: Paperboard <%s>\r\n"+
		"Subject: %s\r\n"+
		"%s\r\n%s", strings.Join(to, ","), s.cfg.From, subject, mime, body))

	return s.send(addr, auth, s.cfg.From, to, msg)
}

func render(t *template.Template, token string) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]string{"Token": token}); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func (s *MailService) SendPasswordResetEmail(email, token string) {
	body, err := render(resetTemplate, token)
	if err != nil {
		s.log.Error("error rendering reset email", "error", err)
		return
	}
	s.sendAsync([]string{email}, "Reset your Paperboard password", body)
}

func (s *MailService) SendVerificationEmail(email, token string) {
	body, err := render(verifyTemplate, token)
	if err != nil {
		s.log.Error("error rendering verification email", "error", err)
		return
	}
	s.sendAsync([]string{email}, "Verify your Paperboard email", body)
}
