// Package email sends transactional mail over SMTP, authenticating with
// Gmail OAuth2 (XOAUTH2) or a plain SMTP password.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"chatflow/api/internal/config"
	"chatflow/api/internal/util"
)

const (
	gmailSMTPHost = "smtp.gmail.com"
	gmailSMTPPort = "587"
)

var ErrNotConfigured = errors.New("email not configured")

type sendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	mode     config.EmailMode
	host     string
	port     string
	username string
	password string
	from     string
	fromName string
	appName  string

	tokens   tokenSource
	sendMail sendMailFunc
	now      func() time.Time
}

func NewService(cfg config.Config) *Service {
	s := &Service{
		mode:     cfg.EmailMode(),
		from:     cfg.Gmail.From,
		fromName: cfg.Gmail.FromName,
		appName:  "ChatFlow",
		sendMail: sendMailContext,
		now:      time.Now,
	}
	switch s.mode {
	case config.EmailModeGmailOAuth2:
		s.host, s.port = gmailSMTPHost, gmailSMTPPort
		s.username = cfg.Gmail.User
		s.tokens = newGmailTokenSource(cfg.Gmail)
	case config.EmailModeSMTPPassword:
		s.host, s.port = cfg.SMTP.Host, cfg.SMTP.Port
		s.username = cfg.SMTP.Username
		s.password = cfg.SMTP.Password
	}
	if s.from == "" {
		s.from = s.username
	}
	return s
}

func (s *Service) Mode() config.EmailMode {
	return s.mode
}

func (s *Service) IsConfigured() bool {
	return s.mode != config.EmailModeDisabled && s.host != "" && s.from != ""
}

// AccessToken exchanges the Gmail refresh token. It is only meaningful in
// gmail_oauth2 mode.
func (s *Service) AccessToken(ctx context.Context) (*oauth2.Token, error) {
	if s.mode != config.EmailModeGmailOAuth2 || s.tokens == nil {
		return nil, fmt.Errorf("gmail oauth2 not configured: %w", ErrNotConfigured)
	}
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("exchange gmail refresh token: %w", err)
	}
	return token, nil
}

type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

func (s *Service) Send(ctx context.Context, msg Message) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return errors.New("email has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	auth, err := s.auth(ctx)
	if err != nil {
		return err
	}

	raw := buildMessage(s.fromHeader(), msg, s.now())
	if err := s.sendMail(ctx, s.host+":"+s.port, auth, s.from, msg.To, raw); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	slog.InfoContext(ctx, "email sent", "mode", string(s.mode), "subject", msg.Subject, "recipients", len(msg.To))
	return nil
}

func (s *Service) auth(ctx context.Context) (smtp.Auth, error) {
	switch s.mode {
	case config.EmailModeGmailOAuth2:
		token, err := s.AccessToken(ctx)
		if err != nil {
			return nil, err
		}
		return XOAuth2(s.username, token.AccessToken), nil
	case config.EmailModeSMTPPassword:
		return smtp.PlainAuth("", s.username, s.password, s.host), nil
	default:
		return nil, ErrNotConfigured
	}
}

func (s *Service) fromHeader() string {
	if s.fromName == "" {
		return s.from
	}
	return mime.QEncoding.Encode("utf-8", s.fromName) + " <" + s.from + ">"
}

func buildMessage(from string, msg Message, now time.Time) []byte {
	boundary := "chatflow-" + util.NewID("")

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")

	if msg.HTML == "" {
		fmt.Fprintf(&buf, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		buf.WriteString(msg.Text)
		return buf.Bytes()
	}

	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&buf, "--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n", boundary, msg.Text)
	fmt.Fprintf(&buf, "--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n", boundary, msg.HTML)
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}
