package email

import (
	"context"
	"errors"
	"net/smtp"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"chatflow/api/internal/config"
)

const gmailScope = "https://mail.google.com/"

type tokenSource interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// gmailTokens exchanges the long lived refresh token for access tokens. The
// last token is reused until shortly before expiry, and refreshes run on the
// caller's context.
type gmailTokens struct {
	conf    *oauth2.Config
	refresh string

	mu      sync.Mutex
	current *oauth2.Token
}

func newGmailTokens(cfg config.GmailConfig, endpoint oauth2.Endpoint) *gmailTokens {
	return &gmailTokens{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{gmailScope},
		},
		refresh: cfg.RefreshToken,
	}
}

func newGmailTokenSource(cfg config.GmailConfig) *gmailTokens {
	return newGmailTokens(cfg, google.Endpoint)
}

func (g *gmailTokens) Token(ctx context.Context) (*oauth2.Token, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	refresher := g.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: g.refresh})
	token, err := oauth2.ReuseTokenSource(g.current, refresher).Token()
	if err != nil {
		return nil, err
	}
	g.current = token
	return token, nil
}

type xoauth2Auth struct {
	username    string
	accessToken string
}

// XOAuth2 implements the SASL XOAUTH2 mechanism Gmail accepts on port 587.
func XOAuth2(username, accessToken string) smtp.Auth {
	return &xoauth2Auth{username: username, accessToken: accessToken}
}

func (a *xoauth2Auth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	if !server.TLS && server.Name != "localhost" && server.Name != "127.0.0.1" {
		return "", nil, errors.New("xoauth2 requires a TLS connection")
	}
	return "XOAUTH2", []byte("user=" + a.username + "\x01auth=Bearer " + a.accessToken + "\x01\x01"), nil
}

// Next answers a server error challenge with an empty response so the
// server replies with its final status.
func (a *xoauth2Auth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		return []byte{}, nil
	}
	return nil, nil
}
