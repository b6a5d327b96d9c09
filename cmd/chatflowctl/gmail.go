package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chatflow/api/internal/config"
	"chatflow/api/internal/email"
)

func (c *cli) gmailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gmail",
		Short: "Check outgoing email credentials",
	}

	token := &cobra.Command{
		Use:   "token",
		Short: "Exchange the Gmail refresh token and report the access-token expiry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.config()
			if cfg.EmailMode() != config.EmailModeGmailOAuth2 {
				return fmt.Errorf("email mode is %s, gmail oauth2 credentials are incomplete", cfg.EmailMode())
			}
			tok, err := email.NewService(cfg).AccessToken(cmd.Context())
			if err != nil {
				c.log.Error("token exchange failed", "error", err)
				return err
			}
			c.log.Info("token exchange succeeded",
				"user", cfg.Gmail.User,
				"type", tok.Type(),
				"expires_in", time.Until(tok.Expiry).Round(time.Second),
			)
			return nil
		},
	}

	var to string
	sendTest := &cobra.Command{
		Use:   "send-test",
		Short: "Send a test email through the configured mode",
		RunE: func(cmd *cobra.Command, _ []string) error {
			to = strings.TrimSpace(to)
			if to == "" {
				return fmt.Errorf("--to is required")
			}
			cfg := c.config()
			mailer := email.NewService(cfg)
			if !mailer.IsConfigured() {
				return fmt.Errorf("email is not configured (mode %s)", mailer.Mode())
			}
			c.log.Info("sending test email", "to", to, "mode", mailer.Mode())
			if err := mailer.SendTestEmail(cmd.Context(), to); err != nil {
				c.log.Error("send failed", "error", err)
				return err
			}
			c.log.Info("test email sent")
			return nil
		},
	}
	sendTest.Flags().StringVar(&to, "to", "", "recipient address")

	cmd.AddCommand(token, sendTest)
	return cmd
}
