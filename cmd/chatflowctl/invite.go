package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (c *cli) inviteLinkCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "invite-link",
		Short: "Print the invitation URL the server generates for a token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("--token is required")
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.config().InviteURL(token))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "invitation token")
	return cmd
}
