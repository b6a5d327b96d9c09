package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func (c *cli) debugCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "debug",
		Short: "Dump the resolved configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.config()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "--- CHATFLOW DEBUG ---")
			fmt.Fprintf(out, "Config file used: %s\n", c.v.ConfigFileUsed())
			fmt.Fprintf(out, "Email mode: %s\n", cfg.EmailMode())

			b, err := json.MarshalIndent(cfg.Redacted(), "", "  ")
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Fprintln(out, "-- resolved config --")
			fmt.Fprintln(out, string(b))

			fmt.Fprintln(out, "-- environment (CHATFLOW_*) --")
			var names []string
			for _, e := range os.Environ() {
				name, _, _ := strings.Cut(e, "=")
				if strings.HasPrefix(name, "CHATFLOW_") {
					names = append(names, name)
				}
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "%s is set\n", name)
			}
			fmt.Fprintln(out, "--- END DEBUG ---")
			return nil
		},
	}
}
