package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type smokeCheck struct {
	name  string
	path  string
	check func(*http.Response, []byte) error
}

var smokeChecks = []smokeCheck{
	{
		name: "health",
		path: "/api/health",
		check: func(resp *http.Response, body []byte) error {
			if err := expectStatus(resp, http.StatusOK); err != nil {
				return err
			}
			var payload struct {
				OK bool `json:"ok"`
			}
			if err := json.Unmarshal(body, &payload); err != nil || !payload.OK {
				return fmt.Errorf("body does not report ok")
			}
			return nil
		},
	},
	{
		name: "ready",
		path: "/api/ready",
		check: func(resp *http.Response, body []byte) error {
			if err := expectStatus(resp, http.StatusOK); err != nil {
				return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(body)))
			}
			return nil
		},
	},
	{
		name: "version",
		path: "/api/version",
		check: func(resp *http.Response, _ []byte) error {
			if err := expectStatus(resp, http.StatusOK); err != nil {
				return err
			}
			if !strings.Contains(resp.Header.Get("Cache-Control"), "no-store") {
				return fmt.Errorf("cache-control is %q, want no-store", resp.Header.Get("Cache-Control"))
			}
			return nil
		},
	},
	{
		name: "cache-buster",
		path: "/nuclear-cache-buster",
		check: func(resp *http.Response, _ []byte) error {
			if err := expectStatus(resp, http.StatusOK); err != nil {
				return err
			}
			if resp.Header.Get("Clear-Site-Data") == "" {
				return fmt.Errorf("missing Clear-Site-Data header")
			}
			return nil
		},
	},
}

func (c *cli) smokeCmd() *cobra.Command {
	var baseURL string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Probe a running API and print PASS/FAIL per endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(baseURL) == "" {
				return fmt.Errorf("--base-url is required")
			}
			client := &http.Client{Timeout: timeout}
			return c.runSmoke(cmd.Context(), client, baseURL, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL, e.g. https://api.chatflow.app")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")
	return cmd
}

func (c *cli) runSmoke(ctx context.Context, client *http.Client, baseURL string, out io.Writer) error {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)

	failures := 0
	for _, check := range smokeChecks {
		err := runCheck(ctx, client, baseURL, check)
		if err != nil {
			failures++
			fail.Fprint(out, "FAIL")
			fmt.Fprintf(out, " %s: %v\n", check.name, err)
			c.log.Debug("smoke check failed", "check", check.name, "error", err)
			continue
		}
		pass.Fprint(out, "PASS")
		fmt.Fprintf(out, " %s\n", check.name)
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d smoke checks failed", failures, len(smokeChecks))
	}
	c.log.Info("all smoke checks passed", "base_url", baseURL)
	return nil
}

func runCheck(ctx context.Context, client *http.Client, baseURL string, check smokeCheck) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+check.path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	return check.check(resp, body)
}

func expectStatus(resp *http.Response, want int) error {
	if resp.StatusCode != want {
		return fmt.Errorf("status %d, want %d", resp.StatusCode, want)
	}
	return nil
}
