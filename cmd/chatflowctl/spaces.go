package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"chatflow/api/internal/storage"
)

func (c *cli) spacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spaces",
		Short: "Check object storage",
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Report whether the configured bucket is reachable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spaces, err := c.spaces()
			if err != nil {
				return err
			}
			if err := spaces.Check(cmd.Context()); err != nil {
				c.log.Error("bucket unreachable", "bucket", spaces.Bucket(), "error", err)
				return err
			}
			c.log.Info("bucket reachable", "bucket", spaces.Bucket())
			return nil
		},
	}

	var file string
	put := &cobra.Command{
		Use:   "put",
		Short: "Upload a sample object and print its URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			spaces, err := c.spaces()
			if err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open sample file: %w", err)
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("stat sample file: %w", err)
			}

			contentType := mime.TypeByExtension(filepath.Ext(file))
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			key := "samples/" + uuid.NewString() + "-" + storage.SanitizeFileName(filepath.Base(file))
			object, err := spaces.Put(cmd.Context(), key, f, info.Size(), contentType)
			if err != nil {
				c.log.Error("upload failed", "key", key, "error", err)
				return err
			}
			c.log.Info("uploaded", "key", object.Key, "bytes", object.Size)
			fmt.Fprintln(cmd.OutOrStdout(), object.PublicURL)

			signed, err := spaces.PresignGet(cmd.Context(), object.Key, filepath.Base(file), storage.DefaultPresignTTL)
			if err != nil {
				c.log.Warn("presign failed", "error", err)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	put.Flags().StringVar(&file, "file", "", "local file to upload")

	cmd.AddCommand(check, put)
	return cmd
}

func (c *cli) spaces() (*storage.Spaces, error) {
	cfg := c.config()
	if !cfg.Spaces.Enabled() {
		return nil, fmt.Errorf("spaces is not configured: set SPACES_KEY, SPACES_SECRET and SPACES_BUCKET")
	}
	return storage.NewSpaces(cfg.Spaces)
}
