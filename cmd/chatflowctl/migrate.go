package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chatflow/api/internal/store"
)

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending *.up.sql migrations to DATABASE_URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.config()
			ctx := cmd.Context()

			db, err := store.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			c.log.Info("applying migrations", "dir", cfg.MigrationsDir)
			applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
			for _, version := range applied {
				c.log.Info("applied", "version", version)
			}
			if err != nil {
				c.log.Error("migration failed", "error", err)
				return err
			}
			if len(applied) == 0 {
				c.log.Info("database is up to date")
			}
			return nil
		},
	}
	cmd.Flags().String("dir", "", "migrations directory (overrides CHATFLOW_MIGRATIONS_DIR)")
	_ = c.v.BindPFlag("migrations_dir", cmd.Flags().Lookup("dir"))
	return cmd
}
