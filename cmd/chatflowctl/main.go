// chatflowctl bundles the operational checks for a ChatFlow deployment:
// configuration dumps, migrations, smoke tests and integration checks.
package main

import (
	"os"
	"strings"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chatflow/api/internal/config"
)

var version = "dev" // set by the linker

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	v       *viper.Viper
	log     *log.Logger
	cfgFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	cmd := &cobra.Command{
		Use:   "chatflowctl",
		Short: "Operational tooling for the ChatFlow API",
		Long: `chatflowctl inspects and exercises a ChatFlow deployment.
Settings come from --config, $HOME/.chatflow.yaml, CHATFLOW_* variables
and the same environment the API server reads.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.log = log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
				Prefix:          "chatflowctl",
				ReportTimestamp: true,
			})
			if c.v.GetBool("verbose") {
				c.log.SetLevel(log.DebugLevel)
			}
			return c.readConfig()
		},
	}
	cmd.Version = version

	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.chatflow.yaml or ./.chatflow.yaml)")
	cmd.PersistentFlags().String("database-url", "", "Postgres connection string (overrides DATABASE_URL)")
	cmd.PersistentFlags().String("frontend-url", "", "frontend base URL (overrides FRONTEND_URL)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	_ = c.v.BindPFlag("database_url", cmd.PersistentFlags().Lookup("database-url"))
	_ = c.v.BindPFlag("frontend_url", cmd.PersistentFlags().Lookup("frontend-url"))
	_ = c.v.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose"))

	cmd.AddCommand(
		c.debugCmd(),
		c.migrateCmd(),
		c.smokeCmd(),
		c.gmailCmd(),
		c.spacesCmd(),
		c.inviteLinkCmd(),
	)
	return cmd
}

// readConfig loads the optional config file. A missing default file is not
// an error; a missing explicit --config is.
func (c *cli) readConfig() error {
	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			c.v.AddConfigPath(home)
		}
		c.v.AddConfigPath(".")
		c.v.SetConfigType("yaml")
		c.v.SetConfigName(".chatflow")
	}
	c.v.SetEnvPrefix("CHATFLOW")
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	c.v.AutomaticEnv()

	if err := c.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && c.cfgFile == "" {
			return nil
		}
		return err
	}
	c.log.Debug("config file loaded", "path", c.v.ConfigFileUsed())
	return nil
}

// config starts from the server's environment and applies viper overrides.
func (c *cli) config() config.Config {
	cfg := config.Load()
	if value := strings.TrimSpace(c.v.GetString("database_url")); value != "" {
		cfg.DatabaseURL = value
	}
	if value := strings.TrimSpace(c.v.GetString("migrations_dir")); value != "" {
		cfg.MigrationsDir = value
	}
	if value := strings.TrimSpace(c.v.GetString("frontend_url")); value != "" {
		cfg.FrontendURL = config.NormalizeBaseURL(value)
	}
	if value := strings.TrimSpace(c.v.GetString("asset_version")); value != "" {
		cfg.Version.AssetVersion = value
	}
	if value := strings.TrimSpace(c.v.GetString("spaces.bucket")); value != "" {
		cfg.Spaces.Bucket = value
	}
	return cfg
}
