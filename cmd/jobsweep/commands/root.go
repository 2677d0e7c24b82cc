// Package commands implements the CLI commands for jobsweep.
package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/jobsweep/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "jobsweep",
	Short: "Concurrent job-listing scraper with detail-page join",
	Long: `Jobsweep walks partitioned job search results, reads every job card,
fetches each card's detail page and writes the joined dataset.

Partitions (one per city or industry query) come from a manifest file.
Configuration is read from .jobsweep.yaml in the home or working directory,
JOBSWEEP_* environment variables (a .env file is loaded first) and flags.

Examples:
  # Scrape every partition in a manifest to CSV
  jobsweep scrape -m cities.csv -o walkins.csv

  # Use the static fetcher with higher concurrency
  jobsweep scrape -m cities.yaml --fetch-mode static --partitions 8 --details 20

  # Show the page plan without scraping
  jobsweep plan -m cities.yaml

  # Re-fetch descriptions for URLs from an earlier run
  jobsweep describe -i walkins.csv -o descriptions.csv`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		return logger.Init(logger.Options{
			Debug: viper.GetBool("debug"),
			Quiet: viper.GetBool("quiet"),
			JSON:  viper.GetBool("log-json"),
			Level: viper.GetString("log-level"),
		})
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.jobsweep.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("log-level", "", "log level: debug, info, warn, error (overrides --debug/--quiet)")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
}

func initConfig() {
	// A missing .env is normal.
	_ = godotenv.Load()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".jobsweep")
		viper.SetConfigType("yaml")
	}

	// JOBSWEEP_FETCH_MODE, JOBSWEEP_POSTGRES_DSN, ...
	viper.SetEnvPrefix("JOBSWEEP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error: reading config: %v\n", err)
		}
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
