package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/jobsweep/internal/logger"
	"github.com/jmylchreest/jobsweep/pkg/listing"
	"github.com/jmylchreest/jobsweep/pkg/manifest"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Fetch descriptions for a list of known detail URLs",
	Long: `Describe re-fetches the detail page of every URL in the input and writes
one detail row per URL, without walking any listing pages.

The input is a CSV with a detail_url (or "Apply URL", or url) column, or a
plain text file with one URL per line. Duplicate URLs are fetched once.
URLs whose page could not be fetched carry "Failed to fetch description".

Examples:
  jobsweep describe -i walkins.csv -o descriptions.csv
  jobsweep describe -i urls.txt --walk-in --format jsonl
  jobsweep describe -i walkins.csv --description-format markdown --details 4`,
	RunE: runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
	addFetchFlags(describeCmd)

	flags := describeCmd.Flags()

	// Input
	flags.StringP("input", "i", "", "CSV or text file of detail URLs")
	flags.Bool("walk-in", false, "also extract walk-in time and venue")

	// Concurrency
	flags.Int("details", 10, "detail fetches in flight")

	// Content
	flags.String("description-format", "text", "description format: text, markdown, html, raw")

	// Output
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "", "output format: csv, json, jsonl, yaml (default: from --output extension, else csv)")
	flags.String("report", "", "write the run report as JSON to this file")
}

func runDescribe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	input := viper.GetString("input")
	if input == "" {
		return errors.New("no input given (use --input)")
	}
	urls, err := manifest.URLsFromFile(input)
	if err != nil {
		logger.Error("failed to load urls", "path", input, "error", err)
		return err
	}
	logger.Debug("urls loaded", "count", len(urls))

	js, err := newClient()
	if err != nil {
		return err
	}
	defer func() { _ = js.Close() }()

	cfg := js.Config()
	logger.Info("starting describe",
		"urls", len(urls),
		"fetch_mode", cfg.FetchMode,
		"detail_concurrency", cfg.Crawl.Details)

	res, err := js.Describe(ctx, urls, viper.GetBool("walk-in"))
	if err != nil {
		logger.Error("describe failed", "error", err)
		return err
	}

	outPath := viper.GetString("output")
	if err := writeStream(outPath, cmd.OutOrStdout(), outputFormat(outPath), listing.DetailHeader, res.Details); err != nil {
		logger.Error("failed to write output", "error", err)
		return err
	}
	return finishRun(res.Report)
}
