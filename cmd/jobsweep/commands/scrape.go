package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/jobsweep/internal/logger"
	"github.com/jmylchreest/jobsweep/internal/output"
	"github.com/jmylchreest/jobsweep/pkg/jobsweep"
	"github.com/jmylchreest/jobsweep/pkg/listing"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape every partition and write the joined dataset",
	Long: `Scrape walks each partition's result pages, extracts the job cards,
fetches every card's detail page and writes one row per card.

Cards whose detail page could not be fetched keep their listing fields and
carry "Failed to fetch description". Failed partitions are listed in the
run report; the dataset is always written.

With --raw-dir the listing and detail streams are also written unjoined,
as listings.<format> and details.<format>.

Examples:
  jobsweep scrape -m cities.csv -o walkins.csv
  jobsweep scrape -m cities.yaml --format jsonl --report report.json
  jobsweep scrape -m cities.csv -o walkins.csv --raw-dir raw/
  jobsweep scrape -m cities.yaml --postgres-dsn postgres://localhost/jobs`,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	addManifestFlags(scrapeCmd)
	addFetchFlags(scrapeCmd)

	flags := scrapeCmd.Flags()

	// Concurrency
	flags.Int("partitions", 5, "partitions scraped concurrently")
	flags.Int("details", 10, "detail fetches in flight per partition")
	flags.Duration("page-delay", 0, "pause between listing pages of one partition")

	// Content
	flags.String("description-format", "text", "description format: text, markdown, html, raw")

	// Output
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "", "output format: csv, json, jsonl, yaml (default: from --output extension, else csv)")
	flags.String("raw-dir", "", "also write the unjoined listing and detail streams to this directory")
	flags.String("postgres-dsn", "", "also upsert rows into this Postgres database")
	flags.String("postgres-table", output.DefaultTable, "Postgres table name")
	flags.String("report", "", "write the run report as JSON to this file")
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	parts, err := loadPartitions()
	if err != nil {
		logger.Error("failed to load manifest", "error", err)
		return err
	}
	logger.Debug("manifest loaded", "partitions", len(parts))

	js, err := newClient()
	if err != nil {
		return err
	}
	defer func() { _ = js.Close() }()

	cfg := js.Config()
	logger.Info("starting scrape",
		"partitions", len(parts),
		"fetch_mode", cfg.FetchMode,
		"partition_concurrency", cfg.Crawl.Partitions,
		"detail_concurrency", cfg.Crawl.Details)

	res, err := js.Run(ctx, parts)
	if err != nil {
		logger.Error("scrape failed", "error", err)
		return err
	}

	if err := writeRecords(res, cmd.OutOrStdout()); err != nil {
		logger.Error("failed to write output", "error", err)
		return err
	}
	if dir := viper.GetString("raw-dir"); dir != "" {
		if err := writeRawStreams(dir, res); err != nil {
			logger.Error("failed to write raw streams", "dir", dir, "error", err)
			return err
		}
	}
	return finishRun(res.Report)
}

// newClient builds a jobsweep client from the resolved configuration.
func newClient() (*jobsweep.Jobsweep, error) {
	opts, err := clientOptions()
	if err != nil {
		return nil, err
	}
	js, err := jobsweep.New(opts...)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return nil, err
	}
	return js, nil
}

// finishRun writes the optional report file and prints the summary.
func finishRun(r jobsweep.Report) error {
	if path := viper.GetString("report"); path != "" {
		if err := writeReport(path, r); err != nil {
			logger.Error("failed to write report", "path", path, "error", err)
			return err
		}
	}

	logInfo("%s", r.Summary())
	for _, f := range r.PartitionsFailed {
		logInfo("  failed partition %s: %s", f.Key, f.Reason)
	}
	return nil
}

// outputFormat is --format, else the format implied by path.
func outputFormat(path string) output.Format {
	if f := output.Format(viper.GetString("format")); f != "" {
		return f
	}
	return output.FormatFromPath(path)
}

// openOutput opens path for writing, or returns stdout when path is empty.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path) //#nosec G304 -- CLI tool writes to user-specified output file
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}

// writeRecords writes the dataset to the output file or stdout and, when a DSN is
// configured, to Postgres.
func writeRecords(res *jobsweep.Result, stdout io.Writer) error {
	outPath := viper.GetString("output")
	out, closeOut, err := openOutput(outPath, stdout)
	if err != nil {
		return err
	}
	defer func() { _ = closeOut() }()

	format := outputFormat(outPath)
	fw, err := output.NewWriter(out, format)
	if err != nil {
		return err
	}
	writers := output.MultiWriter{fw}

	if dsn := viper.GetString("postgres-dsn"); dsn != "" {
		pw, err := output.NewPostgresWriter(context.Background(), output.PostgresConfig{
			DSN:   dsn,
			Table: viper.GetString("postgres-table"),
			RunID: res.Report.RunID,
		})
		if err != nil {
			return err
		}
		writers = append(writers, pw)
	}

	if err := writers.WriteAll(res.Records); err != nil {
		_ = writers.Close()
		return err
	}
	if err := writers.Close(); err != nil {
		return err
	}
	logger.Debug("output written", "records", len(res.Records), "path", outPath, "format", format)
	return closeOut()
}

// writeRawStreams writes the unjoined listing and detail streams into dir.
func writeRawStreams(dir string, res *jobsweep.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil { //#nosec G301 -- output directory
		return err
	}
	format := outputFormat(viper.GetString("output"))
	if format == "" {
		format = output.FormatCSV
	}
	if err := writeStream(filepath.Join(dir, "listings."+string(format)), nil, format, listing.ListingHeader, res.Listings); err != nil {
		return err
	}
	return writeStream(filepath.Join(dir, "details."+string(format)), nil, format, listing.DetailHeader, res.Details)
}

// writeStream writes recs to path (or stdout) in format.
func writeStream[T output.Record](path string, stdout io.Writer, format output.Format, columns []string, recs []T) error {
	out, closeOut, err := openOutput(path, stdout)
	if err != nil {
		return err
	}
	defer func() { _ = closeOut() }()

	w, err := output.NewRecordWriter[T](out, format, columns)
	if err != nil {
		return err
	}
	if err := w.WriteAll(recs); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	logger.Debug("stream written", "records", len(recs), "path", path, "format", format)
	return closeOut()
}

func writeReport(path string, r jobsweep.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644) //#nosec G306 -- report is not sensitive
}
