package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/jobsweep/internal/crawler"
	"github.com/jmylchreest/jobsweep/pkg/fetcher"
	"github.com/jmylchreest/jobsweep/pkg/jobsweep"
	"github.com/jmylchreest/jobsweep/pkg/listing"
	"github.com/jmylchreest/jobsweep/pkg/manifest"
)

func init() {
	cc := crawler.DefaultConfig()
	fo := fetcher.DefaultOptions()

	viper.SetDefault("fetch-mode", fetcher.ModeChrome)
	viper.SetDefault("timeout", fo.Timeout)
	viper.SetDefault("user-agent", fo.UserAgent)
	viper.SetDefault("headless", true)
	viper.SetDefault("stealth", true)
	viper.SetDefault("partitions", cc.Partitions)
	viper.SetDefault("details", cc.Details)
	viper.SetDefault("attempts", cc.Retry.Attempts)
	viper.SetDefault("backoff", cc.Retry.Backoff)
	viper.SetDefault("page-size", cc.PageSize)
	viper.SetDefault("page-cap", cc.PageCap)
	viper.SetDefault("description-format", cc.DescriptionFormat)
	viper.SetDefault("count-wait", cc.CountWait)
	viper.SetDefault("container-wait", cc.ContainerWait)
	viper.SetDefault("detail-wait", cc.DetailWait)
	viper.SetDefault("expand-wait", cc.ExpandWait)
	viper.SetDefault("walk-in-wait", cc.WalkInWait)
}

// addManifestFlags registers the partition manifest flags of scrape and plan.
func addManifestFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("manifest", "m", "", "partition manifest (.yaml, .json or .csv)")
	flags.String("base-url", "", "base URL for partitions that do not set one")
}

// addFetchFlags registers the fetch flags shared by every scraping command.
func addFetchFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("fetch-mode", fetcher.ModeChrome, "fetch mode: static, chrome, playwright")
	flags.Duration("timeout", fetcher.DefaultOptions().Timeout, "page load timeout")
	flags.String("user-agent", "", "override the browser User-Agent")
	flags.Bool("headless", true, "run the browser headless")
	flags.Bool("stealth", true, "mask automation fingerprints in browser modes")
	flags.String("browser-path", "", "browser executable (default: auto-detect)")
	flags.Int("attempts", crawler.DefaultRetryPolicy().Attempts, "attempts per page load and detail fetch")
	flags.Duration("backoff", crawler.DefaultRetryPolicy().Backoff, "pause between attempts")
	flags.Int("page-size", crawler.DefaultConfig().PageSize, "results per listing page")
	flags.Int("page-cap", crawler.DefaultConfig().PageCap, "max pages per partition (0=unlimited)")
}

// loadPartitions reads the manifest named by --manifest.
func loadPartitions() ([]listing.Partition, error) {
	path := viper.GetString("manifest")
	if path == "" {
		return nil, fmt.Errorf("no manifest given (use --manifest)")
	}
	return manifest.FromFile(path, manifest.WithDefaultBaseURL(viper.GetString("base-url")))
}

// clientOptions maps the resolved configuration onto jobsweep options.
func clientOptions() ([]jobsweep.Option, error) {
	cc := crawler.DefaultConfig()
	cc.Partitions = viper.GetInt("partitions")
	cc.Details = viper.GetInt("details")
	cc.PageSize = viper.GetInt("page-size")
	cc.PageCap = viper.GetInt("page-cap")
	cc.PageDelay = viper.GetDuration("page-delay")
	cc.CountWait = viper.GetDuration("count-wait")
	cc.ContainerWait = viper.GetDuration("container-wait")
	cc.DetailWait = viper.GetDuration("detail-wait")
	cc.ExpandWait = viper.GetDuration("expand-wait")
	cc.WalkInWait = viper.GetDuration("walk-in-wait")
	cc.Retry = crawler.RetryPolicy{
		Attempts: viper.GetInt("attempts"),
		Backoff:  viper.GetDuration("backoff"),
	}
	cc.DescriptionFormat = viper.GetString("description-format")

	// Partial overrides keep the remaining default selectors.
	if viper.IsSet("selectors") {
		if err := viper.UnmarshalKey("selectors", &cc.Selectors); err != nil {
			return nil, fmt.Errorf("invalid selectors config: %w", err)
		}
	}

	opts := []jobsweep.Option{
		jobsweep.WithFetchMode(viper.GetString("fetch-mode")),
		jobsweep.WithTimeout(viper.GetDuration("timeout")),
		jobsweep.WithHeadless(viper.GetBool("headless")),
		jobsweep.WithStealth(viper.GetBool("stealth")),
		jobsweep.WithCrawlConfig(cc),
	}
	if ua := viper.GetString("user-agent"); ua != "" {
		opts = append(opts, jobsweep.WithUserAgent(ua))
	}
	if p := viper.GetString("browser-path"); p != "" {
		opts = append(opts, jobsweep.WithBrowserPath(p))
	}
	return opts, nil
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
