// Package jobsweep provides the public API for scraping partitioned job
// listings and joining them with their detail pages.
package jobsweep

import (
	"log/slog"
	"time"

	"github.com/jmylchreest/jobsweep/internal/crawler"
	"github.com/jmylchreest/jobsweep/pkg/fetcher"
)

// Config holds all jobsweep configuration.
type Config struct {
	// Fetching
	FetchMode   string        `validate:"oneof=static chrome playwright"`
	UserAgent   string        `validate:"required"`
	Timeout     time.Duration `validate:"gt=0"`
	Headless    bool
	Stealth     bool
	BrowserPath string

	// Crawling
	Crawl crawler.Config

	// Fetcher, when set, is used instead of building one from FetchMode.
	// The caller keeps ownership and must close it.
	Fetcher fetcher.Fetcher `validate:"-"`

	// Logger, when set, replaces the package logger.
	Logger *slog.Logger `validate:"-"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	fo := fetcher.DefaultOptions()
	return Config{
		FetchMode: fetcher.ModeChrome,
		UserAgent: fo.UserAgent,
		Timeout:   fo.Timeout,
		Headless:  true,
		Stealth:   true,
		Crawl:     crawler.DefaultConfig(),
	}
}

// Option configures jobsweep.
type Option func(*Config)

// WithFetchMode sets the page fetcher (static, chrome, playwright).
func WithFetchMode(mode string) Option {
	return func(c *Config) {
		c.FetchMode = mode
	}
}

// WithFetcher injects a custom fetcher.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *Config) {
		c.Fetcher = f
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}

// WithTimeout sets the page load timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithHeadless toggles headless browser mode.
func WithHeadless(enabled bool) Option {
	return func(c *Config) {
		c.Headless = enabled
	}
}

// WithStealth toggles automation-fingerprint masking in browser modes.
func WithStealth(enabled bool) Option {
	return func(c *Config) {
		c.Stealth = enabled
	}
}

// WithBrowserPath sets the browser executable.
func WithBrowserPath(path string) Option {
	return func(c *Config) {
		c.BrowserPath = path
	}
}

// WithConcurrency sets the partition and per-partition detail limits.
func WithConcurrency(partitions, details int) Option {
	return func(c *Config) {
		c.Crawl.Partitions = partitions
		c.Crawl.Details = details
	}
}

// WithRetry sets the retry budget for page loads and detail fetches.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Config) {
		c.Crawl.Retry = crawler.RetryPolicy{Attempts: attempts, Backoff: backoff}
	}
}

// WithPaging sets the results per page and the page cap per partition.
func WithPaging(pageSize, pageCap int) Option {
	return func(c *Config) {
		c.Crawl.PageSize = pageSize
		c.Crawl.PageCap = pageCap
	}
}

// WithPageDelay sets the pause between listing pages of one partition.
func WithPageDelay(d time.Duration) Option {
	return func(c *Config) {
		c.Crawl.PageDelay = d
	}
}

// WithDescriptionFormat sets the description format (text, markdown, html, raw).
func WithDescriptionFormat(format string) Option {
	return func(c *Config) {
		c.Crawl.DescriptionFormat = format
	}
}

// WithSelectors replaces the page field map.
func WithSelectors(s crawler.Selectors) Option {
	return func(c *Config) {
		c.Crawl.Selectors = s
	}
}

// WithCrawlConfig replaces the whole crawl configuration.
func WithCrawlConfig(cfg crawler.Config) Option {
	return func(c *Config) {
		c.Crawl = cfg
	}
}

// WithLogger sets a custom slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}
