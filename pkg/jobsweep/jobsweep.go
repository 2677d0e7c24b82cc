package jobsweep

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jmylchreest/jobsweep/internal/crawler"
	"github.com/jmylchreest/jobsweep/internal/logger"
	"github.com/jmylchreest/jobsweep/internal/sink"
	"github.com/jmylchreest/jobsweep/pkg/fetcher"
	"github.com/jmylchreest/jobsweep/pkg/listing"
	"github.com/jmylchreest/jobsweep/pkg/manifest"
)

// Report summarizes one run. Re-exported from internal/crawler.
type Report = crawler.Report

// PageSequence is the planned page list of one partition.
type PageSequence = crawler.PageSequence

// Version returns the module version of the jobsweep library.
// Returns "(devel)" when built from source without version info.
func Version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.Main.Version
	}
	return "(unknown)"
}

// Result is the joined dataset of one run, the raw streams it was joined
// from and the run report. A describe run fills only Details.
type Result struct {
	Records  []listing.Joined
	Listings []listing.Listing
	Details  []listing.Detail
	Report   Report
}

// Jobsweep is the main entry point for scraping partitioned job listings.
type Jobsweep struct {
	fetcher     fetcher.Fetcher
	ownsFetcher bool
	crawler     *crawler.Crawler
	config      Config
}

var validate = validator.New()

// New creates a new Jobsweep instance.
func New(opts ...Option) (*Jobsweep, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, configError(err)
	}
	if cfg.Logger != nil {
		logger.SetLogger(cfg.Logger)
	}

	// Use injected fetcher or build one for the configured mode
	f := cfg.Fetcher
	owns := false
	if f == nil {
		var err error
		f, err = fetcher.New(cfg.FetchMode, fetcher.Options{
			UserAgent:   cfg.UserAgent,
			Timeout:     cfg.Timeout,
			Headless:    cfg.Headless,
			Stealth:     cfg.Stealth,
			BrowserPath: cfg.BrowserPath,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create fetcher: %w", err)
		}
		owns = true
	}

	return &Jobsweep{
		fetcher:     f,
		ownsFetcher: owns,
		crawler:     crawler.New(f, cfg.Crawl),
		config:      cfg,
	}, nil
}

// Run scrapes every partition and returns the left join of listings with
// their details. Partition and page failures are recorded in the report; the
// error is non-nil only when the partitions are invalid or the run could not
// be collected.
func (j *Jobsweep) Run(ctx context.Context, partitions []listing.Partition) (*Result, error) {
	if err := manifest.Validate(partitions); err != nil {
		return nil, fmt.Errorf("invalid partitions: %w", err)
	}

	s := sink.New()
	report := j.crawler.Run(ctx, partitions, s)

	// Both sides are closed once Run returns, so collecting cannot block.
	st, err := s.Collect(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("collect results: %w", err)
	}

	logger.Debug("run collected", "records", len(st.Joined), "run_id", report.RunID)
	return &Result{Records: st.Joined, Listings: st.Listings, Details: st.Details, Report: report}, nil
}

// Describe re-fetches the detail pages of already known listings. Each URL
// gets the same retry, expansion and failure handling as a Run; walkIn also
// reads the walk-in time and venue. Details come back in completion order.
func (j *Jobsweep) Describe(ctx context.Context, urls []string, walkIn bool) (*Result, error) {
	if len(urls) == 0 {
		return nil, errors.New("no detail URLs given")
	}

	s := sink.New()
	s.CloseListings()
	report := j.crawler.Describe(ctx, urls, walkIn, s)

	st, err := s.Collect(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("collect results: %w", err)
	}
	logger.Debug("describe collected", "details", len(st.Details), "run_id", report.RunID)
	return &Result{Details: st.Details, Report: report}, nil
}

// Plan reads each partition's result count and returns its page URLs
// without extracting any listings.
func (j *Jobsweep) Plan(ctx context.Context, partitions []listing.Partition) ([]PageSequence, error) {
	if err := manifest.Validate(partitions); err != nil {
		return nil, fmt.Errorf("invalid partitions: %w", err)
	}

	sess, err := j.fetcher.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer func() { _ = sess.Close() }()

	planner := j.crawler.Planner()
	out := make([]PageSequence, 0, len(partitions))
	for _, p := range partitions {
		seq, err := planner.Plan(ctx, sess, p)
		if err != nil {
			return out, fmt.Errorf("plan %s: %w", p.Key, err)
		}
		out = append(out, seq)
	}
	return out, nil
}

// Config returns a copy of the active configuration.
func (j *Jobsweep) Config() Config {
	return j.config
}

// Close releases the fetcher when jobsweep created it.
func (j *Jobsweep) Close() error {
	if j.ownsFetcher && j.fetcher != nil {
		return j.fetcher.Close()
	}
	return nil
}

// configError flattens validator errors into one readable message.
func configError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed '%s'", strings.TrimPrefix(e.Namespace(), "Config."), e.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
