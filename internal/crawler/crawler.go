// Package crawler walks partitioned result listings, reads job cards from
// every page and fetches each card's detail page concurrently.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmylchreest/jobsweep/internal/logger"
	"github.com/jmylchreest/jobsweep/pkg/fetcher"
	"github.com/jmylchreest/jobsweep/pkg/listing"
)

// DetailSink receives detail records.
type DetailSink interface {
	AddDetail(listing.Detail) error
	CloseDetails()
}

// Sink receives the records produced by a run.
type Sink interface {
	DetailSink
	AddListing(listing.Listing) error
	CloseListings()
}

// Config holds crawler configuration.
type Config struct {
	// Concurrency
	Partitions int `validate:"min=1"` // Max partitions in flight
	Details    int `validate:"min=1"` // Max detail fetches in flight per partition; Partitions*Details per run

	// Pagination
	PageSize  int           `validate:"min=1"` // Results per listing page
	PageCap   int           `validate:"min=0"` // Max pages per partition (0 = unlimited)
	PageDelay time.Duration `validate:"min=0"` // Delay between listing pages of one partition

	// Bounded waits
	CountWait     time.Duration `validate:"gt=0"`
	ContainerWait time.Duration `validate:"gt=0"`
	DetailWait    time.Duration `validate:"gt=0"`
	ExpandWait    time.Duration `validate:"gt=0"`
	WalkInWait    time.Duration `validate:"gt=0"`

	Retry             RetryPolicy
	DescriptionFormat string `validate:"oneof=text markdown html raw"`
	Selectors         Selectors
}

// DefaultConfig returns sensible crawler defaults.
func DefaultConfig() Config {
	return Config{
		Partitions:        5,
		Details:           10,
		PageSize:          20,
		PageCap:           15,
		CountWait:         10 * time.Second,
		ContainerWait:     10 * time.Second,
		DetailWait:        20 * time.Second,
		ExpandWait:        10 * time.Second,
		WalkInWait:        10 * time.Second,
		Retry:             DefaultRetryPolicy(),
		DescriptionFormat: FormatText,
		Selectors:         DefaultSelectors(),
	}
}

// Crawler orchestrates partition walks and detail fetches.
type Crawler struct {
	fetcher   fetcher.Fetcher
	planner   *Planner
	extractor *Extractor
	details   *DetailFetcher
	config    Config
	now       func() time.Time
}

// New creates a new Crawler.
func New(f fetcher.Fetcher, cfg Config) *Crawler {
	if cfg.Partitions < 1 {
		cfg.Partitions = 1
	}
	if cfg.Details < 1 {
		cfg.Details = 1
	}
	return &Crawler{
		fetcher:   f,
		planner:   NewPlanner(cfg),
		extractor: NewExtractor(cfg),
		details:   NewDetailFetcher(f, cfg),
		config:    cfg,
		now:       time.Now,
	}
}

// Planner returns the crawler's page planner.
func (c *Crawler) Planner() *Planner { return c.planner }

// Run walks every partition and blocks until all listing pages and detail
// fetches are done, then closes both sides of sink. A fatal error aborts
// only the partition it occurred in. Partitions not started because ctx was
// cancelled are reported as failed.
func (c *Crawler) Run(ctx context.Context, partitions []listing.Partition, sink Sink) Report {
	t := newTally(c.now())

	logger.Debug("crawler starting",
		"partitions", len(partitions),
		"partition_concurrency", c.config.Partitions,
		"detail_concurrency", c.config.Details,
		"fetcher", c.fetcher.Type())

	sem := make(chan struct{}, c.config.Partitions)
	// Detail tasks outlive their partition slot, so the run-wide cap is
	// shared by every partition.
	runDetails := make(chan struct{}, c.config.Partitions*c.config.Details)
	var parts, details sync.WaitGroup

	for i, p := range partitions {
		if !acquire(ctx, sem) {
			logger.Warn("run cancelled, not starting remaining partitions", "next", p.Key, "skipped", len(partitions)-i)
			for _, rest := range partitions[i:] {
				t.partition(PartitionResult{Key: rest.Key, Err: cancelReason(ctx)})
			}
			break
		}
		parts.Add(1)
		go func(p listing.Partition) {
			defer parts.Done()
			defer func() { <-sem }()
			t.partition(c.runPartition(ctx, p, sink, t, runDetails, &details))
		}(p)
	}

	parts.Wait()
	details.Wait()
	sink.CloseListings()
	sink.CloseDetails()

	r := t.finish(c.now())
	logger.Info("run complete", "run_id", r.RunID, "summary", r.Summary())
	return r
}

// Describe fetches the detail page of every URL in urls, at most Details at
// a time, then closes the detail side of sink. Duplicate URLs are fetched
// once. walkIn also reads the walk-in time and venue of every page.
func (c *Crawler) Describe(ctx context.Context, urls []string, walkIn bool, sink DetailSink) Report {
	t := newTally(c.now())
	logger.Debug("describe starting", "urls", len(urls), "detail_concurrency", c.config.Details)

	dsem := make(chan struct{}, c.config.Details)
	runDetails := make(chan struct{}, c.config.Details)
	seen := make(map[string]bool, len(urls))
	var details sync.WaitGroup
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		c.dispatchDetail(ctx, listing.Listing{DetailURL: u, IsWalkIn: walkIn}, sink, t, dsem, runDetails, &details)
	}
	details.Wait()
	sink.CloseDetails()

	r := t.finish(c.now())
	logger.Info("describe complete", "run_id", r.RunID, "summary", r.Summary())
	return r
}

// acquire takes a slot from sem unless ctx is done first.
func acquire(ctx context.Context, sem chan struct{}) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func cancelReason(ctx context.Context) string {
	return fmt.Sprintf("not started: %v", context.Cause(ctx))
}

func (c *Crawler) runPartition(ctx context.Context, p listing.Partition, sink Sink, t *tally, runDetails chan struct{}, details *sync.WaitGroup) PartitionResult {
	res := PartitionResult{Key: p.Key}
	log := logger.With("partition", p.Key)

	// Cancelling pctx stops this partition's pages only; detail tasks run on ctx.
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fail := func(err error) PartitionResult {
		cancel()
		res.Err = err.Error()
		log.Error("partition aborted", "error", err, "pages", res.Pages, "listings", res.Listings)
		return res
	}

	sess, err := c.fetcher.NewSession(pctx)
	if err != nil {
		return fail(fmt.Errorf("session: %w", err))
	}
	defer func() { _ = sess.Close() }()

	seq, err := c.planner.Plan(pctx, sess, p)
	if err != nil {
		return fail(fmt.Errorf("plan: %w", err))
	}
	res.Total = seq.Total
	log.Info("partition started", "total", seq.Total, "pages", seq.PageCount)

	dsem := make(chan struct{}, c.config.Details)
	seen := make(map[string]bool)

	for i, u := range seq.URLs {
		if i > 0 && c.config.PageDelay > 0 {
			if err := sleep(pctx, c.config.PageDelay); err != nil {
				return fail(err)
			}
		}

		pg, err := c.listPage(pctx, sess, p, u)
		if err != nil {
			if errors.Is(err, fetcher.ErrFatal) {
				return fail(fmt.Errorf("page %d: %w", i+1, err))
			}
			log.Warn("skipping page", "url", u, "error", err)
			continue
		}
		res.Pages++
		res.Dropped += pg.Dropped

		for _, l := range pg.Listings {
			if err := sink.AddListing(l); err != nil {
				log.Error("could not record listing", "url", l.DetailURL, "error", err)
				continue
			}
			res.Listings++
			if seen[l.DetailURL] {
				continue
			}
			seen[l.DetailURL] = true
			c.dispatchDetail(ctx, l, sink, t, dsem, runDetails, details)
		}

		log.Debug("page done", "page", i+1, "listings", len(pg.Listings), "dropped", pg.Dropped)
		if !pg.HasMore {
			log.Debug("no more listings", "page", i+1)
			break
		}
	}

	log.Info("partition finished", "pages", res.Pages, "listings", res.Listings)
	return res
}

// listPage opens u with the retry policy and extracts its listings.
func (c *Crawler) listPage(ctx context.Context, sess fetcher.Session, p listing.Partition, u string) (Page, error) {
	var out Page
	_, err := c.config.Retry.Do(ctx, u, func(ctx context.Context, _ int) error {
		page, err := sess.Open(ctx, u)
		if err != nil {
			return err
		}
		defer func() { _ = page.Close() }()
		out, err = c.extractor.Extract(ctx, page, p)
		return err
	})
	return out, err
}

// dispatchDetail starts a detail fetch bounded by the partition's dsem and
// the run-wide runDetails. The fetch runs on the run context so it outlives
// an aborted partition. A task cancelled before it starts is recorded as a
// failed detail.
func (c *Crawler) dispatchDetail(ctx context.Context, l listing.Listing, sink DetailSink, t *tally, dsem, runDetails chan struct{}, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		var d listing.Detail
		switch {
		case !acquire(ctx, dsem):
			d = c.details.Cancelled(l.DetailURL)
		case !acquire(ctx, runDetails):
			<-dsem
			d = c.details.Cancelled(l.DetailURL)
		default:
			d = c.details.Fetch(ctx, l.DetailURL, l.IsWalkIn)
			<-runDetails
			<-dsem
		}

		t.detail(d)
		if err := sink.AddDetail(d); err != nil {
			logger.Error("could not record detail", "url", d.DetailURL, "error", err)
		}
	}()
}
