package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jmylchreest/jobsweep/internal/logger"
	"github.com/jmylchreest/jobsweep/pkg/cleaner"
	"github.com/jmylchreest/jobsweep/pkg/fetcher"
	"github.com/jmylchreest/jobsweep/pkg/listing"
)

// Description formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatRaw      = "raw"
)

// descriptionCleaner returns the cleaner for format, or nil for plain text.
func descriptionCleaner(format string) cleaner.Cleaner {
	switch format {
	case FormatMarkdown:
		return cleaner.NewChain(cleaner.NewMarkdown(cleaner.WithStripImages(true)), cleaner.NewTidy())
	case FormatHTML:
		return cleaner.NewTidy()
	case FormatRaw:
		return cleaner.NewNoop()
	default:
		return nil
	}
}

// DetailFetcher loads detail pages. Fetch never fails: exhausted retries
// produce a detail carrying listing.DescriptionFailed.
type DetailFetcher struct {
	fetcher       fetcher.Fetcher
	sel           Selectors
	retry         RetryPolicy
	containerWait time.Duration
	expandWait    time.Duration
	walkInWait    time.Duration
	cleaner       cleaner.Cleaner
	normalize     bool
	now           func() time.Time
}

// NewDetailFetcher creates a detail fetcher from cfg.
func NewDetailFetcher(f fetcher.Fetcher, cfg Config) *DetailFetcher {
	return &DetailFetcher{
		fetcher:       f,
		sel:           cfg.Selectors,
		retry:         cfg.Retry,
		containerWait: cfg.DetailWait,
		expandWait:    cfg.ExpandWait,
		walkInWait:    cfg.WalkInWait,
		cleaner:       descriptionCleaner(cfg.DescriptionFormat),
		normalize:     cfg.DescriptionFormat != FormatRaw,
		now:           time.Now,
	}
}

// Fetch loads detailURL in its own session and reads the description, plus
// walk-in time and venue when walkIn is set.
func (d *DetailFetcher) Fetch(ctx context.Context, detailURL string, walkIn bool) listing.Detail {
	var (
		sess   fetcher.Session
		result listing.Detail
	)
	defer func() {
		if sess != nil {
			_ = sess.Close()
		}
	}()

	attempts, err := d.retry.Do(ctx, detailURL, func(ctx context.Context, attempt int) error {
		if sess == nil {
			s, err := d.fetcher.NewSession(ctx)
			if err != nil {
				return err
			}
			sess = s
		}
		r, err := d.attempt(ctx, sess, detailURL, walkIn)
		if err != nil {
			logger.Debug("detail attempt failed", "url", detailURL, "attempt", attempt, "error", err)
			return err
		}
		result = r
		return nil
	})

	result.DetailURL = detailURL
	result.Attempts = attempts
	if err != nil {
		logger.Warn("detail fetch failed", "url", detailURL, "attempts", attempts, "error", err)
		result = failedDetail(detailURL, attempts)
	}
	result.CompletedAt = d.now()
	return result
}

// Cancelled returns the failed detail recorded for a fetch that never
// started.
func (d *DetailFetcher) Cancelled(detailURL string) listing.Detail {
	logger.Debug("detail fetch cancelled", "url", detailURL)
	out := failedDetail(detailURL, 0)
	out.CompletedAt = d.now()
	return out
}

func failedDetail(detailURL string, attempts int) listing.Detail {
	return listing.Detail{
		DetailURL:   detailURL,
		Description: listing.DescriptionFailed,
		WalkInTime:  listing.NotApplicable,
		WalkInVenue: listing.NotApplicable,
		Attempts:    attempts,
		Failed:      true,
	}
}

// attempt is one LOAD, WAIT, EXPAND, READ pass.
func (d *DetailFetcher) attempt(ctx context.Context, sess fetcher.Session, detailURL string, walkIn bool) (listing.Detail, error) {
	page, err := sess.Open(ctx, detailURL)
	if err != nil {
		return listing.Detail{}, err
	}
	defer func() { _ = page.Close() }()

	if err := page.WaitFor(ctx, d.sel.DetailContainer, d.containerWait); err != nil {
		return listing.Detail{}, err
	}
	container, err := page.FindOne(ctx, d.sel.DetailContainer)
	if err != nil {
		// Present a moment ago; treat as a load glitch.
		return listing.Detail{}, fetcher.Wrap(fetcher.ErrTransient, detailURL, err)
	}

	body := d.expand(ctx, page, container)
	desc, err := d.describe(ctx, body)
	if err != nil {
		return listing.Detail{}, err
	}

	out := listing.Detail{
		DetailURL:   detailURL,
		Description: desc,
		WalkInTime:  listing.NotApplicable,
		WalkInVenue: listing.NotApplicable,
	}
	if walkIn {
		out.WalkInTime = d.optional(ctx, page, d.sel.WalkInTime)
		out.WalkInVenue = d.optional(ctx, page, d.sel.WalkInVenue)
	}
	return out, nil
}

// expand clicks the read-more control if there is one and returns the
// expanded body, or container when expansion is unavailable.
func (d *DetailFetcher) expand(ctx context.Context, page fetcher.Page, container fetcher.Element) fetcher.Element {
	if d.sel.ReadMore == "" || d.sel.Expanded == "" {
		return container
	}
	if more, err := page.FindOne(ctx, d.sel.ReadMore); err == nil {
		if err := more.Click(ctx); err != nil {
			logger.Debug("read more click failed", "url", page.URL(), "error", err)
		}
	}
	if err := page.WaitFor(ctx, d.sel.Expanded, d.expandWait); err != nil {
		return container
	}
	expanded, err := page.FindOne(ctx, d.sel.Expanded)
	if err != nil {
		return container
	}
	return expanded
}

func (d *DetailFetcher) describe(ctx context.Context, el fetcher.Element) (string, error) {
	if d.cleaner == nil {
		text, err := el.Text(ctx)
		if err != nil {
			return "", err
		}
		return cleanBlock(text), nil
	}

	html, err := el.HTML(ctx)
	if err != nil {
		return "", err
	}
	out, err := d.cleaner.Clean(html)
	if err != nil {
		return "", fmt.Errorf("%s: %w", d.cleaner.Name(), err)
	}
	if !d.normalize {
		return out, nil
	}
	return norm.NFC.String(out), nil
}

// optional reads sel after a bounded wait. Absence yields
// listing.NotApplicable and is never retried.
func (d *DetailFetcher) optional(ctx context.Context, page fetcher.Page, sel string) string {
	if sel == "" {
		return listing.NotApplicable
	}
	if err := page.WaitFor(ctx, sel, d.walkInWait); err != nil {
		if !errors.Is(err, fetcher.ErrTimeout) {
			logger.Debug("walk-in field unavailable", "url", page.URL(), "selector", sel, "error", err)
		}
		return listing.NotApplicable
	}
	v, err := Field{Selector: sel}.read(ctx, page)
	if err != nil {
		return listing.NotApplicable
	}
	return v
}
