package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/jobsweep/internal/logger"
	"github.com/jmylchreest/jobsweep/pkg/fetcher"
	"github.com/jmylchreest/jobsweep/pkg/listing"
)

// Page is the result of extracting one result page.
type Page struct {
	Listings []listing.Listing
	// HasMore is false once a page has no containers.
	HasMore bool
	// Dropped counts containers skipped for a missing title or detail URL.
	Dropped int
}

// Extractor reads listing records from result pages.
type Extractor struct {
	sel  Selectors
	wait time.Duration
}

// NewExtractor creates an extractor from cfg.
func NewExtractor(cfg Config) *Extractor {
	return &Extractor{sel: cfg.Selectors, wait: cfg.ContainerWait}
}

// Extract reads every container on page. Records without a title or detail
// URL are dropped; other missing fields take their defaults. A wait timeout
// is not the end of the listing: the page is checked for containers, and
// only a page with none reports HasMore=false. An error is returned only
// when the containers themselves cannot be read.
func (e *Extractor) Extract(ctx context.Context, page fetcher.Page, part listing.Partition) (Page, error) {
	if err := page.WaitFor(ctx, e.sel.Container, e.wait); err != nil {
		if !errors.Is(err, fetcher.ErrTimeout) || ctx.Err() != nil {
			return Page{}, err
		}
		logger.Debug("container wait timed out, checking page", "partition", part.Key, "url", page.URL(), "error", err)
	}

	containers, err := page.FindAll(ctx, e.sel.Container)
	if err != nil {
		return Page{}, fmt.Errorf("failed to list containers: %w", err)
	}
	if len(containers) == 0 {
		logger.Debug("no listing containers", "partition", part.Key, "url", page.URL())
		return Page{}, nil
	}

	out := Page{HasMore: true, Listings: make([]listing.Listing, 0, len(containers))}
	for i, c := range containers {
		l, err := e.extractOne(ctx, c, page.URL(), part)
		if err != nil {
			if errors.Is(err, fetcher.ErrFatal) {
				return out, err
			}
			out.Dropped++
			logger.Warn("dropping listing",
				"partition", part.Key,
				"url", page.URL(),
				"index", i,
				"error", err)
			continue
		}
		out.Listings = append(out.Listings, l)
	}
	return out, nil
}

func (e *Extractor) extractOne(ctx context.Context, c fetcher.Element, pageURL string, part listing.Partition) (listing.Listing, error) {
	title, err := e.sel.Title.read(ctx, c)
	if err != nil {
		return listing.Listing{}, fmt.Errorf("title: %w", err)
	}
	href, err := e.sel.DetailURL.read(ctx, c)
	if err != nil {
		return listing.Listing{}, fmt.Errorf("detail url: %w", err)
	}
	detailURL, ok := resolveURL(pageURL, href)
	if !ok {
		return listing.Listing{}, fmt.Errorf("detail url: invalid link %q", href)
	}

	l := listing.Listing{
		PartitionKey: part.Key,
		DisplayName:  part.Name(),
		Title:        title,
		DetailURL:    detailURL,
	}
	for _, f := range []struct {
		field Field
		dst   *string
	}{
		{e.sel.Company, &l.Company},
		{e.sel.Experience, &l.Experience},
		{e.sel.Location, &l.Location},
		{e.sel.Salary, &l.Salary},
	} {
		v, err := f.field.read(ctx, c)
		if err != nil && errors.Is(err, fetcher.ErrFatal) {
			return listing.Listing{}, err
		}
		*f.dst = v
	}

	if _, err := c.FindOne(ctx, e.sel.WalkInMarker); err == nil {
		l.IsWalkIn = true
	} else if errors.Is(err, fetcher.ErrFatal) {
		return listing.Listing{}, err
	}
	return l, nil
}
