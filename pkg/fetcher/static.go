package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gocolly/colly/v2"
	"github.com/jmylchreest/jobsweep/internal/logger"
)

// StaticFetcher uses Colly for plain HTTP fetching and goquery for the DOM.
// Pages are not rendered: script-driven content is invisible to it.
type StaticFetcher struct {
	opts Options
}

// NewStatic creates a new static fetcher.
func NewStatic(opts Options) *StaticFetcher {
	return &StaticFetcher{opts: opts.withDefaults()}
}

// NewSession creates a session backed by its own collector.
func (f *StaticFetcher) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, Wrap(ErrFatal, "", err)
	}
	return &staticSession{opts: f.opts}, nil
}

// Close releases resources.
func (f *StaticFetcher) Close() error {
	return nil
}

// Type returns the fetcher type.
func (f *StaticFetcher) Type() string {
	return ModeStatic
}

type staticSession struct {
	opts Options
}

// Open fetches targetURL and parses the body into a DocumentPage.
func (s *staticSession) Open(ctx context.Context, targetURL string) (Page, error) {
	logger.Debug("static fetch starting", "url", targetURL)

	// A fresh collector per request; colly keeps visit state we do not want.
	c := colly.NewCollector(
		colly.UserAgent(s.opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.opts.Timeout)

	if len(s.opts.Headers) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for k, v := range s.opts.Headers {
				r.Headers.Set(k, v)
			}
		})
	}

	var (
		body     []byte
		status   int
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
		logger.Debug("static fetch response received",
			"status", r.StatusCode,
			"body_size", len(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
		logger.Debug("static fetch error", "status", status, "error", err)
	})

	if err := c.Visit(targetURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return nil, classifyStatus(targetURL, status, fetchErr)
	}

	page, err := NewDocumentPage(targetURL, string(body))
	if err != nil {
		return nil, Wrap(ErrTransient, targetURL, err)
	}
	logger.Debug("static fetch complete", "url", targetURL)
	return page, nil
}

func (s *staticSession) Close() error { return nil }

// classifyStatus maps an HTTP failure onto the fetch error kinds.
// Server errors, throttling and network failures are worth retrying; other
// client errors are not.
func classifyStatus(url string, status int, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return Wrap(ErrFatal, url, err)
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(ErrTimeout, url, err)
	case status == 0, status >= 500, status == http.StatusTooManyRequests:
		return Wrap(ErrTransient, url, err)
	case status >= 400:
		return Wrap(ErrNotFound, url, fmt.Errorf("status %d: %w", status, err))
	default:
		return Wrap(ErrTransient, url, err)
	}
}
