// Package fetcher defines the page-rendering capability the crawler drives.
// A Fetcher hands out Sessions; a Session opens Pages; a Page exposes
// Elements located by CSS selector. Implement these interfaces to plug in
// another rendering engine.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Fetcher creates isolated browsing sessions.
type Fetcher interface {
	// NewSession opens a session. Sessions are not shared between goroutines.
	NewSession(ctx context.Context) (Session, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Type returns a string identifying the fetcher type (e.g., "static", "chrome").
	Type() string
}

// Session is one browser tab, or its equivalent for non-browser fetchers.
type Session interface {
	// Open loads url and returns the rendered page.
	Open(ctx context.Context, url string) (Page, error)
	Close() error
}

// Page is a loaded document.
type Page interface {
	URL() string

	// WaitFor blocks until sel matches at least one element or timeout elapses.
	// A timeout is reported as ErrTimeout.
	WaitFor(ctx context.Context, sel string, timeout time.Duration) error

	// FindOne returns the first element matching sel, or ErrNotFound.
	FindOne(ctx context.Context, sel string) (Element, error)

	// FindAll returns every element matching sel. No match is not an error.
	FindAll(ctx context.Context, sel string) ([]Element, error)

	Close() error
}

// Element is a node inside a Page.
type Element interface {
	Text(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)

	// Attribute returns the named attribute, or ErrNotFound if it is absent.
	Attribute(ctx context.Context, name string) (string, error)

	Click(ctx context.Context) error

	FindOne(ctx context.Context, sel string) (Element, error)
	FindAll(ctx context.Context, sel string) ([]Element, error)
}

// Error kinds. Check with errors.Is(err, fetcher.ErrTransient).
var (
	// ErrNotFound indicates a missing element or a page that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTimeout indicates a bounded wait elapsed.
	ErrTimeout = errors.New("timeout")
	// ErrTransient indicates a load or network failure worth retrying.
	ErrTransient = errors.New("transient fetch failure")
	// ErrFatal indicates the session or browser is unusable.
	ErrFatal = errors.New("fatal fetch failure")
)

// Error is a fetch failure tied to a URL.
type Error struct {
	URL  string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.URL, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.URL, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap builds an *Error of the given kind.
func Wrap(kind error, url string, err error) error {
	return &Error{URL: url, Kind: kind, Err: err}
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}

// Options controls fetcher construction.
type Options struct {
	UserAgent string
	// Timeout bounds a single page open.
	Timeout time.Duration
	Headless bool
	Stealth  bool
	// BrowserPath overrides browser discovery (chrome mode).
	BrowserPath string
	Headers     map[string]string
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		UserAgent: defaultUserAgent,
		Timeout:   30 * time.Second,
		Headless:  true,
		Stealth:   true,
	}
}

// Chrome user agent for better compatibility
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}
	if o.Timeout == 0 {
		o.Timeout = d.Timeout
	}
	return o
}

// Mode names accepted by New.
const (
	ModeStatic     = "static"
	ModeChrome     = "chrome"
	ModePlaywright = "playwright"
)

// New constructs the fetcher for mode.
func New(mode string, opts Options) (Fetcher, error) {
	switch mode {
	case ModeStatic, "":
		return NewStatic(opts), nil
	case ModeChrome:
		return NewChrome(opts)
	case ModePlaywright:
		return NewPlaywright(opts)
	default:
		return nil, fmt.Errorf("unknown fetch mode %q", mode)
	}
}
