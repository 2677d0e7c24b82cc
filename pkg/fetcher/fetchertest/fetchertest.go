// Package fetchertest provides an in-memory fetcher.Fetcher for tests.
// Pages are served from a URL→HTML map; failures can be scripted per URL.
package fetchertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmylchreest/jobsweep/pkg/fetcher"
)

// Fetcher serves canned HTML. It is safe for concurrent use.
type Fetcher struct {
	mu         sync.Mutex
	pages      map[string]string
	queued     map[string][]error
	always     map[string]error
	waits      map[string][]error
	sessionErr error
	latency    time.Duration
	opens      map[string]int
	sessions   int
	closed     int
	groups     []group
}

// group counts concurrent opens of the URLs it matches.
type group struct {
	name     string
	match    func(url string) bool
	inFlight int
	peak     int
}

var _ fetcher.Fetcher = (*Fetcher)(nil)

// New returns an empty fetcher. Unknown URLs open with fetcher.ErrNotFound.
func New() *Fetcher {
	return &Fetcher{
		pages:  make(map[string]string),
		queued: make(map[string][]error),
		always: make(map[string]error),
		waits:  make(map[string][]error),
		opens:  make(map[string]int),
	}
}

// SetPage registers html for url.
func (f *Fetcher) SetPage(url, html string) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = html
	return f
}

// FailNext makes the next len(errs) opens of url fail with errs, in order.
func (f *Fetcher) FailNext(url string, errs ...error) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued[url] = append(f.queued[url], errs...)
	return f
}

// FailAlways makes every open of url fail with err.
func (f *Fetcher) FailAlways(url string, err error) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.always[url] = err
	return f
}

// FailWaits makes the next len(errs) WaitFor calls on pages of url fail with
// errs, in order, whatever the selector. The page content is unaffected.
func (f *Fetcher) FailWaits(url string, errs ...error) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits[url] = append(f.waits[url], errs...)
	return f
}

// FailSessions makes NewSession fail with err.
func (f *Fetcher) FailSessions(err error) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionErr = err
	return f
}

// SetLatency makes every Open take d, or less if its context ends first.
func (f *Fetcher) SetLatency(d time.Duration) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latency = d
	return f
}

// Track counts concurrent opens of URLs matching match under name.
func (f *Fetcher) Track(name string, match func(url string) bool) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = append(f.groups, group{name: name, match: match})
	return f
}

// Peak returns the most opens of the named group seen in flight at once.
func (f *Fetcher) Peak(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		if g.name == name {
			return g.peak
		}
	}
	return 0
}

// Opens returns how many times url was opened.
func (f *Fetcher) Opens(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[url]
}

// Sessions returns how many sessions were created.
func (f *Fetcher) Sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

// ClosedSessions returns how many sessions were closed.
func (f *Fetcher) ClosedSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fetcher) NewSession(ctx context.Context) (fetcher.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fetcher.Wrap(fetcher.ErrFatal, "", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	f.sessions++
	return &session{f: f}, nil
}

func (f *Fetcher) Close() error { return nil }

func (f *Fetcher) Type() string { return "test" }

// begin records url as in flight and returns the configured latency.
func (f *Fetcher) begin(url string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens[url]++
	for i := range f.groups {
		g := &f.groups[i]
		if g.match(url) {
			g.inFlight++
			g.peak = max(g.peak, g.inFlight)
		}
	}
	return f.latency
}

func (f *Fetcher) end(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.groups {
		if f.groups[i].match(url) {
			f.groups[i].inFlight--
		}
	}
}

func (f *Fetcher) open(ctx context.Context, url string) (string, error) {
	latency := f.begin(url)
	defer f.end(url)

	if latency > 0 {
		t := time.NewTimer(latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return "", fetcher.Wrap(fetcher.ErrTransient, url, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if q := f.queued[url]; len(q) > 0 {
		f.queued[url] = q[1:]
		return "", q[0]
	}
	if err, ok := f.always[url]; ok {
		return "", err
	}
	html, ok := f.pages[url]
	if !ok {
		return "", fetcher.Wrap(fetcher.ErrNotFound, url, errors.New("no such page"))
	}
	return html, nil
}

func (f *Fetcher) nextWait(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.waits[url]
	if len(q) == 0 {
		return nil
	}
	f.waits[url] = q[1:]
	return q[0]
}

type session struct {
	f *Fetcher
}

func (s *session) Open(ctx context.Context, url string) (fetcher.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, fetcher.Wrap(fetcher.ErrFatal, url, err)
	}
	html, err := s.f.open(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := fetcher.NewDocumentPage(url, html)
	if err != nil {
		return nil, err
	}
	return &page{DocumentPage: doc, f: s.f}, nil
}

func (s *session) Close() error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.closed++
	return nil
}

// page is a document page whose waits can be scripted to fail.
type page struct {
	*fetcher.DocumentPage
	f *Fetcher
}

func (p *page) WaitFor(ctx context.Context, sel string, timeout time.Duration) error {
	if err := p.f.nextWait(p.URL()); err != nil {
		return err
	}
	return p.DocumentPage.WaitFor(ctx, sel, timeout)
}
